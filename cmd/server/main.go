package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"storyconnect/internal/app"
	"storyconnect/internal/config"
	"storyconnect/internal/ratelimit"
	"storyconnect/internal/server"
	"storyconnect/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	refreshTTL, err := config.ParseTTL(cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("failed to parse refresh TTL: %v", err)
	}
	jwtLeeway, err := config.ParseTTL(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse JWT leeway: %v", err)
	}
	verifyKeys, err := config.ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys)
	if err != nil {
		log.Fatalf("failed to parse JWT verify keys: %v", err)
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,

		SessionTTL: sessionTTL,
		RefreshTTL: refreshTTL,

		JWTPrivateKeyPath:   cfg.JWTPrivateKeyPath,
		JWTKeyID:            cfg.JWTKeyID,
		JWTVerifyPublicKeys: verifyKeys,
		JWTIssuer:           cfg.JWTIssuer,
		JWTAudience:         cfg.JWTAudience,
		JWTLeeway:           jwtLeeway,

		AIBaseURL: cfg.AIBaseURL,
		AIAPIKey:  cfg.AIAPIKey,
		AIModel:   cfg.AIModel,

		StripeBaseURL:   cfg.StripeBaseURL,
		StripeSecretKey: cfg.StripeSecretKey,
		CheckoutOrigin:  cfg.CheckoutOrigin,

		MinioEndpoint:  cfg.MinioEndpoint,
		MinioAccessKey: cfg.MinioAccessKey,
		MinioSecretKey: cfg.MinioSecretKey,
		MinioBucket:    cfg.MinioBucket,
		MinioUseSSL:    cfg.MinioUseSSL,

		EventStream: cfg.EventStream,
		EventGroup:  cfg.EventGroup,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	newLimiter := func(name string, perMinute int) *ratelimit.FixedWindowLimiter {
		if perMinute <= 0 {
			return nil
		}
		limiter, err := ratelimit.NewFixedWindowLimiter(
			redisClient, "storyconnect:ratelimit:"+name, perMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init %s limiter: %v", name, err)
		}
		return limiter
	}

	httpServer := server.New(server.Config{
		App:              appCore,
		SignupLimiter:    newLimiter("signup", cfg.SignupRateLimitPerMinute),
		LoginLimiter:     newLimiter("login", cfg.LoginRateLimitPerMinute),
		AssistantLimiter: newLimiter("assistant", cfg.AssistantRateLimitPerMinute),
		TrustedProxies:   trustedProxies,
		AllowedOrigins:   cfg.AllowedOrigins,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("api server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
