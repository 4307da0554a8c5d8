// Package app is the core application service. It wires storage,
// sessions, the access gate, payments, and the writing assistant, and
// enforces role capabilities at the data boundary regardless of what
// the HTTP layer already checked.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storyconnect/pkg/ai"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/gate"
	"storyconnect/pkg/payments"
	"storyconnect/pkg/queue"
	"storyconnect/pkg/storage"
	"storyconnect/pkg/store"
)

// Config holds runtime configuration for the core application. The
// interface fields are injectable for tests; nil means "build the
// production implementation".
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	SessionTTL time.Duration
	RefreshTTL time.Duration

	JWTPrivateKeyPath   string
	JWTKeyID            string
	JWTVerifyPublicKeys map[string]string
	JWTIssuer           string
	JWTAudience         string
	JWTLeeway           time.Duration

	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	StripeBaseURL   string
	StripeSecretKey string
	CheckoutOrigin  string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	EventStream string
	EventGroup  string

	Store         store.Store
	Roles         authz.RoleStore
	Sessions      store.SessionStore
	RefreshTokens store.RefreshTokenStore
	Generator     ai.TextGenerator
	Checkout      payments.CheckoutClient
	Objects       storage.ObjectStore
	Events        queue.Publisher
}

// App implements the platform's use cases.
type App struct {
	store         store.Store
	roles         authz.RoleStore
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	refreshTTL    time.Duration

	gate      *gate.Service
	assistant *ai.Assistant

	checkout       payments.CheckoutClient
	checkoutOrigin string

	objects storage.ObjectStore
	events  queue.Publisher
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

	var redisClient *redis.Client
	needRedis := cfg.Sessions == nil || cfg.RefreshTokens == nil ||
		(cfg.Events == nil && strings.TrimSpace(cfg.EventStream) != "")
	if needRedis {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required")
		}
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	dataStore := cfg.Store
	roleStore := cfg.Roles
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		dataStore = gormStore
		if roleStore == nil {
			roleStore = gormStore
		}
	}
	if roleStore == nil {
		return nil, fmt.Errorf("role store required")
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.JWTPrivateKeyPath) == "" {
			return nil, fmt.Errorf("jwtPrivateKeyPath is required")
		}
		revoker := store.NewRedisTokenRevoker(redisClient, 0)
		jwtStore, err := store.NewJWTSessionStoreFromPEM(
			cfg.JWTPrivateKeyPath,
			cfg.JWTKeyID,
			cfg.JWTVerifyPublicKeys,
			cfg.SessionTTL,
			revoker,
			store.JWTOptions{
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				Leeway:   cfg.JWTLeeway,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	refreshStore := cfg.RefreshTokens
	if refreshStore == nil {
		refreshStore = store.NewRedisRefreshTokenStore(redisClient)
	}

	events := cfg.Events
	if events == nil && strings.TrimSpace(cfg.EventStream) != "" {
		eventQueue, err := queue.NewRedisEventQueue(redisClient, queue.EventQueueConfig{
			Stream: cfg.EventStream,
			Group:  cfg.EventGroup,
		})
		if err != nil {
			return nil, fmt.Errorf("init event queue: %w", err)
		}
		events = eventQueue
	}

	generator := cfg.Generator
	if generator == nil && strings.TrimSpace(cfg.AIBaseURL) != "" {
		generator = ai.NewOpenAICompatClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	}
	var assistant *ai.Assistant
	if generator != nil {
		assistant = ai.NewAssistant(generator)
	}

	objects := cfg.Objects
	if objects == nil && strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := storage.NewMinioStore(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioBucket, cfg.MinioUseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
		objects = minioStore
	}

	checkout := cfg.Checkout
	if checkout == nil && strings.TrimSpace(cfg.StripeSecretKey) != "" {
		baseURL := cfg.StripeBaseURL
		if strings.TrimSpace(baseURL) == "" {
			baseURL = "https://api.stripe.com"
		}
		checkout = payments.NewStripeClient(baseURL, cfg.StripeSecretKey)
	}

	return &App{
		store:          dataStore,
		roles:          roleStore,
		sessions:       sessionStore,
		refreshTokens:  refreshStore,
		refreshTTL:     cfg.RefreshTTL,
		gate:           gate.NewService(dataStore),
		assistant:      assistant,
		checkout:       checkout,
		checkoutOrigin: strings.TrimRight(strings.TrimSpace(cfg.CheckoutOrigin), "/"),
		objects:        objects,
		events:         events,
	}, nil
}

// Sessions exposes the session store for JWKS publication.
func (a *App) Sessions() store.SessionStore {
	return a.sessions
}

func (a *App) issueTokens(userID string) (string, string, error) {
	accessToken, err := a.sessions.NewSession(userID)
	if err != nil {
		return "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := a.refreshTokens.NewToken(userID, a.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}
