package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"storyconnect/internal/config"
	"storyconnect/internal/notifier"
	"storyconnect/internal/util"
	"storyconnect/pkg/queue"
	"storyconnect/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.EventStream == "" {
		log.Fatal("eventStream is required for the notifier")
	}

	util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	hostname, _ := os.Hostname()
	events, err := queue.NewRedisEventQueue(redisClient, queue.EventQueueConfig{
		Stream:   cfg.EventStream,
		Group:    cfg.EventGroup,
		Consumer: hostname,
	})
	if err != nil {
		log.Fatalf("failed to init event queue: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("notifier consuming", "stream", cfg.EventStream, "consumer", hostname)
	if err := notifier.New(events, dataStore, 0).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("notifier stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("notifier shut down")
}
