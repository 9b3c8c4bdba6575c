package main

import (
	"context"
	"log"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-planner/internal/broadcast"
	"github.com/iliyamo/event-planner/internal/config"
	"github.com/iliyamo/event-planner/internal/handler"
	"github.com/iliyamo/event-planner/internal/lock"
	"github.com/iliyamo/event-planner/internal/middleware"
	"github.com/iliyamo/event-planner/internal/mutate"
	"github.com/iliyamo/event-planner/internal/queue"
	"github.com/iliyamo/event-planner/internal/router"
	queue_publisher "github.com/iliyamo/event-planner/internal/service"
	"github.com/iliyamo/event-planner/internal/store"
)

func main() {
	_ = godotenv.Load() // optional .env for local development
	cfg := config.Load()

	var docs store.DocumentStore
	switch cfg.StoreDriver {
	case "mysql":
		s, err := store.OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("open mysql store: %v", err)
		}
		defer s.Close()
		docs = s
	default:
		s, err := store.NewFileStore(filepath.Join(cfg.DataDir, "resources"))
		if err != nil {
			log.Fatalf("open file store: %v", err)
		}
		docs = s
	}

	locks, err := lock.NewManager(filepath.Join(cfg.DataDir, "locks"),
		cfg.LockRetryDelay, cfg.LockMaxRetries, cfg.LockStaleAge)
	if err != nil {
		log.Fatalf("init lock manager: %v", err)
	}

	hub := broadcast.NewHub()
	mutator := mutate.New(locks, docs)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and response caching disabled")
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	rateLimit := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)

	publishAudit := func(ev queue.ResourceUpdatedEvent) {
		// Best-effort: audit must never slow down or fail a mutation.
		go func() { _ = queue_publisher.PublishResourceUpdated(context.Background(), ev) }()
	}
	go func() {
		if err := queue.StartChangeConsumer(); err != nil {
			log.Printf("change consumer stopped: %v", err)
		}
	}()

	res := handler.NewResourceHandler(docs, mutator, hub, cache.Invalidate, publishAudit)
	sub := handler.NewSubscribeHandler(hub)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, res, sub, cfg.JWTSecret, rateLimit, cache)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s store=%s)", addr, cfg.Env, cfg.StoreDriver)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
