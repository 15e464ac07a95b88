package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sealevel/backend/internal/auth"
	"sealevel/backend/internal/config"
	"sealevel/backend/internal/consensus"
	"sealevel/backend/internal/db"
	"sealevel/backend/internal/handlers"
	"sealevel/backend/internal/middleware"
	"sealevel/backend/internal/realtime"
	"sealevel/backend/internal/router"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	authService, err := auth.NewService(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		log.Fatalf("failed to init auth: %v", err)
	}

	store := consensus.NewStore(database, cfg.MasterKey)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to prepare schema: %v", err)
	}

	registry := consensus.NewRegistry()
	registerProviders(ctx, registry, store, cfg)

	cache := consensus.NewCache(cfg.CacheTTL)
	engine := consensus.NewEngine(registry, cache, cfg.ConsensusConfig())

	hub := realtime.NewHub()

	var queue *consensus.Queue
	if cfg.RedisURL != "" {
		queue, err = consensus.NewQueue(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer queue.Close()
	} else {
		log.Println("REDIS_URL not set, async consensus jobs disabled")
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go cache.Run(bgCtx, 5*time.Minute)

	if cfg.HealthInterval > 0 {
		monitor := &consensus.HealthMonitor{
			Registry: registry,
			Interval: cfg.HealthInterval,
			Sink:     store,
			Notifier: hub,
		}
		go monitor.Run(bgCtx)
	}

	if queue != nil {
		worker := &consensus.Worker{
			Queue:     queue,
			Engine:    engine,
			Hub:       hub,
			BatchSize: cfg.WorkerBatchSize,
		}
		go worker.Start(bgCtx)
	}

	limiter := middleware.NewRateLimiter(60, time.Minute)
	go pruneLimiter(bgCtx, limiter)

	api := handlers.NewAPI(engine, store, queue, database, authService, hub)
	rt := router.New(api, authService, limiter, cfg.FrontendOrigin, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rt,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s with %d providers", cfg.Port, len(registry.GetAll()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	bgCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// registerProviders builds adapters from the environment first, then lets
// persisted rows replace them so admin edits survive restarts. Providers
// without credentials are skipped, not fatal.
func registerProviders(ctx context.Context, registry *consensus.Registry, store *consensus.Store, cfg config.Config) {
	configs := cfg.ProviderConfigs()

	persisted, err := store.ListProviderConfigs(ctx)
	if err != nil {
		log.Printf("loading persisted providers failed: %v", err)
	}
	configs = append(configs, persisted...)

	for _, pc := range configs {
		provider, err := consensus.NewProvider(pc)
		if err != nil {
			log.Printf("provider %s not registered: %v", pc.Name, err)
			continue
		}
		registry.Register(provider)
	}
}

func pruneLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
