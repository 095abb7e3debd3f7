package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/costpilot/gateway/internal/gateway/accounting"
	"github.com/costpilot/gateway/internal/gateway/cache"
	"github.com/costpilot/gateway/internal/gateway/forward"
	"github.com/costpilot/gateway/internal/gateway/handlers"
	"github.com/costpilot/gateway/internal/gateway/ratelimit"
	"github.com/costpilot/gateway/internal/gateway/secrets"
	"github.com/costpilot/gateway/internal/shared/config"
	"github.com/costpilot/gateway/internal/shared/database"
	"github.com/costpilot/gateway/internal/shared/notify"
	"github.com/costpilot/gateway/internal/shared/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	log.Info("starting cost gateway", "port", cfg.Port, "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", "err", err)
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to connect to Redis", "err", err)
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	cipher, err := secrets.NewCipher(cfg.SecretsKey)
	if err != nil {
		log.Fatal("failed to init credential cipher", "err", err)
	}

	cacheService := cache.New(redisClient, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	limiter := ratelimit.NewSlidingWindow(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowSeconds)*time.Second)
	forwarder := forward.New(time.Duration(cfg.UpstreamTimeoutSeconds)*time.Second, cfg.UpstreamMaxRetries)
	notifier := notify.NewWebhook(cfg.AlertWebhookURL)
	dispatcher := accounting.New(db, notifier, 4, 256)

	chatHandler := handlers.NewChatHandler(db, cacheService, forwarder, cipher, dispatcher)
	middleware := handlers.NewMiddleware(db, cipher, limiter, cfg.RateLimitRequests)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// API routes (with auth and rate limiting)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth)
		r.Use(middleware.RateLimit)

		r.Post("/chat/completions", chatHandler.HandleChatCompletion)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "err", err)
	}

	// Drain accounting jobs so audit rows are not lost on restart.
	dispatcher.Stop()

	log.Info("stopped")
}
