// GoalPath - learning roadmap and realtime tutor server
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/goalpath/internal/api"
	"github.com/ashureev/goalpath/internal/cache"
	"github.com/ashureev/goalpath/internal/config"
	"github.com/ashureev/goalpath/internal/goals"
	"github.com/ashureev/goalpath/internal/identity"
	"github.com/ashureev/goalpath/internal/llm"
	"github.com/ashureev/goalpath/internal/middleware"
	"github.com/ashureev/goalpath/internal/realtime"
	"github.com/ashureev/goalpath/internal/session"
	"github.com/ashureev/goalpath/internal/store"
	"github.com/ashureev/goalpath/internal/tutor"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "provider", cfg.Provider.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	roadmapCache := newCache(ctx, cfg)
	if c, ok := roadmapCache.(io.Closer); ok {
		defer c.Close()
	}

	gen, err := llm.New(ctx, cfg.LLM(), logger)
	if err != nil {
		slog.Error("Failed to initialize generation provider", "error", err)
		os.Exit(1)
	}
	if c, ok := gen.(io.Closer); ok {
		defer c.Close()
	}
	if gen == nil {
		slog.Info("AI features disabled, tutor will serve fallback content (LLM_PROVIDER not set)")
	}

	// Realtime tutor.
	registry := session.NewRegistry()
	router := realtime.NewRouter(registry, tutor.NewAdapter(gen, cfg.Provider.Timeout), realtime.RouterConfig{
		HelpDelayMin: cfg.Tutor.HelpDelayMin,
		HelpDelayMax: cfg.Tutor.HelpDelayMax,
		Logger:       logger,
	})
	hub := realtime.NewHub(router, cfg.FrontendURL, cfg.IsDevelopment())

	realtime.StartReaper(ctx, registry, hub, cfg.Tutor.IdleTTL, cfg.Tutor.ReapInterval)
	slog.Info("Session reaper started", "idle_ttl", cfg.Tutor.IdleTTL, "interval", cfg.Tutor.ReapInterval)

	// HTTP handlers.
	planner := goals.NewPlanner(gen, goals.PlannerConfig{
		Cache:    roadmapCache,
		CacheTTL: cfg.Cache.RoadmapTTL,
		Timeout:  cfg.Provider.Timeout,
		Logger:   logger,
	})
	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	handler := api.NewHandler(api.Options{
		Repo:     repo,
		Planner:  planner,
		Tokens:   identity.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:  limiter,
		Sessions: registry,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL, cfg.IsDevelopment())))

	// Public routes.
	r.Get("/health", handler.Health)
	handler.RegisterUserRoutes(r)

	// Bearer-authenticated routes.
	handler.RegisterGoalRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/tutor", hub.ServeHTTP)

	// Note: websocket connections are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Hijacked websocket connections are not tracked by srv.Shutdown.
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// newCache returns Redis when REDIS_URL is set and reachable, otherwise the
// in-process cache.
func newCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if cfg.Cache.RedisURL == "" {
		return cache.NewMemory()
	}
	rdb, err := cache.NewRedis(ctx, cfg.Cache.RedisURL)
	if err != nil {
		slog.Warn("Redis unavailable, falling back to in-process roadmap cache", "error", err)
		return cache.NewMemory()
	}
	slog.Info("Roadmap cache using Redis")
	return rdb
}
