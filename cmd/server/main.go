package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"routecast/internal/config"
	"routecast/internal/domain/notification"
	directoryclient "routecast/internal/infra/directory"
	"routecast/internal/infra/push"
	"routecast/internal/infra/queue"
	"routecast/internal/infra/ratelimit"
	"routecast/internal/infra/store"
	"routecast/internal/infra/template"
	"routecast/internal/router"
	"routecast/internal/routes"

	"github.com/hibiken/asynq"
)

// queueEnqueuer adapts the asynq client to the notification.Enqueuer
// interface.
type queueEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func (q *queueEnqueuer) EnqueueDeliverNotification(notificationID string) error {
	return queue.EnqueueDeliverNotification(q.client, notificationID, q.maxRetry)
}

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Supabase Store
	supaStore, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize supabase store", "error", err)
		os.Exit(1)
	}
	slog.Info("supabase store initialized")

	// Directory client (employees, deputies, tasks)
	dirClient := directoryclient.NewHTTPClient(cfg.Directory.BaseURL, cfg.Directory.APIKey)

	// Route Registry — process refuses to boot on an invalid table
	registry, err := notification.NewRegistry(routes.Registrations(dirClient, dirClient))
	if err != nil {
		slog.Error("failed to build route registry", "error", err)
		os.Exit(1)
	}
	slog.Info("route registry initialized", "routes", registry.Len())

	// Template engine + built-in template seeding
	engine := template.NewEngine()
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := template.Seed(seedCtx, supaStore); err != nil {
		seedCancel()
		slog.Error("failed to seed templates", "error", err)
		os.Exit(1)
	}
	seedCancel()

	// Asynq Client (for enqueuing delivery tasks)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	slog.Info("asynq client initialized", "redis", cfg.Redis.Address)

	// Per-route dispatch limiter
	routeLimiter := ratelimit.NewRedisRouteLimiter(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.DispatchLimit.MaxPerMinute,
	)
	defer routeLimiter.Close()
	slog.Info("route dispatch limiter initialized", "max_per_minute", cfg.DispatchLimit.MaxPerMinute)

	// Push sender (used here only for operator broadcasts)
	pushSender := push.NewRedisSender(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer pushSender.Close()

	// Enqueuer adapter
	enqueuer := &queueEnqueuer{
		client:   asynqClient,
		maxRetry: cfg.Queue.MaxRetry,
	}

	// Dispatcher
	dispatcher := notification.NewDispatcher(
		registry,
		engine,
		supaStore,
		supaStore,
		supaStore,
		supaStore,
		enqueuer,
		routeLimiter,
	)

	// Handler
	notificationHandler := notification.NewHandler(dispatcher, pushSender)

	// Router
	r := router.New(cfg, notificationHandler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
