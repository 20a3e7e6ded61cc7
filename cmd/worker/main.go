package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"routecast/internal/config"
	"routecast/internal/domain/notification"
	"routecast/internal/infra/email"
	"routecast/internal/infra/push"
	"routecast/internal/infra/queue"
	"routecast/internal/infra/store"

	"github.com/hibiken/asynq"
)

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

	slog.Info("worker configuration loaded")

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

	// Email sender (Resend)
	emailSender := email.NewResendSender(
		cfg.Email.APIKey,
		cfg.Email.FromAddress,
		cfg.Email.FromName,
	)

	// Push sender (Redis pub/sub to connected sessions)
	pushSender := push.NewRedisSender(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer pushSender.Close()

	// Delivery Worker
	deliveryWorker := notification.NewWorker(supaStore, supaStore, pushSender, emailSender)

	// ==========================================
	// Asynq Server (delivery task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDeliverNotification, func(ctx context.Context, task *asynq.Task) error {
		payload, err := notification.ParseDeliverNotificationPayload(task.Payload())
		if err != nil {
			return err
		}
		return deliveryWorker.ProcessTask(ctx, payload.NotificationID)
	})

	// Start the asynq worker in a goroutine
	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Retention Cleanup
	// ==========================================

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	if cfg.Cleanup.Enabled {
		cleaner := notification.NewCleaner(supaStore, notification.CleanerConfig{
			RetentionDays: cfg.Cleanup.RetentionDays,
			BatchSize:     cfg.Cleanup.BatchSize,
		})

		scheduler, err := cleaner.Schedule(cleanupCtx, cfg.Cleanup.Schedule)
		if err != nil {
			slog.Error("failed to schedule retention cleanup", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()

		slog.Info("retention cleanup scheduled",
			"schedule", cfg.Cleanup.Schedule,
			"retention_days", cfg.Cleanup.RetentionDays,
		)
	} else {
		slog.Info("retention cleanup disabled")
	}

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cleanupCancel() // Stop any in-flight cleanup first
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
