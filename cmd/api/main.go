package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/justsurfingit/studentva/internal/auth"
	"github.com/justsurfingit/studentva/internal/config"
	"github.com/justsurfingit/studentva/internal/handlers"
	"github.com/justsurfingit/studentva/internal/logging"
	"github.com/justsurfingit/studentva/internal/metrics"
	"github.com/justsurfingit/studentva/internal/ratelimit"
	"github.com/justsurfingit/studentva/internal/services"
	"github.com/justsurfingit/studentva/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "studentva",
		Short:        "Student VA application backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newCheckCmd(), newGmailAuthCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// setup loads configuration and installs the process logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, nil
}

// newEmailTransport picks the delivery path; nil means email is not configured.
func newEmailTransport(ctx context.Context, cfg config.EmailConfig) (services.EmailTransport, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	if cfg.Transport != config.TransportGmailAPI {
		return services.NewSMTPTransport(cfg), nil
	}
	ts, err := auth.TokenSource(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile)
	if err != nil {
		return nil, err
	}
	svc, err := auth.GmailService(ctx, ts)
	if err != nil {
		return nil, err
	}
	return services.NewGmailTransport(svc, ts), nil
}

func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		slog.Info("using in-memory rate limiter")
		return ratelimit.NewMemoryStore(), func() {}, nil
	}
	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using redis rate limiter")
	return ratelimit.NewRedisStore(client), func() { _ = client.Close() }, nil
}

func serve(ctx context.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	transport, err := newEmailTransport(ctx, cfg.Email)
	if err != nil {
		slog.Error("email transport unavailable, email notifications will fail", "error", err)
	}
	if cfg.Email.Configured() && transport != nil {
		slog.Info("email notifications configured", "transport", cfg.Email.Transport, "to", cfg.Email.Recipient())
	} else {
		slog.Warn("email credentials not configured")
	}
	if cfg.Telegram.Configured() {
		slog.Info("telegram notifications configured")
	} else {
		slog.Warn("telegram credentials not configured")
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	defer closeLimiter()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	stager := storage.NewStager(cfg.UploadDir, cfg.UploadMaxBytes)
	if cfg.UploadSweepSchedule != "" {
		janitor, err := storage.StartJanitor(stager, cfg.UploadSweepSchedule, cfg.UploadSweepAge)
		if err != nil {
			return err
		}
		defer janitor.Stop()
	}
	applications := services.NewApplicationService(stager, m.ObserveNotification,
		services.NewEmailService(cfg.Email, transport),
		services.NewTelegramService(cfg.Telegram),
	)

	router, err := handlers.NewRouter(handlers.RouterDeps{
		Config:       cfg,
		Applications: handlers.NewApplicationHandler(applications, m, cfg.UploadMaxBytes),
		Health:       handlers.NewHealthHandler(cfg.Email, cfg.Telegram),
		Limiter:      limiter,
		Metrics:      m,
		StaticDir:    handlers.ResolveStaticDir(cfg.StaticDirs),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
