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

	"github.com/p-n-ai/academy/internal/account"
	"github.com/p-n-ai/academy/internal/auth"
	"github.com/p-n-ai/academy/internal/content"
	"github.com/p-n-ai/academy/internal/grading"
	"github.com/p-n-ai/academy/internal/httpapi"
	"github.com/p-n-ai/academy/internal/live"
	"github.com/p-n-ai/academy/internal/platform/config"
	"github.com/p-n-ai/academy/internal/platform/logging"
	"github.com/p-n-ai/academy/internal/platform/metrics"
	"github.com/p-n-ai/academy/internal/progress"
	"github.com/p-n-ai/academy/internal/storage"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

type app struct {
	handler http.Handler
	backend *storage.Backend
	stop    context.CancelFunc
}

// newApp wires storage, content, the progress engine and the HTTP API.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	policy, err := progress.ParsePersistPolicy(cfg.Progress.PersistPolicy)
	if err != nil {
		return nil, err
	}

	// Background sweeps stop with the server or on close.
	ctx, stop := context.WithCancel(ctx)

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		stop()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	catalog, err := content.NewCatalog(cfg.ContentPath)
	if err != nil {
		stop()
		backend.Close()
		return nil, fmt.Errorf("loading content: %w", err)
	}

	m := metrics.New()
	hub := live.NewHub()
	m.Gauge("live_subscribers", "Open live progress streams.", func() float64 { return float64(hub.Subscribers()) })

	accounts := account.NewService(account.ServiceConfig{
		Store:      backend.Users,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	engine := progress.NewEngine(progress.EngineConfig{
		Store:    account.NewProgressStore(backend.Users),
		Events:   progress.MultiEventLogger{backend.Events, hub},
		Observer: m,
		Policy:   policy,
	})

	tokenTTL := time.Duration(cfg.Auth.AccessTokenTTL) * time.Minute
	srv := httpapi.New(httpapi.Config{
		Catalog:  catalog,
		Accounts: accounts,
		Engine:   engine,
		Grader: grading.New(grading.Config{
			Catalog:  catalog,
			Marker:   engine,
			Attempts: backend.Attempts,
		}),
		Issuer:    auth.NewIssuer(cfg.Auth.JWTSecret, tokenTTL),
		Hub:       hub,
		Metrics:   m,
		IsAdmin:   cfg.Auth.IsAdmin,
		LoginRate: cfg.Auth.LoginRate,
		Ready:     backend.HealthCheck,
	})

	jobs := []sweepJob{{
		name: "progress sessions",
		run:  func() int { return engine.EvictIdle(tokenTTL) },
	}}
	if mem, ok := backend.Attempts.(*grading.MemoryAttemptStore); ok {
		jobs = append(jobs, sweepJob{name: "grading sessions", run: mem.Sweep})
	}
	go sweepLoop(ctx, sweepInterval, jobs...)

	return &app{handler: srv.Handler(), backend: backend, stop: stop}, nil
}

func (a *app) close() {
	a.stop()
	if err := a.backend.Close(); err != nil {
		slog.Error("closing storage", "error", err)
	}
}
