// Package storage opens the configured account back end together with the
// connections it needs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/academy/internal/account"
	"github.com/p-n-ai/academy/internal/grading"
	"github.com/p-n-ai/academy/internal/platform/cache"
	"github.com/p-n-ai/academy/internal/platform/config"
	"github.com/p-n-ai/academy/internal/platform/database"
	"github.com/p-n-ai/academy/internal/platform/sqlite"
	"github.com/p-n-ai/academy/internal/progress"
)

// Backend bundles the stores built from configuration.
type Backend struct {
	Name     string
	Users    account.Store
	Events   progress.EventLogger // persistent audit trail, Nop when the back end has none
	Attempts grading.AttemptStore

	cache   *cache.Cache
	checks  map[string]func(context.Context) error
	closers []func() error
}

// Open builds the back end named by cfg.Storage.Backend and the grading
// attempt store named by cfg.Grading.Backend.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	b, err := OpenAccounts(ctx, cfg, cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.Grading.TTL) * time.Minute
	switch cfg.Grading.Backend {
	case config.BackendRedis:
		c, err := b.redis(ctx, cfg)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("grading store: %w", err)
		}
		b.Attempts = grading.NewRedisAttemptStore(c, ttl)
	default:
		b.Attempts = grading.NewMemoryAttemptStore(ttl)
	}
	return b, nil
}

// OpenAccounts builds only the account store of the named back end. The
// admin CLI uses it to open two back ends side by side.
func OpenAccounts(ctx context.Context, cfg *config.Config, name string) (*Backend, error) {
	b := &Backend{
		Name:   name,
		Events: progress.NopEventLogger{},
		checks: make(map[string]func(context.Context) error),
	}

	switch name {
	case config.BackendMemory:
		b.Users = account.NewMemoryStore()

	case config.BackendFile:
		s, err := account.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		b.Users = s

	case config.BackendSQLite:
		db, err := sqlite.OpenDB(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.checks["sqlite"] = db.PingContext
		b.Users = account.NewSQLiteStore(db)

	case config.BackendPostgres, config.BackendSupabase:
		opts := database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		}
		if name == config.BackendSupabase {
			opts.URL = cfg.Storage.SupabaseURL
			opts.SimpleProtocol = true
		}
		db, err := database.New(ctx, opts)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { db.Close(); return nil })
		b.checks["database"] = db.HealthCheck
		s, err := account.NewPostgresStore(db.Pool)
		if err != nil {
			db.Close()
			return nil, err
		}
		b.Users = s
		b.Events = progress.NewPostgresEventLogger(db.Pool)

	case config.BackendMongo:
		client, err := account.ConnectMongo(ctx, cfg.Storage.MongoURI)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { return client.Disconnect(context.Background()) })
		b.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		s, err := account.NewMongoStore(ctx, client.Database(cfg.Storage.MongoDatabase))
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Users = s

	case config.BackendRedis:
		c, err := b.redis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.Users = account.NewRedisStore(c)

	default:
		return nil, fmt.Errorf("unknown storage back end %q", name)
	}

	slog.Info("storage opened", "backend", name)
	return b, nil
}

// redis connects to the cache once and shares the client.
func (b *Backend) redis(ctx context.Context, cfg *config.Config) (*cache.Cache, error) {
	if b.cache != nil {
		return b.cache, nil
	}
	c, err := cache.New(ctx, cfg.Cache.URL)
	if err != nil {
		return nil, err
	}
	b.cache = c
	b.closers = append(b.closers, c.Close)
	b.checks["cache"] = c.HealthCheck
	return c, nil
}

// HealthCheck pings every connection the back end holds.
func (b *Backend) HealthCheck(ctx context.Context) error {
	var errs []error
	for name, check := range b.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
