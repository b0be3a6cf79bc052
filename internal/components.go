package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/flashdeck/internal/assets"
	"github.com/starford/flashdeck/internal/flashcards"
	"github.com/starford/flashdeck/internal/history"
	"github.com/starford/flashdeck/internal/session"
	"github.com/starford/flashdeck/internal/sse"
	"github.com/starford/flashdeck/internal/storage"
)

// Components are the long-lived collaborators shared by every entry point.
type Components struct {
	Provider storage.Provider
	Cards    *storage.Local // nil unless the source is a local folder
	Resolver *assets.Resolver
	History  *history.DB // nil when history is disabled
	Sessions session.Store
	Broker   *sse.Broker
	Service  *flashcards.Service

	closers []func() error
}

// NewLogger builds the structured JSON logger for cfg.
func NewLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// Build wires storage, resolver, history, session store, broker and service.
// The caller must Close the result.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Components, error) {
	c := &Components{}
	if err := c.build(ctx, cfg, logger); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	switch cfg.Source.Kind {
	case SourceLocal:
		if err := os.MkdirAll(cfg.Local.Root, 0o755); err != nil {
			return fmt.Errorf("create card dir: %w", err)
		}
		local, err := storage.NewLocal(cfg.Local.Root)
		if err != nil {
			return fmt.Errorf("init local source: %w", err)
		}
		c.Provider, c.Cards = local, local
	default:
		drive, err := storage.NewDrive(ctx, cfg.Drive.CredentialsFile)
		if err != nil {
			return fmt.Errorf("init drive source: %w", err)
		}
		c.Provider = drive
	}

	lister := assets.NewLister(c.Provider, cfg.Source.PageSize, cfg.Source.Retry.Policy(), logger)
	c.Resolver = assets.NewResolver(lister, cfg.Source.Form(), logger)

	if cfg.SQLite.Enabled() {
		db, err := history.Open(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("init history: %w", err)
		}
		c.History = db
		c.closers = append(c.closers, db.Close)
	}

	switch cfg.Sessions.Backend {
	case SessionsRedis:
		rs, err := session.NewRedisStoreFromURL(ctx, cfg.Sessions.RedisURL, cfg.Sessions.TTL, logger)
		if err != nil {
			return fmt.Errorf("init redis sessions: %w", err)
		}
		c.Sessions = rs
		c.closers = append(c.closers, rs.Close)
	default:
		c.Sessions = session.NewMemoryStore(cfg.Sessions.TTL)
	}

	c.Broker = sse.NewBroker(2 * time.Second)
	c.closers = append(c.closers, func() error {
		c.Broker.Close()
		return nil
	})

	opts := []flashcards.Option{flashcards.WithPublisher(c.Broker)}
	if c.History != nil {
		opts = append(opts, flashcards.WithHistory(c.History))
	}
	c.Service = flashcards.NewService(c.Resolver, c.Sessions, cfg.Source.FolderID, logger, opts...)
	return nil
}

// Close releases everything Build opened, newest first.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// sweep drops expired in-memory sessions and prunes old history records.
func (c *Components) sweep(ctx context.Context, cfg *Config, logger *slog.Logger) {
	if ms, ok := c.Sessions.(*session.MemoryStore); ok {
		if n := ms.Sweep(); n > 0 {
			logger.Debug("expired sessions dropped", slog.Int("count", n))
		}
	}
	if c.History != nil && cfg.SQLite.Retention > 0 {
		n, err := c.History.Prune(ctx, cfg.SQLite.Retention)
		if err != nil {
			logger.Warn("history prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Debug("history pruned", slog.Int64("count", n))
		}
	}
}
