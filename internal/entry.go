// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/flashdeck/internal/api"
	"github.com/starford/flashdeck/internal/watcher"
	"github.com/starford/flashdeck/internal/web"
)

const sweepInterval = time.Minute

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg)
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Source.Kind),
		slog.String("url_form", string(cfg.Source.Form())),
		slog.String("sessions", cfg.Sessions.Backend),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	comps, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}()

	handler, err := NewHTTPHandler(cfg, comps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the local card folder and tell connected pages about changes.
	if comps.Cards != nil && cfg.Local.Watch {
		root := filepath.Join(cfg.Local.Root, cfg.Source.FolderID)
		g.Go(func() error {
			return watcher.Watch(gCtx, root, logger, func(kind, name string) {
				comps.Broker.PublishAssetsChanged(kind, name)
			})
		})
	}

	// Periodic housekeeping.
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				comps.sweep(gCtx, cfg, logger)
			}
		}
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams end when the broker closes; close it before waiting on them.
		comps.Broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so background loops stop with the server.
var errShutdown = errors.New("shutdown")

// NewHTTPHandler builds the root router: page, health checks, card images and
// the API.
func NewHTTPHandler(cfg *Config, comps *Components) (http.Handler, error) {
	page, err := web.NewPage(cfg.Gallery.Title, cfg.Gallery.Columns)
	if err != nil {
		return nil, fmt.Errorf("init page: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, nil)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := comps.Service.Ready(); err != nil {
			writeHealth(w, http.StatusServiceUnavailable, err)
			return
		}
		writeHealth(w, http.StatusOK, nil)
	})

	r.Method(http.MethodGet, "/", page)

	cards := api.NewCardHandler(comps.Cards, cfg.Source.FolderID)
	api.MountCards(r, cards)

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(comps.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, comps.Broker, cards))

	return r, nil
}

func writeHealth(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"status": "ok"}
	if err != nil {
		body = map[string]string{"status": "unavailable", "error": err.Error()}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
