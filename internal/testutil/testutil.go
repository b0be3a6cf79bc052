// Package testutil provides shared test helpers for card folders, history
// databases and resolvers.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/starford/flashdeck/internal/assets"
	"github.com/starford/flashdeck/internal/history"
	"github.com/starford/flashdeck/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestHistory opens a history database in a temp dir that is closed on cleanup.
func TestHistory(t *testing.T) *history.DB {
	t.Helper()
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCards creates an in-memory card folder holding files (name -> content).
func TestCards(t *testing.T, files map[string]string) (afero.Fs, *storage.Local) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		if err := afero.WriteFile(fs, name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs, storage.NewLocalWithFS(fs)
}

// TestResolver resolves against provider with local card URLs and no retries.
func TestResolver(provider storage.Provider, pageSize int) *assets.Resolver {
	logger := Logger()
	lister := assets.NewLister(provider, pageSize, assets.RetryPolicy{MaxAttempts: 1}, logger)
	return assets.NewResolver(lister, assets.FormLocal, logger)
}
