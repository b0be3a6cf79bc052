package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/models"
	"github.com/starford/flashdeck/internal/storage"
)

// DefaultPageSize is the number of entries requested per listing page.
const DefaultPageSize = 200

// RetryPolicy bounds the retries of a single failed listing page.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     4 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	retries := max(p.MaxAttempts-1, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Lister pages through a Provider until the listing is exhausted.
type Lister struct {
	provider storage.Provider
	pageSize int
	retry    RetryPolicy
	logger   *slog.Logger
}

// NewLister creates a Lister. A non-positive pageSize selects DefaultPageSize.
func NewLister(provider storage.Provider, pageSize int, retry RetryPolicy, logger *slog.Logger) *Lister {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Lister{
		provider: provider,
		pageSize: pageSize,
		retry:    retry,
		logger:   logger.With(slog.String("item", "Lister")),
	}
}

// ListImages returns every image entry of folderID, each page exactly once.
// Pages are fetched sequentially.
func (l *Lister) ListImages(ctx context.Context, folderID string) ([]models.FileEntry, error) {
	var out []models.FileEntry
	token := ""
	pages := 0
	for {
		page, err := l.fetchPage(ctx, folderID, token)
		if err != nil {
			return nil, err
		}
		pages++
		for _, e := range page.Entries {
			if e.IsImage() {
				out = append(out, e)
			}
		}
		if page.NextPageToken == "" {
			break
		}
		if page.NextPageToken == token {
			return nil, fmt.Errorf("%w: listing stuck at page token %q", apperr.ErrTransientFetch, token)
		}
		token = page.NextPageToken
	}

	l.logger.Debug("listed folder",
		slog.String("folder", folderID),
		slog.Int("pages", pages),
		slog.Int("images", len(out)))
	return out, nil
}

func (l *Lister) fetchPage(ctx context.Context, folderID, token string) (*storage.Page, error) {
	var page *storage.Page
	attempt := 0
	op := func() error {
		attempt++
		p, err := l.provider.ListPage(ctx, folderID, token, l.pageSize)
		if err != nil {
			if permanent(err) {
				return backoff.Permanent(err)
			}
			l.logger.Warn("list page failed",
				slog.String("folder", folderID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		page = p
		return nil
	}

	if err := backoff.Retry(op, l.retry.backOff(ctx)); err != nil {
		if permanent(err) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: after %d attempts: %v", apperr.ErrTransientFetch, attempt, err)
	}
	return page, nil
}

func permanent(err error) bool {
	return errors.Is(err, apperr.ErrCredential) ||
		errors.Is(err, apperr.ErrFolderMissing) ||
		errors.Is(err, apperr.ErrInvalidInput)
}
