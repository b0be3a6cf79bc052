package assets

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/models"
)

// Resolver turns a word list into a Deck against the current folder listing.
// The index is rebuilt on every call.
type Resolver struct {
	lister *Lister
	form   URLForm
	logger *slog.Logger
}

// NewResolver creates a Resolver emitting card URLs in the given form.
func NewResolver(lister *Lister, form URLForm, logger *slog.Logger) *Resolver {
	return &Resolver{
		lister: lister,
		form:   form,
		logger: logger.With(slog.String("item", "Resolver")),
	}
}

// ListImages exposes the underlying listing.
func (r *Resolver) ListImages(ctx context.Context, folderID string) ([]models.FileEntry, error) {
	return r.lister.ListImages(ctx, folderID)
}

// Resolve fetches folderID's listing and resolves words against it.
//
// It returns apperr.ErrEmptyInput without fetching when words has no tokens,
// and apperr.ErrNoMatch together with the (empty-deck) result when no token
// matched.
func (r *Resolver) Resolve(ctx context.Context, folderID, words string) (*Result, error) {
	if len(SplitWords(words)) == 0 {
		return nil, apperr.ErrEmptyInput
	}

	entries, err := r.lister.ListImages(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	idx, shadowed := BuildIndex(entries)
	for _, e := range shadowed {
		r.logger.Warn("duplicate card name ignored",
			slog.String("name", e.Name),
			slog.String("id", e.ID),
			slog.String("kept_id", idx[NormalizeKey(e.Name)]))
	}

	res := Resolve(words, idx, r.form)
	if len(res.Missed) > 0 {
		r.logger.Debug("words without a card", slog.Any("missed", res.Missed))
	}
	if len(res.Deck) == 0 {
		return res, apperr.ErrNoMatch
	}
	return res, nil
}
