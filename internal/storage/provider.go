// Package storage defines the folder-listing collaborators that back card resolution.
package storage

import (
	"context"

	"github.com/starford/flashdeck/internal/models"
)

// Page is one page of a folder listing.
type Page struct {
	Entries []models.FileEntry
	// NextPageToken is empty on the last page.
	NextPageToken string
}

// Provider is the interface for paged, read-only folder listings.
type Provider interface {
	// ListPage returns up to pageSize image entries of folderID starting at pageToken.
	// An empty pageToken requests the first page.
	ListPage(ctx context.Context, folderID, pageToken string, pageSize int) (*Page, error)
}
