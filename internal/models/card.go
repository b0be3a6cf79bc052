// Package models defines the domain types for flashdeck.
package models

import "strings"

// FileEntry is one file returned by a folder listing.
type FileEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
}

// IsImage reports whether the entry's media type is an image type.
func (e FileEntry) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(e.MimeType), "image/")
}

// Deck is the ordered list of card URLs resolved from user input.
// Duplicates are allowed.
type Deck []string

// Clone returns an independent copy of d.
func (d Deck) Clone() Deck {
	if d == nil {
		return nil
	}
	out := make(Deck, len(d))
	copy(out, d)
	return out
}
