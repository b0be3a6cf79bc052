// Package assets resolves typed words to card image URLs.
package assets

import (
	"strings"

	"github.com/starford/flashdeck/internal/models"
)

// Index maps a normalised filename stem to a file id.
type Index map[string]string

// NormalizeKey strips the final ".ext" suffix of name, trims surrounding
// whitespace and lowercases the result. A name without a dot is used as is.
func NormalizeKey(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// BuildIndex indexes entries by normalised stem. When two entries share a stem
// the first one in listing order is kept; the shadowed entries are returned so
// the caller can report them. Entries whose stem is empty are skipped.
func BuildIndex(entries []models.FileEntry) (Index, []models.FileEntry) {
	idx := make(Index, len(entries))
	var shadowed []models.FileEntry
	for _, e := range entries {
		key := NormalizeKey(e.Name)
		if key == "" {
			continue
		}
		if _, ok := idx[key]; ok {
			shadowed = append(shadowed, e)
			continue
		}
		idx[key] = e.ID
	}
	return idx, shadowed
}
