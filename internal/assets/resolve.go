package assets

import (
	"strings"

	"github.com/starford/flashdeck/internal/models"
)

// Result is the outcome of resolving a comma-separated word list.
type Result struct {
	Deck    models.Deck `json:"deck"`
	Matched []string    `json:"matched"`
	Missed  []string    `json:"missed"`
}

// SplitWords splits input on commas, trims and lowercases every token and
// drops empty ones. Order is preserved.
func SplitWords(input string) []string {
	var out []string
	for _, tok := range strings.Split(input, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Resolve looks every token of words up in idx. Misses are skipped; the Deck keeps
// input order and is not deduplicated.
func Resolve(words string, idx Index, form URLForm) *Result {
	res := &Result{Deck: models.Deck{}}
	for _, tok := range SplitWords(words) {
		id, ok := idx[tok]
		if !ok {
			res.Missed = append(res.Missed, tok)
			continue
		}
		res.Matched = append(res.Matched, tok)
		res.Deck = append(res.Deck, form.CardURL(id))
	}
	return res
}
