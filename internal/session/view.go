package session

import (
	"time"

	"github.com/starford/flashdeck/internal/models"
)

// View is the render-ready projection of a session sent to the page.
type View struct {
	ID         string      `json:"id"`
	Screen     Screen      `json:"screen"`
	Words      string      `json:"words"`
	Deck       models.Deck `json:"deck"`
	Selected   []bool      `json:"selected"`
	Selection  int         `json:"selection_count"`
	Cursor     int         `json:"cursor"`
	Total      int         `json:"total"`
	Current    string      `json:"current,omitempty"`
	Notice     string      `json:"notice,omitempty"`
	AppendNext bool        `json:"append_next"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// View projects s for rendering.
func (s *Session) View() View {
	c := s.Clone()
	c.Normalize()

	selected := 0
	for _, on := range c.Selected {
		if on {
			selected++
		}
	}
	v := View{
		ID:         c.ID,
		Screen:     c.Screen,
		Words:      c.Words,
		Deck:       c.Deck,
		Selected:   c.Selected,
		Selection:  selected,
		Notice:     c.Notice,
		AppendNext: c.AppendNext,
		UpdatedAt:  c.UpdatedAt,
	}
	if v.Deck == nil {
		v.Deck = models.Deck{}
	}
	if v.Selected == nil {
		v.Selected = []bool{}
	}
	if card, ok := c.Current(); ok {
		v.Current = card
		v.Cursor = c.Cursor
		v.Total = len(c.Active)
	}
	return v
}
