// Package session implements the per-user presentation state machine and its stores.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/models"
)

// Screen is the screen a session is currently showing.
type Screen string

const (
	ScreenInput        Screen = "input"
	ScreenGallery      Screen = "gallery"
	ScreenPresentation Screen = "presentation"
)

// Notices shown to the user for recoverable errors.
const (
	NoticeNoMatch          = "No matching images found. Check the words and try again."
	NoticeEmptyInput       = "Type one or more words separated by commas."
	NoticeEmptyPresent     = "Select at least one card to start the presentation."
	NoticeNoCards          = "No cards loaded. Go back and add some words."
	NoticeUnavailable      = "The image folder is unavailable right now. Please try again."
	NoticeCredentialFailed = "The image folder cannot be accessed. Contact the administrator."
)

// Session holds one user's screen, deck, selection and playback cursor.
type Session struct {
	ID       string      `json:"id"`
	Screen   Screen      `json:"screen"`
	Words    string      `json:"words"`
	Deck     models.Deck `json:"deck"`
	Selected []bool      `json:"selected"`

	// Active is the list being presented; only set on ScreenPresentation.
	Active     models.Deck `json:"active,omitempty"`
	Cursor     int         `json:"cursor"`
	Notice     string      `json:"notice,omitempty"`
	AppendNext bool        `json:"append_next,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// New returns a session on the input screen.
func New(id string) *Session {
	return &Session{
		ID:        id,
		Screen:    ScreenInput,
		Deck:      models.Deck{},
		Selected:  []bool{},
		UpdatedAt: time.Now(),
	}
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Deck = s.Deck.Clone()
	c.Active = s.Active.Clone()
	if s.Selected != nil {
		c.Selected = make([]bool, len(s.Selected))
		copy(c.Selected, s.Selected)
	}
	return &c
}

func (s *Session) require(screen Screen) error {
	if s.Screen != screen {
		return fmt.Errorf("%w: %s on %s", apperr.ErrInvalidTransition, screen, s.Screen)
	}
	return nil
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

// Submit applies a resolved deck for words. An empty deck keeps the session on
// the input screen with a notice and returns apperr.ErrNoMatch. After AddMore
// the new cards are appended to the existing deck instead of replacing it.
func (s *Session) Submit(words string, deck models.Deck) error {
	if err := s.require(ScreenInput); err != nil {
		return err
	}
	defer s.touch()
	s.Words = words
	if len(deck) == 0 {
		s.Notice = NoticeNoMatch
		return apperr.ErrNoMatch
	}

	if s.AppendNext {
		s.Deck = append(s.Deck, deck...)
		for range deck {
			s.Selected = append(s.Selected, true)
		}
	} else {
		s.Deck = deck.Clone()
		s.Selected = make([]bool, len(deck))
		for i := range s.Selected {
			s.Selected[i] = true
		}
	}
	s.AppendNext = false
	s.Notice = ""
	s.Screen = ScreenGallery
	return nil
}

// Fail records a failed submission on the input screen.
func (s *Session) Fail(words string, err error) {
	s.Words = words
	s.Notice = NoticeFor(err)
	s.touch()
}

// Start enters presentation mode with the selected cards in deck order.
func (s *Session) Start() error {
	if err := s.require(ScreenGallery); err != nil {
		return err
	}
	defer s.touch()
	active := models.Deck{}
	for i, url := range s.Deck {
		if i < len(s.Selected) && s.Selected[i] {
			active = append(active, url)
		}
	}
	s.Screen = ScreenPresentation
	s.Active = active
	s.Cursor = 0
	return s.guardPresentation()
}

// guardPresentation moves an empty presentation back to the gallery.
func (s *Session) guardPresentation() error {
	if s.Screen == ScreenPresentation && len(s.Active) == 0 {
		s.Screen = ScreenGallery
		s.Active = nil
		s.Cursor = 0
		s.Notice = NoticeEmptyPresent
		return apperr.ErrEmptyPresentation
	}
	return nil
}

// Next advances the cursor, wrapping to the first card.
func (s *Session) Next() error {
	return s.step(1)
}

// Previous moves the cursor back, wrapping to the last card.
func (s *Session) Previous() error {
	return s.step(-1)
}

func (s *Session) step(delta int) error {
	if err := s.require(ScreenPresentation); err != nil {
		return err
	}
	defer s.touch()
	if err := s.guardPresentation(); err != nil {
		return err
	}
	n := len(s.Active)
	s.Cursor = ((s.Cursor+delta)%n + n) % n
	return nil
}

// Exit leaves presentation mode and discards the cursor.
func (s *Session) Exit() error {
	if err := s.require(ScreenPresentation); err != nil {
		return err
	}
	s.Screen = ScreenGallery
	s.Active = nil
	s.Cursor = 0
	s.touch()
	return nil
}

// Home returns to the input screen and clears the deck.
func (s *Session) Home() error {
	if err := s.require(ScreenGallery); err != nil {
		return err
	}
	s.Screen = ScreenInput
	s.Deck = models.Deck{}
	s.Selected = []bool{}
	s.AppendNext = false
	s.Notice = ""
	s.touch()
	return nil
}

// AddMore returns to the input screen keeping the deck; the next submission appends.
func (s *Session) AddMore() error {
	if err := s.require(ScreenGallery); err != nil {
		return err
	}
	s.Screen = ScreenInput
	s.AppendNext = true
	s.Notice = ""
	s.touch()
	return nil
}

// Clear empties the deck while staying on the gallery.
func (s *Session) Clear() error {
	if err := s.require(ScreenGallery); err != nil {
		return err
	}
	s.Deck = models.Deck{}
	s.Selected = []bool{}
	s.Notice = NoticeNoCards
	s.touch()
	return nil
}

// Toggle flips the selection of the card at deck position i.
func (s *Session) Toggle(i int) error {
	if err := s.require(ScreenGallery); err != nil {
		return err
	}
	if i < 0 || i >= len(s.Selected) {
		return fmt.Errorf("%w: card %d out of range", apperr.ErrInvalidInput, i)
	}
	s.Selected[i] = !s.Selected[i]
	s.touch()
	return nil
}

// Select replaces the selection with exactly the given deck positions.
func (s *Session) Select(indices []int) error {
	if err := s.require(ScreenGallery); err != nil {
		return err
	}
	sel := make([]bool, len(s.Deck))
	for _, i := range indices {
		if i < 0 || i >= len(sel) {
			return fmt.Errorf("%w: card %d out of range", apperr.ErrInvalidInput, i)
		}
		sel[i] = true
	}
	s.Selected = sel
	s.touch()
	return nil
}

// SelectAll selects (or, with all false, deselects) every card.
func (s *Session) SelectAll(all bool) error {
	if err := s.require(ScreenGallery); err != nil {
		return err
	}
	s.Selected = make([]bool, len(s.Deck))
	for i := range s.Selected {
		s.Selected[i] = all
	}
	s.touch()
	return nil
}

// DismissNotice clears the current notice.
func (s *Session) DismissNotice() {
	s.Notice = ""
	s.touch()
}

// Current returns the card under the cursor when presenting.
func (s *Session) Current() (string, bool) {
	if s.Screen != ScreenPresentation || len(s.Active) == 0 {
		return "", false
	}
	return s.Active[s.Cursor%len(s.Active)], true
}

// Normalize repairs a session that would render an out-of-range cursor.
func (s *Session) Normalize() {
	_ = s.guardPresentation()
	if len(s.Active) > 0 && (s.Cursor < 0 || s.Cursor >= len(s.Active)) {
		s.Cursor = 0
	}
	if len(s.Selected) != len(s.Deck) {
		sel := make([]bool, len(s.Deck))
		copy(sel, s.Selected)
		s.Selected = sel
	}
}

// NoticeFor maps an error to the user-visible notice text.
func NoticeFor(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNoMatch):
		return NoticeNoMatch
	case errors.Is(err, apperr.ErrEmptyInput):
		return NoticeEmptyInput
	case errors.Is(err, apperr.ErrEmptyPresentation):
		return NoticeEmptyPresent
	case errors.Is(err, apperr.ErrCredential):
		return NoticeCredentialFailed
	default:
		return NoticeUnavailable
	}
}
