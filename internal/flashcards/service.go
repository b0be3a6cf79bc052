// Package flashcards coordinates word resolution, the per-session state machine,
// session storage, resolution history and state change events.
package flashcards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/assets"
	"github.com/starford/flashdeck/internal/history"
	"github.com/starford/flashdeck/internal/session"
	"github.com/starford/flashdeck/internal/sse"
)

// Resolver resolves words against a folder listing.
type Resolver interface {
	Resolve(ctx context.Context, folderID, words string) (*assets.Result, error)
}

// Publisher delivers events to the pages watching a session.
type Publisher interface {
	Publish(topic string, event sse.Event)
}

// Service runs every user action as one complete transition. Actions on the
// same session never overlap: a submission that arrives while another action is
// running is rejected with apperr.ErrBusy, other actions wait their turn.
type Service struct {
	resolver Resolver
	store    session.Store
	history  history.Recorder
	pub      Publisher
	folderID string
	logger   *slog.Logger

	locksMu       sync.Mutex
	locks         map[string]*sessionLock
	credentialErr atomic.Pointer[error]
}

// sessionLock serialises actions on one session. The entry lives only while
// some action holds or waits for it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithHistory records every resolution in rec.
func WithHistory(rec history.Recorder) Option {
	return func(s *Service) { s.history = rec }
}

// WithPublisher publishes every state change to pub.
func WithPublisher(pub Publisher) Option {
	return func(s *Service) { s.pub = pub }
}

// NewService creates a service resolving words against folderID.
func NewService(resolver Resolver, store session.Store, folderID string, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		store:    store,
		folderID: folderID,
		locks:    make(map[string]*sessionLock),
		logger:   logger.With(slog.String("item", "FlashcardService")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready reports the last credential failure, if any, so health checks can
// surface an unusable storage credential.
func (s *Service) Ready() error {
	if p := s.credentialErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Create starts a new session on the input screen.
func (s *Service) Create(ctx context.Context) (*session.View, error) {
	sess := session.New(uuid.NewString())
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Debug("session created", slog.String("session", sess.ID))
	view := sess.View()
	return &view, nil
}

// State returns the current view of a session.
func (s *Service) State(ctx context.Context, id string) (*session.View, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := sess.View()
	return &view, nil
}

// Delete forgets a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	l := s.acquire(id)
	defer s.release(id, l)
	l.mu.Lock()
	defer l.mu.Unlock()
	return s.store.Delete(ctx, id)
}

// Submit resolves words and moves the session to the gallery on success.
func (s *Service) Submit(ctx context.Context, id, words string) (*session.View, error) {
	return s.apply(ctx, id, false, func(sess *session.Session) error {
		if sess.Screen != session.ScreenInput {
			return fmt.Errorf("%w: submit on %s", apperr.ErrInvalidTransition, sess.Screen)
		}
		res, err := s.resolver.Resolve(ctx, s.folderID, words)
		s.record(ctx, id, words, res, err)
		if err == nil || errors.Is(err, apperr.ErrNoMatch) {
			// The listing went through, so the credential works again.
			s.credentialErr.Store(nil)
		}
		if err != nil {
			s.noteFailure(id, err)
			sess.Fail(words, err)
			return err
		}
		return sess.Submit(words, res.Deck)
	})
}

// Start enters presentation mode.
func (s *Service) Start(ctx context.Context, id string) (*session.View, error) {
	return s.apply(ctx, id, true, (*session.Session).Start)
}

// Next advances the presentation.
func (s *Service) Next(ctx context.Context, id string) (*session.View, error) {
	return s.apply(ctx, id, true, (*session.Session).Next)
}

// Previous steps the presentation back.
func (s *Service) Previous(ctx context.Context, id string) (*session.View, error) {
	return s.apply(ctx, id, true, (*session.Session).Previous)
}

// Exit leaves presentation mode.
func (s *Service) Exit(ctx context.Context, id string) (*session.View, error) {
	return s.apply(ctx, id, true, (*session.Session).Exit)
}

// Home returns to the input screen, clearing the deck.
func (s *Service) Home(ctx context.Context, id string) (*session.View, error) {
	return s.apply(ctx, id, true, (*session.Session).Home)
}

// AddMore returns to the input screen keeping the deck.
func (s *Service) AddMore(ctx context.Context, id string) (*session.View, error) {
	return s.apply(ctx, id, true, (*session.Session).AddMore)
}

// Clear empties the deck.
func (s *Service) Clear(ctx context.Context, id string) (*session.View, error) {
	return s.apply(ctx, id, true, (*session.Session).Clear)
}

// DismissNotice clears the session notice.
func (s *Service) DismissNotice(ctx context.Context, id string) (*session.View, error) {
	return s.apply(ctx, id, true, func(sess *session.Session) error {
		sess.DismissNotice()
		return nil
	})
}

// Key applies a key press. Unbound keys leave the state untouched.
func (s *Service) Key(ctx context.Context, id, key string) (*session.View, error) {
	if session.TriggerForKey(key) == session.TriggerNone {
		return s.State(ctx, id)
	}
	return s.apply(ctx, id, true, func(sess *session.Session) error {
		return sess.OnKey(key)
	})
}

// Toggle flips the selection of one card.
func (s *Service) Toggle(ctx context.Context, id string, index int) (*session.View, error) {
	return s.apply(ctx, id, true, func(sess *session.Session) error {
		return sess.Toggle(index)
	})
}

// Select replaces the selection with the given deck positions.
func (s *Service) Select(ctx context.Context, id string, indices []int) (*session.View, error) {
	return s.apply(ctx, id, true, func(sess *session.Session) error {
		return sess.Select(indices)
	})
}

// SelectAll selects or deselects every card.
func (s *Service) SelectAll(ctx context.Context, id string, all bool) (*session.View, error) {
	return s.apply(ctx, id, true, func(sess *session.Session) error {
		return sess.SelectAll(all)
	})
}

// Recent returns the newest resolution records.
func (s *Service) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	if s.history == nil {
		return []history.Record{}, nil
	}
	return s.history.Recent(ctx, limit)
}

func (s *Service) acquire(id string) *sessionLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	return l
}

func (s *Service) release(id string, l *sessionLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// lockCount reports how many session locks are currently allocated.
func (s *Service) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

// apply loads the session, runs fn, saves and publishes the result. The view is
// returned together with fn's error so callers can render recoverable notices.
// Rejected actions leave the stored session untouched.
func (s *Service) apply(ctx context.Context, id string, wait bool, fn func(*session.Session) error) (*session.View, error) {
	l := s.acquire(id)
	defer s.release(id, l)
	if wait {
		l.mu.Lock()
	} else if !l.mu.TryLock() {
		return nil, apperr.ErrBusy
	}
	defer l.mu.Unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	opErr := fn(sess)
	if errors.Is(opErr, apperr.ErrInvalidTransition) || errors.Is(opErr, apperr.ErrInvalidInput) {
		view := sess.View()
		return &view, opErr
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	view := sess.View()
	if s.pub != nil {
		s.pub.Publish(id, sse.Event{Type: sse.EventState, Data: view})
	}
	return &view, opErr
}

func (s *Service) record(ctx context.Context, id, words string, res *assets.Result, err error) {
	if s.history == nil {
		return
	}
	rec := history.Record{SessionID: id, Words: words, Outcome: history.OutcomeFor(err)}
	if res != nil {
		rec.Matched = len(res.Deck)
		rec.Missed = res.Missed
	}
	if recErr := s.history.Record(ctx, rec); recErr != nil {
		s.logger.Warn("history record failed", slog.String("session", id), slog.String("error", recErr.Error()))
	}
}

func (s *Service) noteFailure(id string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNoMatch), errors.Is(err, apperr.ErrEmptyInput):
		s.logger.Debug("nothing resolved", slog.String("session", id), slog.String("reason", err.Error()))
	case errors.Is(err, apperr.ErrCredential):
		s.credentialErr.Store(&err)
		s.logger.Error("storage credential rejected", slog.String("session", id), slog.String("error", err.Error()))
	default:
		s.logger.Warn("resolution failed", slog.String("session", id), slog.String("error", err.Error()))
	}
}
