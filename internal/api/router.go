package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/flashdeck/internal/flashcards"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// stream, if non-nil, serves GET /sessions/{id}/events inside the auth group.
// cards handles uploads; a handler without a local store answers 501.
func NewRouter(svc *flashcards.Service, authEnabled bool, token string, stream Streamer, cards *CardHandler) chi.Router {
	h := NewHandler(svc)
	if cards == nil {
		cards = NewCardHandler(nil, "")
	}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)

		// Transitions.
		r.Post("/words", h.SubmitWords)
		r.Post("/start", h.do(svc.Start))
		r.Post("/next", h.do(svc.Next))
		r.Post("/previous", h.do(svc.Previous))
		r.Post("/exit", h.do(svc.Exit))
		r.Post("/home", h.do(svc.Home))
		r.Post("/add-more", h.do(svc.AddMore))
		r.Post("/clear", h.do(svc.Clear))
		r.Post("/notice/dismiss", h.do(svc.DismissNotice))
		r.Post("/key", h.PressKey)

		// Selection.
		r.Put("/selection", h.PutSelection)
		r.Post("/selection/{index}/toggle", h.ToggleCard)

		// Live channels.
		r.Get("/keys", h.Keys)
		if stream != nil {
			r.Get("/events", h.Events(stream))
		}
	})

	r.Get("/history", h.History)
	r.Post("/cards", cards.Upload)

	return r
}

// MountCards serves card images at /cards/* on r. Images are fetched by <img>
// tags, so this route sits outside the auth group.
func MountCards(r chi.Router, cards *CardHandler) {
	r.Get("/cards/*", cards.ServeCard)
}
