package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flashdeck/internal/checksum"
	"github.com/starford/flashdeck/internal/flashcards"
	"github.com/starford/flashdeck/internal/session"
	"github.com/starford/flashdeck/internal/sse"
)

const maxBodyBytes = 64 << 10

// Handler holds API route handlers.
type Handler struct {
	svc *flashcards.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *flashcards.Service) *Handler {
	return &Handler{svc: svc}
}

type action func(ctx context.Context, id string) (*session.View, error)

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func (h *Handler) reply(w http.ResponseWriter, view *session.View, err error) {
	if err != nil {
		writeError(w, err, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// do adapts a body-less transition to a handler.
func (h *Handler) do(fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := fn(r.Context(), sessionID(r))
		h.reply(w, view, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// CreateSession handles POST /api/sessions.
//
//	@Summary		Start a new session on the input screen
//	@Tags			sessions
//	@Produce		json
//	@Success		201	{object}	SessionState
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Create(r.Context())
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get the current session state
//	@Tags			sessions
//	@Produce		json
//	@Param			id				path		string	true	"Session id"
//	@Param			If-None-Match	header		string	false	"ETag of a previously fetched state"
//	@Success		200				{object}	SessionState
//	@Success		304				"Not modified"
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.State(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	body, err := json.Marshal(view)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	etag := checksum.ETag(body)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// DeleteSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Forget a session
//	@Tags			sessions
//	@Param			id	path	string	true	"Session id"
//	@Success		204	"Session deleted"
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), sessionID(r)); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitWords handles POST /api/sessions/{id}/words.
//
//	@Summary		Resolve comma-separated words into a deck
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session id"
//	@Param			body	body		WordsRequest	true	"Words to resolve"
//	@Success		200		{object}	SessionState
//	@Failure		409		{object}	stateErrResponse
//	@Failure		422		{object}	stateErrResponse
//	@Failure		502		{object}	stateErrResponse
//	@Failure		503		{object}	stateErrResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/words [post]
func (h *Handler) SubmitWords(w http.ResponseWriter, r *http.Request) {
	var req WordsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.svc.Submit(r.Context(), sessionID(r), req.Words)
	h.reply(w, view, err)
}

// PressKey handles POST /api/sessions/{id}/key.
//
//	@Summary		Apply a key press to the presentation
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session id"
//	@Param			body	body		KeyRequest	true	"Key name"
//	@Success		200		{object}	SessionState
//	@Security		BearerAuth
//	@Router			/sessions/{id}/key [post]
func (h *Handler) PressKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.svc.Key(r.Context(), sessionID(r), req.Key)
	h.reply(w, view, err)
}

// PutSelection handles PUT /api/sessions/{id}/selection.
//
//	@Summary		Replace the gallery selection
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session id"
//	@Param			body	body		SelectionRequest	true	"New selection"
//	@Success		200		{object}	SessionState
//	@Failure		400		{object}	stateErrResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/selection [put]
func (h *Handler) PutSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var (
		view *session.View
		err  error
	)
	switch {
	case req.All:
		view, err = h.svc.SelectAll(r.Context(), sessionID(r), true)
	case req.None:
		view, err = h.svc.SelectAll(r.Context(), sessionID(r), false)
	default:
		view, err = h.svc.Select(r.Context(), sessionID(r), req.Indices)
	}
	h.reply(w, view, err)
}

// ToggleCard handles POST /api/sessions/{id}/selection/{index}/toggle.
//
//	@Summary		Flip the selection of one card
//	@Tags			sessions
//	@Produce		json
//	@Param			id		path		string	true	"Session id"
//	@Param			index	path		int		true	"Deck position"
//	@Success		200		{object}	SessionState
//	@Failure		400		{object}	stateErrResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/selection/{index}/toggle [post]
func (h *Handler) ToggleCard(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("index must be an integer"))
		return
	}
	view, err := h.svc.Toggle(r.Context(), sessionID(r), index)
	h.reply(w, view, err)
}

// History handles GET /api/history.
//
//	@Summary		Recent resolution requests
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max records"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: records})
}

// Events handles GET /api/sessions/{id}/events. The stream opens with the
// current state and then carries every change of the session.
func (h *Handler) Events(stream Streamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)
		view, err := h.svc.State(r.Context(), id)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		stream.ServeTopic(w, r, id, sse.Event{Type: sse.EventState, Data: view})
	}
}

// Streamer streams the events of one topic to a client.
type Streamer interface {
	ServeTopic(w http.ResponseWriter, r *http.Request, topic string, initial ...sse.Event)
}
