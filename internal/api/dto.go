package api

import (
	"github.com/starford/flashdeck/internal/history"
	"github.com/starford/flashdeck/internal/session"
)

// WordsRequest is the request body for submitting words.
type WordsRequest struct {
	Words string `json:"words" example:"cat, dog, owl"`
}

// KeyRequest is a key press, as sent by the page or over the keys websocket.
type KeyRequest struct {
	Key string `json:"key" example:"ArrowRight" validate:"required"`
}

// SelectionRequest replaces the gallery selection. Exactly one of Indices, All
// or None is honoured, in that order of precedence: All, None, Indices.
type SelectionRequest struct {
	Indices []int `json:"indices,omitempty" example:"0,2"`
	All     bool  `json:"all,omitempty"`
	None    bool  `json:"none,omitempty"`
}

// SessionState is the render-ready session view (aliased from the domain layer).
type SessionState = session.View

// HistoryResponse wraps recent resolutions.
type HistoryResponse struct {
	Records []history.Record `json:"records" validate:"required"`
}

// CardUploadResponse is returned after a successful card upload.
type CardUploadResponse struct {
	ID   string `json:"id" example:"animals/cat.png" validate:"required"`
	Name string `json:"name" example:"cat.png" validate:"required"`
	Size int64  `json:"size" example:"12345" validate:"required"`
	URL  string `json:"url" example:"/cards/animals/cat.png" validate:"required"`
}
