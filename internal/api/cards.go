package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/assets"
	"github.com/starford/flashdeck/internal/storage"
)

const maxUploadBytes = 20 << 20 // 20 MB

// CardHandler serves and accepts card images from the local folder source.
// With a nil store every route answers 501.
type CardHandler struct {
	store    *storage.Local
	folderID string
}

// NewCardHandler creates a handler for cards stored under folderID in store.
func NewCardHandler(store *storage.Local, folderID string) *CardHandler {
	return &CardHandler{store: store, folderID: folderID}
}

// cardID extracts the card id (everything after /cards/).
func cardID(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ServeCard handles GET /cards/*.
func (h *CardHandler) ServeCard(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, fmt.Errorf("%w: cards are served by the remote folder", apperr.ErrUnsupported), nil)
		return
	}
	f, info, err := h.store.Open(cardID(r))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	defer f.Close()
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// Upload handles POST /api/cards (multipart/form-data, field "file").
//
//	@Summary		Upload a card image into the local folder
//	@Tags			cards
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Success		201		{object}	CardUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		501		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards [post]
func (h *CardHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, fmt.Errorf("%w: upload needs the local folder source", apperr.ErrUnsupported), nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	counter := &countingReader{r: file}
	entry, err := h.store.Write(h.folderID, header.Filename, counter)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	slog.Info("card uploaded", slog.String("id", entry.ID), slog.Int64("size", counter.n))

	writeJSON(w, http.StatusCreated, CardUploadResponse{
		ID:   entry.ID,
		Name: entry.Name,
		Size: counter.n,
		URL:  assets.FormLocal.CardURL(entry.ID),
	})
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
