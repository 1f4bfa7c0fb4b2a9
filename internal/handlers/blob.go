package handlers

import (
	"net/http"
	"net/url"

	"fym-server/internal/storage"

	"github.com/go-chi/chi/v5"
)

// BlobHandler serves train files from the local blob store
type BlobHandler struct {
	store *storage.LocalStore
}

// NewBlobHandler creates a new blob handler
func NewBlobHandler(store *storage.LocalStore) *BlobHandler {
	return &BlobHandler{store: store}
}

// Get handles GET /blobs/{name}
func (h *BlobHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		respondServiceError(w, r, storage.ErrInvalidName)
		return
	}

	f, err := h.store.Open(name, r.URL.Query().Get("sig"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
