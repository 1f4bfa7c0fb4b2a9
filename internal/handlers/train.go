package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"fym-server/internal/middleware"
	"fym-server/internal/models"
	"fym-server/internal/services"

	"github.com/go-chi/chi/v5"
)

// TrainHandler handles mailbox requests
type TrainHandler struct {
	mailbox *services.MailboxService
}

// NewTrainHandler creates a new train handler
func NewTrainHandler(mailbox *services.MailboxService) *TrainHandler {
	return &TrainHandler{mailbox: mailbox}
}

type trainEntry struct {
	ID   int64  `json:"pk"`
	File string `json:"file"`
}

// Index handles GET /trains/
func (h *TrainHandler) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trains, err := h.mailbox.List(r.Context(), services.ListRequest{
		SearchPlayer: q.Get("search_player"),
		Filename:     q.Get("filename"),
		UploadBefore: q.Get("upload_before"),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	entries := make([]trainEntry, 0, len(trains))
	for _, t := range trains {
		entries = append(entries, trainEntry{ID: t.ID, File: t.Filename})
	}
	respondJSON(w, http.StatusOK, entries)
}

// Download handles POST /trains/{id}/download/
func (h *TrainHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondServiceError(w, r, models.NewBadRequest("id", "invalid train id"))
		return
	}

	player := middleware.GetPlayer(r.Context())
	url, err := h.mailbox.ClaimDownload(r.Context(), id, player.Username)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// Upload handles POST /trains/upload/
func (h *TrainHandler) Upload(w http.ResponseWriter, r *http.Request) {
	files := attachedFiles(r.MultipartForm)
	if len(files) != 1 {
		respondServiceError(w, r, &models.BadRequestError{
			Field:  "file",
			Reason: fmt.Sprintf("expected 1 file attachment, got %d", len(files)),
			Err:    models.ErrMissingPayload,
		})
		return
	}

	header := files[0]
	f, err := header.Open()
	if err != nil {
		respondServiceError(w, r, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	_, err = h.mailbox.Upload(r.Context(), services.UploadRequest{
		Filename: r.FormValue("filename"),
		Payload:  f,
		Size:     header.Size,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// attachedFiles flattens every file part regardless of its field name
func attachedFiles(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	var files []*multipart.FileHeader
	for _, headers := range form.File {
		files = append(files, headers...)
	}
	return files
}
