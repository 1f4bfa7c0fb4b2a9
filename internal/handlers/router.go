package handlers

import (
	"net/http"
	"time"

	"fym-server/internal/middleware"
	"fym-server/internal/services"
	"fym-server/internal/storage"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the router dispatches to
type Deps struct {
	Credentials *services.CredentialService
	Gate        *services.Gate
	Mailbox     *services.MailboxService
	Hub         *services.NotificationHub
	// LocalBlobs is set when trains are served by this process
	LocalBlobs *storage.LocalStore
	// MaxUploadBytes caps protected request bodies, 0 means no cap
	MaxUploadBytes int64
}

// maxPlayerBodyBytes caps the small form posts under /players
const maxPlayerBodyBytes = 1 << 20

// NewRouter builds the HTTP surface
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	players := NewPlayerHandler(d.Credentials)
	trains := NewTrainHandler(d.Mailbox)
	requirePlayer := middleware.RequirePlayer(d.Gate, d.MaxUploadBytes)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/players", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		r.Use(chimiddleware.RequestSize(maxPlayerBodyBytes))
		r.Get("/uuid", players.GetUUID)
		r.Post("/send_auth_code", players.SendAuthCode)
		r.Post("/check_auth_code", players.CheckAuthCode)
	})

	r.Route("/trains", func(r chi.Router) {
		r.With(requirePlayer).Get("/", trains.Index)
		r.With(requirePlayer).Post("/{id}/download/", trains.Download)
		r.With(requirePlayer).Post("/upload/", trains.Upload)
	})

	if d.LocalBlobs != nil {
		r.Get("/blobs/{name}", NewBlobHandler(d.LocalBlobs).Get)
	}

	if d.Hub != nil {
		r.With(requirePlayer).Get("/ws", NewWebSocketHandler(d.Hub).HandleWebSocket)
	}

	return r
}
