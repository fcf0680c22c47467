package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"betfair_go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// API exposes the REST surface over the parse service.
type API struct {
	Service *service.ParseService
	Hub     *Hub
	Name    string
	Version string
	Logger  *slog.Logger
}

// Router builds the HTTP routes.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", a.health)
	r.Get("/status", a.status)

	r.Route("/api/files", func(r chi.Router) {
		r.Post("/upload", a.uploadFile)
		r.Get("/", a.listFiles)
		r.Get("/{id}", a.getFile)
		r.Delete("/{id}", a.deleteFile)
		r.Post("/{id}/export", a.exportFile)
	})

	if a.Hub != nil {
		r.Get("/ws/progress", a.Hub.HandleWS)
	}
	return r
}

// errorResponse mirrors the canonical error body of the API.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		ErrorCode: http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   a.Name,
		"version":   a.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	n, err := a.Service.CountFiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "operational",
		"files_processed": n,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
