package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/recshelf/internal/app"
	"github.com/cesargomez89/recshelf/internal/domain"
	"github.com/cesargomez89/recshelf/internal/http/dto"
	"github.com/cesargomez89/recshelf/internal/logger"
	"github.com/cesargomez89/recshelf/internal/store"
)

// SyncControl is the part of the coordinator the API drives.
type SyncControl interface {
	StartOrJoin() (cycle *app.SyncCycle, joined bool)
	Current() *app.SyncCycle
	Last() *app.SyncCycle
}

// RunLister reads persisted sync history.
type RunLister interface {
	ListSyncRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error)
}

type Handler struct {
	Sync       SyncControl
	Runs       RunLister
	Recordings *app.RecordingService
	Logger     *logger.Logger
}

func NewHandler(sync SyncControl, runs RunLister, recordings *app.RecordingService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Sync:       sync,
		Runs:       runs,
		Recordings: recordings,
		Logger:     log.WithComponent("http"),
	}
}

// NewRouter returns a chi router with the API mounted.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", h.TriggerSync)
		r.Get("/sync", h.SyncStatus)
		r.Get("/sync/runs", h.ListRuns)

		r.Get("/recordings", h.ListRecordings)
		r.Get("/recordings/counts", h.RecordingCounts)
		r.Get("/recordings/{id}", h.GetRecording)
		r.Post("/recordings/{id}/status", h.TransitionRecording)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) writeValidation(w http.ResponseWriter, errs []dto.ValidationError) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  dto.ToResponse(errs),
		Fields: dto.ToMap(errs),
	})
}

// writeError maps store errors onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrRecordingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrIllegalTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
