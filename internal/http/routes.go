package httpapp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/recshelf/internal/http/dto"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerSync starts a cycle or joins the running one and returns at once.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	cycle, joined := h.Sync.StartOrJoin()
	h.writeJSON(w, http.StatusAccepted, dto.SyncTriggerResponse{
		CycleID:   cycle.ID,
		Joined:    joined,
		StartedAt: cycle.StartedAt,
	})
}

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, dto.SyncStatusResponse{
		Running: dto.NewCycleResponse(h.Sync.Current()),
		Last:    dto.NewCycleResponse(h.Sync.Last()),
	})
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, errs := dto.ParseLimit(r.URL.Query().Get("limit"))
	if len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	runs, err := h.Runs.ListSyncRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]dto.SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, dto.NewSyncRunResponse(run))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, errs := dto.ParseListQuery(q.Get("status"), q.Get("page"), q.Get("page_size"))
	if len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	page, err := h.Recordings.List(r.Context(), query.Status, query.Page, query.PageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]dto.RecordingResponse, 0, len(page.Items))
	for _, rec := range page.Items {
		items = append(items, dto.NewRecordingResponse(rec))
	}
	h.writeJSON(w, http.StatusOK, dto.RecordingListResponse{
		Items:      items,
		Pagination: dto.NewPagination(page.Page, page.PageSize, page.Total),
	})
}

func (h *Handler) RecordingCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Recordings.Counts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewStatusCountsResponse(counts))
}

func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Recordings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewRecordingResponse(rec))
}

// TransitionRecording is the guarded status change used by job runners.
func (h *Handler) TransitionRecording(w http.ResponseWriter, r *http.Request) {
	var req dto.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeValidation(w, []dto.ValidationError{{Field: "body", Message: "invalid JSON"}})
		return
	}
	to, errs := req.Validate()
	if len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	rec, err := h.Recordings.Transition(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewRecordingResponse(rec))
}
