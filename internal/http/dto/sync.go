package dto

import (
	"time"

	"github.com/cesargomez89/recshelf/internal/app"
	"github.com/cesargomez89/recshelf/internal/domain"
)

type SyncTriggerResponse struct {
	CycleID   string    `json:"cycle_id"`
	Joined    bool      `json:"joined"`
	StartedAt time.Time `json:"started_at"`
}

type CycleResponse struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Summary    *app.SyncSummary `json:"summary,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  string           `json:"error_kind,omitempty"`
}

// NewCycleResponse returns nil for a nil cycle.
func NewCycleResponse(c *app.SyncCycle) *CycleResponse {
	if c == nil {
		return nil
	}
	resp := &CycleResponse{ID: c.ID, StartedAt: c.StartedAt}
	summary, err, finished := c.Result()
	if !finished {
		return resp
	}
	at := c.FinishedAt()
	resp.FinishedAt = &at
	resp.Summary = summary
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = app.ErrorKind(err)
	}
	return resp
}

type SyncStatusResponse struct {
	Running *CycleResponse `json:"running"`
	Last    *CycleResponse `json:"last"`
}

type SyncRunResponse struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Directory  string     `json:"directory"`
	Discovered int        `json:"discovered"`
	New        int        `json:"new"`
	Updated    int        `json:"updated"`
	Missing    int        `json:"missing"`
	Ambiguous  int        `json:"ambiguous"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func NewSyncRunResponse(r *domain.SyncRun) SyncRunResponse {
	resp := SyncRunResponse{
		ID:         r.ID,
		Status:     string(r.Status),
		Directory:  r.Directory,
		Discovered: r.Discovered,
		New:        r.New,
		Updated:    r.Updated,
		Missing:    r.Missing,
		Ambiguous:  r.Ambiguous,
		Failed:     r.Failed,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Error != nil {
		resp.Error = *r.Error
	}
	return resp
}
