package dto

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cesargomez89/recshelf/internal/domain"
)

type RecordingResponse struct {
	ID              string     `json:"id"`
	FilePath        string     `json:"file_path"`
	Fingerprint     *string    `json:"file_fingerprint"`
	LastCheckedAt   *time.Time `json:"last_checked_at"`
	Status          string     `json:"status"`
	NextStatuses    []string   `json:"next_statuses"`
	DurationSeconds float64    `json:"duration_seconds"`
	SampleRate      int        `json:"sample_rate"`
	Channels        int        `json:"channels"`
	Format          string     `json:"format"`
	FileSizeBytes   int64      `json:"file_size_bytes"`
	FileSize        string     `json:"file_size"`
	Title           string     `json:"title,omitempty"`
	Artist          string     `json:"artist,omitempty"`
	HasCoverArt     bool       `json:"has_cover_art"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func NewRecordingResponse(r *domain.Recording) RecordingResponse {
	next := make([]string, 0)
	for _, s := range domain.NextStatuses(r.Status) {
		next = append(next, s.String())
	}
	var size uint64
	if r.FileSizeBytes > 0 {
		size = uint64(r.FileSizeBytes)
	}
	return RecordingResponse{
		ID:              r.ID,
		FilePath:        r.FilePath,
		Fingerprint:     r.Fingerprint,
		LastCheckedAt:   r.LastCheckedAt,
		Status:          r.Status.String(),
		NextStatuses:    next,
		DurationSeconds: r.DurationSeconds,
		SampleRate:      r.SampleRate,
		Channels:        r.Channels,
		Format:          r.Format,
		FileSizeBytes:   r.FileSizeBytes,
		FileSize:        humanize.Bytes(size),
		Title:           r.Title,
		Artist:          r.Artist,
		HasCoverArt:     r.HasCoverArt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type RecordingListResponse struct {
	Items      []RecordingResponse `json:"items"`
	Pagination *Pagination         `json:"pagination"`
}

type StatusCountsResponse map[string]int

func NewStatusCountsResponse(counts map[domain.RecordingStatus]int) StatusCountsResponse {
	out := make(StatusCountsResponse, len(counts))
	for s, n := range counts {
		out[s.String()] = n
	}
	return out
}

// TransitionRequest is the body of a status change.
type TransitionRequest struct {
	Status string `json:"status"`
}
