package domain

import "time"

// Recording is one tracked audio asset in the catalog.
type Recording struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID              string          `json:"id"`
	FilePath        string          `json:"file_path"`
	Fingerprint     *string         `json:"file_fingerprint,omitempty"`
	LastCheckedAt   *time.Time      `json:"last_checked_at,omitempty"`
	Status          RecordingStatus `json:"status"`
	DurationSeconds float64         `json:"duration_seconds"`
	SampleRate      int             `json:"sample_rate"`
	Channels        int             `json:"channels"`
	Format          string          `json:"format"`
	FileSizeBytes   int64           `json:"file_size_bytes"`
	Title           string          `json:"title,omitempty"`
	Artist          string          `json:"artist,omitempty"`
	HasCoverArt     bool            `json:"has_cover_art"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasFingerprint reports whether the recording carries a content fingerprint.
// Legacy records created before fingerprinting do not.
func (r *Recording) HasFingerprint() bool {
	return r.Fingerprint != nil && *r.Fingerprint != ""
}

// AudioInfo is the descriptive metadata a prober extracts from an audio file.
// It is carried onto recordings but never interpreted by reconciliation.
type AudioInfo struct {
	DurationSeconds float64
	SampleRate      int
	Channels        int
	Format          string
	SizeBytes       int64
	Title           string
	Artist          string
	HasCoverArt     bool
}

// SyncRunStatus is the outcome of a persisted sync cycle.
type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunFailed    SyncRunStatus = "failed"
	// SyncRunAborted marks a cycle that stopped before writing anything:
	// cancelled, or every discovered file failed to probe.
	SyncRunAborted SyncRunStatus = "aborted"
)

// SyncRun is the persisted history entry of one sync cycle.
type SyncRun struct {
	ID         string        `json:"id" db:"id"`
	Status     SyncRunStatus `json:"status" db:"status"`
	Directory  string        `json:"directory" db:"directory"`
	Discovered int           `json:"discovered" db:"discovered"`
	New        int           `json:"new" db:"new_count"`
	Updated    int           `json:"updated" db:"updated_count"`
	Missing    int           `json:"missing" db:"missing_count"`
	Ambiguous  int           `json:"ambiguous" db:"ambiguous_count"`
	Failed     int           `json:"failed" db:"failed_count"`
	Error      *string       `json:"error,omitempty" db:"error"`
	StartedAt  time.Time     `json:"started_at" db:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty" db:"finished_at"`
}
