package domain

import (
	"fmt"
	"strings"
)

// RecordingStatus is the lifecycle state of a cataloged recording.
type RecordingStatus uint8

const (
	StatusImported RecordingStatus = iota + 1
	StatusTranscribing
	StatusTranscribed
	StatusAnalyzing
	StatusReviewed
	StatusExporting
	StatusCompleted
	StatusError
	StatusFileMissing
)

var allStatuses = []RecordingStatus{
	StatusImported,
	StatusTranscribing,
	StatusTranscribed,
	StatusAnalyzing,
	StatusReviewed,
	StatusExporting,
	StatusCompleted,
	StatusError,
	StatusFileMissing,
}

var statusNames = map[RecordingStatus]string{
	StatusImported:     "Imported",
	StatusTranscribing: "Transcribing",
	StatusTranscribed:  "Transcribed",
	StatusAnalyzing:    "Analyzing",
	StatusReviewed:     "Reviewed",
	StatusExporting:    "Exporting",
	StatusCompleted:    "Completed",
	StatusError:        "Error",
	StatusFileMissing:  "FileMissing",
}

// AllRecordingStatuses returns every status in declaration order.
func AllRecordingStatuses() []RecordingStatus {
	out := make([]RecordingStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is one of the declared statuses.
func (s RecordingStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s RecordingStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseRecordingStatus accepts a status name ignoring case and underscores,
// so "FileMissing", "filemissing" and "file_missing" all parse.
func ParseRecordingStatus(name string) (RecordingStatus, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
	for s, n := range statusNames {
		if strings.ToLower(n) == key {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown recording status %q", name)
}

func (s RecordingStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid recording status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *RecordingStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseRecordingStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// transitions holds the directed edges of the status state machine.
// Any pair not listed is illegal.
var transitions = map[RecordingStatus][]RecordingStatus{
	StatusImported:     {StatusTranscribing, StatusError, StatusFileMissing},
	StatusTranscribing: {StatusTranscribed, StatusTranscribing, StatusError, StatusFileMissing},
	StatusTranscribed:  {StatusAnalyzing, StatusTranscribing, StatusError, StatusFileMissing},
	StatusAnalyzing:    {StatusReviewed, StatusAnalyzing, StatusError, StatusFileMissing},
	StatusReviewed:     {StatusExporting, StatusAnalyzing, StatusError, StatusFileMissing},
	StatusExporting:    {StatusCompleted, StatusError, StatusFileMissing},
	StatusCompleted:    {StatusReviewed, StatusError, StatusFileMissing},
	StatusError:        {StatusTranscribing, StatusAnalyzing, StatusExporting, StatusFileMissing},
	StatusFileMissing:  {StatusImported},
}

// CanTransition reports whether a recording may move from one status to another.
// Unknown statuses never transition.
func CanTransition(from, to RecordingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s RecordingStatus) []RecordingStatus {
	next := transitions[s]
	out := make([]RecordingStatus, len(next))
	copy(out, next)
	return out
}
