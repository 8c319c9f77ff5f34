package reconcile

import "github.com/cesargomez89/recshelf/internal/domain"

// MissingCandidate is the slice of a recording the missing guard looks at.
type MissingCandidate struct {
	ID       string
	FilePath string
	Status   domain.RecordingStatus
}

// CandidatesFromRecordings projects recordings onto guard candidates.
func CandidatesFromRecordings(records []*domain.Recording) []MissingCandidate {
	out := make([]MissingCandidate, 0, len(records))
	for _, rec := range records {
		out = append(out, MissingCandidate{ID: rec.ID, FilePath: rec.FilePath, Status: rec.Status})
	}
	return out
}

// SelectRecordsToMarkMissing returns the unmatched recordings that should move
// to StatusFileMissing, in candidate order. A recording is kept only when it
// is unmatched, its path was not seen on disk this cycle (probe failures
// included), and the state machine allows the move.
func SelectRecordsToMarkMissing(unmatchedIDs []string, candidates []MissingCandidate, discoveredPaths map[string]struct{}) []string {
	if len(unmatchedIDs) == 0 {
		return nil
	}

	unmatched := make(map[string]struct{}, len(unmatchedIDs))
	for _, id := range unmatchedIDs {
		unmatched[id] = struct{}{}
	}

	var out []string
	for _, c := range candidates {
		if _, ok := unmatched[c.ID]; !ok {
			continue
		}
		if _, seen := discoveredPaths[c.FilePath]; seen {
			continue
		}
		if !domain.CanTransition(c.Status, domain.StatusFileMissing) {
			continue
		}
		out = append(out, c.ID)
	}
	return out
}

// ShouldAbortSyncForProbeFailures reports whether every discovered file failed
// to probe, in which case the cycle must not commit anything.
func ShouldAbortSyncForProbeFailures(discoveredCount, successCount, failureCount int) bool {
	return discoveredCount > 0 && failureCount > 0 && successCount == 0
}
