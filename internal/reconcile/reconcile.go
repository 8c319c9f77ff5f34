// Package reconcile matches audio files found on disk against cataloged
// recordings. Everything here is pure: no I/O, no locking, deterministic for
// the same inputs.
package reconcile

import (
	"sort"

	"github.com/cesargomez89/recshelf/internal/domain"
)

// MatchReason records which index produced a match.
type MatchReason string

const (
	MatchByPath MatchReason = "path"
	MatchByHash MatchReason = "hash"
)

// DiskFile is one successfully probed and fingerprinted file from a scan.
type DiskFile struct {
	FilePath    string
	Fingerprint string
	Info        domain.AudioInfo
}

// Match links a disk file to exactly one recording.
type Match struct {
	RecordID string
	Reason   MatchReason
	File     DiskFile
}

// AmbiguousMatch is a disk file that more than one recording could claim.
// It is reported and never resolved automatically.
type AmbiguousMatch struct {
	Reason       MatchReason
	FilePath     string
	Fingerprint  string
	CandidateIDs []string
}

// Result classifies every disk file into exactly one of Matches, NewFiles or
// Ambiguous, and lists the recordings no file claimed.
type Result struct {
	Matches            []Match
	NewFiles           []DiskFile
	Ambiguous          []AmbiguousMatch
	UnmatchedRecordIDs []string
}

// PathMatches returns the matches found through the path index.
func (r Result) PathMatches() []Match {
	return r.matchesBy(MatchByPath)
}

// HashMatches returns the matches found through the fingerprint index.
func (r Result) HashMatches() []Match {
	return r.matchesBy(MatchByHash)
}

func (r Result) matchesBy(reason MatchReason) []Match {
	var out []Match
	for _, m := range r.Matches {
		if m.Reason == reason {
			out = append(out, m)
		}
	}
	return out
}

// Reconcile matches files to records. A file is looked up by path first;
// only when no record holds its path is it looked up by fingerprint, and the
// fingerprint index only contains records in StatusFileMissing. A record
// claimed by one file is not offered to later files in the same call.
func Reconcile(files []DiskFile, records []*domain.Recording) Result {
	byPath := make(map[string][]string, len(records))
	byHash := make(map[string][]string)
	for _, rec := range records {
		byPath[rec.FilePath] = append(byPath[rec.FilePath], rec.ID)
		if rec.Status == domain.StatusFileMissing && rec.HasFingerprint() {
			byHash[*rec.Fingerprint] = append(byHash[*rec.Fingerprint], rec.ID)
		}
	}

	consumed := make(map[string]bool, len(records))
	available := func(ids []string) []string {
		var out []string
		for _, id := range ids {
			if !consumed[id] {
				out = append(out, id)
			}
		}
		return out
	}

	var result Result
	for _, file := range files {
		candidates := available(byPath[file.FilePath])
		switch {
		case len(candidates) == 1:
			consumed[candidates[0]] = true
			result.Matches = append(result.Matches, Match{RecordID: candidates[0], Reason: MatchByPath, File: file})
			continue
		case len(candidates) > 1:
			result.Ambiguous = append(result.Ambiguous, ambiguous(MatchByPath, file, candidates))
			continue
		}

		candidates = available(byHash[file.Fingerprint])
		switch {
		case len(candidates) == 1:
			consumed[candidates[0]] = true
			result.Matches = append(result.Matches, Match{RecordID: candidates[0], Reason: MatchByHash, File: file})
		case len(candidates) > 1:
			result.Ambiguous = append(result.Ambiguous, ambiguous(MatchByHash, file, candidates))
		default:
			result.NewFiles = append(result.NewFiles, file)
		}
	}

	for _, rec := range records {
		if !consumed[rec.ID] {
			result.UnmatchedRecordIDs = append(result.UnmatchedRecordIDs, rec.ID)
		}
	}

	return result
}

func ambiguous(reason MatchReason, file DiskFile, candidates []string) AmbiguousMatch {
	ids := append([]string(nil), candidates...)
	sort.Strings(ids)
	return AmbiguousMatch{
		Reason:       reason,
		FilePath:     file.FilePath,
		Fingerprint:  file.Fingerprint,
		CandidateIDs: ids,
	}
}
