package reconcile

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/cesargomez89/recshelf/internal/domain"
)

func rec(id, path string, status domain.RecordingStatus, fp string) *domain.Recording {
	r := &domain.Recording{ID: id, FilePath: path, Status: status}
	if fp != "" {
		r.Fingerprint = &fp
	}
	return r
}

func file(path, fp string) DiskFile {
	return DiskFile{FilePath: path, Fingerprint: fp}
}

func TestReconcile_PathTakesPrecedence(t *testing.T) {
	records := []*domain.Recording{
		rec("at-path", "/a/song.wav", domain.StatusReviewed, "old"),
		rec("missing", "/a/elsewhere.wav", domain.StatusFileMissing, "fff"),
	}
	result := Reconcile([]DiskFile{file("/a/song.wav", "fff")}, records)

	if len(result.Matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Matches))
	}
	m := result.Matches[0]
	if m.RecordID != "at-path" || m.Reason != MatchByPath {
		t.Errorf("Expected path match to at-path, got %+v", m)
	}
	if len(result.UnmatchedRecordIDs) != 1 || result.UnmatchedRecordIDs[0] != "missing" {
		t.Errorf("The FileMissing record must stay unmatched, got %v", result.UnmatchedRecordIDs)
	}
}

func TestReconcile_HashOnlyConsidersMissingRecords(t *testing.T) {
	records := []*domain.Recording{
		rec("live", "/a/live.wav", domain.StatusImported, "fff"),
	}
	result := Reconcile([]DiskFile{file("/a/copy.wav", "fff")}, records)

	if len(result.Matches) != 0 {
		t.Errorf("Expected no matches, got %+v", result.Matches)
	}
	if len(result.NewFiles) != 1 || result.NewFiles[0].FilePath != "/a/copy.wav" {
		t.Errorf("Expected copy.wav as a new file, got %+v", result.NewFiles)
	}
}

func TestReconcile_AmbiguityIsNotResolved(t *testing.T) {
	records := []*domain.Recording{
		rec("r2", "/a/two.wav", domain.StatusFileMissing, "fff"),
		rec("r1", "/a/one.wav", domain.StatusFileMissing, "fff"),
	}
	result := Reconcile([]DiskFile{file("/a/three.wav", "fff")}, records)

	if len(result.Matches) != 0 || len(result.NewFiles) != 0 {
		t.Fatalf("Expected only an ambiguity, got %+v", result)
	}
	if len(result.Ambiguous) != 1 {
		t.Fatalf("Expected 1 ambiguous match, got %d", len(result.Ambiguous))
	}
	amb := result.Ambiguous[0]
	if amb.Reason != MatchByHash || amb.FilePath != "/a/three.wav" {
		t.Errorf("Unexpected ambiguity: %+v", amb)
	}
	if len(amb.CandidateIDs) != 2 || amb.CandidateIDs[0] != "r1" || amb.CandidateIDs[1] != "r2" {
		t.Errorf("Expected sorted candidates [r1 r2], got %v", amb.CandidateIDs)
	}
	if len(result.UnmatchedRecordIDs) != 2 {
		t.Errorf("Both candidates stay unmatched, got %v", result.UnmatchedRecordIDs)
	}
}

func TestReconcile_DuplicatePathIsAmbiguous(t *testing.T) {
	records := []*domain.Recording{
		rec("b", "/a/x.wav", domain.StatusImported, ""),
		rec("a", "/a/x.wav", domain.StatusImported, ""),
	}
	result := Reconcile([]DiskFile{file("/a/x.wav", "fff")}, records)
	if len(result.Ambiguous) != 1 || result.Ambiguous[0].Reason != MatchByPath {
		t.Fatalf("Expected a path ambiguity, got %+v", result)
	}
	if len(result.NewFiles) != 0 {
		t.Error("A path ambiguity must not fall through to new files")
	}
}

func TestReconcile_MatchedRecordIsConsumed(t *testing.T) {
	records := []*domain.Recording{
		rec("m", "/a/gone.wav", domain.StatusFileMissing, "fff"),
	}
	files := []DiskFile{file("/a/copy1.wav", "fff"), file("/a/copy2.wav", "fff")}
	result := Reconcile(files, records)

	if len(result.HashMatches()) != 1 || result.HashMatches()[0].File.FilePath != "/a/copy1.wav" {
		t.Errorf("First file in order claims the record, got %+v", result.Matches)
	}
	if len(result.NewFiles) != 1 || result.NewFiles[0].FilePath != "/a/copy2.wav" {
		t.Errorf("Second copy becomes new, got %+v", result.NewFiles)
	}
	if len(result.PathMatches()) != 0 {
		t.Error("No path matches expected")
	}
}

func TestReconcile_LegacyRecordWithoutFingerprint(t *testing.T) {
	records := []*domain.Recording{
		rec("legacy", "/a/old.wav", domain.StatusFileMissing, ""),
	}
	result := Reconcile([]DiskFile{file("/a/new.wav", "fff")}, records)
	if len(result.Matches) != 0 || len(result.NewFiles) != 1 {
		t.Errorf("Records without a fingerprint are never hash matched, got %+v", result)
	}
}

func TestReconcile_EndToEndRelink(t *testing.T) {
	fp := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	records := []*domain.Recording{rec("r1", "/a/old.wav", domain.StatusFileMissing, fp)}
	result := Reconcile([]DiskFile{file("/a/new.wav", fp)}, records)

	if len(result.Matches) != 1 {
		t.Fatalf("Expected one match, got %+v", result)
	}
	m := result.Matches[0]
	if m.RecordID != "r1" || m.Reason != MatchByHash || m.File.FilePath != "/a/new.wav" {
		t.Errorf("Unexpected match: %+v", m)
	}
	if len(result.NewFiles) != 0 || len(result.Ambiguous) != 0 || len(result.UnmatchedRecordIDs) != 0 {
		t.Errorf("Expected nothing else, got %+v", result)
	}
}

func TestReconcile_EveryRecordAccountedForOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := domain.AllRecordingStatuses()

	for iter := 0; iter < 200; iter++ {
		var records []*domain.Recording
		nRecords, nFiles := rng.Intn(12), rng.Intn(10)
		for i := 0; i < nRecords; i++ {
			fp := ""
			if rng.Intn(4) > 0 {
				fp = fmt.Sprintf("fp%d", rng.Intn(4))
			}
			records = append(records, rec(
				fmt.Sprintf("r%d", i),
				fmt.Sprintf("/a/%d.wav", rng.Intn(8)),
				statuses[rng.Intn(len(statuses))],
				fp,
			))
		}
		var files []DiskFile
		for i := 0; i < nFiles; i++ {
			files = append(files, file(fmt.Sprintf("/a/%d.wav", rng.Intn(10)), fmt.Sprintf("fp%d", rng.Intn(4))))
		}

		result := Reconcile(files, records)

		seen := make(map[string]int)
		for _, m := range result.Matches {
			seen[m.RecordID]++
		}
		for _, id := range result.UnmatchedRecordIDs {
			seen[id]++
		}
		for _, r := range records {
			if seen[r.ID] != 1 {
				t.Fatalf("iteration %d: record %s accounted for %d times", iter, r.ID, seen[r.ID])
			}
		}

		if got := len(result.Matches) + len(result.NewFiles) + len(result.Ambiguous); got != len(files) {
			t.Fatalf("iteration %d: %d files classified %d times", iter, len(files), got)
		}
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	records := []*domain.Recording{
		rec("a", "/a/1.wav", domain.StatusImported, "x"),
		rec("b", "/a/2.wav", domain.StatusFileMissing, "y"),
		rec("c", "/a/3.wav", domain.StatusFileMissing, "y"),
	}
	files := []DiskFile{file("/a/1.wav", "x"), file("/a/4.wav", "y"), file("/a/5.wav", "z")}

	first := Reconcile(files, records)
	second := Reconcile(files, records)
	if fmt.Sprintf("%+v", first) != fmt.Sprintf("%+v", second) {
		t.Error("Reconcile must be deterministic")
	}
}
