package httpapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/recshelf/internal/app"
	"github.com/cesargomez89/recshelf/internal/domain"
	"github.com/cesargomez89/recshelf/internal/http/dto"
	"github.com/cesargomez89/recshelf/internal/logger"
	"github.com/cesargomez89/recshelf/internal/store"
)

type fakeSync struct {
	cycle   *app.SyncCycle
	joined  bool
	current *app.SyncCycle
	last    *app.SyncCycle
}

func (f *fakeSync) StartOrJoin() (*app.SyncCycle, bool) { return f.cycle, f.joined }
func (f *fakeSync) Current() *app.SyncCycle             { return f.current }
func (f *fakeSync) Last() *app.SyncCycle                { return f.last }

func setupTestServer(t *testing.T, sync SyncControl) (http.Handler, *store.DB) {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test_http.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if sync == nil {
		sync = &fakeSync{}
	}
	h := NewHandler(sync, db, app.NewRecordingService(db, logger.Discard()), logger.Discard())
	return NewRouter(h), db
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func seed(t *testing.T, db *store.DB, id string, status domain.RecordingStatus) {
	t.Helper()
	fp := strings.Repeat("ab", 32)
	rec := &domain.Recording{
		ID:            id,
		FilePath:      "/music/" + id + ".wav",
		Fingerprint:   &fp,
		Status:        status,
		FileSizeBytes: 2048,
	}
	if err := db.InsertRecording(context.Background(), rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupTestServer(t, nil)
	rec := do(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestTriggerSync(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sync := &fakeSync{cycle: &app.SyncCycle{ID: "cycle-1", StartedAt: started}, joined: true}
	router, _ := setupTestServer(t, sync)

	rec := do(t, router, http.MethodPost, "/api/sync", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	var resp dto.SyncTriggerResponse
	decode(t, rec, &resp)
	if resp.CycleID != "cycle-1" || !resp.Joined || !resp.StartedAt.Equal(started) {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestSyncStatus(t *testing.T) {
	running := &app.SyncCycle{ID: "running"}
	router, _ := setupTestServer(t, &fakeSync{current: running})

	rec := do(t, router, http.MethodGet, "/api/sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp dto.SyncStatusResponse
	decode(t, rec, &resp)
	if resp.Running == nil || resp.Running.ID != "running" || resp.Running.FinishedAt != nil {
		t.Errorf("Unexpected running cycle: %+v", resp.Running)
	}
	if resp.Last != nil {
		t.Errorf("Expected no last cycle, got %+v", resp.Last)
	}
}

func TestSyncStatus_FinishedCycle(t *testing.T) {
	coord := app.NewSyncCoordinator(runner(func(context.Context) (*app.SyncSummary, error) {
		return &app.SyncSummary{Discovered: 4, New: 2}, nil
	}), nil, "/music", logger.Discard())
	defer coord.Stop()

	cycle, _ := coord.StartOrJoin()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cycle.Wait(ctx); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	router, _ := setupTestServer(t, coord)
	rec := do(t, router, http.MethodGet, "/api/sync", "")
	var resp dto.SyncStatusResponse
	decode(t, rec, &resp)
	if resp.Running != nil {
		t.Error("Expected nothing running")
	}
	if resp.Last == nil || resp.Last.Summary == nil || resp.Last.Summary.New != 2 || resp.Last.FinishedAt == nil {
		t.Errorf("Unexpected last cycle: %+v", resp.Last)
	}
}

type runner func(ctx context.Context) (*app.SyncSummary, error)

func (f runner) Run(ctx context.Context) (*app.SyncSummary, error) { return f(ctx) }

func TestListRuns(t *testing.T) {
	router, db := setupTestServer(t, nil)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		run := &domain.SyncRun{
			ID:        id,
			Status:    domain.SyncRunRunning,
			Directory: "/music",
			StartedAt: time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC),
		}
		if err := db.CreateSyncRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	rec := do(t, router, http.MethodGet, "/api/sync/runs?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var runs []dto.SyncRunResponse
	decode(t, rec, &runs)
	if len(runs) != 2 || runs[0].ID != "c" {
		t.Errorf("Expected newest two runs, got %+v", runs)
	}

	if rec := do(t, router, http.MethodGet, "/api/sync/runs?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestListRecordings(t *testing.T) {
	router, db := setupTestServer(t, nil)
	seed(t, db, "one", domain.StatusImported)
	seed(t, db, "two", domain.StatusFileMissing)
	seed(t, db, "three", domain.StatusImported)

	rec := do(t, router, http.MethodGet, "/api/recordings?status=imported&page_size=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.RecordingListResponse
	decode(t, rec, &resp)
	if len(resp.Items) != 1 || resp.Pagination.TotalItems != 2 || resp.Pagination.TotalPages != 2 {
		t.Errorf("Unexpected listing: %+v", resp)
	}
	if resp.Items[0].Status != "Imported" {
		t.Errorf("Expected Imported, got %s", resp.Items[0].Status)
	}

	rec = do(t, router, http.MethodGet, "/api/recordings?status=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestRecordingCounts(t *testing.T) {
	router, db := setupTestServer(t, nil)
	seed(t, db, "one", domain.StatusReviewed)

	rec := do(t, router, http.MethodGet, "/api/recordings/counts", "")
	var counts map[string]int
	decode(t, rec, &counts)
	if counts["Reviewed"] != 1 || counts["Imported"] != 0 || len(counts) != 9 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

func TestGetRecording(t *testing.T) {
	router, db := setupTestServer(t, nil)
	seed(t, db, "one", domain.StatusImported)

	rec := do(t, router, http.MethodGet, "/api/recordings/one", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp dto.RecordingResponse
	decode(t, rec, &resp)
	if resp.ID != "one" || resp.Fingerprint == nil || resp.FileSize != "2.0 kB" {
		t.Errorf("Unexpected recording: %+v", resp)
	}
	if len(resp.NextStatuses) != 3 {
		t.Errorf("Expected 3 next statuses from Imported, got %v", resp.NextStatuses)
	}

	if rec := do(t, router, http.MethodGet, "/api/recordings/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestTransitionRecording(t *testing.T) {
	router, db := setupTestServer(t, nil)
	seed(t, db, "one", domain.StatusImported)

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"legal", "one", `{"status":"Transcribing"}`, http.StatusOK},
		{"illegal", "one", `{"status":"Completed"}`, http.StatusConflict},
		{"unknown status", "one", `{"status":"Deleted"}`, http.StatusBadRequest},
		{"empty status", "one", `{}`, http.StatusBadRequest},
		{"bad json", "one", `{`, http.StatusBadRequest},
		{"not found", "ghost", `{"status":"Error"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/recordings/"+tt.id+"/status", tt.body)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	got, err := db.GetRecording(context.Background(), "one")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusTranscribing {
		t.Errorf("Expected Transcribing after legal transition, got %s", got.Status)
	}
}
