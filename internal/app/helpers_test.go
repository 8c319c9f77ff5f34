package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cesargomez89/recshelf/internal/domain"
	"github.com/cesargomez89/recshelf/internal/logger"
	"github.com/cesargomez89/recshelf/internal/probe"
	"github.com/cesargomez89/recshelf/internal/storage"
	"github.com/cesargomez89/recshelf/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "test_app.db"))
}

// openTestDB opens path as its own connection pool, the way a second
// process would.
func openTestDB(t *testing.T, path string) *store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeProber answers from the real file size and fails for configured paths.
type fakeProber struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
	hook  func(path string)
}

func newFakeProber() *fakeProber {
	return &fakeProber{fail: make(map[string]error)}
}

func (p *fakeProber) Probe(ctx context.Context, path string) (*probe.Metadata, error) {
	p.mu.Lock()
	p.calls = append(p.calls, path)
	err := p.fail[path]
	hook := p.hook
	p.mu.Unlock()

	if hook != nil {
		hook(path)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, errors.Join(probe.ErrUnreadable, statErr)
	}
	return &probe.Metadata{
		DurationSeconds: 1.5,
		SampleRate:      44100,
		Channels:        2,
		Format:          "wav",
		SizeBytes:       info.Size(),
	}, nil
}

func writeAudio(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func fingerprintOf(t *testing.T, path string) string {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	fp, err := storage.Fingerprint(path, info.Size())
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	return fp
}

func insertRecording(t *testing.T, db *store.DB, id, path string, status domain.RecordingStatus, fingerprint string) {
	t.Helper()
	rec := &domain.Recording{ID: id, FilePath: path, Status: status}
	if fingerprint != "" {
		rec.Fingerprint = &fingerprint
	}
	if err := db.InsertRecording(context.Background(), rec); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
}

func getRecording(t *testing.T, db *store.DB, id string) *domain.Recording {
	t.Helper()
	rec, err := db.GetRecording(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return rec
}

func newTestSync(db *store.DB, prober probe.Prober, dir string) *SyncService {
	return NewSyncService(db, prober, dir, 1, logger.Discard())
}
