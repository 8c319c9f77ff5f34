package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/domain"
	"github.com/cesargomez89/recshelf/internal/logger"
	"github.com/cesargomez89/recshelf/internal/probe"
	"github.com/cesargomez89/recshelf/internal/reconcile"
	"github.com/cesargomez89/recshelf/internal/storage"
	"github.com/cesargomez89/recshelf/internal/store"
)

var (
	ErrDirectoryInaccessible = errors.New("watch directory inaccessible")
	ErrSystemicProbeFailure  = errors.New("every discovered file failed to probe")
	ErrTransactionFailed     = errors.New("sync transaction failed")
	ErrSyncLocked            = errors.New("catalog is locked by another process")
	ErrCoordinatorStopped    = errors.New("sync coordinator stopped")
)

// SyncSummary is the outcome of one sync cycle.
type SyncSummary struct {
	Discovered int `json:"discovered"`
	New        int `json:"new"`
	Updated    int `json:"updated"`
	Relinked   int `json:"relinked"`
	Missing    int `json:"missing"`
	Ambiguous  int `json:"ambiguous"`
	Failed     int `json:"failed"`

	AmbiguousMatches []reconcile.AmbiguousMatch `json:"ambiguous_matches,omitempty"`
	FailedPaths      []string                   `json:"failed_paths,omitempty"`
	Duration         time.Duration              `json:"duration"`
}

// SyncService runs sync cycles against one watched directory.
type SyncService struct {
	Repo       *store.DB
	Prober     probe.Prober
	Dir        string
	Extensions []string
	// Workers bounds concurrent probes; 1 probes files one after another.
	Workers int
	// Lock, when set, is held across the write phase so two processes never
	// write the same catalog at once.
	Lock     *flock.Flock
	LockWait time.Duration
	Logger   *logger.Logger

	now func() time.Time
}

func NewSyncService(repo *store.DB, prober probe.Prober, dir string, workers int, log *logger.Logger) *SyncService {
	if log == nil {
		log = logger.Default()
	}
	if workers < 1 {
		workers = constants.DefaultProbeWorkers
	}
	return &SyncService{
		Repo:       repo,
		Prober:     prober,
		Dir:        dir,
		Extensions: constants.SupportedExtensions,
		Workers:    workers,
		LockWait:   constants.DefaultLockWait,
		Logger:     log.WithComponent("sync"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one sync cycle. Nothing is written unless every step up to
// the transaction succeeds; once the transaction starts it is not cancelled.
func (s *SyncService) Run(ctx context.Context) (*SyncSummary, error) {
	started := time.Now()
	summary := &SyncSummary{}

	if err := storage.EnsureReadableDir(s.Dir); err != nil {
		return summary, fmt.Errorf("%w: %s: %w", ErrDirectoryInaccessible, s.Dir, err)
	}
	paths, err := storage.ListAudioFiles(s.Dir, s.Extensions)
	if err != nil {
		return summary, fmt.Errorf("%w: %s: %w", ErrDirectoryInaccessible, s.Dir, err)
	}
	summary.Discovered = len(paths)

	discovered := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		discovered[p] = struct{}{}
	}

	files, failed, infraErr, err := s.probeAll(ctx, paths)
	if err != nil {
		return summary, err
	}
	summary.Failed = len(failed)
	summary.FailedPaths = failed

	if reconcile.ShouldAbortSyncForProbeFailures(len(paths), len(files), len(failed)) {
		if infraErr != nil {
			return summary, fmt.Errorf("%w: %d of %d files: %w", ErrSystemicProbeFailure, len(failed), len(paths), infraErr)
		}
		return summary, fmt.Errorf("%w: %d of %d files", ErrSystemicProbeFailure, len(failed), len(paths))
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	// The catalog is read and written under the same lock, so a second
	// process never plans against a snapshot that is about to change.
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return summary, err
	}
	defer unlock()

	records, err := s.Repo.ListAllRecordings(ctx)
	if err != nil {
		return summary, fmt.Errorf("load catalog: %w", err)
	}

	result := reconcile.Reconcile(files, records)
	missing := reconcile.SelectRecordsToMarkMissing(
		result.UnmatchedRecordIDs,
		reconcile.CandidatesFromRecordings(records),
		discovered,
	)

	for _, amb := range result.Ambiguous {
		s.Logger.Warn("Ambiguous match left unresolved",
			"path", amb.FilePath, "reason", amb.Reason, "candidates", amb.CandidateIDs)
	}

	// Last point at which cancellation is honoured.
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	writeCtx := context.WithoutCancel(ctx)

	if err := s.apply(writeCtx, result, missing); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	summary.New = len(result.NewFiles)
	summary.Updated = len(result.Matches)
	summary.Relinked = len(result.HashMatches())
	summary.Missing = len(missing)
	summary.Ambiguous = len(result.Ambiguous)
	summary.AmbiguousMatches = result.Ambiguous
	summary.Duration = time.Since(started)
	return summary, nil
}

// probeAll probes and fingerprints every path. Results keep the order of
// paths. A non-nil error means the context ended; per-file failures are only
// reported through failed.
func (s *SyncService) probeAll(ctx context.Context, paths []string) (files []reconcile.DiskFile, failed []string, infraErr error, err error) {
	type outcome struct {
		file reconcile.DiskFile
		err  error
	}
	outcomes := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := s.probeOne(gctx, path)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			outcomes[i] = outcome{file: file, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	for i, o := range outcomes {
		if o.err != nil {
			s.Logger.Warn("Failed to probe file", "path", paths[i], "error", o.err)
			failed = append(failed, paths[i])
			if infraErr == nil && probe.IsInfrastructure(o.err) {
				infraErr = o.err
			}
			continue
		}
		files = append(files, o.file)
	}
	return files, failed, infraErr, nil
}

func (s *SyncService) probeOne(ctx context.Context, path string) (reconcile.DiskFile, error) {
	meta, err := s.Prober.Probe(ctx, path)
	if err != nil {
		return reconcile.DiskFile{}, err
	}
	fp, err := storage.Fingerprint(path, meta.SizeBytes)
	if err != nil {
		return reconcile.DiskFile{}, err
	}
	return reconcile.DiskFile{FilePath: path, Fingerprint: fp, Info: meta.Info()}, nil
}

func (s *SyncService) acquireLock(ctx context.Context) (func(), error) {
	if s.Lock == nil {
		return func() {}, nil
	}
	lockCtx, cancel := context.WithTimeout(ctx, s.LockWait)
	defer cancel()

	locked, err := s.Lock.TryLockContext(lockCtx, constants.DefaultLockRetry)
	if ctxErr := ctx.Err(); ctxErr != nil && !locked {
		return nil, ctxErr
	}
	if err != nil || !locked {
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSyncLocked, s.Lock.Path(), err)
	}
	return func() {
		if err := s.Lock.Unlock(); err != nil {
			s.Logger.Error("Failed to release catalog lock", "error", err)
		}
	}, nil
}

// apply writes one cycle's mutations in a single transaction, in the order
// path matches, hash matches, inserts, missing transitions.
func (s *SyncService) apply(ctx context.Context, result reconcile.Result, missing []string) error {
	now := s.now()
	return s.Repo.RunInTx(ctx, func(txDB *store.DB) error {
		for _, m := range result.PathMatches() {
			if err := txDB.TouchRecording(ctx, m.RecordID, m.File.Fingerprint, now); err != nil {
				return err
			}
		}

		for _, m := range result.HashMatches() {
			if err := txDB.RelinkRecording(ctx, m.RecordID, m.File.FilePath, m.File.Fingerprint, now); err != nil {
				return err
			}
			s.Logger.WithRecording(m.RecordID, m.File.FilePath).Info("Relinked moved recording")
		}

		for _, f := range result.NewFiles {
			fp := f.Fingerprint
			checked := now
			rec := &domain.Recording{
				ID:              uuid.New().String(),
				FilePath:        f.FilePath,
				Fingerprint:     &fp,
				LastCheckedAt:   &checked,
				Status:          domain.StatusImported,
				DurationSeconds: f.Info.DurationSeconds,
				SampleRate:      f.Info.SampleRate,
				Channels:        f.Info.Channels,
				Format:          f.Info.Format,
				FileSizeBytes:   f.Info.SizeBytes,
				Title:           f.Info.Title,
				Artist:          f.Info.Artist,
				HasCoverArt:     f.Info.HasCoverArt,
				CreatedAt:       now,
			}
			if err := txDB.InsertRecording(ctx, rec); err != nil {
				return err
			}
		}

		return txDB.MarkRecordingsMissing(ctx, missing, now)
	})
}

// RecoverInterruptedRuns fails run records left running by a process that
// died mid-cycle. It does nothing and returns ErrSyncLocked while another
// process holds the catalog lock, since that process may own those runs.
func (s *SyncService) RecoverInterruptedRuns(ctx context.Context) (int, error) {
	if s.Lock != nil {
		locked, err := s.Lock.TryLock()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrSyncLocked, s.Lock.Path(), err)
		}
		if !locked {
			return 0, fmt.Errorf("%w: %s", ErrSyncLocked, s.Lock.Path())
		}
		defer func() {
			if err := s.Lock.Unlock(); err != nil {
				s.Logger.Error("Failed to release catalog lock", "error", err)
			}
		}()
	}
	return s.Repo.MarkInterruptedSyncRuns(ctx)
}
