package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/cesargomez89/recshelf/internal/domain"
	"github.com/cesargomez89/recshelf/internal/logger"
)

// SyncRunner runs one sync cycle.
type SyncRunner interface {
	Run(ctx context.Context) (*SyncSummary, error)
}

// RunHistory persists finished cycles. *store.DB implements it.
type RunHistory interface {
	CreateSyncRun(ctx context.Context, run *domain.SyncRun) error
	FinishSyncRun(ctx context.Context, run *domain.SyncRun) error
}

// SyncCycle is a handle to one started sync cycle. Every caller that joined
// the cycle observes the same outcome.
type SyncCycle struct {
	ID        string
	StartedAt time.Time

	done       chan struct{}
	summary    *SyncSummary
	err        error
	finishedAt time.Time
}

// Done is closed once the cycle has finished.
func (c *SyncCycle) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the cycle finishes or ctx ends. Giving up on waiting does
// not cancel the cycle.
func (c *SyncCycle) Wait(ctx context.Context) (*SyncSummary, error) {
	select {
	case <-c.done:
		return c.summary, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome; finished is false while the cycle is running.
func (c *SyncCycle) Result() (summary *SyncSummary, err error, finished bool) {
	select {
	case <-c.done:
		return c.summary, c.err, true
	default:
		return nil, nil, false
	}
}

// FinishedAt is zero until the cycle is done.
func (c *SyncCycle) FinishedAt() time.Time {
	select {
	case <-c.done:
		return c.finishedAt
	default:
		return time.Time{}
	}
}

// SyncCoordinator makes sure at most one sync cycle runs at a time.
// Triggers that arrive while a cycle is in flight join it.
type SyncCoordinator struct {
	runner    SyncRunner
	history   RunHistory
	directory string
	Logger    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *SyncCycle
	last    *SyncCycle
	hooks   []func(*SyncCycle)
	stopped bool
}

func NewSyncCoordinator(runner SyncRunner, history RunHistory, directory string, log *logger.Logger) *SyncCoordinator {
	if log == nil {
		log = logger.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncCoordinator{
		runner:    runner,
		history:   history,
		directory: directory,
		Logger:    log.WithComponent("coordinator"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnComplete registers fn to run after every finished cycle.
func (c *SyncCoordinator) OnComplete(fn func(*SyncCycle)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// StartOrJoin starts a new cycle, or returns the in-flight one with joined
// set to true. Once stopped it starts nothing and returns the last cycle, or
// a finished cycle failing with ErrCoordinatorStopped if none ever ran.
func (c *SyncCoordinator) StartOrJoin() (cycle *SyncCycle, joined bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return c.current, true
	}
	if c.stopped {
		if c.last != nil {
			return c.last, true
		}
		return stoppedCycle(), true
	}

	cycle = &SyncCycle{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
	c.current = cycle

	c.wg.Add(1)
	go c.run(cycle)
	return cycle, false
}

// Current returns the in-flight cycle, or nil.
func (c *SyncCoordinator) Current() *SyncCycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Last returns the most recently finished cycle, or nil.
func (c *SyncCoordinator) Last() *SyncCycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Stop cancels an in-flight cycle that has not reached its write phase and
// waits for it to finish.
func (c *SyncCoordinator) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func stoppedCycle() *SyncCycle {
	now := time.Now().UTC()
	cycle := &SyncCycle{
		ID:         uuid.New().String(),
		StartedAt:  now,
		done:       make(chan struct{}),
		summary:    &SyncSummary{},
		err:        ErrCoordinatorStopped,
		finishedAt: now,
	}
	close(cycle.done)
	return cycle
}

func (c *SyncCoordinator) run(cycle *SyncCycle) {
	defer c.wg.Done()
	log := c.Logger.WithSync(cycle.ID)

	run := &domain.SyncRun{
		ID:        cycle.ID,
		Status:    domain.SyncRunRunning,
		Directory: c.directory,
		StartedAt: cycle.StartedAt,
	}
	if c.history != nil {
		if err := c.history.CreateSyncRun(c.ctx, run); err != nil {
			log.Error("Failed to record sync run", "error", err)
		}
	}

	var (
		summary *SyncSummary
		err     error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync cycle panicked: %v", r)
		}
		c.finish(cycle, run, summary, err, log)
	}()

	log.Info("Sync started", "directory", c.directory)
	summary, err = c.runner.Run(c.ctx)
}

func (c *SyncCoordinator) finish(cycle *SyncCycle, run *domain.SyncRun, summary *SyncSummary, err error, log *logger.Logger) {
	if summary == nil {
		summary = &SyncSummary{}
	}
	cycle.summary = summary
	cycle.err = err
	cycle.finishedAt = time.Now().UTC()

	if c.history != nil {
		run.Status = RunStatusFor(err)
		run.Discovered = summary.Discovered
		run.New = summary.New
		run.Updated = summary.Updated
		run.Missing = summary.Missing
		run.Ambiguous = summary.Ambiguous
		run.Failed = summary.Failed
		if err != nil {
			msg := err.Error()
			run.Error = &msg
		}
		finished := cycle.finishedAt
		run.FinishedAt = &finished
		if herr := c.history.FinishSyncRun(context.Background(), run); herr != nil {
			log.Error("Failed to finish sync run record", "error", herr)
		}
	}

	if err != nil {
		log.Error("Sync failed", "error", err, "kind", ErrorKind(err),
			"discovered", summary.Discovered, "failed", summary.Failed)
	} else {
		log.Info("Sync completed",
			"discovered", summary.Discovered,
			"new", summary.New,
			"updated", summary.Updated,
			"relinked", summary.Relinked,
			"missing", summary.Missing,
			"ambiguous", summary.Ambiguous,
			"failed", summary.Failed,
			"took", strings.TrimSpace(humanize.RelTime(cycle.StartedAt, cycle.finishedAt, "", "")),
		)
	}

	c.mu.Lock()
	c.current = nil
	c.last = cycle
	hooks := append([]func(*SyncCycle){}, c.hooks...)
	c.mu.Unlock()

	close(cycle.done)

	for _, hook := range hooks {
		hook(cycle)
	}
}

// RunStatusFor maps a cycle error to its persisted run status.
func RunStatusFor(err error) domain.SyncRunStatus {
	switch {
	case err == nil:
		return domain.SyncRunCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, ErrSystemicProbeFailure):
		return domain.SyncRunAborted
	default:
		return domain.SyncRunFailed
	}
}

// ErrorKind names the class of a cycle error for logs and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDirectoryInaccessible):
		return "directory_inaccessible"
	case errors.Is(err, ErrSystemicProbeFailure):
		return "systemic_probe_failure"
	case errors.Is(err, ErrTransactionFailed):
		return "transaction_failed"
	case errors.Is(err, ErrSyncLocked):
		return "locked"
	case errors.Is(err, ErrCoordinatorStopped):
		return "stopped"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "internal"
	}
}
