// Package scheduler triggers sync cycles on a timer and when the watched
// directory changes.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cesargomez89/recshelf/internal/app"
	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/logger"
	"github.com/cesargomez89/recshelf/internal/storage"
)

// Trigger starts a sync cycle or joins the one in flight.
type Trigger interface {
	StartOrJoin() (cycle *app.SyncCycle, joined bool)
}

type Scheduler struct {
	Trigger Trigger
	Dir     string
	// Interval between scheduled cycles; 0 disables the ticker.
	Interval time.Duration
	// Watch enables the fsnotify watcher. Bursts of events closer together
	// than Debounce collapse into one trigger.
	Watch      bool
	Debounce   time.Duration
	Extensions []string
	Logger     *logger.Logger

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(trigger Trigger, dir string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		Trigger:    trigger,
		Dir:        dir,
		Interval:   constants.DefaultSyncInterval,
		Debounce:   constants.DefaultWatchDebounce,
		Extensions: constants.SupportedExtensions,
		Logger:     log.WithComponent("scheduler"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the ticker and, when enabled, the watcher. It does not
// trigger a cycle by itself.
func (s *Scheduler) Start() error {
	if s.Watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Add(s.Dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch %s: %w", s.Dir, err)
		}
		s.watcher = w

		s.wg.Add(1)
		go s.watch()
	}

	if s.Interval > 0 {
		s.wg.Add(1)
		go s.tick()
	}

	s.Logger.Info("Scheduler started", "interval", s.Interval, "watch", s.Watch, "dir", s.Dir)
	return nil
}

func (s *Scheduler) Stop() {
	s.Logger.Info("Stopping scheduler")
	s.cancel()
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.wg.Wait()
}

func (s *Scheduler) tick() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.fire("interval")
		}
	}
}

func (s *Scheduler) watch() {
	defer s.wg.Done()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.Debounce)
			} else {
				timer.Reset(s.Debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			s.fire("watch")

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.Logger.Error("Watcher error", "error", err)
		}
	}
}

// relevant keeps events on supported audio files; chmod-only events are
// ignored.
func (s *Scheduler) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	return storage.IsSupported(event.Name, s.Extensions)
}

func (s *Scheduler) fire(reason string) {
	cycle, joined := s.Trigger.StartOrJoin()
	s.Logger.WithSync(cycle.ID).Debug("Sync triggered", "reason", reason, "joined", joined)
}
