// Package scheduler coalesces pending gif mutations and flushes them to the
// remote settings store on a time-debounced schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Madachii/giffolders/internal/model"
)

const (
	// DefaultMinInterval is the minimum spacing between two pushes.
	DefaultMinInterval = 10 * time.Second
	// DefaultPad is added to a scheduled retry so the gate has safely
	// reopened by the time the timer fires.
	DefaultPad = 500 * time.Millisecond
)

// FlushFunc pushes a batch upstream. A nil error commits the batch; any
// error keeps it pending for the next attempt. Delivery is at least once;
// saves and deletes are idempotent by identifier, so replays are safe.
type FlushFunc func(ctx context.Context, batch model.Batch) error

// Scheduler is a two-state machine: Idle (no retry timer armed) and
// Debouncing (a flush ran too recently, one timer armed). Redundant flush
// requests while Debouncing do not stack timers.
type Scheduler struct {
	flush       FlushFunc
	log         *zap.Logger
	minInterval time.Duration
	pad         time.Duration

	// now is a seam for tests.
	now func() time.Time

	// onResult, when set, observes every flush attempt. Background flush
	// failures are reported here as well as logged so an operator can tell
	// sync is stuck.
	onResult func(flushID string, err error)

	mu        sync.Mutex
	pending   model.Batch
	lastFlush time.Time
	timer     *time.Timer
}

// New constructs a scheduler around the given flush function. A
// non-positive minInterval selects the default.
func New(flush FlushFunc, minInterval time.Duration, log *zap.Logger) *Scheduler {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Scheduler{
		flush:       flush,
		log:         log,
		minInterval: minInterval,
		pad:         DefaultPad,
		now:         time.Now,
		pending:     model.NewBatch(),
	}
}

// SetObserver registers a callback invoked after every flush attempt.
func (s *Scheduler) SetObserver(fn func(flushID string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// RecordSave stages an upsert; it never triggers I/O by itself.
func (s *Scheduler) RecordSave(url string, g model.Gif) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Save(url, g)
}

// RecordDelete stages a removal; it never triggers I/O by itself.
func (s *Scheduler) RecordDelete(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Delete(url)
}

// Pending returns a copy of the staged batch.
func (s *Scheduler) Pending() model.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Clone()
}

// Debouncing reports whether a retry timer is currently armed.
func (s *Scheduler) Debouncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// RequestFlush flushes immediately when the last successful push is old
// enough, otherwise arms a single retry timer for the remaining wait.
func (s *Scheduler) RequestFlush(ctx context.Context) {
	s.mu.Lock()
	elapsed := s.now().Sub(s.lastFlush)
	if elapsed < s.minInterval {
		if s.timer == nil {
			wait := s.minInterval - elapsed + s.pad
			s.timer = time.AfterFunc(wait, func() {
				s.mu.Lock()
				s.timer = nil
				s.mu.Unlock()
				s.RequestFlush(context.Background())
			})
		}
		s.mu.Unlock()
		return
	}
	s.runFlush(ctx)
}

// Run drives periodic flushes at the given cadence until ctx is cancelled.
// This is the background reconciler loop; the interval is normally much
// longer than the debounce gate.
func (s *Scheduler) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-t.C:
			s.RequestFlush(ctx)
		}
	}
}

// Stop disarms any pending retry timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// runFlush is entered holding the mutex and releases it around the push so
// new mutations can be staged while the network call is in flight.
func (s *Scheduler) runFlush(ctx context.Context) {
	batch := s.pending.Clone()
	onResult := s.onResult
	s.mu.Unlock()

	id, _ := uuid.NewV4()
	flushID := id.String()
	err := s.flush(ctx, batch)

	s.mu.Lock()
	if err != nil {
		// batch kept, flush time not advanced: next request retries
		s.log.Error("flush failed",
			zap.String("flush_id", flushID),
			zap.Int("to_save", len(batch.ToSave)),
			zap.Int("to_delete", len(batch.ToDelete)),
			zap.Error(err))
	} else {
		s.commitLocked(batch)
		s.lastFlush = s.now()
		s.log.Info("flush ok",
			zap.String("flush_id", flushID),
			zap.Int("to_save", len(batch.ToSave)),
			zap.Int("to_delete", len(batch.ToDelete)))
	}
	s.mu.Unlock()

	if onResult != nil {
		onResult(flushID, err)
	}
}

// commitLocked drops the flushed entries from the pending batch, keeping
// anything staged while the push was in flight.
func (s *Scheduler) commitLocked(flushed model.Batch) {
	for url, g := range flushed.ToSave {
		if cur, ok := s.pending.ToSave[url]; ok && cur == g {
			delete(s.pending.ToSave, url)
		}
	}
	for url := range flushed.ToDelete {
		if _, ok := s.pending.ToDelete[url]; ok {
			delete(s.pending.ToDelete, url)
		}
	}
}
