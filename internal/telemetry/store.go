// Package telemetry implements the shared snapshot store: the single
// cross-task mutable resource of the controller. One writer (the control
// task) publishes the fused state once per cycle; any number of reporting
// tasks copy it at their own cadence. All acquisitions are bounded-wait: a
// timed-out publish or read is a skipped attempt, never a blocked task.
package telemetry

import (
	"sync/atomic"
	"time"

	"tailwind/internal/model"
)

// Store guards the latest snapshot. The guard owns the data; there is no way
// to reach the snapshot without going through the bounded-wait acquisition.
// This is last-value-wins telemetry, not an event log.
type Store struct {
	sem  chan struct{} // 1-slot semaphore, held while the snapshot is touched
	snap model.Snapshot

	publishTimeout time.Duration
	readTimeout    time.Duration

	published    atomic.Int64
	skippedPub   atomic.Int64
	skippedReads atomic.Int64
}

// NewStore creates a Store with the given acquisition budgets.
func NewStore(cfg model.TelemetryConfig) *Store {
	s := &Store{
		sem:            make(chan struct{}, 1),
		publishTimeout: time.Duration(cfg.PublishTimeoutMs) * time.Millisecond,
		readTimeout:    time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
	}
	s.sem <- struct{}{}
	return s
}

// acquire takes the semaphore within d. Returns false on timeout.
func (s *Store) acquire(d time.Duration) bool {
	select {
	case <-s.sem:
		return true
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.sem:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Store) release() {
	s.sem <- struct{}{}
}

// Publish overwrites the snapshot as a single unit. Called once per control
// cycle by the control task only. On timeout the publish is skipped for this
// cycle: a stale snapshot is acceptable, blocking the control loop is not.
// Returns false when skipped.
func (s *Store) Publish(snap model.Snapshot) bool {
	if !s.acquire(s.publishTimeout) {
		s.skippedPub.Add(1)
		return false
	}
	s.snap = snap
	s.release()
	s.published.Add(1)
	return true
}

// Read copies the snapshot. Callable from any reporting task. A successful
// read always returns fields written by one Publish call; on timeout ok is
// false and the caller keeps its previous copy.
func (s *Store) Read() (model.Snapshot, bool) {
	if !s.acquire(s.readTimeout) {
		s.skippedReads.Add(1)
		return model.Snapshot{}, false
	}
	snap := s.snap
	s.release()
	return snap, true
}

// Stats reports publish/skip counters for the log channel.
func (s *Store) Stats() (published, skippedPublishes, skippedReads int64) {
	return s.published.Load(), s.skippedPub.Load(), s.skippedReads.Load()
}
