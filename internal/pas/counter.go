// Package pas implements pedal-assist sensor event capture. Edge handlers run
// outside task context and may only touch the lock-free counter/timestamp
// pair; cadence and speed are derived on the control-task side.
package pas

import (
	"sync/atomic"
	"time"

	"tailwind/internal/model"
)

// Counter accumulates pulse edges from the pedal-assist sensor. Pulse is safe
// to call from interrupt-style contexts: it performs two atomic stores and
// nothing else. Sample is called by the control task only.
type Counter struct {
	cfg model.PasConfig

	pulses   atomic.Int64 // monotonic edge count
	lastEdge atomic.Int64 // unix nanoseconds of the most recent edge

	// control-task state, single goroutine only
	prevPulses int64
	prevSample time.Time
	primed     bool
}

// NewCounter creates a Counter for the given sensor geometry.
func NewCounter(cfg model.PasConfig) *Counter {
	return &Counter{cfg: cfg}
}

// Pulse records one edge transition at time now. No floating point, no locks.
func (c *Counter) Pulse(now time.Time) {
	c.pulses.Add(1)
	c.lastEdge.Store(now.UnixNano())
}

// Pulses returns the monotonic edge count.
func (c *Counter) Pulses() int64 {
	return c.pulses.Load()
}

// Sample derives cadence and wheel speed from the edges accumulated since the
// previous call. If no edge has arrived within the stall timeout both metrics
// are zero: the rider has stopped, stale values must not be held. The first
// call primes the baseline and reports zeros.
func (c *Counter) Sample(now time.Time) model.MotionMetrics {
	count := c.pulses.Load()
	lastEdge := time.Unix(0, c.lastEdge.Load())

	defer func() {
		c.prevPulses = count
		c.prevSample = now
		c.primed = true
	}()

	if !c.primed {
		return model.MotionMetrics{}
	}

	stall := time.Duration(c.cfg.StallTimeoutMs) * time.Millisecond
	if c.lastEdge.Load() == 0 || now.Sub(lastEdge) > stall {
		return model.MotionMetrics{}
	}

	elapsed := now.Sub(c.prevSample)
	if elapsed <= 0 {
		return model.MotionMetrics{}
	}

	pulses := count - c.prevPulses
	revs := float64(pulses) / float64(c.cfg.PulsesPerRev)
	cadence := revs / elapsed.Minutes()

	// Wheel revolutions follow crank revolutions through the drive ratio.
	wheelRevsPerMin := (cadence / c.cfg.CrankToWheelRatio)
	speedKmh := wheelRevsPerMin * c.cfg.WheelCircumferenceM * 60.0 / 1000.0

	return model.MotionMetrics{CadenceRPM: cadence, WheelSpeedKmh: speedKmh}
}
