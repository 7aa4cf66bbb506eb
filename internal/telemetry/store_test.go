package telemetry

import (
	"sync"
	"testing"
	"time"

	"tailwind/internal/model"
)

func testStore() *Store {
	return NewStore(model.TelemetryConfig{PublishTimeoutMs: 10, ReadTimeoutMs: 50})
}

// cycleSnapshot builds a snapshot whose fields all encode the same cycle
// number, so a torn read is detectable as a field mismatch.
func cycleSnapshot(cycle int) model.Snapshot {
	f := float64(cycle)
	return model.Snapshot{
		Motion:  model.MotionMetrics{CadenceRPM: f, WheelSpeedKmh: f},
		Torque:  model.TorqueSample{RawADC: cycle, Deviation: cycle},
		Command: model.AssistCommand{TargetCurrent: f, HumanPowerW: f, AssistPowerW: f},
		Mode:    cycle,
	}
}

func TestReadReturnsLastPublish(t *testing.T) {
	s := testStore()
	if !s.Publish(cycleSnapshot(7)) {
		t.Fatal("publish failed on uncontended store")
	}
	snap, ok := s.Read()
	if !ok {
		t.Fatal("read failed on uncontended store")
	}
	if snap.Mode != 7 || snap.Motion.CadenceRPM != 7 {
		t.Errorf("snapshot = %+v, want cycle 7", snap)
	}
}

func TestReadNeverObservesTornSnapshot(t *testing.T) {
	s := testStore()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		cycle := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			cycle++
			s.Publish(cycleSnapshot(cycle))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				snap, ok := s.Read()
				if !ok {
					continue
				}
				c := snap.Mode
				if snap.Torque.RawADC != c || int(snap.Motion.CadenceRPM) != c ||
					int(snap.Command.TargetCurrent) != c {
					t.Errorf("torn snapshot: %+v", snap)
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestPublishSkipsOnTimeout(t *testing.T) {
	s := NewStore(model.TelemetryConfig{PublishTimeoutMs: 5, ReadTimeoutMs: 5})

	// Hold the semaphore so every acquisition times out.
	<-s.sem
	defer func() { s.sem <- struct{}{} }()

	if s.Publish(cycleSnapshot(1)) {
		t.Error("publish succeeded while the lock was held")
	}
	if _, ok := s.Read(); ok {
		t.Error("read succeeded while the lock was held")
	}
	_, skippedPub, skippedReads := s.Stats()
	if skippedPub != 1 || skippedReads != 1 {
		t.Errorf("skip counters = %d/%d, want 1/1", skippedPub, skippedReads)
	}
}

func TestStaleReadIsConsistent(t *testing.T) {
	s := testStore()
	s.Publish(cycleSnapshot(3))

	// Multiple reads between publishes return the same full snapshot.
	a, _ := s.Read()
	b, _ := s.Read()
	if a != b {
		t.Errorf("repeated reads differ: %+v vs %+v", a, b)
	}
}
