package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"tailwind/internal/model"
)

func testConfig() *model.Config {
	cfg := &model.Config{}
	cfg.FillDefaults()
	cfg.Control.Debug = true
	cfg.Pas.SpeedSmoothingWindow = 1 // no smoothing lag in tests
	return cfg
}

func fixedADC(v int) func() (int, error) {
	return func() (int, error) { return v, nil }
}

// flakyLink fails feedback reads on demand and records commands.
type flakyLink struct {
	feedback model.MotorFeedback
	fbErr    error
	lastCmd  float64
	cmdErr   error
}

func (f *flakyLink) SetCurrent(amps float64) error {
	if f.cmdErr != nil {
		return f.cmdErr
	}
	f.lastCmd = amps
	return nil
}

func (f *flakyLink) ReadFeedback() (model.MotorFeedback, error) {
	if f.fbErr != nil {
		return model.MotorFeedback{}, f.fbErr
	}
	return f.feedback, nil
}

func (f *flakyLink) Close() error { return nil }

func TestCyclePublishesSentCommand(t *testing.T) {
	cfg := testConfig()
	link := &flakyLink{feedback: model.MotorFeedback{InputVoltage: 36, MotorCurrent: 2}}
	c := NewController(cfg, fixedADC(2048+800), link)
	c.sensor.CalibrateDefault()

	c.RequestMode(3) // Sport

	t0 := time.Unix(1000, 0)
	c.cycle(t0) // applies mode, primes PAS baseline

	// One crank revolution per second.
	t1 := t0.Add(time.Second)
	for i := 0; i < cfg.Pas.PulsesPerRev; i++ {
		c.counter.Pulse(t1)
	}
	c.cycle(t1)

	snap, ok := c.Snapshot()
	if !ok {
		t.Fatal("snapshot read failed")
	}
	if snap.Mode != 3 || snap.ModeName != "Sport" {
		t.Errorf("mode = %d (%s), want 3 (Sport)", snap.Mode, snap.ModeName)
	}
	if snap.Command.TargetCurrent <= 0 {
		t.Fatalf("expected assist current, got %+v", snap.Command)
	}
	// Telemetry must reflect the command that was handed to the link.
	if snap.Command.TargetCurrent != link.lastCmd {
		t.Errorf("published %v but sent %v", snap.Command.TargetCurrent, link.lastCmd)
	}
	if !snap.MotorEnabled {
		t.Error("motor should be enabled after a successful command")
	}
}

func TestEmergencyStopOverridesQueuedModes(t *testing.T) {
	cfg := testConfig()
	link := &flakyLink{feedback: model.MotorFeedback{InputVoltage: 36}}
	c := NewController(cfg, fixedADC(2048), link)
	c.sensor.CalibrateDefault()

	c.RequestMode(4)
	c.RequestEmergencyStop()
	c.RequestMode(2)

	c.cycle(time.Unix(1000, 0))

	snap, _ := c.Snapshot()
	if snap.ModeName != "No Assist" {
		t.Errorf("mode after emergency stop = %q, want No Assist", snap.ModeName)
	}
}

func TestInvalidModeRequestLeavesModeUnchanged(t *testing.T) {
	cfg := testConfig()
	link := &flakyLink{feedback: model.MotorFeedback{InputVoltage: 36}}
	c := NewController(cfg, fixedADC(2048), link)
	c.sensor.CalibrateDefault()

	c.RequestMode(2)
	c.cycle(time.Unix(1000, 0))

	c.RequestMode(99)
	c.cycle(time.Unix(1001, 0))

	snap, _ := c.Snapshot()
	if snap.Mode != 2 {
		t.Errorf("mode = %d after invalid request, want 2", snap.Mode)
	}
}

func TestCycleToleratesFeedbackFailure(t *testing.T) {
	cfg := testConfig()
	link := &flakyLink{feedback: model.MotorFeedback{InputVoltage: 36.5}}
	c := NewController(cfg, fixedADC(2048), link)
	c.sensor.CalibrateDefault()

	c.cycle(time.Unix(1000, 0))

	// Feedback drops out: the previous scalars carry the cycle.
	link.fbErr = errors.New("uart timeout")
	c.cycle(time.Unix(1001, 0))

	snap, ok := c.Snapshot()
	if !ok {
		t.Fatal("snapshot read failed")
	}
	if snap.Feedback.InputVoltage != 36.5 {
		t.Errorf("voltage = %v, want stale 36.5", snap.Feedback.InputVoltage)
	}
}

func TestControllerStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.Control.LoopIntervalMs = 5
	link := &flakyLink{feedback: model.MotorFeedback{InputVoltage: 36}}
	c := NewController(cfg, fixedADC(2048), link)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	published, _, _ := c.store.Stats()
	if published == 0 {
		t.Error("no snapshots published by the running loop")
	}
	if link.lastCmd != 0 {
		t.Errorf("motor command after stop = %v, want 0", link.lastCmd)
	}
}

func TestBatteryPercent(t *testing.T) {
	cfg := model.BatteryConfig{FullVoltage: 42, CriticalVoltage: 33}
	cases := []struct {
		voltage float64
		want    float64
	}{
		{43, 100},
		{42, 100},
		{33, 0},
		{30, 0},
		{37.5, 50},
	}
	for _, tc := range cases {
		if got := batteryPercent(tc.voltage, cfg); got != tc.want {
			t.Errorf("batteryPercent(%v) = %v, want %v", tc.voltage, got, tc.want)
		}
	}
}
