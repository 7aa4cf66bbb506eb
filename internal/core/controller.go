// Package core contains the control task and the system orchestration layer
// for the tailwind controller. The Controller runs the fixed-rate
// sensor-fusion and assist-decision cycle; the System wires sensors, motor
// link and reporters together from configuration.
package core

import (
	"context"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/rs/zerolog/log"

	"tailwind/internal/assist"
	"tailwind/internal/model"
	"tailwind/internal/motor"
	"tailwind/internal/pas"
	"tailwind/internal/telemetry"
	"tailwind/internal/torque"
)

// modeRequest is a mode change or emergency stop submitted by any task.
// Requests are drained by the control task at the top of each cycle, so the
// active mode has exactly one writer.
type modeRequest struct {
	index     int
	emergency bool
}

// Controller owns the control cycle: sample torque, derive motion metrics,
// decide assist, command the motor, publish the snapshot. It is the single
// writer of the shared telemetry state and of the active mode.
type Controller struct {
	cfg     *model.Config
	sensor  *torque.Sensor
	counter *pas.Counter
	engine  *assist.Engine
	store   *telemetry.Store
	link    motor.Link

	speedAvg *movingaverage.MovingAverage
	modeReq  chan modeRequest

	lastFeedback model.MotorFeedback
	motorEnabled bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewController builds a Controller from configuration, an ADC source and a
// motor link.
func NewController(cfg *model.Config, adc torque.ADCReader, link motor.Link) *Controller {
	return &Controller{
		cfg:      cfg,
		sensor:   torque.NewSensor(cfg.Torque, adc),
		counter:  pas.NewCounter(cfg.Pas),
		engine:   assist.NewEngine(cfg.Assist),
		store:    telemetry.NewStore(cfg.Telemetry),
		link:     link,
		speedAvg: movingaverage.New(cfg.Pas.SpeedSmoothingWindow),
		modeReq:  make(chan modeRequest, 8),
		stop:     make(chan struct{}),
	}
}

// Counter exposes the pulse accumulator so hardware edge callbacks can be
// attached to it.
func (c *Controller) Counter() *pas.Counter {
	return c.counter
}

// Snapshot reads the latest published snapshot. False means the bounded wait
// expired and the caller should keep its previous copy.
func (c *Controller) Snapshot() (model.Snapshot, bool) {
	return c.store.Read()
}

// Profiles returns the read-only assist profile table.
func (c *Controller) Profiles() []model.AssistProfile {
	return c.engine.Profiles()
}

// RequestMode submits a mode change for the control task to apply on its next
// cycle. Returns false when the request queue is full; the request is dropped
// rather than blocking the caller.
func (c *Controller) RequestMode(index int) bool {
	select {
	case c.modeReq <- modeRequest{index: index}:
		return true
	default:
		log.Warn().Int("requested", index).Msg("mode request queue full, dropped")
		return false
	}
}

// RequestEmergencyStop submits the emergency-stop transition, overriding any
// queued mode change.
func (c *Controller) RequestEmergencyStop() bool {
	select {
	case c.modeReq <- modeRequest{emergency: true}:
		return true
	default:
		log.Error().Msg("mode request queue full, emergency stop dropped")
		return false
	}
}

// Start calibrates the torque sensor and launches the control loop. In debug
// mode calibration is skipped and simulated sensors drive the cycle.
func (c *Controller) Start(ctx context.Context) {
	if c.cfg.Control.Debug {
		c.sensor.CalibrateDefault()
	} else {
		c.sensor.Calibrate(ctx)
	}
	c.logStartupBattery()

	c.wg.Add(1)
	go c.loop()
}

// logStartupBattery reads one feedback frame to report the charge level at
// boot, mirroring the old LED blink indicator on the log channel.
func (c *Controller) logStartupBattery() {
	fb, err := c.link.ReadFeedback()
	if err != nil {
		log.Warn().Err(err).Msg("battery status unavailable at startup")
		return
	}
	pct := batteryPercent(fb.InputVoltage, c.cfg.Battery)
	log.Info().
		Float64("voltage", fb.InputVoltage).
		Float64("percent", pct).
		Msg("battery status")
}

// loop paces the control cycle at the configured fixed rate regardless of
// per-cycle compute time.
func (c *Controller) loop() {
	defer c.wg.Done()
	interval := time.Duration(c.cfg.Control.LoopIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("control loop started")
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.cycle(now)
		}
	}
}

// cycle runs one control iteration. Ordering is load-bearing: torque is
// evaluated before the decision engine consumes it, and the snapshot is
// published only after the motor command has been handed to the link, so
// telemetry always reflects a command that was at least attempted.
func (c *Controller) cycle(now time.Time) {
	c.drainModeRequests()

	var sample model.TorqueSample
	raw, err := c.sensor.ReadADC()
	if err != nil {
		log.Debug().Err(err).Msg("torque read skipped")
	} else {
		sample = c.sensor.Evaluate(raw)
	}

	metrics := c.counter.Sample(now)
	c.speedAvg.Add(metrics.WheelSpeedKmh)
	metrics.WheelSpeedKmh = c.speedAvg.Avg()

	fb, err := c.link.ReadFeedback()
	if err != nil {
		// Stale feedback is tolerable for one cycle; the previous scalars
		// keep the decision engine and telemetry going.
		log.Warn().Err(err).Msg("motor feedback read failed")
		fb = c.lastFeedback
	} else {
		c.lastFeedback = fb
	}

	cmd := c.engine.Compute(sample, metrics, fb.InputVoltage)

	if err := c.link.SetCurrent(cmd.TargetCurrent); err != nil {
		log.Warn().Err(err).Float64("amps", cmd.TargetCurrent).Msg("motor command failed")
		c.motorEnabled = false
	} else {
		c.motorEnabled = true
	}

	motorPower := abs(fb.MotorCurrent) * fb.InputVoltage
	snap := model.Snapshot{
		Motion:            metrics,
		Torque:            sample,
		Command:           cmd,
		Feedback:          fb,
		MotorRPM:          fb.ERPM / float64(c.cfg.Motor.PolePairs),
		MotorPowerW:       motorPower,
		EfficiencyPct:     assist.Efficiency(cmd.AssistPowerW, motorPower),
		BatteryPercentage: batteryPercent(fb.InputVoltage, c.cfg.Battery),
		Mode:              c.engine.Mode(),
		ModeName:          c.engine.ActiveProfile().Name,
		MotorEnabled:      c.motorEnabled,
		Timestamp:         now,
	}
	if !c.store.Publish(snap) {
		log.Debug().Msg("snapshot publish skipped, lock contended")
	}
}

// drainModeRequests applies all pending mode requests. Emergency stop wins
// over any ordinary change in the same batch.
func (c *Controller) drainModeRequests() {
	emergency := false
	for {
		select {
		case req := <-c.modeReq:
			if req.emergency {
				emergency = true
			} else if !emergency {
				c.engine.ChangeMode(req.index)
			}
		default:
			if emergency {
				c.engine.EmergencyStop()
			}
			return
		}
	}
}

// Stop halts the control loop and zeroes the motor command.
func (c *Controller) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	c.wg.Wait()
	if err := c.link.SetCurrent(0); err != nil {
		log.Warn().Err(err).Msg("failed to zero motor command on stop")
	}
	published, skippedPub, skippedReads := c.store.Stats()
	log.Info().
		Int64("published", published).
		Int64("skipped_publishes", skippedPub).
		Int64("skipped_reads", skippedReads).
		Msg("control loop stopped")
}

// batteryPercent maps input voltage onto the configured charge window.
func batteryPercent(voltage float64, cfg model.BatteryConfig) float64 {
	if voltage >= cfg.FullVoltage {
		return 100
	}
	if voltage <= cfg.CriticalVoltage {
		return 0
	}
	return (voltage - cfg.CriticalVoltage) / (cfg.FullVoltage - cfg.CriticalVoltage) * 100
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
