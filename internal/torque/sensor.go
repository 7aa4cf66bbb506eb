// Package torque implements torque sensor acquisition: a boot-time no-load
// calibration that establishes the standstill reference point, and the
// per-cycle evaluation that turns raw ADC readings into crank torque.
package torque

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tailwind/internal/model"
)

// ADCReader returns one raw sample from the torque sensor ADC.
type ADCReader func() (int, error)

// Calibration is the result of the boot-time reference measurement. It is
// written once and read-only afterwards.
type Calibration struct {
	Reference   int  // calibrated standstill ADC value
	Complete    bool // always true after Calibrate returns
	SampleCount int  // valid samples that went into the mean
	Degraded    bool // fell back to the default reference
}

// Sensor evaluates torque relative to a calibrated standstill point.
type Sensor struct {
	cfg model.TorqueConfig
	adc ADCReader
	cal Calibration
}

// NewSensor creates a Sensor reading from adc. Calibrate must run before the
// first Evaluate in normal operation.
func NewSensor(cfg model.TorqueConfig, adc ADCReader) *Sensor {
	return &Sensor{cfg: cfg, adc: adc}
}

// ReadADC takes one raw sample from the underlying ADC.
func (s *Sensor) ReadADC() (int, error) {
	return s.adc()
}

// Calibration returns the current calibration state.
func (s *Sensor) Calibration() Calibration {
	return s.cal
}

// CalibrateDefault skips live sampling and installs the default reference
// immediately. Used in debug/simulation mode.
func (s *Sensor) CalibrateDefault() {
	s.cal = Calibration{Reference: s.cfg.DefaultReference, Complete: true}
	log.Info().Int("reference", s.cal.Reference).Msg("torque calibration skipped, using default")
}

// Calibrate takes the configured number of ADC samples at a fixed delay,
// rejecting near-rail values, and sets the reference to the mean of the valid
// samples when at least half of them are valid. On insufficient valid samples
// or when the wall-clock budget runs out it falls back to the default
// reference. Calibration never fails destructively: it always ends complete,
// possibly degraded.
func (s *Sensor) Calibrate(ctx context.Context) Calibration {
	deadline := time.Now().Add(time.Duration(s.cfg.TimeoutMs) * time.Millisecond)
	delay := time.Duration(s.cfg.SampleDelayMs) * time.Millisecond

	var total int64
	valid := 0
sampling:
	for i := 0; i < s.cfg.Samples; i++ {
		if time.Now().After(deadline) {
			log.Warn().Int("taken", i).Msg("torque calibration timeout")
			break
		}
		select {
		case <-ctx.Done():
			log.Warn().Msg("torque calibration cancelled")
			break sampling
		default:
		}

		reading, err := s.adc()
		if err != nil {
			log.Warn().Err(err).Int("sample", i+1).Msg("torque calibration read failed")
		} else if reading >= s.cfg.ADCMinValid && reading <= s.cfg.ADCMaxValid {
			total += int64(reading)
			valid++
		} else {
			log.Debug().Int("sample", i+1).Int("adc", reading).Msg("torque calibration sample out of range")
		}
		time.Sleep(delay)
	}

	if valid >= s.cfg.Samples/2 && valid > 0 {
		s.cal = Calibration{
			Reference:   int(total / int64(valid)),
			Complete:    true,
			SampleCount: valid,
		}
		log.Info().
			Int("valid", valid).
			Int("requested", s.cfg.Samples).
			Int("reference", s.cal.Reference).
			Int("drift", s.cal.Reference-s.cfg.DefaultReference).
			Msg("torque calibration complete")
	} else {
		s.cal = Calibration{
			Reference:   s.cfg.DefaultReference,
			Complete:    true,
			SampleCount: valid,
			Degraded:    true,
		}
		log.Warn().
			Int("valid", valid).
			Int("requested", s.cfg.Samples).
			Int("reference", s.cal.Reference).
			Msg("torque calibration degraded, using default reference")
	}
	return s.cal
}

// Evaluate computes a TorqueSample from one raw ADC reading. The deviation
// from the calibrated reference is taken as an absolute value: the sensor
// cannot distinguish forward from backward pedal loading, so only intensity
// is used. Deviations inside the deadband yield exactly zero torque; larger
// deviations scale linearly against the larger of the two possible excursion
// ranges and the result is clamped to [0, MaxTorqueNm].
func (s *Sensor) Evaluate(raw int) model.TorqueSample {
	deviation := raw - s.cal.Reference
	abs := deviation
	if abs < 0 {
		abs = -abs
	}

	var nm float64
	if abs >= s.cfg.Threshold {
		maxDeviation := s.cal.Reference - s.cfg.MinBound
		if d := s.cfg.MaxBound - s.cal.Reference; d > maxDeviation {
			maxDeviation = d
		}
		if maxDeviation > 0 {
			nm = float64(abs) / float64(maxDeviation) * s.cfg.MaxTorqueNm
		}
	}

	if nm > s.cfg.MaxTorqueNm {
		nm = s.cfg.MaxTorqueNm
	}
	if nm < 0 {
		nm = 0
	}

	return model.TorqueSample{RawADC: raw, Deviation: deviation, TorqueNm: nm}
}
