// Package assist implements the assist decision engine: it combines
// calibrated torque and cadence into human power, applies the active assist
// profile and produces the motor current command for each control cycle.
package assist

import (
	"math"

	"github.com/rs/zerolog/log"

	"tailwind/internal/model"
)

// Engine holds the profile table and the active mode selection. The control
// task is the only mutator; requests from other tasks reach it through the
// controller's request channel.
type Engine struct {
	cfg      model.AssistConfig
	profiles []model.AssistProfile
	mode     int
}

// NewEngine creates an Engine with the configured profile table. The initial
// mode is the no-assist profile.
func NewEngine(cfg model.AssistConfig) *Engine {
	e := &Engine{cfg: cfg, profiles: cfg.Profiles}
	e.mode = e.noAssistIndex()
	return e
}

// Profiles returns the read-only profile table.
func (e *Engine) Profiles() []model.AssistProfile {
	return e.profiles
}

// Mode returns the active profile index.
func (e *Engine) Mode() int {
	return e.mode
}

// ActiveProfile returns the currently selected profile.
func (e *Engine) ActiveProfile() model.AssistProfile {
	return e.profiles[e.mode]
}

// ChangeMode selects a new active profile. Out-of-range indices are rejected
// without touching state; the request is logged and dropped, never propagated
// as a hard error.
func (e *Engine) ChangeMode(index int) bool {
	if index < 0 || index >= len(e.profiles) {
		log.Warn().Int("requested", index).Int("profiles", len(e.profiles)).Msg("invalid mode request rejected")
		return false
	}
	e.mode = index
	log.Info().Int("mode", index).Str("name", e.profiles[index].Name).Msg("assist mode changed")
	return true
}

// EmergencyStop overrides any selection with the no-assist profile.
func (e *Engine) EmergencyStop() {
	idx := e.noAssistIndex()
	e.mode = idx
	log.Warn().Int("mode", idx).Str("name", e.profiles[idx].Name).Msg("emergency stop, assist disabled")
}

// noAssistIndex finds the profile named "No Assist", falling back to the
// profile with the lowest factor.
func (e *Engine) noAssistIndex() int {
	for i, p := range e.profiles {
		if p.Name == "No Assist" {
			return i
		}
	}
	best := 0
	for i, p := range e.profiles {
		if p.Factor < e.profiles[best].Factor {
			best = i
		}
	}
	return best
}

// Compute derives the per-cycle assist command. Human power is crank torque
// times angular velocity; assist power follows the active profile's factor and
// is converted into a target current against the battery voltage, capped at
// the profile's current limit. Assist is cut above the configured speed limit
// and when the rider is not pedaling.
func (e *Engine) Compute(sample model.TorqueSample, metrics model.MotionMetrics, voltage float64) model.AssistCommand {
	omega := 2.0 * math.Pi * metrics.CadenceRPM / 60.0
	human := sample.TorqueNm * omega

	cmd := model.AssistCommand{HumanPowerW: human}

	profile := e.ActiveProfile()
	if profile.Factor <= 0 || human <= 0 {
		return cmd
	}
	if metrics.WheelSpeedKmh > e.cfg.SpeedLimitKmh {
		return cmd
	}

	assistW := human * profile.Factor
	if voltage <= 0 {
		return cmd
	}
	current := assistW / voltage
	if current > profile.MaxCurrent {
		current = profile.MaxCurrent
		assistW = current * voltage
	}

	cmd.AssistPowerW = assistW
	cmd.TargetCurrent = current
	return cmd
}

// Efficiency returns assist power as a percentage of motor electrical power,
// or 0 when the motor draws no power.
func Efficiency(assistW, motorW float64) float64 {
	if motorW <= 0 {
		return 0
	}
	return assistW / motorW * 100.0
}
