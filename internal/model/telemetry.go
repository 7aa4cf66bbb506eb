package model

import "time"

// TorqueSample is the per-cycle output of the torque sensor evaluation.
type TorqueSample struct {
	RawADC    int     `json:"raw_adc"`
	Deviation int     `json:"deviation"` // signed distance from the calibrated reference
	TorqueNm  float64 `json:"torque_nm"` // always within [0, max_torque_nm]
}

// MotionMetrics holds cadence and speed derived from accumulated pedal pulses.
type MotionMetrics struct {
	CadenceRPM    float64 `json:"cadence_rpm"`
	WheelSpeedKmh float64 `json:"wheel_speed_kmh"`
}

// AssistCommand is the per-cycle output of the decision engine, forwarded to
// the motor controller before it is folded into the snapshot.
type AssistCommand struct {
	TargetCurrent float64 `json:"target_current"` // amps
	HumanPowerW   float64 `json:"human_power_w"`
	AssistPowerW  float64 `json:"assist_power_w"`
}

// MotorFeedback carries the scalar values streamed back from the motor
// controller. The wire framing behind these values is opaque to the core.
type MotorFeedback struct {
	ERPM          float64 `json:"erpm"`
	DutyCycle     float64 `json:"duty_cycle"`
	InputVoltage  float64 `json:"input_voltage"`
	MotorCurrent  float64 `json:"motor_current"`
	TempMosfet    float64 `json:"temp_mosfet"`
	TempMotor     float64 `json:"temp_motor"`
	AmpHours      float64 `json:"amp_hours"`
	WattHours     float64 `json:"watt_hours"`
}

// Snapshot is the externally visible aggregate of fused sensor and motor
// state. It has a single writer (the control task) and any number of readers;
// fields are only ever updated as a whole.
type Snapshot struct {
	Motion   MotionMetrics `json:"motion"`
	Torque   TorqueSample  `json:"torque"`
	Command  AssistCommand `json:"command"`
	Feedback MotorFeedback `json:"feedback"`

	MotorRPM          float64   `json:"motor_rpm"` // rotor RPM derived from eRPM
	MotorPowerW       float64   `json:"motor_power_w"`
	EfficiencyPct     float64   `json:"efficiency_pct"`
	BatteryPercentage float64   `json:"battery_percentage"`
	Mode              int       `json:"mode"`
	ModeName          string    `json:"mode_name"`
	MotorEnabled      bool      `json:"motor_enabled"`
	Timestamp         time.Time `json:"timestamp"`
}
