// Package model defines shared configuration and telemetry structures used to
// initialize the tailwind controller. It includes control-loop settings,
// sensor calibration constants, assist profile definitions and reporter
// endpoints.
package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the root structure loaded from configs/config.yml.
type Config struct {
	Control   ControlConfig   `yaml:"control"`
	Torque    TorqueConfig    `yaml:"torque"`
	Pas       PasConfig       `yaml:"pas"`
	Assist    AssistConfig    `yaml:"assist"`
	Motor     MotorConfig     `yaml:"motor"`
	Battery   BatteryConfig   `yaml:"battery"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Report    ReportConfig    `yaml:"report"`
	Bridge    BridgeConfig    `yaml:"bridge"`
}

// ControlConfig defines the control task pacing and debug behaviour.
type ControlConfig struct {
	LoopIntervalMs int  `yaml:"loop_interval_ms"` // fixed control cycle period
	Debug          bool `yaml:"debug"`            // simulated sensors, no calibration sampling
}

// TorqueConfig defines the torque sensor ADC window and calibration behaviour.
type TorqueConfig struct {
	Device           string  `yaml:"device"`            // serial sensor shim streaming ADC lines
	Baud             int     `yaml:"baud"`
	Samples          int     `yaml:"samples"`           // calibration sample count
	SampleDelayMs    int     `yaml:"sample_delay_ms"`   // inter-sample delay
	TimeoutMs        int     `yaml:"timeout_ms"`        // calibration wall-clock budget
	ADCMinValid      int     `yaml:"adc_min_valid"`     // below this a sample is rejected
	ADCMaxValid      int     `yaml:"adc_max_valid"`     // above this a sample is rejected
	DefaultReference int     `yaml:"default_reference"` // fallback standstill point
	Threshold        int     `yaml:"threshold"`         // deadband around the reference
	MinBound         int     `yaml:"min_bound"`         // lowest reachable ADC value
	MaxBound         int     `yaml:"max_bound"`         // highest reachable ADC value
	MaxTorqueNm      float64 `yaml:"max_torque_nm"`
}

// PasConfig defines the pedal-assist sensor geometry and stall detection.
type PasConfig struct {
	PulsesPerRev         int     `yaml:"pulses_per_rev"`        // pulses per crank revolution
	WheelCircumferenceM  float64 `yaml:"wheel_circumference_m"` // for speed derivation
	CrankToWheelRatio    float64 `yaml:"crank_to_wheel_ratio"`  // crank revs per wheel rev
	StallTimeoutMs       int     `yaml:"stall_timeout_ms"`      // no edges -> metrics decay to 0
	SpeedSmoothingWindow int     `yaml:"speed_smoothing_window"`
}

// AssistConfig defines the profile table and global assist limits.
type AssistConfig struct {
	SpeedLimitKmh float64         `yaml:"speed_limit_kmh"` // assist cuts off above this
	Profiles      []AssistProfile `yaml:"profiles"`
}

// MotorConfig defines the serial link to the motor controller.
type MotorConfig struct {
	Device    string  `yaml:"device"`
	Baud      int     `yaml:"baud"`
	GearRatio float64 `yaml:"gear_ratio"` // motor revs per wheel rev
	PolePairs int     `yaml:"pole_pairs"` // eRPM = rotor RPM * pole pairs
}

// BatteryConfig defines the voltage window used for the charge gauge.
type BatteryConfig struct {
	FullVoltage     float64 `yaml:"full_voltage"`
	CriticalVoltage float64 `yaml:"critical_voltage"`
}

// TelemetryConfig defines the bounded-wait budgets for the shared snapshot.
type TelemetryConfig struct {
	PublishTimeoutMs int `yaml:"publish_timeout_ms"`
	ReadTimeoutMs    int `yaml:"read_timeout_ms"`
}

// ReportConfig defines the reporting channels reading the snapshot.
type ReportConfig struct {
	HTTPAddr     string     `yaml:"http_addr"`
	UpdateRateMs int        `yaml:"update_rate_ms"` // reporter cadence
	MQTT         MQTTConfig `yaml:"mqtt"`
	RideLogPath  string     `yaml:"ride_log_path"` // bbolt file, empty disables
	RideLogEvery int        `yaml:"ride_log_every_ms"`
}

// MQTTConfig defines the optional MQTT telemetry channel.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables the publisher
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// BridgeConfig defines the host-facing side of the pass-through bridge mode.
// Bridge mode and assist mode are mutually exclusive boot modes.
type BridgeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	HostDevice string `yaml:"host_device"`
	HostBaud   int    `yaml:"host_baud"`
}

// LoadConfig reads the YAML configuration at path and fills defaults for
// anything left unset.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.FillDefaults()
	return &cfg, nil
}

// FillDefaults replaces zero values with the built-in defaults so a partial
// configuration file is always usable.
func (c *Config) FillDefaults() {
	if c.Control.LoopIntervalMs == 0 {
		c.Control.LoopIntervalMs = 100
	}
	if c.Torque.Baud == 0 {
		c.Torque.Baud = 115200
	}
	if c.Torque.Samples == 0 {
		c.Torque.Samples = 40
	}
	if c.Torque.SampleDelayMs == 0 {
		c.Torque.SampleDelayMs = 50
	}
	if c.Torque.TimeoutMs == 0 {
		c.Torque.TimeoutMs = 5000
	}
	if c.Torque.ADCMinValid == 0 {
		c.Torque.ADCMinValid = 100
	}
	if c.Torque.ADCMaxValid == 0 {
		c.Torque.ADCMaxValid = 3995
	}
	if c.Torque.DefaultReference == 0 {
		c.Torque.DefaultReference = 2048
	}
	if c.Torque.Threshold == 0 {
		c.Torque.Threshold = 50
	}
	if c.Torque.MaxBound == 0 {
		c.Torque.MaxBound = 4095
	}
	if c.Torque.MaxTorqueNm == 0 {
		c.Torque.MaxTorqueNm = 50
	}
	if c.Pas.PulsesPerRev == 0 {
		c.Pas.PulsesPerRev = 12
	}
	if c.Pas.WheelCircumferenceM == 0 {
		c.Pas.WheelCircumferenceM = 2.2
	}
	if c.Pas.CrankToWheelRatio == 0 {
		c.Pas.CrankToWheelRatio = 1.0
	}
	if c.Pas.StallTimeoutMs == 0 {
		c.Pas.StallTimeoutMs = 1500
	}
	if c.Pas.SpeedSmoothingWindow == 0 {
		c.Pas.SpeedSmoothingWindow = 6
	}
	if c.Assist.SpeedLimitKmh == 0 {
		c.Assist.SpeedLimitKmh = 25
	}
	if len(c.Assist.Profiles) == 0 {
		c.Assist.Profiles = DefaultProfiles()
	}
	if c.Motor.Baud == 0 {
		c.Motor.Baud = 115200
	}
	if c.Motor.GearRatio == 0 {
		c.Motor.GearRatio = 1.0
	}
	if c.Motor.PolePairs == 0 {
		c.Motor.PolePairs = 23
	}
	if c.Battery.FullVoltage == 0 {
		c.Battery.FullVoltage = 42.0
	}
	if c.Battery.CriticalVoltage == 0 {
		c.Battery.CriticalVoltage = 33.0
	}
	if c.Telemetry.PublishTimeoutMs == 0 {
		c.Telemetry.PublishTimeoutMs = 10
	}
	if c.Telemetry.ReadTimeoutMs == 0 {
		c.Telemetry.ReadTimeoutMs = 50
	}
	if c.Report.HTTPAddr == "" {
		c.Report.HTTPAddr = ":8080"
	}
	if c.Report.UpdateRateMs == 0 {
		c.Report.UpdateRateMs = 500
	}
	if c.Report.RideLogEvery == 0 {
		c.Report.RideLogEvery = 5000
	}
	if c.Report.MQTT.Port == 0 {
		c.Report.MQTT.Port = 1883
	}
	if c.Report.MQTT.ClientID == "" {
		c.Report.MQTT.ClientID = "tailwind"
	}
	if c.Report.MQTT.Topic == "" {
		c.Report.MQTT.Topic = "ebike/tailwind/telemetry"
	}
	if c.Bridge.HostBaud == 0 {
		c.Bridge.HostBaud = 115200
	}
}
