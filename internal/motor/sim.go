package motor

import (
	"math"
	"sync"

	"tailwind/internal/model"
)

// SimLink is a deterministic in-memory motor controller used in debug mode
// and tests. The rotor follows the commanded current with a first-order lag.
type SimLink struct {
	mu      sync.Mutex
	target  float64
	erpm    float64
	voltage float64
	ah      float64
	wh      float64
	closed  bool
}

// NewSimLink creates a simulated motor controller at the given battery
// voltage.
func NewSimLink(voltage float64) *SimLink {
	return &SimLink{voltage: voltage}
}

// SetCurrent records the commanded current.
func (s *SimLink) SetCurrent(amps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = amps
	return nil
}

// Target returns the last commanded current.
func (s *SimLink) Target() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// ReadFeedback steps the motor model once and returns the resulting scalars.
func (s *SimLink) ReadFeedback() (model.MotorFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 500 eRPM per amp steady state, approached at 20% per read.
	steady := s.target * 500.0
	s.erpm += (steady - s.erpm) * 0.2

	duty := s.erpm / 20000.0
	if duty > 0.95 {
		duty = 0.95
	}
	s.ah += math.Abs(s.target) / 36000.0
	s.wh = s.ah * s.voltage

	return model.MotorFeedback{
		ERPM:         s.erpm,
		DutyCycle:    duty,
		InputVoltage: s.voltage,
		MotorCurrent: s.target,
		TempMosfet:   35.0,
		TempMotor:    30.0,
		AmpHours:     s.ah,
		WattHours:    s.wh,
	}, nil
}

// Close marks the link closed.
func (s *SimLink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
