// Package motor implements the command link to the motor controller: a
// serial implementation, a deterministic simulated link for debug mode and
// tests, and the pass-through bridge mode that hands the physical port to a
// host tool. The controller core only ever exchanges scalar values through
// the Link interface; everything about the wire lives here.
package motor

import "tailwind/internal/model"

// Link is the motor controller collaborator as seen by the control task:
// send a target current, read back feedback scalars.
type Link interface {
	// SetCurrent commands the motor to the given current in amps.
	SetCurrent(amps float64) error

	// ReadFeedback requests and returns the latest feedback scalars.
	ReadFeedback() (model.MotorFeedback, error)

	// Close releases the underlying transport.
	Close() error
}
