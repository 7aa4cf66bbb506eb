package motor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tailwind/internal/model"
)

// Line wire format spoken by the serial link firmware shim:
//
//	command (controller -> motor):  CUR,<amps>
//	request (controller -> motor):  GET
//	feedback (motor -> controller): VAL,ERPM,DUTY,VOLT,CUR,TFET,TMOT,AH,WH

// EncodeCurrent builds a current command line.
func EncodeCurrent(amps float64) string {
	return fmt.Sprintf("CUR,%.2f", amps)
}

// DecodeFeedback parses a feedback line into MotorFeedback.
// Returns an error on invalid format.
func DecodeFeedback(line string) (model.MotorFeedback, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 9 {
		return model.MotorFeedback{}, fmt.Errorf("expected 9 fields, got %d", len(fields))
	}
	if fields[0] != "VAL" {
		return model.MotorFeedback{}, errors.New("not a feedback line")
	}

	vals := make([]float64, 8)
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return model.MotorFeedback{}, fmt.Errorf("invalid field %d: %q", i+1, fields[i+1])
		}
		vals[i] = v
	}

	return model.MotorFeedback{
		ERPM:         vals[0],
		DutyCycle:    vals[1],
		InputVoltage: vals[2],
		MotorCurrent: vals[3],
		TempMosfet:   vals[4],
		TempMotor:    vals[5],
		AmpHours:     vals[6],
		WattHours:    vals[7],
	}, nil
}

// EncodeFeedback builds a feedback line from MotorFeedback. Used by the
// simulated link and by loopback tests.
func EncodeFeedback(f model.MotorFeedback) string {
	return fmt.Sprintf("VAL,%.1f,%.3f,%.2f,%.2f,%.1f,%.1f,%.3f,%.3f",
		f.ERPM, f.DutyCycle, f.InputVoltage, f.MotorCurrent,
		f.TempMosfet, f.TempMotor, f.AmpHours, f.WattHours)
}
