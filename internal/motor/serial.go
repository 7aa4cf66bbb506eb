package motor

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	serial "go.bug.st/serial"

	"tailwind/internal/model"
)

// SerialLink implements Link over a physical serial port using
// go.bug.st/serial.
type SerialLink struct {
	port        serial.Port
	r           *bufio.Reader
	readTimeout time.Duration
}

// OpenSerialLink opens the motor controller port at the given path and
// baudrate.
func OpenSerialLink(device string, baud int, readTimeout time.Duration) (*SerialLink, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open motor port %s: %w", device, err)
	}
	return &SerialLink{port: p, r: bufio.NewReader(p), readTimeout: readTimeout}, nil
}

// SetCurrent writes a current command line.
func (l *SerialLink) SetCurrent(amps float64) error {
	return l.writeLine(EncodeCurrent(amps))
}

// ReadFeedback requests the feedback scalars and parses the reply line.
func (l *SerialLink) ReadFeedback() (model.MotorFeedback, error) {
	if err := l.writeLine("GET"); err != nil {
		return model.MotorFeedback{}, err
	}
	line, err := l.readLine(l.readTimeout)
	if err != nil {
		return model.MotorFeedback{}, err
	}
	return DecodeFeedback(line)
}

// Close closes the underlying serial port.
func (l *SerialLink) Close() error {
	if l.port == nil {
		return nil
	}
	return l.port.Close()
}

func (l *SerialLink) writeLine(line string) error {
	_, err := l.port.Write(append([]byte(line), '\n'))
	return err
}

// readLine reads a single line from the port with optional timeout.
func (l *SerialLink) readLine(timeout time.Duration) (string, error) {
	ch := make(chan struct {
		line string
		err  error
	}, 1)

	go func() {
		line, err := l.r.ReadString('\n')
		ch <- struct {
			line string
			err  error
		}{line, err}
	}()

	if timeout <= 0 {
		res := <-ch
		return res.line, res.err
	}

	select {
	case res := <-ch:
		return res.line, res.err
	case <-time.After(timeout):
		return "", errors.New("read timeout")
	}
}
