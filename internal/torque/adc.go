package torque

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	serial "go.bug.st/serial"

	"tailwind/internal/model"
)

// SerialADC reads torque sensor samples from a serial-attached sensor shim
// that streams lines of the form "ADC,<value>". The latest value is cached so
// the control task never blocks on the port.
type SerialADC struct {
	port serial.Port
	r    *bufio.Reader

	last  atomic.Int64 // latest sample, -1 until the first line arrives
	stop  chan struct{}
	wg    sync.WaitGroup
}

// OpenSerialADC opens the sensor port and starts the background reader.
func OpenSerialADC(device string, baud int) (*SerialADC, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open adc port %s: %w", device, err)
	}
	a := &SerialADC{port: p, r: bufio.NewReader(p), stop: make(chan struct{})}
	a.last.Store(-1)
	a.wg.Add(1)
	go a.loop()
	return a, nil
}

func (a *SerialADC) loop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		default:
		}
		line, err := a.r.ReadString('\n')
		if err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		v, err := parseADCLine(line)
		if err != nil {
			log.Debug().Err(err).Str("line", strings.TrimSpace(line)).Msg("bad adc line")
			continue
		}
		a.last.Store(int64(v))
	}
}

// Read returns the most recent sample. It errors until the shim has sent at
// least one valid line.
func (a *SerialADC) Read() (int, error) {
	v := a.last.Load()
	if v < 0 {
		return 0, errors.New("no adc sample received yet")
	}
	return int(v), nil
}

// Reader adapts the cache to the ADCReader seam.
func (a *SerialADC) Reader() ADCReader {
	return a.Read
}

// Close stops the reader and closes the port.
func (a *SerialADC) Close() error {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	err := a.port.Close()
	a.wg.Wait()
	return err
}

func parseADCLine(line string) (int, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 2 || fields[0] != "ADC" {
		return 0, errors.New("not an adc line")
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid adc value %q", fields[1])
	}
	return v, nil
}

// SimADC returns a simulated rider: a slow sinusoidal pedal effort around the
// default reference. Used in debug mode instead of live sampling.
func SimADC(cfg model.TorqueConfig) ADCReader {
	start := time.Now()
	maxDeviation := cfg.MaxBound - cfg.DefaultReference
	return func() (int, error) {
		phase := time.Since(start).Seconds() / 4.0 * 2.0 * math.Pi
		effort := (math.Sin(phase) + 1.0) / 2.0 // 0..1
		return cfg.DefaultReference + int(effort*float64(maxDeviation)*0.6), nil
	}
}
