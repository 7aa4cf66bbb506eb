package motor

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	serial "go.bug.st/serial"
)

// Bridge is a raw, unbuffered bidirectional byte relay between a host-facing
// port and the motor controller port. It gives a host tool exclusive direct
// access to the controller; bridge mode and the assist controller are
// mutually exclusive boot modes, never concurrent.
type Bridge struct {
	host  io.ReadWriteCloser
	motor io.ReadWriteCloser

	hostToMotor atomic.Uint64 // bytes forwarded host -> motor
	motorToHost atomic.Uint64 // bytes forwarded motor -> host

	stop    chan struct{}
	wg      sync.WaitGroup
	started time.Time
}

// NewBridge wires a relay between the two transports.
func NewBridge(host, motor io.ReadWriteCloser) *Bridge {
	return &Bridge{host: host, motor: motor, stop: make(chan struct{})}
}

// OpenBridge opens both serial ports and returns a ready relay.
func OpenBridge(hostDev string, hostBaud int, motorDev string, motorBaud int) (*Bridge, error) {
	host, err := serial.Open(hostDev, &serial.Mode{BaudRate: hostBaud})
	if err != nil {
		return nil, fmt.Errorf("open host port %s: %w", hostDev, err)
	}
	motorPort, err := serial.Open(motorDev, &serial.Mode{BaudRate: motorBaud})
	if err != nil {
		_ = host.Close()
		return nil, fmt.Errorf("open motor port %s: %w", motorDev, err)
	}
	return NewBridge(host, motorPort), nil
}

// Start launches the two forwarding loops and the stats ticker.
func (b *Bridge) Start() {
	b.started = time.Now()
	log.Info().Msg("bridge mode active, forwarding host <-> motor")

	b.wg.Add(3)
	go b.forward(b.host, b.motor, &b.hostToMotor, "host->motor")
	go b.forward(b.motor, b.host, &b.motorToHost, "motor->host")
	go b.statsLoop()
}

// forward copies bytes from src to dst until either side fails or the bridge
// stops. No buffering beyond the copy chunk: the relay must stay transparent.
func (b *Bridge) forward(src io.Reader, dst io.Writer, counter *atomic.Uint64, dir string) {
	defer b.wg.Done()
	buf := make([]byte, 512)
	for {
		select {
		case <-b.stop:
			return
		default:
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				log.Warn().Err(werr).Str("dir", dir).Msg("bridge write failed")
				return
			}
			counter.Add(uint64(n))
		}
		if err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Str("dir", dir).Msg("bridge read failed")
			}
			return
		}
	}
}

func (b *Bridge) statsLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			toMotor, toHost := b.Stats()
			log.Info().
				Uint64("host_to_motor", toMotor).
				Uint64("motor_to_host", toHost).
				Dur("uptime", time.Since(b.started)).
				Msg("bridge stats")
		}
	}
}

// Stats returns the forwarded byte counters.
func (b *Bridge) Stats() (hostToMotor, motorToHost uint64) {
	return b.hostToMotor.Load(), b.motorToHost.Load()
}

// Stop closes both transports and waits for the loops to drain.
func (b *Bridge) Stop() {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	_ = b.host.Close()
	_ = b.motor.Close()
	b.wg.Wait()

	toMotor, toHost := b.Stats()
	log.Info().
		Uint64("host_to_motor", toMotor).
		Uint64("motor_to_host", toHost).
		Msg("bridge stopped")
}
