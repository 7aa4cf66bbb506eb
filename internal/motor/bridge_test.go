package motor

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestBridgeForwardsBothDirections(t *testing.T) {
	hostNear, hostFar := net.Pipe()
	motorNear, motorFar := net.Pipe()

	b := NewBridge(hostNear, motorNear)
	b.Start()
	defer b.Stop()

	// Host tool writes a frame; it must appear verbatim on the motor side.
	frame := []byte{0x02, 0x05, 0x04, 0x00, 0x00, 0x00, 0x00, 0xAB, 0x03}
	go func() { _, _ = hostFar.Write(frame) }()

	got := make([]byte, len(frame))
	_ = motorFar.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := io.ReadFull(motorFar, got); err != nil {
		t.Fatalf("motor side read: %v", err)
	}
	for i := range frame {
		if got[i] != frame[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], frame[i])
		}
	}

	// Motor replies; host side must receive it unchanged.
	reply := []byte{0x02, 0x01, 0x41, 0x9A, 0x42, 0x03}
	go func() { _, _ = motorFar.Write(reply) }()

	got = make([]byte, len(reply))
	_ = hostFar.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := io.ReadFull(hostFar, got); err != nil {
		t.Fatalf("host side read: %v", err)
	}

	toMotor, toHost := b.Stats()
	if toMotor != uint64(len(frame)) || toHost != uint64(len(reply)) {
		t.Errorf("stats = %d/%d, want %d/%d", toMotor, toHost, len(frame), len(reply))
	}
}
