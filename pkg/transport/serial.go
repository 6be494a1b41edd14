package transport

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// SerialTransport connects to the device over an RS-232 link
// (e.g. /dev/ttyUSB0 or COM3).
type SerialTransport struct {
	device string
	baud   int

	mu   sync.Mutex
	port serial.Port

	closeOnce sync.Once
	closed    chan struct{}

	readBuf [readBufferSize]byte
}

// NewSerialTransport creates a transport for the named serial device.
// baud 0 selects the device default of 115200.
func NewSerialTransport(device string, baud int) *SerialTransport {
	if baud == 0 {
		baud = protocol.DefaultBaudRate
	}
	return &SerialTransport{
		device: device,
		baud:   baud,
		closed: make(chan struct{}),
	}
}

// Connect opens the serial port. The context is accepted for interface
// symmetry; opening a local port does not block on the network.
func (t *SerialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return ErrAlreadyConnected
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: t.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(t.device, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.device, err)
	}

	t.port = port
	return nil
}

// Write sends raw bytes over the serial link.
func (t *SerialTransport) Write(p []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()

	if port == nil {
		return ErrNotConnected
	}
	if _, err := port.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Receive blocks for the next chunk from the serial link.
func (t *SerialTransport) Receive() ([]byte, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()

	if port == nil {
		return nil, ErrNotConnected
	}

	n, err := port.Read(t.readBuf[:])
	if err != nil {
		select {
		case <-t.closed:
			return nil, ErrClosed
		default:
		}
		return nil, fmt.Errorf("read: %w", err)
	}
	return t.readBuf[:n], nil
}

// Close closes the port and unblocks Receive.
func (t *SerialTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		port := t.port
		t.mu.Unlock()
		if port != nil {
			err = port.Close()
		}
	})
	return err
}
