package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// readBufferSize is the chunk size handed to Receive callers. Device
// frames are short lines; 4 KB comfortably covers a full enumeration
// burst.
const readBufferSize = 4096

// TCPTransport connects to the device's TCP control port.
type TCPTransport struct {
	host           string
	port           int
	connectTimeout time.Duration

	mu   sync.Mutex // guards conn and closed during setup/teardown
	conn net.Conn

	closeOnce sync.Once
	closed    chan struct{}

	readBuf [readBufferSize]byte
}

// NewTCPTransport creates a transport for host:port. port 0 selects the
// device default.
func NewTCPTransport(host string, port int) *TCPTransport {
	if port == 0 {
		port = protocol.DefaultTCPPort
	}
	return &TCPTransport{
		host:           host,
		port:           port,
		connectTimeout: protocol.DefaultConnectTimeout,
		closed:         make(chan struct{}),
	}
}

// SetConnectTimeout overrides the dial timeout. Must be called before
// Connect.
func (t *TCPTransport) SetConnectTimeout(d time.Duration) {
	t.connectTimeout = d
}

// Connect dials the device.
func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return ErrAlreadyConnected
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.connectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	t.conn = conn
	return nil
}

// Write sends raw bytes to the device.
func (t *TCPTransport) Write(p []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Receive blocks for the next chunk from the device.
func (t *TCPTransport) Receive() ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil, ErrNotConnected
	}

	n, err := conn.Read(t.readBuf[:])
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

// Close tears down the connection and unblocks Receive.
func (t *TCPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

// RemoteAddr returns the peer address, or nil before Connect.
func (t *TCPTransport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}
