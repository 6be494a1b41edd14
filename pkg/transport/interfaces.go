package transport

import (
	"context"
	"errors"
)

// Transport errors.
var (
	// ErrNotConnected indicates I/O before Connect or after Close.
	ErrNotConnected = errors.New("transport not connected")

	// ErrAlreadyConnected indicates a second Connect on the same instance.
	ErrAlreadyConnected = errors.New("transport already connected")

	// ErrClosed indicates the transport was closed locally.
	ErrClosed = errors.New("transport closed")
)

// Transport is an exclusive byte-stream link to the device. Implementations
// own the underlying socket or serial handle; no other component touches it.
//
// A Transport instance is not restartable: after Close or a receive error
// it is discarded and a fresh instance is created for the next connection
// attempt.
type Transport interface {
	// Connect establishes the link. It may be called at most once.
	Connect(ctx context.Context) error

	// Write sends raw bytes. Safe for concurrent use.
	Write(p []byte) error

	// Receive blocks until the next chunk of raw bytes arrives and
	// returns it. The returned slice is valid only until the next call.
	// Any error (including ErrClosed after a local Close) means the link
	// is down for good.
	Receive() ([]byte, error)

	// Close tears down the link. Safe to call multiple times and
	// concurrently with Receive, which it unblocks.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ Transport = (*TCPTransport)(nil)
	_ Transport = (*SerialTransport)(nil)
)
