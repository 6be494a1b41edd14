// Package transport provides the byte-stream link to the device.
//
// Two transports are supported:
//   - TCP to the device's control port (default 84)
//   - a serial link via go.bug.st/serial (default 115200 baud)
//
// A Transport is single-use: it connects once, delivers raw byte chunks
// until the link fails or is closed, and is then discarded. Reconnection
// creates a fresh Transport (see package connection). The transport does
// not retry internally and performs no framing; decoding lines out of the
// chunk stream is the protocol decoder's job.
package transport
