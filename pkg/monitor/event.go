package monitor

import (
	"time"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// Event is one observed protocol occurrence. CBOR encoding uses integer
// keys for compactness in capture files.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the physical connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates frame flow. Meaningful for Frame events only.
	Direction Direction `cbor:"3,keyasint"`

	// Type-specific payload; exactly one is set.
	Frame       *FrameEvent       `cbor:"4,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"5,keyasint,omitempty"`
	Error       *ErrorEvent       `cbor:"6,keyasint,omitempty"`
}

// Direction indicates the direction of frame flow.
type Direction uint8

const (
	// DirectionIn is device to controller.
	DirectionIn Direction = 0

	// DirectionOut is controller to device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "RX"
	case DirectionOut:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one wire frame. For outbound frames Kind is always
// FrameStatus (commands carry the status sentinel).
type FrameEvent struct {
	// Kind is the frame classification.
	Kind protocol.FrameKind `cbor:"1,keyasint"`

	// Payload is the frame text without sentinel and terminator.
	Payload string `cbor:"2,keyasint"`
}

// StateChangeEvent captures a connection state transition.
type StateChangeEvent struct {
	// OldState is the previous state name (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state name.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change, if known.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEvent captures a link or decode error.
type ErrorEvent struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context describes the operation that failed.
	Context string `cbor:"2,keyasint,omitempty"`
}

// FrameOut builds an outbound frame event.
func FrameOut(connID, payload string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionOut,
		Frame:        &FrameEvent{Kind: protocol.FrameStatus, Payload: payload},
	}
}

// FrameIn builds an inbound frame event.
func FrameIn(connID string, f protocol.Frame) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionIn,
		Frame:        &FrameEvent{Kind: f.Kind, Payload: f.Payload},
	}
}

// StateChange builds a connection state transition event.
func StateChange(connID, oldState, newState, reason string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		StateChange:  &StateChangeEvent{OldState: oldState, NewState: newState, Reason: reason},
	}
}

// LinkError builds an error event.
func LinkError(connID, context string, err error) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Error:        &ErrorEvent{Message: err.Error(), Context: context},
	}
}
