package monitor

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

func TestEncodeDecodeEvent(t *testing.T) {
	event := FrameIn("conn-1", protocol.Frame{Kind: protocol.FrameStatus, Payload: "VOL(-350)"})

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}

	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if got.ConnectionID != "conn-1" {
		t.Errorf("ConnectionID = %q", got.ConnectionID)
	}
	if got.Direction != DirectionIn {
		t.Errorf("Direction = %v", got.Direction)
	}
	if got.Frame == nil || got.Frame.Payload != "VOL(-350)" {
		t.Errorf("Frame = %+v", got.Frame)
	}
	if got.StateChange != nil || got.Error != nil {
		t.Error("unexpected payloads set")
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap.cbor")

	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	l.Log(FrameOut("conn-1", "POWER?"))
	l.Log(FrameIn("conn-1", protocol.Frame{Kind: protocol.FrameStatus, Payload: "POWER(1)"}))
	l.Log(StateChange("conn-1", "CONNECTED", "RECONNECTING", "read: EOF"))
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Logging after Close is a no-op, not a panic.
	l.Log(FrameOut("conn-1", "late"))

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	events, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Direction != DirectionOut || events[0].Frame.Payload != "POWER?" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Frame.Kind != protocol.FrameStatus {
		t.Errorf("event 1 kind = %v", events[1].Frame.Kind)
	}
	if events[2].StateChange == nil || events[2].StateChange.NewState != "RECONNECTING" {
		t.Errorf("event 2 = %+v", events[2])
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next after ReadAll = %v, want io.EOF", err)
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b []Event
	ml := NewMultiLogger(
		loggerFunc(func(e Event) { a = append(a, e) }),
		loggerFunc(func(e Event) { b = append(b, e) }),
	)

	ml.Log(FrameOut("c", "VOL?"))
	if len(a) != 1 || len(b) != 1 {
		t.Errorf("fan-out = %d/%d, want 1/1", len(a), len(b))
	}
}

// loggerFunc adapts a function to the Logger interface.
type loggerFunc func(Event)

func (f loggerFunc) Log(e Event) { f(e) }

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a := NewSlogAdapter(logger)
	a.Log(FrameIn("conn-9", protocol.Frame{Kind: protocol.FrameEcho, Payload: "MUTEON"}))

	out := buf.String()
	for _, want := range []string{"conn-9", "ECHO", "MUTEON", "RX"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}
