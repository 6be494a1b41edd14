package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/p100-protocol/p100-go/pkg/protocol"
	"github.com/p100-protocol/p100-go/pkg/state"
)

// fakeSender records written frames and can be made to fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, string(data))
	return s.err
}

func (s *fakeSender) last(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return s.sent[len(s.sent)-1]
}

func newTestCorrelator(sender *fakeSender) (*Correlator, *state.Cache) {
	cache := state.NewCache()
	c := NewCorrelator(sender, cache, nil)
	c.HandleConnected()
	return c, cache
}

func status(payload string) protocol.Frame {
	return protocol.Frame{Kind: protocol.FrameStatus, Payload: payload}
}

func TestSubmitNoReply(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestCorrelator(sender)

	payloads, err := c.Submit(context.Background(), protocol.PowerOn(protocol.ZoneMain))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if payloads != nil {
		t.Errorf("payloads = %v, want nil", payloads)
	}
	if got, want := sender.last(t), "!POWERONMAIN\r"; got != want {
		t.Errorf("sent %q, want %q", got, want)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v after no-reply command", c.State())
	}
}

func TestSubmitQueryResolvesOnMatch(t *testing.T) {
	sender := &fakeSender{}
	c, cache := newTestCorrelator(sender)

	done := make(chan struct{})
	var payloads []string
	var submitErr error
	go func() {
		defer close(done)
		payloads, submitErr = c.Submit(context.Background(), protocol.VolumeQuery(protocol.ZoneMain))
	}()

	waitForState(t, c, StateAwaiting)

	// An interleaved unrelated status frame belongs to the cache, not to
	// the pending reply.
	c.HandleFrame(status("POWER(1)"))
	if c.State() != StateAwaiting {
		t.Fatal("unrelated frame consumed the in-flight slot")
	}

	c.HandleFrame(status("VOL(-350)"))
	<-done

	if submitErr != nil {
		t.Fatalf("Submit: %v", submitErr)
	}
	if len(payloads) != 1 || payloads[0] != "VOL(-350)" {
		t.Fatalf("payloads = %v", payloads)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v after resolution", c.State())
	}

	snap := cache.Snapshot()
	if snap.Main.Power != protocol.PowerStateOn {
		t.Error("unsolicited POWER(1) not applied to cache")
	}
	if snap.Main.VolumeDB != -35.0 {
		t.Errorf("cache volume = %v, want -35.0", snap.Main.VolumeDB)
	}
}

func TestSubmitCountedList(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestCorrelator(sender)

	done := make(chan struct{})
	var payloads []string
	var submitErr error
	go func() {
		defer close(done)
		payloads, submitErr = c.Submit(context.Background(), protocol.SourceListQuery())
	}()

	waitForState(t, c, StateAwaiting)

	c.HandleFrame(status(`SRCCOUNT(3)`))
	c.HandleFrame(status(`SRC(0)"CD"`))
	// Unsolicited volume push mid-enumeration must not end the list.
	c.HandleFrame(status("VOL(-200)"))
	c.HandleFrame(status(`SRC(1)"DVD Player"`))
	c.HandleFrame(status(`SRC(2)"Tuner"`))
	<-done

	if submitErr != nil {
		t.Fatalf("Submit: %v", submitErr)
	}
	want := []string{`SRCCOUNT(3)`, `SRC(0)"CD"`, `SRC(1)"DVD Player"`, `SRC(2)"Tuner"`}
	if len(payloads) != len(want) {
		t.Fatalf("payloads = %v", payloads)
	}
	for i := range want {
		if payloads[i] != want[i] {
			t.Errorf("payloads[%d] = %q, want %q", i, payloads[i], want[i])
		}
	}
}

func TestSubmitTimeout(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestCorrelator(sender)

	cmd := protocol.VolumeQuery(protocol.ZoneMain)
	cmd.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := c.Submit(context.Background(), cmd)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("resolved after %v, before the deadline", elapsed)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v after timeout", c.State())
	}

	// A late reply for the expired command is just an unsolicited update.
	c.HandleFrame(status("VOL(-100)"))
	if c.State() != StateIdle {
		t.Error("late frame changed dispatch state")
	}
}

func TestTrySubmitBusy(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestCorrelator(sender)

	go c.Submit(context.Background(), protocol.PowerQuery(protocol.ZoneMain))
	waitForState(t, c, StateAwaiting)

	_, err := c.TrySubmit(context.Background(), protocol.VolumeQuery(protocol.ZoneMain))
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}

	c.HandleFrame(status("POWER(1)"))
	waitForState(t, c, StateIdle)

	if _, err := c.TrySubmit(context.Background(), protocol.MuteOn(protocol.ZoneMain)); err != nil {
		t.Fatalf("TrySubmit after resolution: %v", err)
	}
}

func TestSubmitNotConnected(t *testing.T) {
	sender := &fakeSender{}
	cache := state.NewCache()
	c := NewCorrelator(sender, cache, nil)

	if _, err := c.Submit(context.Background(), protocol.PowerQuery(protocol.ZoneMain)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectAbortsInFlight(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestCorrelator(sender)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), protocol.VolumeQuery(protocol.ZoneMain))
		done <- err
	}()

	waitForState(t, c, StateAwaiting)
	c.HandleDisconnect(errors.New("read: EOF"))

	if err := <-done; !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("err = %v, want ErrConnectionLost", err)
	}

	// Until the supervisor reports a fresh link, submissions fail fast.
	if _, err := c.Submit(context.Background(), protocol.PowerQuery(protocol.ZoneMain)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err after disconnect = %v, want ErrNotConnected", err)
	}

	c.HandleConnected()
	go c.Submit(context.Background(), protocol.PowerQuery(protocol.ZoneMain))
	waitForState(t, c, StateAwaiting)
	c.HandleFrame(status("POWER(0)"))
	waitForState(t, c, StateIdle)
}

func TestSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("broken pipe")}
	c, _ := newTestCorrelator(sender)

	if _, err := c.Submit(context.Background(), protocol.VolumeQuery(protocol.ZoneMain)); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("query err = %v, want ErrConnectionLost", err)
	}
	if _, err := c.Submit(context.Background(), protocol.MuteOn(protocol.ZoneMain)); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("no-reply err = %v, want ErrConnectionLost", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v after send failures", c.State())
	}
}

func TestContextCancelDoesNotWedge(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestCorrelator(sender)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx, protocol.VolumeQuery(protocol.ZoneMain))
		done <- err
	}()

	waitForState(t, c, StateAwaiting)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The abandoned request still resolves when its reply arrives, freeing
	// the slot for the next caller.
	c.HandleFrame(status("VOL(-120)"))
	waitForState(t, c, StateIdle)

	if _, err := c.TrySubmit(context.Background(), protocol.MuteOn(protocol.ZoneMain)); err != nil {
		t.Fatalf("TrySubmit after abandoned wait: %v", err)
	}
}

func TestEchoAndUnrecognizedFrames(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestCorrelator(sender)

	go c.Submit(context.Background(), protocol.PowerQuery(protocol.ZoneMain))
	waitForState(t, c, StateAwaiting)

	c.HandleFrame(protocol.Frame{Kind: protocol.FrameEcho, Payload: "POWER?"})
	c.HandleFrame(protocol.Frame{Kind: protocol.FrameUnrecognized, Payload: "garbage"})
	if c.State() != StateAwaiting {
		t.Fatal("non-status frame resolved the pending command")
	}

	c.HandleFrame(status("POWER(1)"))
	waitForState(t, c, StateIdle)
}

func TestUnsolicitedWhileIdle(t *testing.T) {
	sender := &fakeSender{}
	c, cache := newTestCorrelator(sender)

	c.HandleFrame(status("MUTE(1)"))

	snap := cache.Snapshot()
	if !snap.Main.Muted {
		t.Error("unsolicited MUTE(1) not applied while idle")
	}
}

// waitForState polls until the correlator reaches the wanted state. The
// submitting goroutine races with the test body, so observation has to be
// eventual.
func waitForState(t *testing.T, c *Correlator, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("correlator never reached state %v", want)
}
