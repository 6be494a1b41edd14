package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p100-protocol/p100-go/pkg/protocol"
	"github.com/p100-protocol/p100-go/pkg/state"
)

// Dispatch errors.
var (
	// ErrTimeout indicates no matching frame arrived within the
	// command's deadline.
	ErrTimeout = errors.New("command timed out")

	// ErrBusy indicates a submission while another command is in
	// flight. Submit never returns it; only TrySubmit does.
	ErrBusy = errors.New("command already in flight")

	// ErrNotConnected indicates a submission while the link is down.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectionLost indicates the link dropped while the command
	// was in flight.
	ErrConnectionLost = errors.New("connection lost")
)

// State is the correlator's dispatch state.
type State uint8

const (
	// StateIdle means no command is in flight.
	StateIdle State = iota

	// StateAwaiting means a command is waiting for its reply.
	StateAwaiting
)

// String returns the state name.
func (s State) String() string {
	if s == StateAwaiting {
		return "AWAITING"
	}
	return "IDLE"
}

// Sender writes encoded frames to the current transport.
type Sender interface {
	Send(data []byte) error
}

// result is the terminal outcome of a pending request.
type result struct {
	payloads []string
	err      error
}

// pending is the single in-flight request. It is resolved exactly once:
// by a completed match, by deadline expiry, or by disconnect.
type pending struct {
	cmd      protocol.Command
	payloads []string
	timer    *time.Timer
	done     chan result // buffered, capacity 1
}

// Correlator owns the single-flight command slot and applies every status
// frame to the device state cache in arrival order.
type Correlator struct {
	sender Sender
	cache  *state.Cache
	log    *slog.Logger

	// slot holds a token while no command is in flight. Acquiring the
	// token grants the right to set pend; the resolver returns it.
	slot chan struct{}

	mu        sync.Mutex
	pend      *pending
	connected bool

	defaultTimeout time.Duration
}

// NewCorrelator creates a correlator writing through sender and applying
// updates to cache. logger may be nil.
func NewCorrelator(sender Sender, cache *state.Cache, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Correlator{
		sender:         sender,
		cache:          cache,
		log:            logger,
		slot:           make(chan struct{}, 1),
		defaultTimeout: protocol.DefaultCommandTimeout,
	}
	c.slot <- struct{}{}
	return c
}

// SetDefaultTimeout overrides the deadline used for commands that do not
// carry their own.
func (c *Correlator) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		c.defaultTimeout = d
	}
}

// State reports whether a command is currently in flight.
func (c *Correlator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pend != nil {
		return StateAwaiting
	}
	return StateIdle
}

// Submit sends a command and blocks until it resolves. Callers are served
// strictly in acquisition order of the in-flight slot. If ctx is cancelled
// the wait is abandoned, but the slot still resolves normally on match,
// timeout, or disconnect, so a cancelled caller never wedges the
// correlator.
//
// The returned payloads are the status payload lines accepted by the
// command's matcher; nil for commands that expect no reply.
func (c *Correlator) Submit(ctx context.Context, cmd protocol.Command) ([]string, error) {
	// Fail fast before queuing behind the slot.
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	select {
	case <-c.slot:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.dispatch(ctx, cmd)
}

// TrySubmit is Submit without queuing: it fails with ErrBusy if another
// command holds the in-flight slot.
func (c *Correlator) TrySubmit(ctx context.Context, cmd protocol.Command) ([]string, error) {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	select {
	case <-c.slot:
	default:
		return nil, ErrBusy
	}
	return c.dispatch(ctx, cmd)
}

// dispatch runs with the slot token held. The token is returned exactly
// once: directly for no-reply commands and send failures, otherwise by
// resolve.
func (c *Correlator) dispatch(ctx context.Context, cmd protocol.Command) ([]string, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.slot <- struct{}{}
		return nil, ErrNotConnected
	}

	if !cmd.ExpectsReply() {
		c.mu.Unlock()
		err := c.sender.Send(protocol.EncodeCommand(cmd.Text))
		c.slot <- struct{}{}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		return nil, nil
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	p := &pending{
		cmd:  cmd,
		done: make(chan result, 1),
	}
	// Arm the deadline before publishing the slot so resolve always sees
	// a valid timer.
	p.timer = time.AfterFunc(timeout, func() {
		c.resolve(p, result{err: fmt.Errorf("%w: %s after %s", ErrTimeout, cmd.Text, timeout)})
	})
	c.pend = p
	c.mu.Unlock()

	if err := c.sender.Send(protocol.EncodeCommand(cmd.Text)); err != nil {
		c.resolve(p, result{err: fmt.Errorf("%w: %v", ErrConnectionLost, err)})
	}

	select {
	case res := <-p.done:
		return res.payloads, res.err
	case <-ctx.Done():
		// Abandon the wait; the slot frees itself when the reply,
		// timeout, or disconnect arrives.
		return nil, ctx.Err()
	}
}

// resolve completes p exactly once and returns the slot token. Late calls
// for an already-resolved request are ignored.
func (c *Correlator) resolve(p *pending, res result) {
	c.mu.Lock()
	if c.pend != p {
		c.mu.Unlock()
		return
	}
	c.pend = nil
	p.timer.Stop()
	c.mu.Unlock()

	p.done <- res
	c.slot <- struct{}{}
}

// HandleFrame processes one decoded inbound frame. It must be called from
// a single goroutine (the connection's read pump), in arrival order.
func (c *Correlator) HandleFrame(f protocol.Frame) {
	switch f.Kind {
	case protocol.FrameEcho:
		// Echoes exist only at feedback level 2 and are purely
		// diagnostic; they never resolve a pending request.
		c.log.Debug("command echo", "payload", f.Payload)
		return
	case protocol.FrameUnrecognized:
		c.log.Warn("unrecognized frame discarded", "line", f.Payload)
		return
	case protocol.FrameStatus:
	}

	c.mu.Lock()
	p := c.pend
	c.mu.Unlock()

	if p != nil {
		// The matcher is only touched here, on the pump goroutine.
		accepted, done := p.cmd.Match.Match(f.Payload)
		if accepted {
			p.payloads = append(p.payloads, f.Payload)
			c.cache.Apply(f.Payload)
			if done {
				c.resolve(p, result{payloads: p.payloads})
			}
			return
		}
	}

	// Unsolicited status: update the cache, never consume the slot.
	if !c.cache.Apply(f.Payload) {
		c.log.Debug("unhandled status frame", "payload", f.Payload)
	}
}

// HandleConnected marks the link up. Called by the reconnection
// supervisor once a fresh transport is wired in.
func (c *Correlator) HandleConnected() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
}

// HandleDisconnect marks the link down and aborts any in-flight command
// with ErrConnectionLost. Submissions fail with ErrNotConnected until
// HandleConnected.
func (c *Correlator) HandleDisconnect(cause error) {
	c.mu.Lock()
	c.connected = false
	p := c.pend
	c.mu.Unlock()

	if p != nil {
		err := ErrConnectionLost
		if cause != nil {
			err = fmt.Errorf("%w: %v", ErrConnectionLost, cause)
		}
		c.resolve(p, result{err: err})
	}
}
