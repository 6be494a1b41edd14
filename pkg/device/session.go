package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p100-protocol/p100-go/pkg/connection"
	"github.com/p100-protocol/p100-go/pkg/dispatch"
	"github.com/p100-protocol/p100-go/pkg/monitor"
	"github.com/p100-protocol/p100-go/pkg/protocol"
	"github.com/p100-protocol/p100-go/pkg/state"
	"github.com/p100-protocol/p100-go/pkg/transport"
)

// ErrSessionClosed indicates use of a session after Close.
var ErrSessionClosed = errors.New("session closed")

// Session is one logical link to a processor. It owns the transport, the
// read pump, the correlator, the state cache, and the reconnection
// supervisor. Create it with NewSession, bring it up with Connect, and
// drive the device through the facade fields.
type Session struct {
	cfg Config
	log *slog.Logger
	tap monitor.Logger

	// newTransport builds a fresh transport per connection attempt;
	// transports are not restartable.
	newTransport func() transport.Transport

	cache *state.Cache
	corr  *dispatch.Correlator
	mgr   *connection.Manager

	// Control facades.
	Power     *Power
	Volume    *Volume
	Source    *Source
	AudioMode *AudioMode

	// ownedTap is closed with the session when the capture file was
	// opened from the config.
	ownedTap *monitor.FileLogger

	mu      sync.Mutex
	tr      transport.Transport
	connID  string
	level   protocol.FeedbackLevel
	started bool
	closed  bool
}

// Option customizes a Session at construction time.
type Option func(*Session)

// WithLogger sets the operational logger. Defaults to a discarding one.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.log = logger }
}

// WithMonitor sets the protocol capture tap. Overrides the config's
// capture file.
func WithMonitor(tap monitor.Logger) Option {
	return func(s *Session) { s.tap = tap }
}

// WithTransportFactory overrides how transports are built. Used to
// connect over something other than the config's endpoint, and by tests.
func WithTransportFactory(fn func() transport.Transport) Option {
	return func(s *Session) { s.newTransport = fn }
}

// WithBackoff overrides the reconnection backoff schedule.
func WithBackoff(cfg connection.BackoffConfig) Option {
	return func(s *Session) {
		s.mgr = connection.NewManagerWithBackoff(s.dial, connection.NewBackoffWithConfig(cfg))
	}
}

// NewSession creates a session for the configured endpoint. The session
// is idle until Connect.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	s := &Session{
		cfg:   cfg,
		log:   slog.New(slog.DiscardHandler),
		tap:   monitor.NoopLogger{},
		level: cfg.FeedbackLevel,
	}
	s.newTransport = func() transport.Transport {
		if cfg.SerialPort != "" {
			return transport.NewSerialTransport(cfg.SerialPort, cfg.BaudRate)
		}
		t := transport.NewTCPTransport(cfg.Host, cfg.Port)
		t.SetConnectTimeout(cfg.ConnectTimeout.Std())
		return t
	}
	s.mgr = connection.NewManager(s.dial)

	for _, opt := range opts {
		opt(s)
	}

	// The config's capture file applies only when no tap was injected.
	if _, noTap := s.tap.(monitor.NoopLogger); noTap && cfg.CaptureFile != "" {
		fl, err := monitor.NewFileLogger(cfg.CaptureFile)
		if err != nil {
			return nil, fmt.Errorf("open capture file: %w", err)
		}
		s.tap = fl
		s.ownedTap = fl
	}

	s.cache = state.NewCache()
	s.corr = dispatch.NewCorrelator(s, s.cache, s.log)
	s.corr.SetDefaultTimeout(cfg.CommandTimeout.Std())

	s.mgr.SetAutoReconnect(!cfg.DisableReconnect)
	s.mgr.SetConnectTimeout(cfg.ConnectTimeout.Std())
	s.mgr.OnStateChange(func(oldState, newState connection.State) {
		s.tap.Log(monitor.StateChange(s.currentConnID(), oldState.String(), newState.String(), ""))
		s.log.Debug("connection state", "old", oldState.String(), "new", newState.String())
	})
	s.mgr.OnReconnecting(func(attempt int, delay time.Duration) {
		s.log.Info("reconnecting", "attempt", attempt, "delay", delay)
	})

	s.Power = &Power{s: s}
	s.Volume = &Volume{s: s}
	s.Source = &Source{s: s}
	s.AudioMode = &AudioMode{s: s}

	return s, nil
}

// Connect brings the link up and starts the reconnection supervisor.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	start := !s.started
	s.started = true
	s.mu.Unlock()

	if start {
		s.mgr.StartReconnectLoop()
	}
	return s.mgr.Connect(ctx)
}

// Close tears the session down. It stops reconnection, closes the
// transport, and closes a config-owned capture file.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tr := s.tr
	s.mu.Unlock()

	s.mgr.SetAutoReconnect(false)
	if tr != nil {
		tr.Close()
	}
	s.mgr.Close()

	if s.ownedTap != nil {
		return s.ownedTap.Close()
	}
	return nil
}

// ConnectionState returns the supervisor's view of the link.
func (s *Session) ConnectionState() connection.State {
	return s.mgr.State()
}

// Snapshot returns a copy of the cached device state.
func (s *Session) Snapshot() state.Snapshot {
	return s.cache.Snapshot()
}

// Subscribe registers a state change callback. See state.Cache.Subscribe.
func (s *Session) Subscribe(fn func(state.Snapshot)) (cancel func()) {
	return s.cache.Subscribe(fn)
}

// Submit sends a raw command through the single-flight dispatcher. The
// facades cover the common verbs; Submit is the escape hatch for the
// rest.
func (s *Session) Submit(ctx context.Context, cmd protocol.Command) ([]string, error) {
	return s.corr.Submit(ctx, cmd)
}

// SetFeedbackLevel changes the negotiated verbosity. The new level is
// also used for future reconnects.
func (s *Session) SetFeedbackLevel(ctx context.Context, level protocol.FeedbackLevel) error {
	if !level.Valid() {
		return fmt.Errorf("invalid feedback level %d", level)
	}
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()

	_, err := s.Submit(ctx, protocol.SetFeedbackLevel(level))
	return err
}

// FeedbackLevel returns the currently requested verbosity.
func (s *Session) FeedbackLevel() protocol.FeedbackLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Send implements dispatch.Sender: it writes an encoded frame to the
// current transport and mirrors it to the monitor tap.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	tr := s.tr
	connID := s.connID
	s.mu.Unlock()

	if tr == nil {
		return transport.ErrNotConnected
	}
	if err := tr.Write(data); err != nil {
		return err
	}

	payload := strings.TrimSuffix(string(data), string(protocol.Terminator))
	payload = strings.TrimPrefix(payload, string(protocol.CommandPrefix))
	s.tap.Log(monitor.FrameOut(connID, payload))
	return nil
}

// dial is the supervisor's ConnectFunc: one connection attempt, feedback
// negotiation included.
func (s *Session) dial(ctx context.Context) error {
	tr := s.newTransport()
	if err := tr.Connect(ctx); err != nil {
		return err
	}
	connID := uuid.NewString()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		tr.Close()
		return ErrSessionClosed
	}
	s.tr = tr
	s.connID = connID
	level := s.level
	s.mu.Unlock()

	s.corr.HandleConnected()
	go s.readPump(tr, connID)

	if _, err := s.corr.Submit(ctx, protocol.SetFeedbackLevel(level)); err != nil {
		tr.Close()
		return fmt.Errorf("negotiate feedback level: %w", err)
	}

	// Enumeration indices are only stable within one connection.
	s.Source.invalidate()
	s.AudioMode.invalidate()

	s.log.Info("connected", "conn_id", connID, "feedback_level", level.String())
	return nil
}

// readPump is the single reader of one transport: receive, decode, tap,
// dispatch. It exits when the transport fails or is closed.
func (s *Session) readPump(tr transport.Transport, connID string) {
	dec := &protocol.Decoder{}
	for {
		chunk, err := tr.Receive()
		if err != nil {
			s.corr.HandleDisconnect(err)
			if !errors.Is(err, transport.ErrClosed) {
				s.tap.Log(monitor.LinkError(connID, "receive", err))
				s.log.Warn("connection lost", "conn_id", connID, "err", err)
			}

			s.mu.Lock()
			if s.tr == tr {
				s.tr = nil
			}
			s.mu.Unlock()

			s.mgr.NotifyConnectionLost()
			return
		}

		for _, f := range dec.Feed(chunk) {
			s.tap.Log(monitor.FrameIn(connID, f))
			s.corr.HandleFrame(f)
		}
	}
}

func (s *Session) currentConnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}
