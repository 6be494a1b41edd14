package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Connection errors.
var (
	ErrManagerClosed    = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// StableConnectionPeriod is how long a connection must stay up before the
// backoff schedule resets. A device that drops the link right after
// accepting it keeps climbing the schedule.
const StableConnectionPeriod = 30 * time.Second

// DefaultReconnectTimeout bounds a single reconnection attempt.
const DefaultReconnectTimeout = 10 * time.Second

// State represents the link state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates an explicit connection attempt is in
	// progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the manager has been shut down.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes one connection attempt. It returns nil once the
// link is up and ready for traffic.
type ConnectFunc func(ctx context.Context) error

// Manager tracks the link state machine and drives automatic reconnection
// with backoff.
type Manager struct {
	mu sync.RWMutex

	state State

	backoff *Backoff

	connectFn ConnectFunc

	autoReconnect bool

	// connectTimeout bounds each reconnection attempt.
	connectTimeout time.Duration

	// stablePeriod is how long the link must hold before backoff resets.
	stablePeriod time.Duration

	// generation increments on every successful connection; the stable
	// timer only resets backoff if its generation is still current.
	generation uint64

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a manager around connectFn with the default backoff
// schedule. Automatic reconnection is enabled.
func NewManager(connectFn ConnectFunc) *Manager {
	return NewManagerWithBackoff(connectFn, NewBackoff())
}

// NewManagerWithBackoff creates a manager with a custom backoff schedule.
func NewManagerWithBackoff(connectFn ConnectFunc, backoff *Backoff) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		state:          StateDisconnected,
		backoff:        backoff,
		connectFn:      connectFn,
		autoReconnect:  true,
		connectTimeout: DefaultReconnectTimeout,
		stablePeriod:   StableConnectionPeriod,
		ctx:            ctx,
		cancel:         cancel,
		reconnectCh:    make(chan struct{}, 1),
	}
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the link is up.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateConnected
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// SetConnectTimeout overrides the per-attempt deadline used by the
// reconnection loop.
func (m *Manager) SetConnectTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.connectTimeout = d
	}
}

// SetStablePeriod overrides how long a connection must hold before the
// backoff schedule resets.
func (m *Manager) SetStablePeriod(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.stablePeriod = d
	}
}

// Connect performs one explicit connection attempt. It does not retry;
// retries belong to the reconnection loop.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	}

	oldState := m.state
	m.state = StateConnecting
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateConnecting)

	if err := m.connectFn(ctx); err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		m.notifyStateChange(StateConnecting, StateDisconnected)
		return err
	}

	m.markConnected(StateConnecting)
	return nil
}

// Disconnect reports a deliberate disconnect. With auto-reconnect enabled
// the manager immediately begins reconnecting.
func (m *Manager) Disconnect() {
	m.connectionDown()
}

// NotifyConnectionLost reports an unexpected link loss, typically from the
// read pump. With auto-reconnect enabled the manager begins reconnecting.
func (m *Manager) NotifyConnectionLost() {
	m.connectionDown()
}

func (m *Manager) connectionDown() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	autoReconnect := m.autoReconnect
	m.generation++ // invalidate any pending stable-reset timer

	if autoReconnect {
		m.state = StateReconnecting
	} else {
		m.state = StateDisconnected
	}
	newState := m.state
	m.mu.Unlock()

	m.notifyStateChange(oldState, newState)
	if m.onDisconnected != nil {
		m.onDisconnected()
	}

	if autoReconnect {
		m.triggerReconnect()
	}
}

// StartReconnectLoop starts the background reconnection goroutine. Call
// once, before the first connection loss can occur.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts the manager down and stops the reconnection loop.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	m.state = StateClosed
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateClosed)

	m.cancel()
	m.wg.Wait()
}

// markConnected transitions to CONNECTED and arms the stable-reset timer.
func (m *Manager) markConnected(oldState State) {
	m.mu.Lock()
	m.state = StateConnected
	m.generation++
	gen := m.generation
	stable := m.stablePeriod
	m.mu.Unlock()

	time.AfterFunc(stable, func() {
		m.mu.Lock()
		held := m.state == StateConnected && m.generation == gen
		m.mu.Unlock()
		if held {
			m.backoff.Reset()
		}
	})

	m.notifyStateChange(oldState, StateConnected)
	if m.onConnected != nil {
		m.onConnected()
	}
}

func (m *Manager) notifyStateChange(oldState, newState State) {
	if m.onStateChange != nil {
		m.onStateChange(oldState, newState)
	}
}

func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
		// Already pending.
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.attemptReconnect()
		}
	}
}

// attemptReconnect retries the connection until it succeeds or the
// manager closes, waiting out the backoff schedule between attempts.
func (m *Manager) attemptReconnect() {
	for {
		m.mu.RLock()
		state := m.state
		timeout := m.connectTimeout
		m.mu.RUnlock()

		if state == StateClosed || state == StateConnected {
			return
		}

		delay := m.backoff.Next()
		if m.onReconnecting != nil {
			m.onReconnecting(m.backoff.Attempts(), delay)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		m.mu.RLock()
		state = m.state
		m.mu.RUnlock()
		if state == StateClosed || state == StateConnected {
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, timeout)
		err := m.connectFn(ctx)
		cancel()

		if err == nil {
			m.markConnected(StateReconnecting)
			return
		}
	}
}

// OnStateChange sets the state transition callback. Set callbacks before
// Connect or StartReconnectLoop.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets the callback invoked when a connection is established.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets the callback invoked when the link goes down.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets the callback invoked before each backoff wait.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// BackoffAttempts returns the number of reconnection attempts since the
// backoff schedule last reset.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}
