package monitor

// Logger is the interface applications implement to receive protocol
// events. Pass nil or NoopLogger to the session to disable the tap.
type Logger interface {
	// Log records an event. Implementations must be safe for concurrent
	// use and should not block: events are emitted from the read pump.
	Log(event Event)
}

// NoopLogger discards all events. Usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// MultiLogger fans events out to several loggers, e.g. console output and
// a capture file at the same time.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger over the given loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log sends the event to every configured logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
)
