package monitor

import "log/slog"

// SlogAdapter writes capture events to an slog.Logger. Useful for
// development and for the CLI's monitor mode.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to the given logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []any{
		slog.String("conn_id", event.ConnectionID),
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.String("direction", event.Direction.String()),
			slog.String("kind", event.Frame.Kind.String()),
			slog.String("payload", event.Frame.Payload),
		)
		a.logger.Debug("frame", attrs...)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
		a.logger.Debug("state change", attrs...)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error", event.Error.Message),
			slog.String("context", event.Error.Context),
		)
		a.logger.Debug("link error", attrs...)
	default:
		a.logger.Debug("event", attrs...)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
