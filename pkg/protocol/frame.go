package protocol

import "time"

// Wire constants.
const (
	// CommandPrefix is the sentinel prepended to outbound commands.
	CommandPrefix = '!'

	// StatusPrefix is the sentinel on inbound status and reply frames.
	StatusPrefix = '!'

	// EchoPrefix is the sentinel on inbound command echoes
	// (emitted at FeedbackEchoAndStatus only).
	EchoPrefix = '#'

	// Terminator ends every frame in both directions.
	Terminator = '\r'
)

// Defaults from the device documentation.
const (
	// DefaultTCPPort is the control port of the device.
	DefaultTCPPort = 84

	// DefaultBaudRate is the serial link speed.
	DefaultBaudRate = 115200

	// DefaultCommandTimeout is the reply deadline applied when a Command
	// does not set its own.
	DefaultCommandTimeout = 5 * time.Second

	// DefaultConnectTimeout bounds a single connection attempt.
	DefaultConnectTimeout = 10 * time.Second
)

// FrameKind classifies a decoded inbound frame by its sentinel.
type FrameKind uint8

const (
	// FrameStatus is a solicited reply or an unsolicited status push.
	FrameStatus FrameKind = iota

	// FrameEcho is a command echo (feedback level 2).
	FrameEcho

	// FrameUnrecognized is a line with no known sentinel.
	FrameUnrecognized
)

// String returns the frame kind name.
func (k FrameKind) String() string {
	switch k {
	case FrameStatus:
		return "STATUS"
	case FrameEcho:
		return "ECHO"
	case FrameUnrecognized:
		return "UNRECOGNIZED"
	default:
		return "UNKNOWN"
	}
}

// Frame is one decoded inbound protocol unit. Payload is the text between
// the sentinel and the terminator; for unrecognized frames it is the whole
// line.
type Frame struct {
	Kind    FrameKind
	Payload string
}

// FeedbackLevel is the negotiated verbosity of unsolicited device traffic.
// It is set once per physical connection with the VERB command and must be
// renegotiated after every reconnect.
type FeedbackLevel uint8

const (
	// FeedbackMinimal: the device only answers queries.
	FeedbackMinimal FeedbackLevel = 0

	// FeedbackStatus: the device additionally pushes status updates.
	FeedbackStatus FeedbackLevel = 1

	// FeedbackEchoAndStatus: status updates plus command echoes.
	FeedbackEchoAndStatus FeedbackLevel = 2
)

// Valid reports whether the level is one the device accepts.
func (l FeedbackLevel) Valid() bool {
	return l <= FeedbackEchoAndStatus
}

// String returns the feedback level name.
func (l FeedbackLevel) String() string {
	switch l {
	case FeedbackMinimal:
		return "MINIMAL"
	case FeedbackStatus:
		return "STATUS"
	case FeedbackEchoAndStatus:
		return "ECHO_AND_STATUS"
	default:
		return "UNKNOWN"
	}
}
