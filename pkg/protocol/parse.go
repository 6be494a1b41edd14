package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parse errors.
var (
	// ErrMalformedPayload indicates a status payload that does not have
	// the NAME(value) shape expected for its verb.
	ErrMalformedPayload = errors.New("malformed status payload")

	errMissingParen = errors.New("missing closing parenthesis")
)

// VolumeRangeError indicates a volume outside the device's range.
type VolumeRangeError struct {
	Volume float64
}

func (e *VolumeRangeError) Error() string {
	return fmt.Sprintf("volume %.1f dB out of range (%.1f to %.1f)",
		e.Volume, MinVolumeDB, MaxVolumeDB)
}

// PowerState is the on/off state of a zone.
type PowerState uint8

const (
	// PowerStateOff means the zone is in standby.
	PowerStateOff PowerState = 0

	// PowerStateOn means the zone is active.
	PowerStateOn PowerState = 1
)

// String returns the power state name.
func (p PowerState) String() string {
	if p == PowerStateOn {
		return "ON"
	}
	return "OFF"
}

// Source is one input of the processor.
type Source struct {
	Index int
	Name  string
}

// String returns "index: name".
func (s Source) String() string {
	return fmt.Sprintf("%d: %s", s.Index, s.Name)
}

// AudioMode is one audio processing mode of the processor.
type AudioMode struct {
	Index int
	Name  string
}

// String returns "index: name".
func (m AudioMode) String() string {
	return fmt.Sprintf("%d: %s", m.Index, m.Name)
}

// SplitStatus decomposes a status payload of the shape NAME(value) or
// NAME(value)"text" into its fields. value may be empty; text is empty
// when the quoted part is absent.
func SplitStatus(payload string) (name, value, text string, err error) {
	open := strings.IndexByte(payload, '(')
	if open <= 0 {
		return "", "", "", fmt.Errorf("%w: %q", ErrMalformedPayload, payload)
	}
	closeIdx := strings.IndexByte(payload[open:], ')')
	if closeIdx < 0 {
		return "", "", "", fmt.Errorf("%w: %q", ErrMalformedPayload, payload)
	}
	closeIdx += open

	name = payload[:open]
	value = payload[open+1 : closeIdx]

	rest := payload[closeIdx+1:]
	if len(rest) >= 2 && rest[0] == '"' && rest[len(rest)-1] == '"' {
		text = rest[1 : len(rest)-1]
	}
	return name, value, text, nil
}

// statusInt extracts the integer value of a payload, verifying the verb.
func statusInt(payload, verb string) (int, error) {
	name, value, _, err := SplitStatus(payload)
	if err != nil {
		return 0, err
	}
	if name != verb {
		return 0, fmt.Errorf("%w: expected %s, got %q", ErrMalformedPayload, verb, payload)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, payload)
	}
	return n, nil
}

// ParsePower parses a POWER(n) or POWERZONE2(n) payload.
func ParsePower(payload string, zone Zone) (PowerState, error) {
	verb := "POWER"
	if zone == Zone2 {
		verb = "POWERZONE2"
	}
	n, err := statusInt(payload, verb)
	if err != nil {
		return PowerStateOff, err
	}
	if n != 0 && n != 1 {
		return PowerStateOff, fmt.Errorf("%w: power value %d", ErrMalformedPayload, n)
	}
	return PowerState(n), nil
}

// ParseVolume parses a VOL(n) or ZVOL(n) payload into dB.
func ParseVolume(payload string, zone Zone) (float64, error) {
	n, err := statusInt(payload, volumeVerb(zone))
	if err != nil {
		return 0, err
	}
	return float64(n) / 10, nil
}

// ParseMute parses a MUTE(n) or ZMUTE(n) payload.
func ParseMute(payload string, zone Zone) (bool, error) {
	n, err := statusInt(payload, muteVerb(zone))
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// ParseSource parses a SRC(i)"name" payload. The name may be absent in
// unsolicited pushes from some firmware; Name is then empty.
func ParseSource(payload string) (Source, error) {
	name, value, text, err := SplitStatus(payload)
	if err != nil {
		return Source{}, err
	}
	if name != "SRC" {
		return Source{}, fmt.Errorf("%w: expected SRC, got %q", ErrMalformedPayload, payload)
	}
	idx, err := strconv.Atoi(value)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %q", ErrMalformedPayload, payload)
	}
	return Source{Index: idx, Name: text}, nil
}

// ParseAudioMode parses an AUDMODE(i)"name" payload.
func ParseAudioMode(payload string) (AudioMode, error) {
	name, value, text, err := SplitStatus(payload)
	if err != nil {
		return AudioMode{}, err
	}
	if name != "AUDMODE" {
		return AudioMode{}, fmt.Errorf("%w: expected AUDMODE, got %q", ErrMalformedPayload, payload)
	}
	idx, err := strconv.Atoi(value)
	if err != nil {
		return AudioMode{}, fmt.Errorf("%w: %q", ErrMalformedPayload, payload)
	}
	return AudioMode{Index: idx, Name: text}, nil
}

// ParseAudioType parses an AUDTYPE(...)"desc" payload into the format
// description, e.g. "Dolby Atmos 7.1.4".
func ParseAudioType(payload string) (string, error) {
	name, value, text, err := SplitStatus(payload)
	if err != nil {
		return "", err
	}
	if name != "AUDTYPE" {
		return "", fmt.Errorf("%w: expected AUDTYPE, got %q", ErrMalformedPayload, payload)
	}
	if text != "" {
		return text, nil
	}
	return value, nil
}

// ParseSourceList parses the frames of a SRCS? reply: the SRCCOUNT(n)
// header followed by n SRC(i)"name" entries.
func ParseSourceList(payloads []string) ([]Source, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: empty source list reply", ErrMalformedPayload)
	}
	count, err := statusInt(payloads[0], "SRCCOUNT")
	if err != nil {
		return nil, err
	}
	if len(payloads)-1 != count {
		return nil, fmt.Errorf("%w: SRCCOUNT %d with %d entries",
			ErrMalformedPayload, count, len(payloads)-1)
	}
	sources := make([]Source, 0, count)
	for _, p := range payloads[1:] {
		s, err := ParseSource(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// ParseAudioModeList parses the frames of an AUDMODEL? reply: the
// AUDMODECOUNT(n) header followed by n AUDMODE(i)"name" entries.
func ParseAudioModeList(payloads []string) ([]AudioMode, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: empty audio mode list reply", ErrMalformedPayload)
	}
	count, err := statusInt(payloads[0], "AUDMODECOUNT")
	if err != nil {
		return nil, err
	}
	if len(payloads)-1 != count {
		return nil, fmt.Errorf("%w: AUDMODECOUNT %d with %d entries",
			ErrMalformedPayload, count, len(payloads)-1)
	}
	modes := make([]AudioMode, 0, count)
	for _, p := range payloads[1:] {
		m, err := ParseAudioMode(p)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, nil
}
