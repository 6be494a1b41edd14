package protocol

import (
	"strconv"
	"strings"
	"time"
)

// Matcher decides which inbound status frames answer a pending command.
// Match is called once per status payload, in arrival order, by the
// dispatcher. A matcher may carry state (enumeration replies span several
// frames), so every Command must be built with a fresh Matcher.
type Matcher interface {
	// Match reports whether payload belongs to the pending response
	// (accepted) and whether the response is complete after consuming
	// it (done).
	Match(payload string) (accepted, done bool)
}

// Command is one outbound protocol operation: the verb text (without
// sentinel and terminator), the matcher describing its reply, and a reply
// deadline. A nil Match means the verb produces no reply and the command
// resolves as soon as it is written.
type Command struct {
	Text    string
	Match   Matcher
	Timeout time.Duration
}

// ExpectsReply reports whether the command waits for a matching frame.
func (c Command) ExpectsReply() bool {
	return c.Match != nil
}

// PrefixMatcher matches a single-line reply whose payload starts with
// Prefix. Queries like VOL? are answered by VOL(...), so the prefix
// includes the opening parenthesis and cannot collide with longer verb
// names (POWER( does not match POWERZONE2(...)).
type PrefixMatcher struct {
	Prefix string
}

// Match implements Matcher.
func (m PrefixMatcher) Match(payload string) (bool, bool) {
	if strings.HasPrefix(payload, m.Prefix) {
		return true, true
	}
	return false, false
}

// MatchReply builds a PrefixMatcher for the reply to a query verb:
// MatchReply("VOL") accepts payloads starting with "VOL(".
func MatchReply(verb string) PrefixMatcher {
	return PrefixMatcher{Prefix: verb + "("}
}

// CountedListMatcher matches an enumeration reply: a COUNT header frame
// announcing the number of entries, followed by that many entry frames.
// SRCS? is answered by SRCCOUNT(n) and n SRC(i)"name" frames.
type CountedListMatcher struct {
	countPrefix string
	entryPrefix string

	started   bool
	expected  int
	collected int
}

// NewCountedListMatcher builds a matcher for a counted enumeration.
// countVerb and entryVerb are given without parentheses, e.g.
// NewCountedListMatcher("SRCCOUNT", "SRC").
func NewCountedListMatcher(countVerb, entryVerb string) *CountedListMatcher {
	return &CountedListMatcher{
		countPrefix: countVerb + "(",
		entryPrefix: entryVerb + "(",
	}
}

// Match implements Matcher.
func (m *CountedListMatcher) Match(payload string) (bool, bool) {
	if !m.started {
		if !strings.HasPrefix(payload, m.countPrefix) {
			return false, false
		}
		n, err := parseCountValue(payload, m.countPrefix)
		if err != nil {
			return false, false
		}
		m.started = true
		m.expected = n
		return true, m.expected == 0
	}

	if !strings.HasPrefix(payload, m.entryPrefix) {
		// Interleaved unrelated status; the list continues afterwards.
		return false, false
	}
	m.collected++
	return true, m.collected >= m.expected
}

// parseCountValue extracts n from "PREFIX(n)...".
func parseCountValue(payload, prefix string) (int, error) {
	rest := payload[len(prefix):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return 0, errMissingParen
	}
	return strconv.Atoi(rest[:end])
}

// Command builders. Each builds a fresh Command with the wire text of the
// verb and, for queries, a fresh matcher. Timeout 0 means the dispatcher
// default.

// Zone identifies an output zone of the processor.
type Zone uint8

const (
	// ZoneMain is the main listening zone.
	ZoneMain Zone = iota

	// Zone2 is the secondary zone.
	Zone2
)

// String returns the zone name.
func (z Zone) String() string {
	if z == Zone2 {
		return "ZONE2"
	}
	return "MAIN"
}

// PowerOn builds the power-on command for a zone.
func PowerOn(zone Zone) Command {
	if zone == Zone2 {
		return Command{Text: "POWERONZONE2"}
	}
	return Command{Text: "POWERONMAIN"}
}

// PowerOff builds the power-off command for a zone.
func PowerOff(zone Zone) Command {
	if zone == Zone2 {
		return Command{Text: "POWEROFFZONE2"}
	}
	return Command{Text: "POWEROFFMAIN"}
}

// PowerQuery builds the power status query for a zone.
func PowerQuery(zone Zone) Command {
	if zone == Zone2 {
		return Command{Text: "POWERZONE2?", Match: MatchReply("POWERZONE2")}
	}
	return Command{Text: "POWER?", Match: MatchReply("POWER")}
}

// Volume limits in dB.
const (
	MinVolumeDB = -99.9
	MaxVolumeDB = 24.0

	// DefaultVolumeStepDB is the device's native step for the bare
	// VOL+ / VOL- verbs.
	DefaultVolumeStepDB = 0.5
)

// volumeVerb returns the volume verb stem for a zone.
func volumeVerb(zone Zone) string {
	if zone == Zone2 {
		return "ZVOL"
	}
	return "VOL"
}

// wireVolume converts dB to the device's tenths-of-dB integer form.
func wireVolume(db float64) int {
	if db < 0 {
		return int(db*10 - 0.5)
	}
	return int(db*10 + 0.5)
}

// VolumeSet builds the absolute volume command. db must be within
// [MinVolumeDB, MaxVolumeDB].
func VolumeSet(zone Zone, db float64) (Command, error) {
	if db < MinVolumeDB || db > MaxVolumeDB {
		return Command{}, &VolumeRangeError{Volume: db}
	}
	verb := volumeVerb(zone)
	return Command{Text: verb + "(" + strconv.Itoa(wireVolume(db)) + ")"}, nil
}

// VolumeUp builds a relative volume-up command. step 0 selects the
// device's native step.
func VolumeUp(zone Zone, step float64) Command {
	return volumeStep(zone, "+", step)
}

// VolumeDown builds a relative volume-down command. step 0 selects the
// device's native step.
func VolumeDown(zone Zone, step float64) Command {
	return volumeStep(zone, "-", step)
}

func volumeStep(zone Zone, dir string, step float64) Command {
	verb := volumeVerb(zone)
	if step == 0 {
		return Command{Text: verb + dir}
	}
	return Command{Text: verb + dir + "(" + strconv.Itoa(wireVolume(step)) + ")"}
}

// VolumeQuery builds the volume query for a zone.
func VolumeQuery(zone Zone) Command {
	verb := volumeVerb(zone)
	return Command{Text: verb + "?", Match: MatchReply(verb)}
}

// muteVerb returns the mute verb stem for a zone.
func muteVerb(zone Zone) string {
	if zone == Zone2 {
		return "ZMUTE"
	}
	return "MUTE"
}

// MuteOn builds the mute command for a zone.
func MuteOn(zone Zone) Command {
	return Command{Text: muteVerb(zone) + "ON"}
}

// MuteOff builds the unmute command for a zone.
func MuteOff(zone Zone) Command {
	return Command{Text: muteVerb(zone) + "OFF"}
}

// MuteToggle builds the mute toggle command for a zone.
func MuteToggle(zone Zone) Command {
	return Command{Text: muteVerb(zone)}
}

// MuteQuery builds the mute status query for a zone.
// Some firmware revisions never answer this query while another query is
// outstanding; the dispatcher reports that as an ordinary timeout.
func MuteQuery(zone Zone) Command {
	verb := muteVerb(zone)
	return Command{Text: verb + "?", Match: MatchReply(verb)}
}

// SourceSelect builds the source selection command.
func SourceSelect(index int) Command {
	return Command{Text: "SRC(" + strconv.Itoa(index) + ")"}
}

// SourceQuery builds the current-source query.
func SourceQuery() Command {
	return Command{Text: "SRC?", Match: MatchReply("SRC")}
}

// SourceListQuery builds the source enumeration query. The reply is a
// SRCCOUNT header followed by one SRC entry per source.
func SourceListQuery() Command {
	return Command{Text: "SRCS?", Match: NewCountedListMatcher("SRCCOUNT", "SRC")}
}

// AudioModeSelect builds the audio mode selection command.
func AudioModeSelect(index int) Command {
	return Command{Text: "AUDMODE(" + strconv.Itoa(index) + ")"}
}

// AudioModeNext builds the next-audio-mode command.
func AudioModeNext() Command {
	return Command{Text: "AUDMODE+"}
}

// AudioModePrevious builds the previous-audio-mode command.
func AudioModePrevious() Command {
	return Command{Text: "AUDMODE-"}
}

// AudioModeQuery builds the current-audio-mode query.
func AudioModeQuery() Command {
	return Command{Text: "AUDMODE?", Match: MatchReply("AUDMODE")}
}

// AudioModeListQuery builds the audio mode enumeration query.
func AudioModeListQuery() Command {
	return Command{Text: "AUDMODEL?", Match: NewCountedListMatcher("AUDMODECOUNT", "AUDMODE")}
}

// AudioTypeQuery builds the audio input format query.
func AudioTypeQuery() Command {
	return Command{Text: "AUDTYPE?", Match: MatchReply("AUDTYPE")}
}

// SetFeedbackLevel builds the verbosity negotiation command. The device
// does not reply to VERB; the command resolves on write.
func SetFeedbackLevel(level FeedbackLevel) Command {
	return Command{Text: "VERB(" + strconv.Itoa(int(level)) + ")"}
}
