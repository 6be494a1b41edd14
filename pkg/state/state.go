package state

import (
	"sync"
	"time"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// ZoneStatus holds the observables of one output zone.
type ZoneStatus struct {
	Power    protocol.PowerState
	VolumeDB float64
	Muted    bool
}

// Snapshot is an immutable copy of the device state at one point in time.
// Zero values mean "not yet reported"; LastUpdate is zero until the first
// recognized status frame arrives.
type Snapshot struct {
	Main  ZoneStatus
	Zone2 ZoneStatus

	SourceIndex    int
	SourceName     string
	AudioModeIndex int
	AudioModeName  string
	AudioType      string

	LastUpdate time.Time
}

// Cache is the process-owned device state. Apply is called only from the
// dispatcher's read pump; Snapshot and Subscribe are safe from any
// goroutine.
type Cache struct {
	mu   sync.RWMutex
	snap Snapshot

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{subs: make(map[int]func(Snapshot))}
}

// Snapshot returns a copy of the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Subscribe registers a callback invoked with a fresh snapshot after every
// applied update. The returned function cancels the subscription.
// Callbacks run on the dispatcher's read pump and must not block.
func (c *Cache) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Apply updates the cache from a status payload, if the payload encodes a
// known observable. It reports whether the payload was recognized.
func (c *Cache) Apply(payload string) bool {
	name, _, _, err := protocol.SplitStatus(payload)
	if err != nil {
		return false
	}

	c.mu.Lock()
	applied := c.applyLocked(name, payload)
	if applied {
		c.snap.LastUpdate = time.Now()
	}
	snap := c.snap
	c.mu.Unlock()

	if applied {
		c.notify(snap)
	}
	return applied
}

// applyLocked dispatches on the verb name. Parse failures on a recognized
// verb leave the cache untouched.
func (c *Cache) applyLocked(name, payload string) bool {
	switch name {
	case "POWER":
		p, err := protocol.ParsePower(payload, protocol.ZoneMain)
		if err != nil {
			return false
		}
		c.snap.Main.Power = p
	case "POWERZONE2":
		p, err := protocol.ParsePower(payload, protocol.Zone2)
		if err != nil {
			return false
		}
		c.snap.Zone2.Power = p
	case "VOL":
		v, err := protocol.ParseVolume(payload, protocol.ZoneMain)
		if err != nil {
			return false
		}
		c.snap.Main.VolumeDB = v
	case "ZVOL":
		v, err := protocol.ParseVolume(payload, protocol.Zone2)
		if err != nil {
			return false
		}
		c.snap.Zone2.VolumeDB = v
	case "MUTE":
		m, err := protocol.ParseMute(payload, protocol.ZoneMain)
		if err != nil {
			return false
		}
		c.snap.Main.Muted = m
	case "ZMUTE":
		m, err := protocol.ParseMute(payload, protocol.Zone2)
		if err != nil {
			return false
		}
		c.snap.Zone2.Muted = m
	case "SRC":
		s, err := protocol.ParseSource(payload)
		if err != nil {
			return false
		}
		c.snap.SourceIndex = s.Index
		if s.Name != "" {
			c.snap.SourceName = s.Name
		}
	case "AUDMODE":
		m, err := protocol.ParseAudioMode(payload)
		if err != nil {
			return false
		}
		c.snap.AudioModeIndex = m.Index
		if m.Name != "" {
			c.snap.AudioModeName = m.Name
		}
	case "AUDTYPE":
		t, err := protocol.ParseAudioType(payload)
		if err != nil {
			return false
		}
		c.snap.AudioType = t
	default:
		return false
	}
	return true
}

// notify runs the subscriber callbacks outside the state lock.
func (c *Cache) notify(snap Snapshot) {
	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
