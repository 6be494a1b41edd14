package state

import (
	"testing"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

func TestCacheApply(t *testing.T) {
	t.Run("Recognized", func(t *testing.T) {
		c := NewCache()

		applied := []string{
			"POWER(1)",
			"POWERZONE2(0)",
			"VOL(-350)",
			"ZVOL(-200)",
			"MUTE(1)",
			"ZMUTE(0)",
			`SRC(2)"Tuner"`,
			`AUDMODE(1)"Dolby Surround"`,
			`AUDTYPE(7)"Dolby Atmos 7.1.4"`,
		}
		for _, p := range applied {
			if !c.Apply(p) {
				t.Errorf("Apply(%q) = false, want true", p)
			}
		}

		snap := c.Snapshot()
		if snap.Main.Power != protocol.PowerStateOn {
			t.Errorf("Main.Power = %v, want ON", snap.Main.Power)
		}
		if snap.Zone2.Power != protocol.PowerStateOff {
			t.Errorf("Zone2.Power = %v, want OFF", snap.Zone2.Power)
		}
		if snap.Main.VolumeDB != -35.0 {
			t.Errorf("Main.VolumeDB = %v, want -35.0", snap.Main.VolumeDB)
		}
		if snap.Zone2.VolumeDB != -20.0 {
			t.Errorf("Zone2.VolumeDB = %v, want -20.0", snap.Zone2.VolumeDB)
		}
		if !snap.Main.Muted || snap.Zone2.Muted {
			t.Errorf("mute = %v/%v, want true/false", snap.Main.Muted, snap.Zone2.Muted)
		}
		if snap.SourceIndex != 2 || snap.SourceName != "Tuner" {
			t.Errorf("source = %d %q", snap.SourceIndex, snap.SourceName)
		}
		if snap.AudioModeIndex != 1 || snap.AudioModeName != "Dolby Surround" {
			t.Errorf("audio mode = %d %q", snap.AudioModeIndex, snap.AudioModeName)
		}
		if snap.AudioType != "Dolby Atmos 7.1.4" {
			t.Errorf("AudioType = %q", snap.AudioType)
		}
		if snap.LastUpdate.IsZero() {
			t.Error("LastUpdate not set")
		}
	})

	t.Run("Unrecognized", func(t *testing.T) {
		c := NewCache()
		for _, p := range []string{"BOGUS(1)", "POWERONMAIN", "VOL(abc)"} {
			if c.Apply(p) {
				t.Errorf("Apply(%q) = true, want false", p)
			}
		}
		if !c.Snapshot().LastUpdate.IsZero() {
			t.Error("unrecognized payloads must not touch LastUpdate")
		}
	})

	t.Run("ArrivalOrderWins", func(t *testing.T) {
		c := NewCache()
		c.Apply("VOL(-350)")
		c.Apply("VOL(-100)")
		if got := c.Snapshot().Main.VolumeDB; got != -10.0 {
			t.Errorf("VolumeDB = %v, want most recent -10.0", got)
		}
	})

	t.Run("SourcePushWithoutName", func(t *testing.T) {
		c := NewCache()
		c.Apply(`SRC(1)"DVD Player"`)
		c.Apply("SRC(2)")
		snap := c.Snapshot()
		if snap.SourceIndex != 2 {
			t.Errorf("SourceIndex = %d, want 2", snap.SourceIndex)
		}
		// A nameless push keeps the old name rather than blanking it.
		if snap.SourceName != "DVD Player" {
			t.Errorf("SourceName = %q", snap.SourceName)
		}
	})
}

func TestCacheSubscribe(t *testing.T) {
	c := NewCache()

	var got []float64
	cancel := c.Subscribe(func(s Snapshot) {
		got = append(got, s.Main.VolumeDB)
	})

	c.Apply("VOL(-350)")
	c.Apply("BOGUS(1)") // not recognized, no notification
	c.Apply("VOL(-340)")

	if len(got) != 2 || got[0] != -35.0 || got[1] != -34.0 {
		t.Errorf("notifications = %v, want [-35 -34]", got)
	}

	cancel()
	c.Apply("VOL(-330)")
	if len(got) != 2 {
		t.Error("subscriber notified after cancel")
	}
}
