package device

import (
	"context"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// Volume controls level and mute per zone. Levels are in dB, from
// protocol.MinVolumeDB to protocol.MaxVolumeDB.
type Volume struct {
	s *Session
}

// Set sets the absolute level of a zone.
func (f *Volume) Set(ctx context.Context, zone protocol.Zone, db float64) error {
	cmd, err := protocol.VolumeSet(zone, db)
	if err != nil {
		return err
	}
	_, err = f.s.Submit(ctx, cmd)
	return err
}

// Get queries the device for a zone's current level.
func (f *Volume) Get(ctx context.Context, zone protocol.Zone) (float64, error) {
	payloads, err := f.s.Submit(ctx, protocol.VolumeQuery(zone))
	if err != nil {
		return 0, err
	}
	return protocol.ParseVolume(payloads[0], zone)
}

// Up raises the level. step 0 uses the device's native step.
func (f *Volume) Up(ctx context.Context, zone protocol.Zone, step float64) error {
	_, err := f.s.Submit(ctx, protocol.VolumeUp(zone, step))
	return err
}

// Down lowers the level. step 0 uses the device's native step.
func (f *Volume) Down(ctx context.Context, zone protocol.Zone, step float64) error {
	_, err := f.s.Submit(ctx, protocol.VolumeDown(zone, step))
	return err
}

// Mute mutes a zone.
func (f *Volume) Mute(ctx context.Context, zone protocol.Zone) error {
	_, err := f.s.Submit(ctx, protocol.MuteOn(zone))
	return err
}

// Unmute unmutes a zone.
func (f *Volume) Unmute(ctx context.Context, zone protocol.Zone) error {
	_, err := f.s.Submit(ctx, protocol.MuteOff(zone))
	return err
}

// ToggleMute flips a zone's mute state.
func (f *Volume) ToggleMute(ctx context.Context, zone protocol.Zone) error {
	_, err := f.s.Submit(ctx, protocol.MuteToggle(zone))
	return err
}

// IsMuted queries the device for a zone's mute state.
func (f *Volume) IsMuted(ctx context.Context, zone protocol.Zone) (bool, error) {
	payloads, err := f.s.Submit(ctx, protocol.MuteQuery(zone))
	if err != nil {
		return false, err
	}
	return protocol.ParseMute(payloads[0], zone)
}
