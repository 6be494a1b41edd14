package device

import (
	"context"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// Power controls the on/off state of the zones.
type Power struct {
	s *Session
}

// On powers a zone up.
func (f *Power) On(ctx context.Context, zone protocol.Zone) error {
	_, err := f.s.Submit(ctx, protocol.PowerOn(zone))
	return err
}

// Off puts a zone into standby.
func (f *Power) Off(ctx context.Context, zone protocol.Zone) error {
	_, err := f.s.Submit(ctx, protocol.PowerOff(zone))
	return err
}

// Status queries the device for a zone's power state.
func (f *Power) Status(ctx context.Context, zone protocol.Zone) (protocol.PowerState, error) {
	payloads, err := f.s.Submit(ctx, protocol.PowerQuery(zone))
	if err != nil {
		return protocol.PowerStateOff, err
	}
	return protocol.ParsePower(payloads[0], zone)
}
