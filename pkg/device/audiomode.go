package device

import (
	"context"
	"sync"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// AudioMode controls the audio processing mode. Like Source, the
// enumeration is cached per connection.
type AudioMode struct {
	s *Session

	mu   sync.Mutex
	list []protocol.AudioMode
}

// List returns the device's audio modes, serving the per-connection
// cache when warm.
func (f *AudioMode) List(ctx context.Context) ([]protocol.AudioMode, error) {
	f.mu.Lock()
	cached := f.list
	f.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	payloads, err := f.s.Submit(ctx, protocol.AudioModeListQuery())
	if err != nil {
		return nil, err
	}
	list, err := protocol.ParseAudioModeList(payloads)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.list = list
	f.mu.Unlock()
	return list, nil
}

// Refresh drops the cached enumeration and fetches it again.
func (f *AudioMode) Refresh(ctx context.Context) ([]protocol.AudioMode, error) {
	f.invalidate()
	return f.List(ctx)
}

// Current queries the device for the active audio mode.
func (f *AudioMode) Current(ctx context.Context) (protocol.AudioMode, error) {
	payloads, err := f.s.Submit(ctx, protocol.AudioModeQuery())
	if err != nil {
		return protocol.AudioMode{}, err
	}
	return protocol.ParseAudioMode(payloads[0])
}

// Select switches to the audio mode with the given index.
func (f *AudioMode) Select(ctx context.Context, index int) error {
	_, err := f.s.Submit(ctx, protocol.AudioModeSelect(index))
	return err
}

// SelectByName switches to the audio mode whose name matches, with the
// same matching rules as Source.SelectByName.
func (f *AudioMode) SelectByName(ctx context.Context, name string) error {
	list, err := f.List(ctx)
	if err != nil {
		return err
	}

	names := make([]string, len(list))
	for i, m := range list {
		names[i] = m.Name
	}
	pos, err := matchName(names, name)
	if err != nil {
		return err
	}
	return f.Select(ctx, list[pos].Index)
}

// Next cycles to the next audio mode.
func (f *AudioMode) Next(ctx context.Context) error {
	_, err := f.s.Submit(ctx, protocol.AudioModeNext())
	return err
}

// Previous cycles to the previous audio mode.
func (f *AudioMode) Previous(ctx context.Context) error {
	_, err := f.s.Submit(ctx, protocol.AudioModePrevious())
	return err
}

// AudioType queries the current input audio format description.
func (f *AudioMode) AudioType(ctx context.Context) (string, error) {
	payloads, err := f.s.Submit(ctx, protocol.AudioTypeQuery())
	if err != nil {
		return "", err
	}
	return protocol.ParseAudioType(payloads[0])
}

func (f *AudioMode) invalidate() {
	f.mu.Lock()
	f.list = nil
	f.mu.Unlock()
}
