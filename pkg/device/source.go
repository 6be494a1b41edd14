package device

import (
	"context"
	"sync"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// Source controls input selection. The enumeration is fetched once per
// connection and cached; reconnects invalidate it.
type Source struct {
	s *Session

	mu   sync.Mutex
	list []protocol.Source
}

// List returns the device's sources, serving the per-connection cache
// when warm.
func (f *Source) List(ctx context.Context) ([]protocol.Source, error) {
	f.mu.Lock()
	cached := f.list
	f.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	payloads, err := f.s.Submit(ctx, protocol.SourceListQuery())
	if err != nil {
		return nil, err
	}
	list, err := protocol.ParseSourceList(payloads)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.list = list
	f.mu.Unlock()
	return list, nil
}

// Refresh drops the cached enumeration and fetches it again.
func (f *Source) Refresh(ctx context.Context) ([]protocol.Source, error) {
	f.invalidate()
	return f.List(ctx)
}

// Current queries the device for the active source.
func (f *Source) Current(ctx context.Context) (protocol.Source, error) {
	payloads, err := f.s.Submit(ctx, protocol.SourceQuery())
	if err != nil {
		return protocol.Source{}, err
	}
	return protocol.ParseSource(payloads[0])
}

// Select switches to the source with the given index.
func (f *Source) Select(ctx context.Context, index int) error {
	_, err := f.s.Submit(ctx, protocol.SourceSelect(index))
	return err
}

// SelectByName switches to the source whose name matches: exact
// case-insensitive match first, then unique substring. Fails with
// ErrAmbiguousName or ErrNameNotFound.
func (f *Source) SelectByName(ctx context.Context, name string) error {
	list, err := f.List(ctx)
	if err != nil {
		return err
	}

	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name
	}
	pos, err := matchName(names, name)
	if err != nil {
		return err
	}
	return f.Select(ctx, list[pos].Index)
}

func (f *Source) invalidate() {
	f.mu.Lock()
	f.list = nil
	f.mu.Unlock()
}
