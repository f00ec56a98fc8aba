package plugin

import (
	"context"
	"errors"
	"sync"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/roundrobinslice"
)

var errNoShards = errors.New("no plugin shard instances registered")

// Sharded fans requests out across several instances of the same
// plugin (spec §4.6 supplement: no Provider in spec.md requires this —
// it exists because a plugin that proxies a remote backend benefits
// from several independent connections rather than one shared
// instance serializing every call). Each Open picks the next instance
// in rotation; every subsequent call on the resulting handle is routed
// back to that same instance, since a handle is only meaningful to the
// instance that issued it. Path-addressed calls with no handle
// (Stat/Wstat/Statfs/Readdir/Remove) are routed to any instance in
// rotation, on the assumption that shards are interchangeable views of
// the same backing data.
type Sharded struct {
	rr *roundrobinslice.RoundRobinSlice[*Provider]

	mu      sync.Mutex
	owners  map[fs9.Handle]*Provider
	shards  []*Provider
	capBits fs9.Capabilities
}

var _ fs9.Provider = (*Sharded)(nil)

// NewSharded returns a Sharded provider rotating across instances.
// instances must be non-empty and must all report the same
// capabilities; callers typically create them via repeated
// Registry.CreateProvider calls against the same plugin name.
func NewSharded(instances []*Provider) *Sharded {
	var caps fs9.Capabilities
	if len(instances) > 0 {
		caps = instances[0].Capabilities()
	}
	return &Sharded{
		rr:      roundrobinslice.New(instances),
		owners:  make(map[fs9.Handle]*Provider),
		shards:  append([]*Provider(nil), instances...),
		capBits: caps,
	}
}

func (s *Sharded) anyShard() (*Provider, error) {
	p, ok := s.rr.Get()
	if !ok {
		return nil, fs9.Internal("plugin_shard", "", errNoShards)
	}
	return p, nil
}

func (s *Sharded) Stat(ctx context.Context, path fs9.Path) (fs9.FileInfo, error) {
	p, err := s.anyShard()
	if err != nil {
		return fs9.FileInfo{}, err
	}
	return p.Stat(ctx, path)
}

func (s *Sharded) Wstat(ctx context.Context, path fs9.Path, changes fs9.StatChanges) error {
	p, err := s.anyShard()
	if err != nil {
		return err
	}
	return p.Wstat(ctx, path, changes)
}

func (s *Sharded) Statfs(ctx context.Context, path fs9.Path) (fs9.FsStats, error) {
	p, err := s.anyShard()
	if err != nil {
		return fs9.FsStats{}, err
	}
	return p.Statfs(ctx, path)
}

func (s *Sharded) Open(ctx context.Context, path fs9.Path, flags fs9.OpenFlags) (fs9.Handle, error) {
	p, err := s.anyShard()
	if err != nil {
		return 0, err
	}
	h, err := p.Open(ctx, path, flags)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.owners[h] = p
	s.mu.Unlock()
	return h, nil
}

func (s *Sharded) owner(h fs9.Handle) (*Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.owners[h]
	if !ok {
		return nil, fs9.InvalidHandle("", h)
	}
	return p, nil
}

func (s *Sharded) Read(ctx context.Context, h fs9.Handle, offset int64, size int) ([]byte, error) {
	p, err := s.owner(h)
	if err != nil {
		return nil, err
	}
	return p.Read(ctx, h, offset, size)
}

func (s *Sharded) Write(ctx context.Context, h fs9.Handle, offset int64, data []byte) (int, error) {
	p, err := s.owner(h)
	if err != nil {
		return 0, err
	}
	return p.Write(ctx, h, offset, data)
}

func (s *Sharded) Close(ctx context.Context, h fs9.Handle, sync bool) error {
	p, err := s.owner(h)
	if err != nil {
		return err
	}
	closeErr := p.Close(ctx, h, sync)
	s.mu.Lock()
	delete(s.owners, h)
	s.mu.Unlock()
	return closeErr
}

func (s *Sharded) Readdir(ctx context.Context, path fs9.Path) ([]fs9.FileInfo, error) {
	p, err := s.anyShard()
	if err != nil {
		return nil, err
	}
	return p.Readdir(ctx, path)
}

func (s *Sharded) Remove(ctx context.Context, path fs9.Path) error {
	p, err := s.anyShard()
	if err != nil {
		return err
	}
	return p.Remove(ctx, path)
}

func (s *Sharded) Capabilities() fs9.Capabilities {
	return s.capBits
}

// Destroy tears down every shard instance exactly once.
func (s *Sharded) Destroy() {
	for _, p := range s.shards {
		p.Destroy()
	}
}
