package plugin

import (
	"context"
	"sync"
	"unsafe"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/pluginabi"
)

// Provider is a host-side fs9.Provider backed by one plugin instance,
// calling through its vtable for every method (spec §4.6 step 4: "a
// host-side provider that implements the contract by calling through
// the vtable").
type Provider struct {
	vt       *pluginabi.VTable
	instance unsafe.Pointer

	destroyOnce sync.Once
}

var _ fs9.Provider = (*Provider)(nil)

func (p *Provider) Stat(_ context.Context, path fs9.Path) (fs9.FileInfo, error) {
	return p.vt.Stat(p.instance, string(path))
}

func (p *Provider) Wstat(_ context.Context, path fs9.Path, changes fs9.StatChanges) error {
	return p.vt.Wstat(p.instance, string(path), changes)
}

func (p *Provider) Statfs(_ context.Context, path fs9.Path) (fs9.FsStats, error) {
	return p.vt.Statfs(p.instance, string(path))
}

func (p *Provider) Open(_ context.Context, path fs9.Path, flags fs9.OpenFlags) (fs9.Handle, error) {
	return p.vt.Open(p.instance, string(path), flags)
}

func (p *Provider) Read(_ context.Context, h fs9.Handle, offset int64, size int) ([]byte, error) {
	return p.vt.Read(p.instance, h, offset, size)
}

func (p *Provider) Write(_ context.Context, h fs9.Handle, offset int64, data []byte) (int, error) {
	return p.vt.Write(p.instance, h, offset, data)
}

func (p *Provider) Close(_ context.Context, h fs9.Handle, sync bool) error {
	return p.vt.Close(p.instance, h, sync)
}

func (p *Provider) Readdir(_ context.Context, path fs9.Path) ([]fs9.FileInfo, error) {
	var entries []fs9.FileInfo
	err := p.vt.Readdir(p.instance, string(path), func(e fs9.FileInfo) bool {
		entries = append(entries, e)
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *Provider) Remove(_ context.Context, path fs9.Path) error {
	return p.vt.Remove(p.instance, string(path))
}

func (p *Provider) Capabilities() fs9.Capabilities {
	return p.vt.Capabilities(p.instance)
}

// Destroy invokes the plugin's destroy entry exactly once for this
// instance (spec §4.6 drop semantics).
func (p *Provider) Destroy() {
	p.destroyOnce.Do(func() {
		p.vt.Destroy(p.instance)
	})
}
