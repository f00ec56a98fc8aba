// Package memfs implements MemoryFs, the in-memory reference Provider:
// a single lock-guarded tree with strong POSIX-like semantics used as
// ground truth for conformance tests of the other providers.
//
// Directory entries are keyed by canonical path, but every entry also
// carries a stable synthetic id, and handles address entries by id
// rather than path. This resolves spec design-note Open Question 1
// (MemoryFs rename reparenting): renaming a directory rewrites every
// descendant's path-index key under the new prefix in one pass, but
// each entry's id — and therefore any handle already open on it or a
// descendant — is untouched, matching PageFs's inode-stable behaviour
// instead of silently orphaning the subtree.
package memfs

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/internal/clock"
	"github.com/fs9/fs9fs/internal/logger"
)

type memEntry struct {
	id     uint64
	typ    fs9.FileType
	data   []byte
	target string

	mode uint32
	uid  uint32
	gid  uint32

	atime int64
	mtime int64
	ctime int64
}

func (e *memEntry) size() uint64 {
	switch e.typ {
	case fs9.Regular:
		return uint64(len(e.data))
	case fs9.Symlink:
		return uint64(len(e.target))
	default:
		return 0
	}
}

type openHandle struct {
	id    uint64
	flags fs9.OpenFlags
}

// MemoryFs is the in-memory reference Provider (spec §4.2).
type MemoryFs struct {
	clock clock.Clock
	log   *slog.Logger

	mu       sync.RWMutex
	entries  map[string]*memEntry
	idToPath map[uint64]string
	nextID   uint64

	handleMu   sync.Mutex
	handles    map[fs9.Handle]*openHandle
	nextHandle uint64
}

var _ fs9.Provider = (*MemoryFs)(nil)

// New returns an empty MemoryFs containing only the root directory.
func New(clk clock.Clock, log *slog.Logger) *MemoryFs {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	now := clk.Now().Unix()
	fs := &MemoryFs{
		clock:    clk,
		log:      log,
		entries:  make(map[string]*memEntry),
		idToPath: make(map[uint64]string),
		nextID:   2, // id 1 is the root
		handles:  make(map[fs9.Handle]*openHandle),
	}
	root := &memEntry{id: 1, typ: fs9.Directory, mode: 0o755, atime: now, mtime: now, ctime: now}
	fs.entries[fs9.Root] = root
	fs.idToPath[1] = fs9.Root
	return fs
}

func (m *MemoryFs) allocID() uint64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *MemoryFs) allocHandle() fs9.Handle {
	m.nextHandle++
	return fs9.Handle(m.nextHandle)
}

// childOf reports whether child is a direct child path of parent.
func childOf(parent, child string) bool {
	if parent == fs9.Root {
		return strings.Count(child, "/") == 1 && child != fs9.Root
	}
	if !strings.HasPrefix(child, parent+"/") {
		return false
	}
	return !strings.Contains(child[len(parent)+1:], "/")
}

func (m *MemoryFs) toInfo(path string, e *memEntry) fs9.FileInfo {
	info := fs9.FileInfo{
		Path:  path,
		Size:  e.size(),
		Type:  e.typ,
		Mode:  e.mode,
		UID:   e.uid,
		GID:   e.gid,
		Atime: e.atime,
		Mtime: e.mtime,
		Ctime: e.ctime,
	}
	if e.typ == fs9.Symlink {
		info.SymlinkTarget = e.target
	}
	return info
}

func (m *MemoryFs) touchAtimeLocked(e *memEntry) {
	now := m.clock.Now().Unix()
	// relatime-ish policy (SPEC_FULL.md §7.2): only bump atime if it is
	// stale relative to mtime or simply old.
	if e.atime < e.mtime || now-e.atime > 24*3600 {
		e.atime = now
	}
}

func (m *MemoryFs) Stat(_ context.Context, path fs9.Path) (fs9.FileInfo, error) {
	path = fs9.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	if !ok {
		return fs9.FileInfo{}, fs9.NotFound("stat", path)
	}
	m.touchAtimeLocked(e)
	return m.toInfo(path, e), nil
}

func (m *MemoryFs) Statfs(_ context.Context, _ fs9.Path) (fs9.FsStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var used uint64
	for _, e := range m.entries {
		used += e.size()
	}
	return fs9.FsStats{
		TotalBytes:  used + 1<<30,
		FreeBytes:   1 << 30,
		TotalInodes: uint64(len(m.entries)) + 1<<20,
		FreeInodes:  1 << 20,
		BlockSize:   4096,
		MaxNameLen:  255,
	}, nil
}

func (m *MemoryFs) Wstat(_ context.Context, path fs9.Path, ch fs9.StatChanges) error {
	path = fs9.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch.SymlinkTarget != nil {
		if _, exists := m.entries[path]; exists {
			return fs9.AlreadyExists("wstat", path)
		}
		parent := fs9.ParentPath(path)
		pe, ok := m.entries[parent]
		if !ok {
			return fs9.NotFound("wstat", path)
		}
		if pe.typ != fs9.Directory {
			return fs9.NotDirectory("wstat", path)
		}
		now := m.clock.Now().Unix()
		id := m.allocID()
		e := &memEntry{id: id, typ: fs9.Symlink, target: *ch.SymlinkTarget, mode: 0o777, atime: now, mtime: now, ctime: now}
		m.entries[path] = e
		m.idToPath[id] = path
		return nil
	}

	e, ok := m.entries[path]
	if !ok {
		return fs9.NotFound("wstat", path)
	}

	if ch.Name != nil {
		newPath := fs9.Clean(*ch.Name)
		if newPath != path {
			if _, exists := m.entries[newPath]; exists {
				return fs9.AlreadyExists("wstat", newPath)
			}
			newParent := fs9.ParentPath(newPath)
			pe, ok := m.entries[newParent]
			if !ok {
				return fs9.NotFound("wstat", newPath)
			}
			if pe.typ != fs9.Directory {
				return fs9.NotDirectory("wstat", newPath)
			}
			m.renameLocked(path, newPath)
			path = newPath
			e = m.entries[path]
		}
	}

	if ch.Size != nil {
		if e.typ == fs9.Directory {
			return fs9.IsDirectory("wstat", path)
		}
		newSize := *ch.Size
		if e.typ == fs9.Regular {
			if newSize <= uint64(len(e.data)) {
				e.data = e.data[:newSize]
			} else {
				grown := make([]byte, newSize)
				copy(grown, e.data)
				e.data = grown
			}
		}
		e.mtime = m.clock.Now().Unix()
	}
	if ch.Mode != nil {
		e.mode = *ch.Mode
	}
	if ch.UID != nil {
		e.uid = *ch.UID
	}
	if ch.GID != nil {
		e.gid = *ch.GID
	}
	if ch.Atime != nil {
		e.atime = *ch.Atime
	}
	if ch.Mtime != nil {
		e.mtime = *ch.Mtime
	}
	e.ctime = m.clock.Now().Unix()
	return nil
}

// renameLocked moves the entry at oldPath (and, if it is a directory,
// every descendant) to newPath, preserving each entry's id. Caller
// holds m.mu.
func (m *MemoryFs) renameLocked(oldPath, newPath string) {
	e := m.entries[oldPath]
	delete(m.entries, oldPath)
	m.entries[newPath] = e
	m.idToPath[e.id] = newPath

	if e.typ != fs9.Directory {
		return
	}
	prefix := oldPath
	if prefix == fs9.Root {
		prefix = ""
	}
	var moved []string
	for p := range m.entries {
		if p != oldPath && strings.HasPrefix(p, prefix+"/") {
			moved = append(moved, p)
		}
	}
	sort.Strings(moved)
	for _, p := range moved {
		suffix := p[len(prefix):]
		dst := newPath + suffix
		if newPath == fs9.Root {
			dst = suffix
		}
		ce := m.entries[p]
		delete(m.entries, p)
		m.entries[dst] = ce
		m.idToPath[ce.id] = dst
	}
}

func (m *MemoryFs) Open(_ context.Context, path fs9.Path, flags fs9.OpenFlags) (fs9.Handle, error) {
	path = fs9.Clean(path)
	m.mu.Lock()
	e, exists := m.entries[path]

	if flags.Create {
		if flags.Directory {
			if exists {
				m.mu.Unlock()
				return 0, fs9.AlreadyExists("open", path)
			}
			parent := fs9.ParentPath(path)
			pe, ok := m.entries[parent]
			if !ok {
				m.mu.Unlock()
				return 0, fs9.NotFound("open", path)
			}
			if pe.typ != fs9.Directory {
				m.mu.Unlock()
				return 0, fs9.NotDirectory("open", path)
			}
			now := m.clock.Now().Unix()
			id := m.allocID()
			e = &memEntry{id: id, typ: fs9.Directory, mode: 0o755, atime: now, mtime: now, ctime: now}
			m.entries[path] = e
			m.idToPath[id] = path
		} else if !exists {
			parent := fs9.ParentPath(path)
			pe, ok := m.entries[parent]
			if !ok {
				m.mu.Unlock()
				return 0, fs9.NotFound("open", path)
			}
			if pe.typ != fs9.Directory {
				m.mu.Unlock()
				return 0, fs9.NotDirectory("open", path)
			}
			now := m.clock.Now().Unix()
			id := m.allocID()
			e = &memEntry{id: id, typ: fs9.Regular, mode: 0o644, atime: now, mtime: now, ctime: now}
			m.entries[path] = e
			m.idToPath[id] = path
		} else {
			if e.typ == fs9.Directory {
				m.mu.Unlock()
				return 0, fs9.IsDirectory("open", path)
			}
			if flags.Truncate {
				e.data = nil
				e.mtime = m.clock.Now().Unix()
				e.ctime = e.mtime
			}
		}
	} else {
		if !exists {
			m.mu.Unlock()
			return 0, fs9.NotFound("open", path)
		}
		if flags.Directory && e.typ != fs9.Directory {
			m.mu.Unlock()
			return 0, fs9.NotDirectory("open", path)
		}
		if !flags.Directory && flags.Read && e.typ == fs9.Directory {
			m.mu.Unlock()
			return 0, fs9.IsDirectory("open", path)
		}
		if flags.Truncate && e.typ == fs9.Regular {
			e.data = nil
			e.mtime = m.clock.Now().Unix()
			e.ctime = e.mtime
		}
	}
	id := e.id
	m.mu.Unlock()

	m.handleMu.Lock()
	h := m.allocHandle()
	m.handles[h] = &openHandle{id: id, flags: flags}
	m.handleMu.Unlock()
	return h, nil
}

func (m *MemoryFs) lookupHandle(h fs9.Handle) (*openHandle, error) {
	m.handleMu.Lock()
	oh, ok := m.handles[h]
	m.handleMu.Unlock()
	if !ok {
		return nil, fs9.InvalidHandle("", h)
	}
	return oh, nil
}

func (m *MemoryFs) Read(_ context.Context, h fs9.Handle, offset int64, size int) ([]byte, error) {
	oh, err := m.lookupHandle(h)
	if err != nil {
		return nil, err
	}
	if !oh.flags.Read {
		return nil, fs9.PermissionDenied("read", "")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path, ok := m.idToPath[oh.id]
	if !ok {
		return nil, fs9.NotFound("read", "")
	}
	e := m.entries[path]
	if e.typ == fs9.Directory {
		return nil, fs9.IsDirectory("read", path)
	}
	m.touchAtimeLocked(e)
	var src []byte
	if e.typ == fs9.Symlink {
		src = []byte(e.target)
	} else {
		src = e.data
	}
	if offset < 0 || uint64(offset) >= uint64(len(src)) {
		return []byte{}, nil
	}
	end := uint64(offset) + uint64(size)
	if end > uint64(len(src)) {
		end = uint64(len(src))
	}
	out := make([]byte, end-uint64(offset))
	copy(out, src[offset:end])
	return out, nil
}

func (m *MemoryFs) Write(_ context.Context, h fs9.Handle, offset int64, data []byte) (int, error) {
	oh, err := m.lookupHandle(h)
	if err != nil {
		return 0, err
	}
	if !oh.flags.Write {
		return 0, fs9.PermissionDenied("write", "")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path, ok := m.idToPath[oh.id]
	if !ok {
		return 0, fs9.NotFound("write", "")
	}
	e := m.entries[path]
	if e.typ == fs9.Directory {
		return 0, fs9.IsDirectory("write", path)
	}
	if oh.flags.Append {
		offset = int64(len(e.data))
	}
	end := offset + int64(len(data))
	if end > int64(len(e.data)) {
		grown := make([]byte, end)
		copy(grown, e.data)
		e.data = grown
	}
	copy(e.data[offset:], data)
	now := m.clock.Now().Unix()
	e.mtime = now
	e.ctime = now
	return len(data), nil
}

func (m *MemoryFs) Close(_ context.Context, h fs9.Handle, _ bool) error {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()
	if _, ok := m.handles[h]; !ok {
		return fs9.InvalidHandle("close", h)
	}
	delete(m.handles, h)
	return nil
}

func (m *MemoryFs) Readdir(_ context.Context, path fs9.Path) ([]fs9.FileInfo, error) {
	path = fs9.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	dir, ok := m.entries[path]
	if !ok {
		return nil, fs9.NotFound("readdir", path)
	}
	if dir.typ != fs9.Directory {
		return nil, fs9.NotDirectory("readdir", path)
	}
	m.touchAtimeLocked(dir)

	var children []string
	for p := range m.entries {
		if p != path && childOf(path, p) {
			children = append(children, p)
		}
	}
	sort.Strings(children)
	out := make([]fs9.FileInfo, 0, len(children))
	for _, p := range children {
		out = append(out, m.toInfo(p, m.entries[p]))
	}
	return out, nil
}

func (m *MemoryFs) Remove(_ context.Context, path fs9.Path) error {
	path = fs9.Clean(path)
	if path == fs9.Root {
		return fs9.PermissionDenied("remove", path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	if !ok {
		return fs9.NotFound("remove", path)
	}
	if e.typ == fs9.Directory {
		for p := range m.entries {
			if p != path && childOf(path, p) {
				return fs9.DirectoryNotEmpty("remove", path)
			}
		}
	}
	delete(m.entries, path)
	delete(m.idToPath, e.id)
	return nil
}

func (m *MemoryFs) Capabilities() fs9.Capabilities {
	return fs9.CapPosixLike | fs9.CapAtomicRename | fs9.CapTruncate |
		fs9.CapChmod | fs9.CapUtime | fs9.CapRename | fs9.CapBasicRW |
		fs9.CapDirectory | fs9.CapCreate | fs9.CapDelete
}
