// Package pagefs implements PageFs, the paged-blob Provider layered on
// a pluggable ordered kv.Backend (spec §4.3): files are split into
// fixed 16KiB pages addressed by inode id, directories are keyed by
// parent inode rather than path, so renames move only a pointer and
// never a subtree.
package pagefs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/internal/clock"
	"github.com/fs9/fs9fs/internal/logger"
	"github.com/fs9/fs9fs/kv"
	"github.com/fs9/fs9fs/ttlcache"
)

// PageFs is the paged blob-store Provider (spec §4.3).
type PageFs struct {
	kv    kv.Backend
	clock clock.Clock
	log   *slog.Logger

	cache *ttlcache.Cache[uint64, *inodeRecord]

	sbMu sync.Mutex // serializes superblock read-modify-write for inode allocation

	handleMu   sync.Mutex
	handles    map[fs9.Handle]*pageHandle
	nextHandle uint64
}

var _ fs9.Provider = (*PageFs)(nil)

// New constructs a PageFs over backend, initializing the superblock
// and root inode if this is a fresh keyspace.
func New(ctx context.Context, backend kv.Backend, clk clock.Clock, log *slog.Logger) (*PageFs, error) {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	p := &PageFs{
		kv:      backend,
		clock:   clk,
		log:     log,
		cache:   ttlcache.New[uint64, *inodeRecord](2*time.Second, time.Second),
		handles: make(map[fs9.Handle]*pageHandle),
	}
	if err := p.ensureInit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PageFs) ensureInit(ctx context.Context) error {
	v, ok, err := p.kv.Get(ctx, superblockKey())
	if err != nil {
		return fs9.Internal("init", "", err)
	}
	if ok {
		var sb superblock
		if err := json.Unmarshal(v, &sb); err != nil {
			return fs9.Internal("init", "", err)
		}
		return nil
	}
	sb := superblock{NextInode: RootInode + 1, PageSize: PageSize}
	if err := p.putSuperblock(ctx, &sb); err != nil {
		return err
	}
	now := p.clock.Now().Unix()
	root := &inodeRecord{ID: RootInode, Type: fs9.Directory, Mode: 0o755, PageCount: 1, Atime: now, Mtime: now, Ctime: now, Nlink: 2}
	return p.saveInode(ctx, root)
}

func (p *PageFs) getSuperblock(ctx context.Context) (*superblock, error) {
	v, ok, err := p.kv.Get(ctx, superblockKey())
	if err != nil {
		return nil, fs9.Internal("superblock", "", err)
	}
	if !ok {
		return nil, fs9.Internal("superblock", "", nil)
	}
	var sb superblock
	if err := json.Unmarshal(v, &sb); err != nil {
		return nil, fs9.Internal("superblock", "", err)
	}
	return &sb, nil
}

func (p *PageFs) putSuperblock(ctx context.Context, sb *superblock) error {
	b, err := json.Marshal(sb)
	if err != nil {
		return fs9.Internal("superblock", "", err)
	}
	if err := p.kv.Set(ctx, superblockKey(), b); err != nil {
		return fs9.Internal("superblock", "", err)
	}
	return nil
}

func (p *PageFs) allocInode(ctx context.Context) (uint64, error) {
	p.sbMu.Lock()
	defer p.sbMu.Unlock()
	sb, err := p.getSuperblock(ctx)
	if err != nil {
		return 0, err
	}
	id := sb.NextInode
	sb.NextInode++
	if err := p.putSuperblock(ctx, sb); err != nil {
		return 0, err
	}
	return id, nil
}

func (p *PageFs) loadInode(ctx context.Context, id uint64) (*inodeRecord, error) {
	if rec, ok := p.cache.Get(id); ok {
		return rec.clone(), nil
	}
	v, ok, err := p.kv.Get(ctx, inodeKey(id))
	if err != nil {
		return nil, fs9.Internal("inode", "", err)
	}
	if !ok {
		return nil, fs9.NotFound("inode", "")
	}
	var rec inodeRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fs9.Internal("inode", "", err)
	}
	p.cache.Set(id, rec.clone())
	return &rec, nil
}

func (p *PageFs) saveInode(ctx context.Context, rec *inodeRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fs9.Internal("inode", "", err)
	}
	if err := p.kv.Set(ctx, inodeKey(rec.ID), b); err != nil {
		return fs9.Internal("inode", "", err)
	}
	p.cache.Set(rec.ID, rec.clone())
	return nil
}

func (p *PageFs) invalidateInode(id uint64) {
	p.cache.Delete(id)
}

func (p *PageFs) lookupChild(ctx context.Context, parent uint64, name string) (uint64, bool, error) {
	v, ok, err := p.kv.Get(ctx, dirEntryKey(parent, name))
	if err != nil {
		return 0, false, fs9.Internal("lookup", "", err)
	}
	if !ok {
		return 0, false, nil
	}
	return fromBe64(v), true, nil
}

func splitPath(path fs9.Path) []string {
	path = fs9.Clean(path)
	if path == fs9.Root {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// resolve walks path from root, returning the id of the terminal
// component.
func (p *PageFs) resolve(ctx context.Context, path fs9.Path) (uint64, error) {
	comps := splitPath(path)
	cur := uint64(RootInode)
	for i, c := range comps {
		if i > 0 {
			parentInode, err := p.loadInode(ctx, cur)
			if err != nil {
				return 0, err
			}
			if parentInode.Type != fs9.Directory {
				return 0, fs9.NotDirectory("resolve", path)
			}
		}
		id, ok, err := p.lookupChild(ctx, cur, c)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fs9.NotFound("resolve", path)
		}
		cur = id
	}
	return cur, nil
}

// resolveParent resolves path's parent directory id and returns it
// along with the final path component name.
func (p *PageFs) resolveParent(ctx context.Context, path fs9.Path) (uint64, string, error) {
	path = fs9.Clean(path)
	if path == fs9.Root {
		return 0, "", fs9.InvalidArgument("resolve", path, "root has no parent")
	}
	parentPath := fs9.ParentPath(path)
	name := fs9.BaseName(path)
	parentID, err := p.resolve(ctx, parentPath)
	if err != nil {
		return 0, "", err
	}
	parentInode, err := p.loadInode(ctx, parentID)
	if err != nil {
		return 0, "", err
	}
	if parentInode.Type != fs9.Directory {
		return 0, "", fs9.NotDirectory("resolve", path)
	}
	return parentID, name, nil
}

func (p *PageFs) toInfo(path fs9.Path, in *inodeRecord) fs9.FileInfo {
	return fs9.FileInfo{
		Path:          path,
		Size:          in.Size,
		Type:          in.Type,
		Mode:          in.Mode,
		UID:           in.UID,
		GID:           in.GID,
		Atime:         in.Atime,
		Mtime:         in.Mtime,
		Ctime:         in.Ctime,
		SymlinkTarget: in.Target,
	}
}

func (p *PageFs) touchAtime(in *inodeRecord) {
	now := p.clock.Now().Unix()
	if in.Atime < in.Mtime || now-in.Atime > 24*3600 {
		in.Atime = now
	}
}

func (p *PageFs) Stat(ctx context.Context, path fs9.Path) (fs9.FileInfo, error) {
	id, err := p.resolve(ctx, path)
	if err != nil {
		return fs9.FileInfo{}, err
	}
	in, err := p.loadInode(ctx, id)
	if err != nil {
		return fs9.FileInfo{}, err
	}
	p.touchAtime(in)
	_ = p.saveInode(ctx, in)
	return p.toInfo(fs9.Clean(path), in), nil
}

func (p *PageFs) Statfs(ctx context.Context, _ fs9.Path) (fs9.FsStats, error) {
	sb, err := p.getSuperblock(ctx)
	if err != nil {
		return fs9.FsStats{}, err
	}
	return fs9.FsStats{
		TotalBytes:  (sb.TotalPages + 1<<16) * PageSize,
		FreeBytes:   (1 << 16) * PageSize,
		TotalInodes: sb.NextInode + 1<<20,
		FreeInodes:  1 << 20,
		BlockSize:   PageSize,
		MaxNameLen:  255,
	}, nil
}

func (p *PageFs) Capabilities() fs9.Capabilities {
	return fs9.CapPosixLike | fs9.CapAtomicRename | fs9.CapTruncate |
		fs9.CapChmod | fs9.CapUtime | fs9.CapRename | fs9.CapBasicRW |
		fs9.CapDirectory | fs9.CapCreate | fs9.CapDelete
}

func (p *PageFs) lookupHandle(h fs9.Handle) (*pageHandle, error) {
	p.handleMu.Lock()
	ph, ok := p.handles[h]
	p.handleMu.Unlock()
	if !ok {
		return nil, fs9.InvalidHandle("", h)
	}
	return ph, nil
}

func (p *PageFs) Open(ctx context.Context, path fs9.Path, flags fs9.OpenFlags) (fs9.Handle, error) {
	path = fs9.Clean(path)
	id, err := p.resolve(ctx, path)
	exists := err == nil

	if !exists && fs9.KindOf(err) != fs9.KindNotFound {
		return 0, err
	}

	if flags.Create {
		if flags.Directory {
			if exists {
				return 0, fs9.AlreadyExists("open", path)
			}
			id, err = p.createEntry(ctx, path, fs9.Directory, 0o755)
			if err != nil {
				return 0, err
			}
		} else if !exists {
			id, err = p.createEntry(ctx, path, fs9.Regular, 0o644)
			if err != nil {
				return 0, err
			}
		} else {
			in, err := p.loadInode(ctx, id)
			if err != nil {
				return 0, err
			}
			if in.Type == fs9.Directory {
				return 0, fs9.IsDirectory("open", path)
			}
			if flags.Truncate {
				if err := p.truncateInode(ctx, in, 0); err != nil {
					return 0, err
				}
			}
		}
	} else {
		if !exists {
			return 0, fs9.NotFound("open", path)
		}
		in, err := p.loadInode(ctx, id)
		if err != nil {
			return 0, err
		}
		if flags.Directory && in.Type != fs9.Directory {
			return 0, fs9.NotDirectory("open", path)
		}
		if !flags.Directory && flags.Read && in.Type == fs9.Directory {
			return 0, fs9.IsDirectory("open", path)
		}
		if flags.Truncate && in.Type == fs9.Regular {
			if err := p.truncateInode(ctx, in, 0); err != nil {
				return 0, err
			}
		}
	}

	p.handleMu.Lock()
	p.nextHandle++
	h := fs9.Handle(p.nextHandle)
	p.handles[h] = &pageHandle{inode: id, flags: flags}
	p.handleMu.Unlock()
	return h, nil
}

func (p *PageFs) createEntry(ctx context.Context, path fs9.Path, typ fs9.FileType, mode uint32) (uint64, error) {
	parentID, name, err := p.resolveParent(ctx, path)
	if err != nil {
		return 0, err
	}
	id, err := p.allocInode(ctx)
	if err != nil {
		return 0, err
	}
	now := p.clock.Now().Unix()
	rec := &inodeRecord{ID: id, Type: typ, Mode: mode, PageCount: 1, Atime: now, Mtime: now, Ctime: now, Nlink: 1}
	if typ == fs9.Directory {
		rec.Nlink = 2
	}
	if err := p.saveInode(ctx, rec); err != nil {
		return 0, err
	}
	if err := p.kv.Set(ctx, dirEntryKey(parentID, name), be64(id)); err != nil {
		return 0, fs9.Internal("create", path, err)
	}
	return id, nil
}

// Read implements the algorithm of spec §4.3: clamp to inode.size,
// gather pages covering the requested range, copy the relevant slices.
func (p *PageFs) Read(ctx context.Context, h fs9.Handle, offset int64, size int) ([]byte, error) {
	ph, err := p.lookupHandle(h)
	if err != nil {
		return nil, err
	}
	if !ph.flags.Read {
		return nil, fs9.PermissionDenied("read", "")
	}
	in, err := p.loadInode(ctx, ph.inode)
	if err != nil {
		return nil, err
	}
	if in.Type == fs9.Directory {
		return nil, fs9.IsDirectory("read", "")
	}
	if offset < 0 || uint64(offset) >= in.Size || size <= 0 {
		return []byte{}, nil
	}
	effLen := uint64(size)
	if uint64(offset)+effLen > in.Size {
		effLen = in.Size - uint64(offset)
	}
	out := make([]byte, effLen)
	startPage := uint64(offset) / PageSize
	endPage := (uint64(offset) + effLen - 1) / PageSize
	for pn := startPage; pn <= endPage; pn++ {
		page, err := p.readPage(ctx, in.ID, pn)
		if err != nil {
			return nil, err
		}
		pageStart := pn * PageSize
		segStart := uint64(offset)
		if pageStart > segStart {
			segStart = pageStart
		}
		segEnd := uint64(offset) + effLen
		if pageEnd := pageStart + PageSize; pageEnd < segEnd {
			segEnd = pageEnd
		}
		copy(out[segStart-uint64(offset):segEnd-uint64(offset)], page[segStart-pageStart:segEnd-pageStart])
	}
	p.touchAtime(in)
	_ = p.saveInode(ctx, in)
	return out, nil
}

func (p *PageFs) readPage(ctx context.Context, inode, pageNum uint64) ([]byte, error) {
	v, ok, err := p.kv.Get(ctx, pageKey(inode, pageNum))
	if err != nil {
		return nil, fs9.Internal("read", "", err)
	}
	if !ok {
		return make([]byte, PageSize), nil
	}
	if len(v) == PageSize {
		return v, nil
	}
	out := make([]byte, PageSize)
	copy(out, v)
	return out, nil
}

func (p *PageFs) writePage(ctx context.Context, inode, pageNum uint64, data []byte) error {
	full := data
	if len(data) != PageSize {
		full = make([]byte, PageSize)
		copy(full, data)
	}
	if err := p.kv.Set(ctx, pageKey(inode, pageNum), full); err != nil {
		return fs9.Internal("write", "", err)
	}
	return nil
}

// Write implements the read-modify-write algorithm of spec §4.3,
// including implicit zero-fill for sparse writes past the current end.
func (p *PageFs) Write(ctx context.Context, h fs9.Handle, offset int64, data []byte) (int, error) {
	ph, err := p.lookupHandle(h)
	if err != nil {
		return 0, err
	}
	if !ph.flags.Write {
		return 0, fs9.PermissionDenied("write", "")
	}
	in, err := p.loadInode(ctx, ph.inode)
	if err != nil {
		return 0, err
	}
	if in.Type == fs9.Directory {
		return 0, fs9.IsDirectory("write", "")
	}
	if ph.flags.Append {
		offset = int64(in.Size)
	}
	if len(data) == 0 {
		return 0, nil
	}
	startPage := uint64(offset) / PageSize
	endPage := (uint64(offset) + uint64(len(data)) - 1) / PageSize
	for pn := startPage; pn <= endPage; pn++ {
		pageStart := pn * PageSize
		segStart := uint64(offset)
		if pageStart > segStart {
			segStart = pageStart
		}
		segEnd := uint64(offset) + uint64(len(data))
		if pageEnd := pageStart + PageSize; pageEnd < segEnd {
			segEnd = pageEnd
		}
		fullPageWrite := segStart == pageStart && segEnd == pageStart+PageSize
		var page []byte
		if fullPageWrite {
			page = make([]byte, PageSize)
		} else {
			page, err = p.readPage(ctx, in.ID, pn)
			if err != nil {
				return 0, err
			}
		}
		copy(page[segStart-pageStart:segEnd-pageStart], data[segStart-uint64(offset):segEnd-uint64(offset)])
		if err := p.writePage(ctx, in.ID, pn, page); err != nil {
			return 0, err
		}
	}
	writeEnd := uint64(offset) + uint64(len(data))
	if writeEnd > in.Size {
		in.Size = writeEnd
	}
	in.PageCount = pageCountFor(in.Size)
	now := p.clock.Now().Unix()
	in.Mtime = now
	in.Ctime = now
	if err := p.saveInode(ctx, in); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (p *PageFs) Close(_ context.Context, h fs9.Handle, _ bool) error {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()
	if _, ok := p.handles[h]; !ok {
		return fs9.InvalidHandle("close", h)
	}
	delete(p.handles, h)
	return nil
}

func (p *PageFs) Readdir(ctx context.Context, path fs9.Path) ([]fs9.FileInfo, error) {
	path = fs9.Clean(path)
	id, err := p.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	dirInode, err := p.loadInode(ctx, id)
	if err != nil {
		return nil, err
	}
	if dirInode.Type != fs9.Directory {
		return nil, fs9.NotDirectory("readdir", path)
	}
	entries, err := p.kv.Scan(ctx, dirPrefixKey(id))
	if err != nil {
		return nil, fs9.Internal("readdir", path, err)
	}
	names := make([]string, 0, len(entries))
	idsByName := make(map[string]uint64, len(entries))
	for _, e := range entries {
		name := nameFromDirEntryKey(e.Key)
		names = append(names, name)
		idsByName[name] = fromBe64(e.Value)
	}
	sort.Strings(names)
	out := make([]fs9.FileInfo, 0, len(names))
	for _, name := range names {
		childID := idsByName[name]
		childInode, err := p.loadInode(ctx, childID)
		if err != nil {
			return nil, err
		}
		out = append(out, p.toInfo(fs9.Join(path, name), childInode))
	}
	p.touchAtime(dirInode)
	_ = p.saveInode(ctx, dirInode)
	return out, nil
}

func (p *PageFs) isDirEmpty(ctx context.Context, id uint64) (bool, error) {
	entries, err := p.kv.Scan(ctx, dirPrefixKey(id))
	if err != nil {
		return false, fs9.Internal("remove", "", err)
	}
	return len(entries) == 0, nil
}

func (p *PageFs) Remove(ctx context.Context, path fs9.Path) error {
	path = fs9.Clean(path)
	if path == fs9.Root {
		return fs9.PermissionDenied("remove", path)
	}
	parentID, name, err := p.resolveParent(ctx, path)
	if err != nil {
		return err
	}
	id, ok, err := p.lookupChild(ctx, parentID, name)
	if err != nil {
		return err
	}
	if !ok {
		return fs9.NotFound("remove", path)
	}
	in, err := p.loadInode(ctx, id)
	if err != nil {
		return err
	}
	if in.Type == fs9.Directory {
		empty, err := p.isDirEmpty(ctx, id)
		if err != nil {
			return err
		}
		if !empty {
			return fs9.DirectoryNotEmpty("remove", path)
		}
	} else {
		if err := p.deleteAllPages(ctx, id); err != nil {
			return err
		}
	}
	if err := p.kv.Delete(ctx, inodeKey(id)); err != nil {
		return fs9.Internal("remove", path, err)
	}
	if err := p.kv.Delete(ctx, dirEntryKey(parentID, name)); err != nil {
		return fs9.Internal("remove", path, err)
	}
	p.invalidateInode(id)
	return nil
}

func (p *PageFs) deleteAllPages(ctx context.Context, inode uint64) error {
	entries, err := p.kv.Scan(ctx, pagePrefixKey(inode))
	if err != nil {
		return fs9.Internal("remove", "", err)
	}
	for _, e := range entries {
		if err := p.kv.Delete(ctx, e.Key); err != nil {
			return fs9.Internal("remove", "", err)
		}
	}
	return nil
}

// truncateInode implements the shrink/grow truncation rules of spec
// §4.3: shrink deletes pages beyond the new last page and zero-fills
// the tail of the new last page; grow appends zero pages.
func (p *PageFs) truncateInode(ctx context.Context, in *inodeRecord, newSize uint64) error {
	oldPageCount := pageCountFor(in.Size)
	newPageCount := pageCountFor(newSize)

	if newSize < in.Size {
		lastPage := (newSize) / PageSize
		if newSize%PageSize != 0 || newSize == 0 {
			page, err := p.readPage(ctx, in.ID, lastPage)
			if err != nil {
				return err
			}
			off := newSize % PageSize
			for i := off; i < PageSize; i++ {
				page[i] = 0
			}
			if err := p.writePage(ctx, in.ID, lastPage, page); err != nil {
				return err
			}
		}
		for pn := newPageCount; pn < oldPageCount; pn++ {
			if err := p.kv.Delete(ctx, pageKey(in.ID, pn)); err != nil {
				return fs9.Internal("truncate", "", err)
			}
		}
	} else if newSize > in.Size {
		zero := make([]byte, PageSize)
		for pn := oldPageCount; pn < newPageCount; pn++ {
			if err := p.writePage(ctx, in.ID, pn, zero); err != nil {
				return err
			}
		}
	}
	in.Size = newSize
	in.PageCount = newPageCount
	now := p.clock.Now().Unix()
	in.Mtime = now
	in.Ctime = now
	return p.saveInode(ctx, in)
}

func (p *PageFs) Wstat(ctx context.Context, path fs9.Path, ch fs9.StatChanges) error {
	path = fs9.Clean(path)

	if ch.SymlinkTarget != nil {
		parentID, name, err := p.resolveParent(ctx, path)
		if err != nil {
			return err
		}
		if _, ok, _ := p.lookupChild(ctx, parentID, name); ok {
			return fs9.AlreadyExists("wstat", path)
		}
		id, err := p.allocInode(ctx)
		if err != nil {
			return err
		}
		now := p.clock.Now().Unix()
		rec := &inodeRecord{ID: id, Type: fs9.Symlink, Mode: 0o777, Target: *ch.SymlinkTarget,
			Size: uint64(len(*ch.SymlinkTarget)), PageCount: 1, Atime: now, Mtime: now, Ctime: now, Nlink: 1}
		if err := p.saveInode(ctx, rec); err != nil {
			return err
		}
		return p.kv.Set(ctx, dirEntryKey(parentID, name), be64(id))
	}

	if ch.Name != nil {
		if err := p.rename(ctx, path, fs9.Clean(*ch.Name)); err != nil {
			return err
		}
		path = fs9.Clean(*ch.Name)
	}

	id, err := p.resolve(ctx, path)
	if err != nil {
		return err
	}
	in, err := p.loadInode(ctx, id)
	if err != nil {
		return err
	}

	if ch.Size != nil {
		if in.Type == fs9.Directory {
			return fs9.IsDirectory("wstat", path)
		}
		if err := p.truncateInode(ctx, in, *ch.Size); err != nil {
			return err
		}
	}
	if ch.Mode != nil {
		in.Mode = *ch.Mode
	}
	if ch.UID != nil {
		in.UID = *ch.UID
	}
	if ch.GID != nil {
		in.GID = *ch.GID
	}
	if ch.Atime != nil {
		in.Atime = *ch.Atime
	}
	if ch.Mtime != nil {
		in.Mtime = *ch.Mtime
	}
	in.Ctime = p.clock.Now().Unix()
	return p.saveInode(ctx, in)
}

// rename moves the directory entry for oldPath to newPath, preserving
// the inode id (spec §4.3's "preserves the inode id" testable
// property). Within one directory and across directories alike, it
// writes the new entry key, then deletes the old one.
func (p *PageFs) rename(ctx context.Context, oldPath, newPath fs9.Path) error {
	oldParentID, oldName, err := p.resolveParent(ctx, oldPath)
	if err != nil {
		return err
	}
	id, ok, err := p.lookupChild(ctx, oldParentID, oldName)
	if err != nil {
		return err
	}
	if !ok {
		return fs9.NotFound("rename", oldPath)
	}
	srcInode, err := p.loadInode(ctx, id)
	if err != nil {
		return err
	}

	newParentID, newName, err := p.resolveParent(ctx, newPath)
	if err != nil {
		return err
	}

	if dstID, ok, err := p.lookupChild(ctx, newParentID, newName); err != nil {
		return err
	} else if ok {
		dstInode, err := p.loadInode(ctx, dstID)
		if err != nil {
			return err
		}
		if dstInode.Type == fs9.Directory {
			if srcInode.Type != fs9.Directory {
				return fs9.NotDirectory("rename", newPath)
			}
			empty, err := p.isDirEmpty(ctx, dstID)
			if err != nil {
				return err
			}
			if !empty {
				return fs9.DirectoryNotEmpty("rename", newPath)
			}
		} else if srcInode.Type == fs9.Directory {
			return fs9.IsDirectory("rename", newPath)
		}
		if err := p.deleteAllPages(ctx, dstID); err != nil {
			return err
		}
		if err := p.kv.Delete(ctx, inodeKey(dstID)); err != nil {
			return fs9.Internal("rename", newPath, err)
		}
		p.invalidateInode(dstID)
	}

	if err := p.kv.Set(ctx, dirEntryKey(newParentID, newName), be64(id)); err != nil {
		return fs9.Internal("rename", newPath, err)
	}
	if err := p.kv.Delete(ctx, dirEntryKey(oldParentID, oldName)); err != nil {
		return fs9.Internal("rename", oldPath, err)
	}
	return nil
}
