// Package fs9 defines the shared data model and provider contract that
// every storage backend in this module implements: paths, file
// metadata, open flags, stat mutations, handles, capability bits and
// the Provider interface itself.
package fs9

import "context"

// Path is a canonical, UTF-8, '/'-separated file path. Canonical form
// has a leading '/', no trailing '/' except for the root itself, no
// empty components and no '.' or '..' components. Callers are
// responsible for normalizing before calling into a Provider; use
// Clean to do so.
type Path = string

// Root is the canonical path of the root directory.
const Root Path = "/"

// FileType distinguishes the three kinds of entry the data model
// supports.
type FileType int

const (
	Regular FileType = iota
	Directory
	Symlink
)

func (t FileType) String() string {
	switch t {
	case Regular:
		return "regular"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileInfo describes an entry as returned by Stat and Readdir.
type FileInfo struct {
	Path          Path
	Size          uint64
	Type          FileType
	Mode          uint32
	UID           uint32
	GID           uint32
	Atime         int64
	Mtime         int64
	Ctime         int64
	ETag          string
	SymlinkTarget string
}

// OpenFlags controls the semantics of Open.
type OpenFlags struct {
	Read      bool
	Write     bool
	Create    bool
	Truncate  bool
	Append    bool
	Directory bool
}

// StatChanges carries the optional mutations accepted by Wstat. A zero
// value is a legal no-op that still refreshes ctime.
type StatChanges struct {
	Mode          *uint32
	UID           *uint32
	GID           *uint32
	Size          *uint64
	Atime         *int64
	Mtime         *int64
	Name          *string // rename target, absolute path
	SymlinkTarget *string // create a symlink at this path
}

// Handle is an opaque, per-provider identifier for an open file or
// directory. It is unique within the provider for its lifetime and is
// invalidated by exactly one successful Close.
type Handle uint64

// Capabilities is a bitset advertising which optional operations a
// provider honours.
type Capabilities uint32

const (
	CapPosixLike Capabilities = 1 << iota
	CapETag
	CapAtomicRename
	CapTruncate
	CapChmod
	CapUtime
	CapRename
	CapBasicRW
	CapDirectory
	CapCreate
	CapDelete
)

// Has reports whether all bits in want are set in c.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// FsStats is the result of Statfs.
type FsStats struct {
	TotalBytes  uint64
	FreeBytes   uint64
	TotalInodes uint64
	FreeInodes  uint64
	BlockSize   uint32
	MaxNameLen  uint32
}

// Provider is the abstract operation set every storage backend
// satisfies. Implementations must be safe for concurrent use from
// multiple goroutines; operations may suspend during I/O, so every
// blocking call takes a context.Context.
type Provider interface {
	Stat(ctx context.Context, path Path) (FileInfo, error)
	Wstat(ctx context.Context, path Path, changes StatChanges) error
	Statfs(ctx context.Context, path Path) (FsStats, error)
	Open(ctx context.Context, path Path, flags OpenFlags) (Handle, error)
	Read(ctx context.Context, h Handle, offset int64, size int) ([]byte, error)
	Write(ctx context.Context, h Handle, offset int64, data []byte) (int, error)
	Close(ctx context.Context, h Handle, sync bool) error
	Readdir(ctx context.Context, path Path) ([]FileInfo, error)
	Remove(ctx context.Context, path Path) error
	Capabilities() Capabilities
}
