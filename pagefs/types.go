package pagefs

import "github.com/fs9/fs9fs/fs9"

// superblock tracks inode allocation and page accounting, persisted as
// JSON under the single key "S".
type superblock struct {
	NextInode  uint64 `json:"next_inode"`
	PageSize   uint32 `json:"page_size"`
	TotalPages uint64 `json:"total_pages"`
	UsedPages  uint64 `json:"used_pages"`
}

// inodeRecord is the JSON-encoded metadata record for one inode,
// persisted under "I"+be64(id).
type inodeRecord struct {
	ID        uint64       `json:"id"`
	Type      fs9.FileType `json:"type"`
	Mode      uint32       `json:"mode"`
	UID       uint32       `json:"uid"`
	GID       uint32       `json:"gid"`
	Size      uint64       `json:"size"`
	PageCount uint64       `json:"page_count"`
	Atime     int64        `json:"atime"`
	Mtime     int64        `json:"mtime"`
	Ctime     int64        `json:"ctime"`
	Nlink     uint32       `json:"nlink"`
	Target    string       `json:"symlink_target,omitempty"`
}

func (in *inodeRecord) clone() *inodeRecord {
	c := *in
	return &c
}

type pageHandle struct {
	inode uint64
	flags fs9.OpenFlags
}

func pageCountFor(size uint64) uint64 {
	if size == 0 {
		return 1
	}
	return (size + PageSize - 1) / PageSize
}
