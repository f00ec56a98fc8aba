package pagefs

import "encoding/binary"

// PageSize is the fixed page width PageFs splices all file content
// into (spec §4.3).
const PageSize = 16 * 1024

// RootInode is the reserved id of the root directory; non-root ids are
// allocated monotonically starting at 2 from the superblock counter.
const RootInode = 1

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func fromBe64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func superblockKey() []byte {
	return []byte("S")
}

func inodeKey(id uint64) []byte {
	return append([]byte("I"), be64(id)...)
}

func dirEntryKey(parent uint64, name string) []byte {
	k := append([]byte("D"), be64(parent)...)
	k = append(k, ':')
	return append(k, name...)
}

func dirPrefixKey(parent uint64) []byte {
	k := append([]byte("D"), be64(parent)...)
	return append(k, ':')
}

func pageKey(inode, pageNum uint64) []byte {
	k := append([]byte("P"), be64(inode)...)
	k = append(k, ':')
	return append(k, be64(pageNum)...)
}

func pagePrefixKey(inode uint64) []byte {
	k := append([]byte("P"), be64(inode)...)
	return append(k, ':')
}

// nameFromDirEntryKey strips the "D"+be64(parent)+":" prefix, returning
// the child name.
func nameFromDirEntryKey(key []byte) string {
	// 1 (tag) + 8 (be64 parent) + 1 (':')
	return string(key[10:])
}
