// Package pluginabi is the Go side of the C ABI a dynamic-library
// plugin exports (spec §4.6, §6). It owns struct/constant definitions
// and by-value marshalling only; symbol resolution and library
// lifetime belong to package plugin.
package pluginabi

/*
#include <stdlib.h>
#include <string.h>
#include "fs9_plugin.h"

extern int fs9go_readdir_trampoline(fs9_file_info *entry, void *user_data);
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/fs9/fs9fs/fs9"
)

// SDKVersion is the plugin ABI version this host implements.
const SDKVersion = uint32(C.FS9_SDK_VERSION)

// VTable is an opaque handle to a vtable copied out of plugin-owned
// storage (spec §4.6 step 2: "reads the vtable by value").
type VTable struct {
	c C.fs9_plugin_vtable
}

// VTableFromPointer copies *p by value into a host-owned VTable.
func VTableFromPointer(p unsafe.Pointer) *VTable {
	return &VTable{c: *(*C.fs9_plugin_vtable)(p)}
}

// Name returns the plugin's self-reported name.
func (vt *VTable) Name() string {
	return C.GoStringN(vt.c.name, C.int(vt.c.name_len))
}

// Version returns the plugin's self-reported version string.
func (vt *VTable) Version() string {
	return C.GoStringN(vt.c.version, C.int(vt.c.version_len))
}

func resultToErr(op, path string, r C.fs9_result) error {
	if r.code == C.FS9_OK {
		return nil
	}
	msg := C.GoStringN(r.error_msg, C.int(r.error_msg_len))
	kind := fs9.KindInternal
	switch r.code {
	case C.FS9_ERR_NOT_FOUND:
		kind = fs9.KindNotFound
	case C.FS9_ERR_ALREADY_EXISTS:
		kind = fs9.KindAlreadyExists
	case C.FS9_ERR_PERMISSION_DENIED:
		kind = fs9.KindPermissionDenied
	case C.FS9_ERR_INVALID_ARGUMENT:
		kind = fs9.KindInvalidArgument
	case C.FS9_ERR_NOT_DIRECTORY:
		kind = fs9.KindNotDirectory
	case C.FS9_ERR_IS_DIRECTORY:
		kind = fs9.KindIsDirectory
	case C.FS9_ERR_DIRECTORY_NOT_EMPTY:
		kind = fs9.KindDirectoryNotEmpty
	case C.FS9_ERR_INVALID_HANDLE:
		kind = fs9.KindInvalidHandle
	case C.FS9_ERR_NOT_IMPLEMENTED:
		kind = fs9.KindNotImplemented
	case C.FS9_ERR_INTERNAL:
		kind = fs9.KindInternal
	}
	if msg == "" {
		msg = "plugin returned an unrecognized error code"
	}
	return &fs9.Error{Kind: kind, Op: op, Path: path, Err: errorString(msg)}
}

type errorString string

func (e errorString) Error() string { return string(e) }

func cFileTypeToGo(ft C.uint32_t) fs9.FileType {
	switch ft {
	case 2:
		return fs9.Directory
	case 3:
		return fs9.Symlink
	default:
		return fs9.Regular
	}
}

func goFileTypeToC(ft fs9.FileType) C.uint32_t {
	switch ft {
	case fs9.Directory:
		return 2
	case fs9.Symlink:
		return 3
	default:
		return 1
	}
}

func cFileInfoToGo(path string, c *C.fs9_file_info) fs9.FileInfo {
	return fs9.FileInfo{
		Path:  path,
		Size:  uint64(c.size),
		Type:  cFileTypeToGo(c.file_type),
		Mode:  uint32(c.mode),
		UID:   uint32(c.uid),
		GID:   uint32(c.gid),
		Atime: int64(c.atime),
		Mtime: int64(c.mtime),
		Ctime: int64(c.ctime),
	}
}

func goOpenFlagsToC(f fs9.OpenFlags) C.fs9_open_flags {
	b := func(v bool) C.uint8_t {
		if v {
			return 1
		}
		return 0
	}
	return C.fs9_open_flags{
		read:      b(f.Read),
		write:     b(f.Write),
		create:    b(f.Create),
		truncate:  b(f.Truncate),
		append:    b(f.Append),
		directory: b(f.Directory),
	}
}

// Stat calls through the vtable's stat entry.
func (vt *VTable) Stat(instance unsafe.Pointer, path string) (fs9.FileInfo, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var out C.fs9_file_info
	r := C.fs9_call_stat(&vt.c, instance, cpath, C.size_t(len(path)), &out)
	if err := resultToErr("stat", path, r); err != nil {
		return fs9.FileInfo{}, err
	}
	return cFileInfoToGo(path, &out), nil
}

// Open calls through the vtable's open entry.
func (vt *VTable) Open(instance unsafe.Pointer, path string, flags fs9.OpenFlags) (fs9.Handle, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var h C.uint64_t
	r := C.fs9_call_open(&vt.c, instance, cpath, C.size_t(len(path)), goOpenFlagsToC(flags), &h)
	if err := resultToErr("open", path, r); err != nil {
		return 0, err
	}
	return fs9.Handle(h), nil
}

// Read calls through the vtable's read entry. The returned bytes are a
// Go-owned copy; fs9_bytes_free is called on the plugin-owned buffer
// before returning.
func (vt *VTable) Read(instance unsafe.Pointer, handle fs9.Handle, offset int64, size int) ([]byte, error) {
	var out C.fs9_bytes
	r := C.fs9_call_read(&vt.c, instance, C.uint64_t(handle), C.int64_t(offset), C.size_t(size), &out)
	if err := resultToErr("read", "", r); err != nil {
		return nil, err
	}
	if out.len == 0 {
		return []byte{}, nil
	}
	data := C.GoBytes(unsafe.Pointer(out.data), C.int(out.len))
	C.fs9_call_bytes_free(&vt.c, &out)
	return data, nil
}

// Write calls through the vtable's write entry.
func (vt *VTable) Write(instance unsafe.Pointer, handle fs9.Handle, offset int64, data []byte) (int, error) {
	var dataPtr *C.uint8_t
	if len(data) > 0 {
		dataPtr = (*C.uint8_t)(unsafe.Pointer(&data[0]))
	}
	var written C.size_t
	r := C.fs9_call_write(&vt.c, instance, C.uint64_t(handle), C.int64_t(offset), dataPtr, C.size_t(len(data)), &written)
	if err := resultToErr("write", "", r); err != nil {
		return 0, err
	}
	return int(written), nil
}

// Close calls through the vtable's close entry.
func (vt *VTable) Close(instance unsafe.Pointer, handle fs9.Handle, sync bool) error {
	var s C.uint8_t
	if sync {
		s = 1
	}
	r := C.fs9_call_close(&vt.c, instance, C.uint64_t(handle), s)
	return resultToErr("close", "", r)
}

// Remove calls through the vtable's remove entry.
func (vt *VTable) Remove(instance unsafe.Pointer, path string) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	r := C.fs9_call_remove(&vt.c, instance, cpath, C.size_t(len(path)))
	return resultToErr("remove", path, r)
}

// Capabilities calls through the vtable's capabilities entry.
func (vt *VTable) Capabilities(instance unsafe.Pointer) fs9.Capabilities {
	return fs9.Capabilities(C.fs9_call_capabilities(&vt.c, instance))
}

// Statfs calls through the vtable's statfs entry.
func (vt *VTable) Statfs(instance unsafe.Pointer, path string) (fs9.FsStats, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var blockSize, totalBlocks, freeBlocks, totalInodes, freeInodes C.uint64_t
	var maxNameLen C.uint32_t
	r := C.fs9_call_statfs(&vt.c, instance, cpath, C.size_t(len(path)), &blockSize, &totalBlocks, &freeBlocks, &totalInodes, &freeInodes, &maxNameLen)
	if err := resultToErr("statfs", path, r); err != nil {
		return fs9.FsStats{}, err
	}
	return fs9.FsStats{
		TotalBytes:  uint64(totalBlocks) * uint64(blockSize),
		FreeBytes:   uint64(freeBlocks) * uint64(blockSize),
		TotalInodes: uint64(totalInodes),
		FreeInodes:  uint64(freeInodes),
		BlockSize:   uint32(blockSize),
		MaxNameLen:  uint32(maxNameLen),
	}, nil
}

// Wstat calls through the vtable's wstat entry.
func (vt *VTable) Wstat(instance unsafe.Pointer, path string, changes fs9.StatChanges) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var c C.fs9_stat_changes
	if changes.Mode != nil {
		c.has_mode = 1
		c.mode = C.uint32_t(*changes.Mode)
	}
	if changes.UID != nil {
		c.has_uid = 1
		c.uid = C.uint32_t(*changes.UID)
	}
	if changes.GID != nil {
		c.has_gid = 1
		c.gid = C.uint32_t(*changes.GID)
	}
	if changes.Size != nil {
		c.has_size = 1
		c.size = C.uint64_t(*changes.Size)
	}
	if changes.Atime != nil {
		c.has_atime = 1
		c.atime = C.int64_t(*changes.Atime)
	}
	if changes.Mtime != nil {
		c.has_mtime = 1
		c.mtime = C.int64_t(*changes.Mtime)
	}
	var cname, ctarget *C.char
	if changes.Name != nil {
		cname = C.CString(string(*changes.Name))
		defer C.free(unsafe.Pointer(cname))
		c.has_name = 1
		c.name = cname
		c.name_len = C.size_t(len(*changes.Name))
	}
	if changes.SymlinkTarget != nil {
		ctarget = C.CString(*changes.SymlinkTarget)
		defer C.free(unsafe.Pointer(ctarget))
		c.has_symlink_target = 1
		c.symlink_target = ctarget
		c.symlink_target_len = C.size_t(len(*changes.SymlinkTarget))
	}

	r := C.fs9_call_wstat(&vt.c, instance, cpath, C.size_t(len(path)), &c)
	return resultToErr("wstat", path, r)
}

// Create invokes the vtable's create entry, returning the plugin's
// opaque instance pointer.
func (vt *VTable) Create(config []byte) (unsafe.Pointer, error) {
	var cfgPtr *C.uint8_t
	if len(config) > 0 {
		cfgPtr = (*C.uint8_t)(unsafe.Pointer(&config[0]))
	}
	var errOut C.fs9_result
	instance := C.fs9_call_create(&vt.c, cfgPtr, C.size_t(len(config)), &errOut)
	if err := resultToErr("create", "", errOut); err != nil {
		return nil, err
	}
	return instance, nil
}

// Destroy invokes the vtable's destroy entry for instance on every
// call; plugin.Provider.Destroy guards it so it runs once per instance
// (spec §4.6 drop semantics).
func (vt *VTable) Destroy(instance unsafe.Pointer) {
	C.fs9_call_destroy(&vt.c, instance)
}

// ReaddirEntry is one entry yielded by Readdir.
type ReaddirEntry = fs9.FileInfo

// Readdir calls through the vtable's readdir entry, invoking fn once
// per entry; fn returning false asks the plugin to stop early.
func (vt *VTable) Readdir(instance unsafe.Pointer, path string, fn func(fs9.FileInfo) bool) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := cgo.NewHandle(fn)
	defer h.Delete()

	r := C.fs9_call_readdir(&vt.c, instance, cpath, C.size_t(len(path)),
		C.fs9_readdir_cb(C.fs9go_readdir_trampoline), unsafe.Pointer(uintptr(h)))
	return resultToErr("readdir", path, r)
}
