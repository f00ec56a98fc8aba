package pluginabi

/*
#include "fs9_plugin.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

//export fs9go_readdir_trampoline
func fs9go_readdir_trampoline(entry *C.fs9_file_info, userData unsafe.Pointer) C.int {
	h := cgo.Handle(uintptr(userData))
	fn := h.Value().(func(ReaddirEntry) bool)

	path := C.GoStringN(entry.path, C.int(entry.path_len))
	info := cFileInfoToGo(path, entry)

	if fn(info) {
		return 0
	}
	return 1
}
