// Package plugin implements the dynamic-library provider loader of
// spec §4.6: discovering a .so/.dylib, checking its SDK version,
// copying its vtable by value, and wrapping the resulting instance in
// a host-side fs9.Provider that calls through the vtable.
package plugin

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include <stdint.h>

typedef uint32_t (*fs9_version_fn)(void);
typedef const void *(*fs9_vtable_fn)(void);

static void *fs9plugin_dlopen(const char *path) {
    return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static void *fs9plugin_dlsym(void *handle, const char *name) {
    return dlsym(handle, name);
}

static uint32_t fs9plugin_call_version(void *fn) {
    return ((fs9_version_fn)fn)();
}

static const void *fs9plugin_call_vtable(void *fn) {
    return ((fs9_vtable_fn)fn)();
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/pluginabi"
)

type loadedLibrary struct {
	path   string
	handle unsafe.Pointer
	vtable *pluginabi.VTable
}

// Registry tracks loaded plugin libraries by the name their vtable
// self-reports (spec §4.6 step 3).
type Registry struct {
	mu   sync.Mutex
	libs map[string]*loadedLibrary
}

// NewRegistry returns an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{libs: make(map[string]*loadedLibrary)}
}

// Load opens the dynamic library at path, verifies its SDK version,
// copies its vtable, and registers it under the vtable's self-reported
// name. AlreadyExists is returned for a duplicate name.
func (r *Registry) Load(path string) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.fs9plugin_dlopen(cpath)
	if handle == nil {
		return fs9.Internal("plugin_load", path, fmt.Errorf("dlopen failed"))
	}

	versionSym := C.CString("fs9_plugin_version")
	defer C.free(unsafe.Pointer(versionSym))
	versionFn := C.fs9plugin_dlsym(handle, versionSym)
	if versionFn == nil {
		return fs9.Internal("plugin_load", path, fmt.Errorf("missing symbol fs9_plugin_version"))
	}
	version := uint32(C.fs9plugin_call_version(versionFn))
	if version != pluginabi.SDKVersion {
		return fs9.InvalidArgument("plugin_load", path,
			fmt.Sprintf("sdk version mismatch: plugin=%d host=%d", version, pluginabi.SDKVersion))
	}

	vtableSym := C.CString("fs9_plugin_vtable")
	defer C.free(unsafe.Pointer(vtableSym))
	vtableFn := C.fs9plugin_dlsym(handle, vtableSym)
	if vtableFn == nil {
		return fs9.Internal("plugin_load", path, fmt.Errorf("missing symbol fs9_plugin_vtable"))
	}
	vtablePtr := C.fs9plugin_call_vtable(vtableFn)
	if vtablePtr == nil {
		return fs9.Internal("plugin_load", path, fmt.Errorf("plugin returned a null vtable"))
	}

	vt := pluginabi.VTableFromPointer(unsafe.Pointer(vtablePtr))
	name := vt.Name()
	if name == "" {
		return fs9.InvalidArgument("plugin_load", path, "plugin vtable has an empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.libs[name]; exists {
		return fs9.AlreadyExists("plugin_load", name)
	}
	r.libs[name] = &loadedLibrary{path: path, handle: unsafe.Pointer(handle), vtable: vt}
	return nil
}

// Unload removes the registry entry for name. The underlying library
// image is not dlclose'd while any provider wrapper created from it
// may still be outstanding (spec §4.6 drop semantics); callers must
// ensure all providers created from this plugin have been destroyed
// first.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lib, ok := r.libs[name]
	if !ok {
		return fs9.NotFound("plugin_unload", name)
	}
	delete(r.libs, name)
	C.dlclose(lib.handle)
	return nil
}

// CreateProvider invokes the named plugin's create entry and returns a
// host-side fs9.Provider backed by the resulting instance (spec §4.6
// step 4).
func (r *Registry) CreateProvider(name string, config []byte) (*Provider, error) {
	r.mu.Lock()
	lib, ok := r.libs[name]
	r.mu.Unlock()
	if !ok {
		return nil, fs9.NotFound("create_provider", name)
	}

	instance, err := lib.vtable.Create(config)
	if err != nil {
		return nil, err
	}
	return &Provider{vt: lib.vtable, instance: instance}, nil
}

// Names returns the currently registered plugin names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.libs))
	for n := range r.libs {
		names = append(names, n)
	}
	return names
}
