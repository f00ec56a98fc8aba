// Package namespace implements the ordered union-mount table of spec
// §4.7: a per-process table binding a target path to an ordered stack
// of (provider, source path) layers, the structural entity the Router
// consults on every operation.
package namespace

import (
	"sync"

	"github.com/fs9/fs9fs/fs9"
)

// MountFlags control how bind inserts a new mount relative to any
// existing mounts already bound at the same target.
type MountFlags uint8

const (
	// MBefore prepends the new mount among the existing mounts for
	// this target, so it is tried first.
	MBefore MountFlags = 1 << iota
	// MAfter appends the new mount after the existing mounts for this
	// target, so it is tried last.
	MAfter
	// MRepl replaces every existing mount for this target.
	MRepl
	// MCreate marks this layer as eligible to receive new-file
	// creations when dispatching a write-creation operation (spec
	// §4.8 step 5).
	MCreate
)

// Mount is one layer of a target's union-mount stack.
type Mount struct {
	Provider   fs9.Provider
	SourcePath fs9.Path
	Target     fs9.Path
	Flags      MountFlags
}

// Namespace holds the ordered mount table for one process/session.
type Namespace struct {
	mu      sync.RWMutex
	targets []fs9.Path // insertion order, for a stable list_mounts snapshot
	layers  map[fs9.Path][]Mount
}

// New returns an empty Namespace.
func New() *Namespace {
	return &Namespace{layers: make(map[fs9.Path][]Mount)}
}

// Bind inserts a mount of source (provider + path within it) at
// target, honoring MBefore/MAfter/MRepl placement relative to any
// mounts already bound at target (spec §4.7).
func (ns *Namespace) Bind(provider fs9.Provider, sourcePath, target fs9.Path, flags MountFlags) {
	target = fs9.Clean(target)
	sourcePath = fs9.Clean(sourcePath)
	m := Mount{Provider: provider, SourcePath: sourcePath, Target: target, Flags: flags}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	existing, hadTarget := ns.layers[target]
	switch {
	case flags&MRepl != 0:
		ns.layers[target] = []Mount{m}
	case flags&MBefore != 0:
		ns.layers[target] = append([]Mount{m}, existing...)
	default: // MAfter, or unspecified defaults to append
		ns.layers[target] = append(existing, m)
	}
	if !hadTarget {
		ns.targets = append(ns.targets, target)
	}
}

// Unbind removes the mount(s) at target matching sourcePath, or every
// mount at target if sourcePath is nil.
func (ns *Namespace) Unbind(sourcePath *fs9.Path, target fs9.Path) {
	target = fs9.Clean(target)

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if sourcePath == nil {
		delete(ns.layers, target)
		ns.removeTargetLocked(target)
		return
	}

	clean := fs9.Clean(*sourcePath)
	existing := ns.layers[target]
	kept := existing[:0:0]
	for _, m := range existing {
		if m.SourcePath != clean {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		delete(ns.layers, target)
		ns.removeTargetLocked(target)
	} else {
		ns.layers[target] = kept
	}
}

func (ns *Namespace) removeTargetLocked(target fs9.Path) {
	for i, t := range ns.targets {
		if t == target {
			ns.targets = append(ns.targets[:i], ns.targets[i+1:]...)
			return
		}
	}
}

// ListMounts returns every mount currently bound, grouped by target in
// bind order, targets in first-bound order.
func (ns *Namespace) ListMounts() []Mount {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	var out []Mount
	for _, t := range ns.targets {
		out = append(out, ns.layers[t]...)
	}
	return out
}

// LayerStack returns the ordered mounts bound exactly at target, or
// nil if nothing is bound there.
func (ns *Namespace) LayerStack(target fs9.Path) []Mount {
	target = fs9.Clean(target)
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	layers := ns.layers[target]
	out := make([]Mount, len(layers))
	copy(out, layers)
	return out
}

// LongestMountTarget returns the longest bound target that is a
// path-prefix of (or equal to) path, and true if one exists (spec
// §4.8 step 2).
func (ns *Namespace) LongestMountTarget(path fs9.Path) (fs9.Path, bool) {
	path = fs9.Clean(path)
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	best := fs9.Path("")
	found := false
	for t := range ns.layers {
		if !fs9.IsPrefix(t, path) {
			continue
		}
		if !found || len(t) > len(best) {
			best, found = t, true
		}
	}
	return best, found
}

// IsMounted reports whether some mount target is path itself or a
// prefix of it.
func (ns *Namespace) IsMounted(path fs9.Path) bool {
	_, ok := ns.LongestMountTarget(path)
	return ok
}

// ChildMountNames returns the base names of every mount target whose
// parent is exactly path, for synthesizing directory entries at the
// Router level.
func (ns *Namespace) ChildMountNames(path fs9.Path) []string {
	path = fs9.Clean(path)
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	var names []string
	for t := range ns.layers {
		if fs9.ParentPath(t) == path && t != path {
			names = append(names, fs9.BaseName(t))
		}
	}
	return names
}
