// Package router implements the client-side dispatch engine of spec
// §4.8: given a path operation, it finds the longest bound mount
// target, computes the per-layer local path, and dispatches across the
// layer stack (or forwards to a remote provider when the path is not
// local-bound at all), grounded on the control flow of
// original_source/sh9/src/eval/router.rs's NamespaceRouter.
package router

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/namespace"
	"golang.org/x/sync/errgroup"
)

// ErrCrossMountRename is the distinguished error spec §4.8 step 6
// requires when from and to do not resolve to the same mount.
var ErrCrossMountRename = errors.New("router: rename crosses mount boundaries")

// Router is the heart of the client side (spec §4.8).
type Router struct {
	ns     *namespace.Namespace
	remote fs9.Provider // may be nil if no remote fallback is configured
}

// New returns a Router consulting ns, forwarding unbound paths to
// remote (which may be nil: an unbound path then fails NotFound).
func New(ns *namespace.Namespace, remote fs9.Provider) *Router {
	return &Router{ns: ns, remote: remote}
}

// layerRoute is one candidate (provider, local path) pair computed
// from a mount layer for a given request path.
type layerRoute struct {
	mount     namespace.Mount
	localPath fs9.Path
}

// resolve implements spec §4.8 steps 1-4: normalize, find the longest
// bound target, and compute each layer's local path. ok is false when
// the path is not local-bound at all (step 3: forward to remote).
func (r *Router) resolve(path fs9.Path) (layers []layerRoute, ok bool, err error) {
	path = fs9.Clean(path)

	target, found := r.ns.LongestMountTarget(path)
	if !found {
		return nil, false, nil
	}

	rel := strings.TrimPrefix(string(path[len(target):]), "/")
	stack := r.ns.LayerStack(target)
	layers = make([]layerRoute, 0, len(stack))
	for _, m := range stack {
		local, err := safeResolve(m.SourcePath, rel)
		if err != nil {
			return nil, true, err
		}
		layers = append(layers, layerRoute{mount: m, localPath: local})
	}
	return layers, true, nil
}

// safeResolve joins mountSource with relative and verifies the result
// still lies within mountSource, defending against an escape attempt
// such as "../../etc/passwd" (spec §4.8 "Safety"). fs9.Clean already
// collapses ".." components during normalization, so by the time a
// path reaches here an escape could only survive via a relative
// component smuggled in directly (e.g. a plugin-reported name); this
// is the re-validation spec.md calls out explicitly as required.
func safeResolve(mountSource fs9.Path, relative string) (fs9.Path, error) {
	joined := fs9.Clean(fs9.Join(mountSource, relative))
	if !fs9.IsPrefix(mountSource, joined) {
		return "", fs9.PermissionDenied("resolve", fs9.Join(mountSource, relative))
	}
	return joined, nil
}

// IsLocal reports whether any mount target is a non-strict path-prefix
// of path (spec §8 "Router is_local(path)").
func (r *Router) IsLocal(path fs9.Path) bool {
	return r.ns.IsMounted(fs9.Clean(path))
}

// Stat is a read-style op: walk the layer stack, first success wins.
func (r *Router) Stat(ctx context.Context, path fs9.Path) (fs9.FileInfo, error) {
	layers, local, err := r.resolve(path)
	if err != nil {
		return fs9.FileInfo{}, err
	}
	if !local {
		return r.forwardStat(ctx, path)
	}

	var lastErr error
	for _, l := range layers {
		info, err := l.mount.Provider.Stat(ctx, l.localPath)
		if err == nil {
			return info, nil
		}
		lastErr = err
	}
	return fs9.FileInfo{}, r.firstFailure(path, lastErr)
}

func (r *Router) forwardStat(ctx context.Context, path fs9.Path) (fs9.FileInfo, error) {
	if r.remote == nil {
		return fs9.FileInfo{}, fs9.NotFound("stat", path)
	}
	return r.remote.Stat(ctx, path)
}

func (r *Router) firstFailure(path fs9.Path, err error) error {
	if err != nil {
		return err
	}
	return fs9.NotFound("stat", path)
}

// Statfs walks the layer stack identically to Stat.
func (r *Router) Statfs(ctx context.Context, path fs9.Path) (fs9.FsStats, error) {
	layers, local, err := r.resolve(path)
	if err != nil {
		return fs9.FsStats{}, err
	}
	if !local {
		if r.remote == nil {
			return fs9.FsStats{}, fs9.NotFound("statfs", path)
		}
		return r.remote.Statfs(ctx, path)
	}

	var lastErr error
	for _, l := range layers {
		stats, err := l.mount.Provider.Statfs(ctx, l.localPath)
		if err == nil {
			return stats, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fs9.FsStats{}, lastErr
	}
	return fs9.FsStats{}, fs9.NotFound("statfs", path)
}

// Readdir is a read-style op merged by name, first-seen wins, then
// synthetic child-mount entries are injected (spec §4.8 step 5,
// §4.7 child_mount_names).
func (r *Router) Readdir(ctx context.Context, path fs9.Path) ([]fs9.FileInfo, error) {
	path = fs9.Clean(path)
	layers, local, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	var merged []fs9.FileInfo
	seen := make(map[string]bool)
	if local {
		// Each layer's Readdir is an independent round trip to its own
		// provider (possibly a remote plugin), so fetch them concurrently;
		// the first-seen-wins merge below still walks layers in mount
		// order, so concurrency here never changes which entry wins.
		perLayer := make([][]fs9.FileInfo, len(layers))
		perLayerErr := make([]error, len(layers))
		g, gctx := errgroup.WithContext(ctx)
		for i, l := range layers {
			i, l := i, l
			g.Go(func() error {
				entries, err := l.mount.Provider.Readdir(gctx, l.localPath)
				perLayer[i] = entries
				perLayerErr[i] = err
				return nil
			})
		}
		_ = g.Wait()

		var lastErr error
		anySucceeded := false
		for i := range layers {
			if perLayerErr[i] != nil {
				lastErr = perLayerErr[i]
				continue
			}
			anySucceeded = true
			for _, e := range perLayer[i] {
				name := fs9.BaseName(e.Path)
				if seen[name] {
					continue
				}
				seen[name] = true
				merged = append(merged, e)
			}
		}
		if !anySucceeded {
			return nil, r.firstFailure(path, lastErr)
		}
	} else if r.remote != nil {
		entries, err := r.remote.Readdir(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			seen[fs9.BaseName(e.Path)] = true
			merged = append(merged, e)
		}
	}

	for _, name := range r.ns.ChildMountNames(path) {
		if seen[name] {
			continue
		}
		seen[name] = true
		merged = append(merged, fs9.FileInfo{
			Path: fs9.Join(path, name),
			Type: fs9.Directory,
		})
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Path < merged[j].Path })
	return merged, nil
}

// Open dispatches Open as a write-creation op when flags request
// creation of a not-yet-existing path, and as a read-style op
// otherwise; for write-to-existing opens (no Create, or Create without
// Truncate on a path that already resolves) it targets the layer the
// path currently resolves to, per spec §4.8 step 5.
func (r *Router) Open(ctx context.Context, path fs9.Path, flags fs9.OpenFlags) (fs9.Handle, error) {
	layers, local, err := r.resolve(path)
	if err != nil {
		return 0, err
	}
	if !local {
		if r.remote == nil {
			return 0, fs9.NotFound("open", path)
		}
		return r.remote.Open(ctx, path, flags)
	}
	if len(layers) == 0 {
		return 0, fs9.NotFound("open", path)
	}

	if flags.Create {
		l, err := r.resolvingLayer(ctx, layers)
		if err != nil {
			l = r.creationLayer(layers)
		}
		return l.mount.Provider.Open(ctx, l.localPath, flags)
	}

	var lastErr error
	for _, l := range layers {
		h, err := l.mount.Provider.Open(ctx, l.localPath, flags)
		if err == nil {
			return h, nil
		}
		lastErr = err
	}
	return 0, r.firstFailure(path, lastErr)
}

// OpenFor behaves like Open but also returns the Provider the handle
// was opened against, since the router does not track handle ownership
// itself (see the note below). Callers that must later Read/Write/Close
// the handle directly on its owning provider — a FUSE adapter's handle
// table, most notably — use this instead of Open.
func (r *Router) OpenFor(ctx context.Context, path fs9.Path, flags fs9.OpenFlags) (fs9.Provider, fs9.Handle, error) {
	layers, local, err := r.resolve(path)
	if err != nil {
		return nil, 0, err
	}
	if !local {
		if r.remote == nil {
			return nil, 0, fs9.NotFound("open", path)
		}
		h, err := r.remote.Open(ctx, path, flags)
		return r.remote, h, err
	}
	if len(layers) == 0 {
		return nil, 0, fs9.NotFound("open", path)
	}

	if flags.Create {
		l, err := r.resolvingLayer(ctx, layers)
		if err != nil {
			l = r.creationLayer(layers)
		}
		h, err := l.mount.Provider.Open(ctx, l.localPath, flags)
		return l.mount.Provider, h, err
	}

	var lastErr error
	for _, l := range layers {
		h, err := l.mount.Provider.Open(ctx, l.localPath, flags)
		if err == nil {
			return l.mount.Provider, h, nil
		}
		lastErr = err
	}
	return nil, 0, r.firstFailure(path, lastErr)
}

// creationLayer picks the first MCREATE-flagged layer, or the first
// layer if none is so flagged (spec §4.8 step 5, write-creation ops).
func (r *Router) creationLayer(layers []layerRoute) layerRoute {
	for _, l := range layers {
		if l.mount.Flags&namespace.MCreate != 0 {
			return l
		}
	}
	return layers[0]
}

// resolvingLayer returns the layer the path currently resolves to
// (the first layer whose Stat succeeds), for write-to-existing
// dispatch (spec §4.8 step 5).
func (r *Router) resolvingLayer(ctx context.Context, layers []layerRoute) (layerRoute, error) {
	for _, l := range layers {
		if _, err := l.mount.Provider.Stat(ctx, l.localPath); err == nil {
			return l, nil
		}
	}
	return layerRoute{}, fs9.NotFound("stat", "")
}

// Read/Write/Close are not routed by path: the router does not track
// handle ownership itself (a handle is opaque once Open has dispatched
// it to a layer), so callers hold onto the Provider OpenFor/ResolveForWrite
// returned and call Read/Write/Close on it directly.

// ResolveForWrite returns the provider and local path a write-style
// mutation of path should target, without performing the write
// itself: the layer currently resolving the path if it exists, else
// the creation layer (spec §4.8 step 5). Callers (e.g. a FUSE adapter
// holding its own handle table) use this to pick the provider and
// path to Open/Wstat/Remove/Rename against.
func (r *Router) ResolveForWrite(ctx context.Context, path fs9.Path) (fs9.Provider, fs9.Path, error) {
	layers, local, err := r.resolve(path)
	if err != nil {
		return nil, "", err
	}
	if !local {
		if r.remote == nil {
			return nil, "", fs9.NotFound("resolve", path)
		}
		return r.remote, path, nil
	}
	if len(layers) == 0 {
		return nil, "", fs9.NotFound("resolve", path)
	}
	if l, err := r.resolvingLayer(ctx, layers); err == nil {
		return l.mount.Provider, l.localPath, nil
	}
	l := r.creationLayer(layers)
	return l.mount.Provider, l.localPath, nil
}

// Remove targets the layer the path currently resolves to.
func (r *Router) Remove(ctx context.Context, path fs9.Path) error {
	provider, local, err := r.ResolveForWrite(ctx, path)
	if err != nil {
		return err
	}
	return provider.Remove(ctx, local)
}

// Wstat targets the layer the path currently resolves to. A rename
// (changes.Name set) additionally enforces spec §4.8 step 6: from and
// to must land on the same provider.
func (r *Router) Wstat(ctx context.Context, path fs9.Path, changes fs9.StatChanges) error {
	fromProvider, fromLocal, err := r.ResolveForWrite(ctx, path)
	if err != nil {
		return err
	}

	if changes.Name != nil {
		toProvider, toLocal, err := r.ResolveForWrite(ctx, *changes.Name)
		if err != nil {
			return err
		}
		if !sameProvider(fromProvider, toProvider) {
			return fs9.InvalidArgument("rename", path, ErrCrossMountRename.Error())
		}
		renamed := changes
		toLocalCopy := toLocal
		renamed.Name = &toLocalCopy
		return fromProvider.Wstat(ctx, fromLocal, renamed)
	}

	return fromProvider.Wstat(ctx, fromLocal, changes)
}

func sameProvider(a, b fs9.Provider) bool {
	return a == b
}

// RemoveRecursive implements spec §4.8's recursive traversal using
// only the public Provider contract: stat, then if a directory,
// readdir and recurse, deleting post-order.
func (r *Router) RemoveRecursive(ctx context.Context, path fs9.Path) error {
	info, err := r.Stat(ctx, path)
	if err != nil {
		return err
	}
	if info.Type == fs9.Directory {
		entries, err := r.Readdir(ctx, path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := r.RemoveRecursive(ctx, fs9.Join(path, fs9.BaseName(e.Path))); err != nil {
				return err
			}
		}
	}
	return r.Remove(ctx, path)
}

// CopyRecursive implements spec §4.8's recursive traversal for copy:
// stat, then if a directory, readdir and recurse; files are copied by
// streaming read/write through fresh handles on each side.
func (r *Router) CopyRecursive(ctx context.Context, from, to fs9.Path) error {
	info, err := r.Stat(ctx, from)
	if err != nil {
		return err
	}

	if info.Type == fs9.Directory {
		dstProvider, dstLocal, err := r.ResolveForWrite(ctx, to)
		if err != nil {
			return err
		}
		h, err := dstProvider.Open(ctx, dstLocal, fs9.OpenFlags{Create: true, Directory: true})
		if err != nil && fs9.KindOf(err) != fs9.KindAlreadyExists {
			return err
		}
		if err == nil {
			dstProvider.Close(ctx, h, false)
		}
		entries, err := r.Readdir(ctx, from)
		if err != nil {
			return err
		}
		for _, e := range entries {
			childFrom := fs9.Join(from, fs9.BaseName(e.Path))
			childTo := fs9.Join(to, fs9.BaseName(e.Path))
			if err := r.CopyRecursive(ctx, childFrom, childTo); err != nil {
				return err
			}
		}
		return nil
	}

	return r.copyFile(ctx, from, to)
}

func (r *Router) copyFile(ctx context.Context, from, to fs9.Path) error {
	srcProvider, srcLocal, err := r.ResolveForWrite(ctx, from)
	if err != nil {
		return err
	}
	srcHandle, err := srcProvider.Open(ctx, srcLocal, fs9.OpenFlags{Read: true})
	if err != nil {
		return err
	}
	defer srcProvider.Close(ctx, srcHandle, false)

	dstProvider, dstLocal, err := r.ResolveForWrite(ctx, to)
	if err != nil {
		return err
	}
	dstHandle, err := dstProvider.Open(ctx, dstLocal, fs9.OpenFlags{Write: true, Create: true, Truncate: true})
	if err != nil {
		return err
	}
	defer dstProvider.Close(ctx, dstHandle, true)

	const chunk = 64 * 1024
	var offset int64
	for {
		data, err := srcProvider.Read(ctx, srcHandle, offset, chunk)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		if _, err := dstProvider.Write(ctx, dstHandle, offset, data); err != nil {
			return err
		}
		offset += int64(len(data))
	}
}
