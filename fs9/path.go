package fs9

import "strings"

// Clean normalizes p into canonical form: a leading '/', no trailing
// '/' except for the root itself, no empty components, and no '.' or
// '..' components (those are resolved away, matching a caller that has
// already rejected escaping sequences).
func Clean(p string) Path {
	if p == "" {
		return Root
	}
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return Root
	}
	return "/" + strings.Join(out, "/")
}

// ParentPath returns the canonical parent of p, or Root if p is
// already Root.
func ParentPath(p Path) Path {
	p = Clean(p)
	if p == Root {
		return Root
	}
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 {
		return Root
	}
	return p[:idx]
}

// BaseName returns the last path component of p.
func BaseName(p Path) string {
	p = Clean(p)
	if p == Root {
		return ""
	}
	idx := strings.LastIndexByte(p, '/')
	return p[idx+1:]
}

// Join joins a parent canonical path with a single child component
// name (no further '/' in name).
func Join(parent Path, name string) Path {
	if parent == Root {
		return Root + name
	}
	return parent + "/" + name
}

// IsPrefix reports whether prefix is a non-strict path-prefix of p:
// either equal, or followed immediately by '/'.
func IsPrefix(prefix, p Path) bool {
	if prefix == Root {
		return true
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}
