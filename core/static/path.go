package static

import "strings"

// NormalizePath collapses "." and ".." segments lexically. ".." that would
// climb above the root is kept so the safety check can reject it.
func NormalizePath(p string) string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case ".":
			// skip
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." && out[len(out)-1] != "" {
				out = out[:len(out)-1]
			} else {
				out = append(out, part)
			}
		default:
			out = append(out, part)
		}
	}
	joined := strings.Join(out, "/")
	if joined == "" && strings.HasPrefix(p, "/") {
		return "/"
	}
	return joined
}

// IsSafePath rejects normalized paths that still contain ".." or an empty
// segment ("//").
func IsSafePath(p string) bool {
	if p == "" {
		return false
	}
	if strings.Contains(p, "..") {
		return false
	}
	if strings.Contains(p, "//") {
		return false
	}
	return true
}

// baseName returns the final path segment.
func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i != -1 {
		return p[i+1:]
	}
	return p
}
