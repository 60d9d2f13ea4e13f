// Package pathutil provides path manipulation for slash-separated archive paths.
package pathutil

import (
	"io/fs"
	"os"
	"strings"
)

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	// Remove trailing slash if present
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Join appends name to dir. A dir of "." or "" yields name unchanged.
func Join(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return dir + "/" + name
}

// Request converts a request path to the form used as a table key.
//
// It strips a single leading slash and collapses consecutive slashes. The
// second return value is false when the result is empty or would not be a
// valid fs path: absolute, containing "." or ".." elements, backslashes or
// NUL bytes. Such paths never name a file inside the archive.
func Request(p string) (string, bool) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", false
	}
	if strings.ContainsAny(p, "\\\x00") {
		return p, false
	}

	// Collapse consecutive slashes by splitting and rejoining.
	// This removes empty segments but preserves "." and ".." elements.
	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	p = strings.Join(result, "/")
	return p, p != "" && fs.ValidPath(p)
}

// HasDotDot reports whether any slash-separated element of p is "..".
func HasDotDot(p string) bool {
	for part := range strings.SplitSeq(p, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// Within reports whether the absolute path target equals root or lies below
// it. The comparison is purely syntactic: both paths must already be clean.
func Within(root, target string) bool {
	if target == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(target, prefix)
}
