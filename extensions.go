package safearchive

import (
	"slices"
	"strings"
)

// SafeExtensions is an ordered list of file name extensions, without the
// leading dot, whose content is trusted without fingerprint verification.
// Matching is case-sensitive.
type SafeExtensions []string

// Match reports whether name ends with "." followed by any extension in the
// list.
func (s SafeExtensions) Match(name string) bool {
	for _, ext := range s {
		if strings.HasSuffix(name, "."+ext) {
			return true
		}
	}
	return false
}

// Clone returns a copy of the list.
func (s SafeExtensions) Clone() SafeExtensions {
	return slices.Clone(s)
}
