package capability

import "github.com/bmatcuk/doublestar/v4"

// MatchGlob reports whether resource matches pattern using the operation
// alphabet spec.md fixes for resource patterns: `*` (any run of
// non-separator characters), `**` (any run including separators), and `?`
// (exactly one character). doublestar implements this directly, unlike
// the standard library's path.Match, which has no `**` support.
func MatchGlob(pattern, resource string) bool {
	ok, err := doublestar.Match(pattern, resource)
	if err != nil {
		return false
	}
	return ok
}
