// Package match abstracts the glob engine used to evaluate path
// expressions in owner-set rules. The matching primitive is pluggable;
// resolution logic only depends on PathMatcher.
package match

import (
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// PathMatcher decides whether a path expression matches a file path.
// Paths are given relative to the declaration's directory, without a
// leading slash.
type PathMatcher interface {
	// Matches reports whether relPath matches the expression. Malformed
	// expressions never match; they are a declaration-authoring problem,
	// not an engine failure.
	Matches(expression, relPath string) bool
}

// Doublestar matches with doublestar semantics: `**` crosses directory
// boundaries, `{a,b}` alternation is supported. This is the default
// matcher.
type Doublestar struct{}

func (Doublestar) Matches(expression, relPath string) bool {
	ok, err := doublestar.Match(expression, relPath)
	if err != nil {
		return false
	}
	return ok
}

// Simple matches with the restricted fnmatch-style syntax of path.Match:
// `*` does not cross directory boundaries and there is no alternation.
// Kept for declarations written against the simple syntax.
type Simple struct{}

func (Simple) Matches(expression, relPath string) bool {
	ok, err := path.Match(expression, relPath)
	if err != nil {
		return false
	}
	return ok
}

// Any reports whether any of the expressions matches relPath (expressions
// are OR'd). An empty expression list never matches.
func Any(m PathMatcher, expressions []string, relPath string) bool {
	for _, e := range expressions {
		if m.Matches(e, relPath) {
			return true
		}
	}
	return false
}
