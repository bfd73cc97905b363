// Package resolve computes the effective code-owner set for a file path at
// a revision: the directory-chain walk over ownership declarations, import
// resolution, and the expansion of raw owner references into accounts.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"owncheck/internal/match"
	"owncheck/internal/model"
	"owncheck/internal/store"
)

// DefaultMaxSteps bounds the number of declarations visited in one
// resolution, covering both deep trees and import chains.
const DefaultMaxSteps = 100

// DirError records a per-directory, non-fatal resolution problem (an
// unparseable declaration or an unresolvable import). Resolution continues;
// the directory counts as "owners attempted".
type DirError struct {
	Directory string
	Err       error
}

func (e DirError) Error() string {
	return fmt.Sprintf("%s: %v", e.Directory, e.Err)
}

// RefResolution is the outcome of the declaration-chain walk for one file
// path, before owner references are expanded into accounts.
type RefResolution struct {
	// Refs holds the contributing concrete owner references in
	// contribution order (nearest declaration first), deduplicated.
	Refs []model.OwnerReference

	// AllUsers is set when the all-users wildcard contributed.
	AllUsers bool

	// OwnersDefined reports whether any declaration in the chain carried at
	// least one owner reference (matching or not), failed to parse, or had
	// an unresolvable import. When true, fallback owners are suppressed:
	// broken-but-intended configuration must not be silently promoted.
	OwnersDefined bool

	// ParentsIgnored is set when a matching declaration or owner set
	// disabled inheritance: ancestor, global, and default contributions
	// are omitted.
	ParentsIgnored bool

	// Errors lists per-directory non-fatal problems hit during the walk.
	Errors []DirError
}

// Resolver walks the directory chain for a file and merges matching owner
// sets. Safe for concurrent use at a fixed revision if the store is.
type Resolver struct {
	Store   store.DeclarationStore
	Matcher match.PathMatcher

	// MaxSteps bounds declarations visited per resolution; zero means
	// DefaultMaxSteps.
	MaxSteps int
}

func NewResolver(s store.DeclarationStore) *Resolver {
	return &Resolver{Store: s, Matcher: match.Doublestar{}}
}

type walk struct {
	refs    []model.OwnerReference
	seen    map[model.OwnerReference]struct{}
	visited map[string]struct{}
	steps   int

	out RefResolution
}

func (w *walk) contribute(owners []model.OwnerReference) {
	for _, o := range owners {
		if o.IsAllUsers() {
			w.out.AllUsers = true
			continue
		}
		if _, dup := w.seen[o]; dup {
			continue
		}
		w.seen[o] = struct{}{}
		w.refs = append(w.refs, o)
	}
}

// ResolveRefs resolves the owner references for filePath at rev by walking
// from the file's directory up to the repository root.
//
// Structural store errors abort the resolution; missing declarations,
// parse failures, unresolvable imports, and import cycles do not.
func (r *Resolver) ResolveRefs(ctx context.Context, rev model.Revision, filePath string) (RefResolution, error) {
	filePath = path.Clean("/" + filePath)
	if filePath == "/" {
		return RefResolution{}, fmt.Errorf("resolve owners: %q is not a file path", filePath)
	}

	w := &walk{
		seen:    make(map[model.OwnerReference]struct{}),
		visited: make(map[string]struct{}),
	}

	for dir := path.Dir(filePath); ; dir = path.Dir(dir) {
		stop, err := r.visitDirectory(ctx, w, rev, dir, filePath)
		if err != nil {
			return RefResolution{}, err
		}
		if stop || w.out.ParentsIgnored {
			w.out.ParentsIgnored = true
			break
		}
		if dir == "/" {
			break
		}
	}

	w.out.Refs = w.refs
	return w.out, nil
}

// IgnoreParentOwners reports whether a matching declaration or owner set
// disables parent/global contributions for filePath.
func (r *Resolver) IgnoreParentOwners(ctx context.Context, rev model.Revision, filePath string) (bool, error) {
	res, err := r.ResolveRefs(ctx, rev, filePath)
	if err != nil {
		return false, err
	}
	return res.ParentsIgnored, nil
}

// visitDirectory processes one directory's declaration. The returned stop
// flag means a stop-inheritance condition was hit: contributions collected
// so far are kept, everything above is omitted.
func (r *Resolver) visitDirectory(ctx context.Context, w *walk, rev model.Revision, dir, filePath string) (stop bool, err error) {
	key := rev.String() + ":" + dir
	if _, done := w.visited[key]; done {
		return false, nil
	}
	w.visited[key] = struct{}{}

	decl, _, err := r.fetch(ctx, w, rev, dir)
	if err != nil {
		return false, err
	}
	if decl == nil {
		return false, nil
	}

	rel := relativeTo(filePath, dir)
	stop = r.applyDeclaration(ctx, w, rev, *decl, rel, false)
	return stop || decl.InheritDisabled, nil
}

// fetch loads a declaration, folding the non-fatal error cases into the
// walk state. A nil declaration with attempted=true means a declaration
// was present but unusable (parse failure, step budget exhausted); with
// attempted=false it means "nothing here".
func (r *Resolver) fetch(ctx context.Context, w *walk, rev model.Revision, dir string) (decl *model.Declaration, attempted bool, err error) {
	w.steps++
	if max := r.maxSteps(); w.steps > max {
		w.out.Errors = append(w.out.Errors, DirError{Directory: dir, Err: fmt.Errorf("resolution exceeded %d steps", max)})
		w.out.OwnersDefined = true
		return nil, true, nil
	}

	d, err := r.Store.Get(ctx, rev, dir)
	if err == nil {
		if d.DefinesOwners() {
			w.out.OwnersDefined = true
		}
		return &d, true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	var pe *store.ParseError
	if errors.As(err, &pe) {
		// Declaration present but contributes no owners. It still counts
		// as "owners attempted" so fallback owners stay suppressed.
		w.out.Errors = append(w.out.Errors, DirError{Directory: dir, Err: err})
		w.out.OwnersDefined = true
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("fetch ownership declaration %s in %s: %w", dir, rev, err)
}

// applyDeclaration evaluates a declaration's owner sets in order against
// rel (the file path relative to the declaration's directory) and follows
// imports. patternsOnly restricts contribution to pattern-scoped sets
// (OWNER_SET_PATTERNS_ONLY import semantics).
//
// When a matching pattern-scoped set disables inheritance, only the
// declaration's matching pattern-scoped sets contribute: its own global
// (pattern-less) sets are dropped along with ancestors, and the stop flag
// is returned so the caller omits global/default owners too.
func (r *Resolver) applyDeclaration(ctx context.Context, w *walk, rev model.Revision, decl model.Declaration, rel string, patternsOnly bool) (stop bool) {
	perFileStop := false
	for _, os := range decl.OwnerSets {
		if len(os.Patterns) == 0 || !os.InheritDisabled {
			continue
		}
		if match.Any(r.Matcher, os.Patterns, rel) {
			perFileStop = true
			break
		}
	}

	for _, os := range decl.OwnerSets {
		if len(os.Patterns) == 0 {
			if patternsOnly || perFileStop {
				continue
			}
			w.contribute(os.Owners)
			r.applyImports(ctx, w, rev, os.Imports, rel)
			continue
		}
		if !match.Any(r.Matcher, os.Patterns, rel) {
			continue
		}
		w.contribute(os.Owners)
		r.applyImports(ctx, w, rev, os.Imports, rel)
	}

	// Declaration-level imports are processed even when stopping, but a
	// per-file stop restricts them to pattern-scoped imported sets, same
	// as the declaration's own global sets.
	if !patternsOnly {
		r.applyDeclImports(ctx, w, rev, decl.Imports, rel, perFileStop)
	}
	return perFileStop
}

func (r *Resolver) applyDeclImports(ctx context.Context, w *walk, rev model.Revision, imports []model.ImportReference, rel string, patternsOnly bool) {
	if patternsOnly {
		scoped := make([]model.ImportReference, len(imports))
		copy(scoped, imports)
		for i := range scoped {
			scoped[i].Mode = model.ImportOwnerSetPatternsOnly
		}
		imports = scoped
	}
	r.applyImports(ctx, w, rev, imports, rel)
}

// applyImports resolves import references recursively. Unresolvable
// imports and cycles contribute nothing; an unresolvable import still
// marks the chain as having attempted owners, so fallback owners stay
// suppressed over intended-but-broken configuration.
func (r *Resolver) applyImports(ctx context.Context, w *walk, rev model.Revision, imports []model.ImportReference, rel string) {
	for _, imp := range imports {
		targetRev := rev
		if imp.Project != "" {
			targetRev = model.Revision{Project: imp.Project, Ref: rev.Ref}
		}
		dir := path.Clean("/" + imp.Directory)

		key := targetRev.String() + ":" + dir
		if _, done := w.visited[key]; done {
			// Import cycle: no further contribution, not an error.
			continue
		}
		w.visited[key] = struct{}{}

		decl, attempted, err := r.fetch(ctx, w, targetRev, dir)
		if err != nil {
			// Structural failure behind an import degrades to an
			// unresolvable import instead of aborting the whole file.
			w.out.Errors = append(w.out.Errors, DirError{Directory: dir, Err: err})
			w.out.OwnersDefined = true
			continue
		}
		if decl == nil {
			if !attempted {
				// An import naming a missing declaration is broken
				// configuration, unlike a miss on the regular directory
				// walk. Parse failures were already recorded by fetch.
				w.out.Errors = append(w.out.Errors, DirError{Directory: dir, Err: fmt.Errorf("unresolvable import from %s", rev)})
				w.out.OwnersDefined = true
			}
			continue
		}

		// Imported sets are evaluated as if inlined at the importing
		// location: patterns match against the importing file's relative
		// path. The imported declaration's own inherit flag governs its
		// subtree, not the importing chain.
		patternsOnly := imp.Mode == model.ImportOwnerSetPatternsOnly
		if r.applyDeclaration(ctx, w, targetRev, *decl, rel, patternsOnly) {
			w.out.ParentsIgnored = true
		}
	}
}

func (r *Resolver) maxSteps() int {
	if r.MaxSteps > 0 {
		return r.MaxSteps
	}
	return DefaultMaxSteps
}

// relativeTo returns filePath relative to dir, without a leading slash.
func relativeTo(filePath, dir string) string {
	if dir == "/" {
		return strings.TrimPrefix(filePath, "/")
	}
	return strings.TrimPrefix(strings.TrimPrefix(filePath, dir), "/")
}
