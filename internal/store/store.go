// Package store defines how ownership declarations are fetched. The engine
// only depends on the DeclarationStore interface; backends adapt Gerrit,
// GitHub, or in-memory fixtures to it.
package store

import (
	"context"
	"errors"
	"fmt"

	"owncheck/internal/model"
)

// ErrNotFound reports that no declaration exists for a directory at a
// revision. Resolution climbs to the parent directory.
var ErrNotFound = errors.New("no ownership declaration")

// ParseError reports that a declaration exists but could not be parsed.
// Per-directory and non-fatal: the directory counts as "owners attempted"
// (suppressing fallback owners) but contributes none.
type ParseError struct {
	Revision  model.Revision
	Directory string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse ownership declaration %s in %s: %v", e.Directory, e.Revision, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DeclarationStore resolves a directory at a revision to its parsed
// declaration.
//
// Returns ErrNotFound when the directory carries no declaration, a
// *ParseError when a declaration exists but is malformed, and any other
// error for structural failures (unreachable backend, unknown revision).
// Implementations must be safe for concurrent reads at a fixed revision.
type DeclarationStore interface {
	Get(ctx context.Context, rev model.Revision, dir string) (model.Declaration, error)
}
