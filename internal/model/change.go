package model

import "fmt"

// AccountID identifies a review-system account. The value is opaque to the
// engine; backends decide whether it is a numeric ID, a username, or an
// email address, as long as it is stable within one check.
type AccountID string

// Revision pins a tree state: a project plus a ref/commit within it.
// Declarations, changed files, and votes are all read at a Revision.
type Revision struct {
	Project string
	Ref     string
}

func (r Revision) String() string {
	return r.Project + "@" + r.Ref
}

// MergeStrategy selects which files a merge commit is considered to change.
type MergeStrategy string

const (
	// MergeAllChangedFiles diffs against the first parent.
	MergeAllChangedFiles MergeStrategy = "ALL_CHANGED_FILES"

	// MergeFilesWithConflictResolution diffs against the automatic merge
	// base, surfacing only conflict-resolved files.
	MergeFilesWithConflictResolution MergeStrategy = "FILES_WITH_CONFLICT_RESOLUTION"
)

// Change is the unit being checked: one review-system change at one target
// patch set.
type Change struct {
	Project string
	Branch  string
	Number  int

	// Owner is the account that owns the change (not necessarily the
	// uploader of the target patch set).
	Owner AccountID

	// TargetPatchSet is the patch set the check evaluates.
	TargetPatchSet int

	// Revision is the tree state of the target patch set; declarations are
	// read at this revision.
	Revision Revision

	// IsPureRevert reports whether the change is a pure revert of an
	// already-submitted change.
	IsPureRevert bool
}

func (c Change) String() string {
	return fmt.Sprintf("%s~%d", c.Project, c.Number)
}

// ChangedFile is one entry in a change's file list.
//
// Invariants: a deletion has no NewPath; an addition has no OldPath; a
// modification has both equal; a rename has both present and different.
type ChangedFile struct {
	OldPath string
	NewPath string

	IsRename   bool
	IsDeletion bool
}

// NewAddition returns the entry for a newly added file.
func NewAddition(path string) ChangedFile {
	return ChangedFile{NewPath: path}
}

// NewModification returns the entry for a modified file.
func NewModification(path string) ChangedFile {
	return ChangedFile{OldPath: path, NewPath: path}
}

// NewDeletion returns the entry for a deleted file.
func NewDeletion(path string) ChangedFile {
	return ChangedFile{OldPath: path, IsDeletion: true}
}

// NewRename returns the entry for a renamed file.
func NewRename(oldPath, newPath string) ChangedFile {
	return ChangedFile{OldPath: oldPath, NewPath: newPath, IsRename: true}
}

// Valid reports whether the entry satisfies the shape invariants.
func (f ChangedFile) Valid() bool {
	switch {
	case f.IsDeletion:
		return f.OldPath != "" && f.NewPath == "" && !f.IsRename
	case f.IsRename:
		return f.OldPath != "" && f.NewPath != "" && f.OldPath != f.NewPath
	case f.OldPath == "":
		return f.NewPath != "" // addition
	default:
		return f.OldPath == f.NewPath // modification
	}
}

// SortPath returns the path used for ordering and deduplication: the new
// path when present, otherwise the old path.
func (f ChangedFile) SortPath() string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}
