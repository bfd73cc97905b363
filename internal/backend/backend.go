// Package backend defines the contracts the engine consumes from the
// review system: changed-file computation, voting history, and account
// lookup. Subpackages adapt concrete systems (Gerrit, GitHub) to them.
package backend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"owncheck/internal/model"
)

// DestinationBranchNotFoundError is a structural failure: the change's
// destination branch no longer exists. The whole status computation fails
// with it; it is never silently treated as an empty result.
type DestinationBranchNotFoundError struct {
	Project string
	Branch  string
}

func (e *DestinationBranchNotFoundError) Error() string {
	return fmt.Sprintf("destination branch %s of project %s not found", e.Branch, e.Project)
}

// Vote is one account's vote on one label, recorded on a specific patch
// set.
type Vote struct {
	Account model.AccountID
	Label   string
	Value   int
	Granted time.Time
}

// PatchSet is one revision of a change together with the votes recorded on
// it.
type PatchSet struct {
	Number   int
	Uploader model.AccountID
	Votes    []Vote
}

// ChangedFiles supplies the ordered, deduplicated list of files a change
// touches at its target patch set, applying the merge-commit strategy.
type ChangedFiles interface {
	Compute(ctx context.Context, change model.Change, strategy model.MergeStrategy) ([]model.ChangedFile, error)
}

// VotingHistory exposes the review system's reviewers and per-patch-set
// votes for a change. Implementations must be safe for concurrent reads.
type VotingHistory interface {
	// PatchSets returns all patch sets in ascending number order.
	PatchSets(ctx context.Context, change model.Change) ([]PatchSet, error)

	// Reviewers returns the accounts currently in reviewer state,
	// excluding removed reviewers.
	Reviewers(ctx context.Context, change model.Change) ([]model.AccountID, error)

	// BranchExists reports whether the branch exists in the project.
	BranchExists(ctx context.Context, project, branch string) (bool, error)
}

// SortFiles orders entries by path and removes duplicates, the contract
// every ChangedFiles implementation must satisfy. Adapters call it on
// whatever their diff endpoint returned.
func SortFiles(files []model.ChangedFile) []model.ChangedFile {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].SortPath() < files[j].SortPath()
	})
	out := files[:0]
	var prev *model.ChangedFile
	for i := range files {
		if prev != nil && *prev == files[i] {
			continue
		}
		out = append(out, files[i])
		prev = &out[len(out)-1]
	}
	return out
}
