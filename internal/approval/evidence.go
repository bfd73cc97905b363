// Package approval gathers the voting evidence a file-status computation
// consumes: who reviews, who approved the target patch set, who holds an
// override, and which earlier-patch-set approvals still carry over.
package approval

import (
	"context"
	"fmt"

	"owncheck/internal/backend"
	"owncheck/internal/model"
)

// LabelRequirement is a label name plus the minimum vote value that
// satisfies it.
type LabelRequirement struct {
	Name  string
	Value int

	// IgnoreSelfApproval excludes a vote by the uploader of the patch set
	// it was cast on.
	IgnoreSelfApproval bool
}

func (l LabelRequirement) String() string {
	return fmt.Sprintf("%s+%d", l.Name, l.Value)
}

// Policy is the voting configuration consumed by a collection, captured
// once per check.
type Policy struct {
	Required  LabelRequirement
	Overrides []LabelRequirement
	Implicit  model.ImplicitMode
	Sticky    bool
}

// Snapshot is the evidence for one change at one target patch set. Built
// fresh per check and owned exclusively by the requesting call; it holds
// no shared mutable state.
type Snapshot struct {
	Uploader model.AccountID

	Reviewers map[model.AccountID]struct{}

	// Approvers hold a qualifying vote on the required label on the
	// target patch set, self-approval-excluded per label policy.
	Approvers map[model.AccountID]struct{}

	// Overrides are qualifying override votes on the target patch set.
	// Overrides are change-wide: any entry approves every file.
	Overrides []backend.Vote

	// ImplicitApprover is the target patch set's uploader when implicit
	// approval applies; empty otherwise. Implicit approval is not subject
	// to self-approval exclusion.
	ImplicitApprover model.AccountID

	// PreviousApprovers maps an account to the patch set number of its
	// latest carried-over approval. Populated only in sticky mode; an
	// account with any required-label vote on a newer patch set never
	// appears (the newer vote, even if weaker, is authoritative).
	PreviousApprovers map[model.AccountID]int
}

// HasOverride reports whether any qualifying override vote is present.
func (s *Snapshot) HasOverride() bool {
	return len(s.Overrides) > 0
}

// Collector builds evidence snapshots from a VotingHistory.
type Collector struct {
	History backend.VotingHistory
}

// Collect gathers the evidence for change at its target patch set.
//
// Fails with *backend.DestinationBranchNotFoundError when the change's
// destination branch is gone, and with a plain error when the target
// patch set is unknown; both are structural, never an empty snapshot.
func (c *Collector) Collect(ctx context.Context, change model.Change, pol Policy) (*Snapshot, error) {
	exists, err := c.History.BranchExists(ctx, change.Project, change.Branch)
	if err != nil {
		return nil, fmt.Errorf("check destination branch %s: %w", change.Branch, err)
	}
	if !exists {
		return nil, &backend.DestinationBranchNotFoundError{Project: change.Project, Branch: change.Branch}
	}

	patchSets, err := c.History.PatchSets(ctx, change)
	if err != nil {
		return nil, fmt.Errorf("load patch sets of %s: %w", change, err)
	}
	target, ok := findPatchSet(patchSets, change.TargetPatchSet)
	if !ok {
		return nil, fmt.Errorf("patch set %d of %s not found", change.TargetPatchSet, change)
	}

	reviewers, err := c.History.Reviewers(ctx, change)
	if err != nil {
		return nil, fmt.Errorf("load reviewers of %s: %w", change, err)
	}

	snap := &Snapshot{
		Uploader:  target.Uploader,
		Reviewers: make(map[model.AccountID]struct{}, len(reviewers)),
		Approvers: make(map[model.AccountID]struct{}),
	}
	for _, r := range reviewers {
		snap.Reviewers[r] = struct{}{}
	}

	for _, v := range target.Votes {
		if satisfies(v, pol.Required) && !selfApprovalExcluded(v, pol.Required, target.Uploader) {
			snap.Approvers[v.Account] = struct{}{}
		}
		for _, ov := range pol.Overrides {
			if satisfies(v, ov) && !selfApprovalExcluded(v, ov, target.Uploader) {
				snap.Overrides = append(snap.Overrides, v)
				break
			}
		}
	}

	switch pol.Implicit {
	case model.ImplicitForced:
		snap.ImplicitApprover = target.Uploader
	case model.ImplicitOn:
		if target.Uploader == change.Owner {
			snap.ImplicitApprover = target.Uploader
		}
	}

	if pol.Sticky {
		snap.PreviousApprovers = stickyApprovers(patchSets, target.Number, pol.Required)
	}

	return snap, nil
}

// stickyApprovers finds, per account, the single latest required-label
// vote on any patch set up to the target. The approval carries over only
// when that latest vote sits on an earlier patch set and still qualifies:
// any newer required-label vote, at any value, cancels the carry-over.
func stickyApprovers(patchSets []backend.PatchSet, target int, required LabelRequirement) map[model.AccountID]int {
	type latest struct {
		patchSet int
		vote     backend.Vote
		uploader model.AccountID
	}
	latestByAccount := make(map[model.AccountID]latest)
	for _, ps := range patchSets {
		if ps.Number > target {
			continue
		}
		for _, v := range ps.Votes {
			if v.Label != required.Name {
				continue
			}
			cur, ok := latestByAccount[v.Account]
			if !ok || ps.Number > cur.patchSet || (ps.Number == cur.patchSet && !v.Granted.Before(cur.vote.Granted)) {
				latestByAccount[v.Account] = latest{patchSet: ps.Number, vote: v, uploader: ps.Uploader}
			}
		}
	}

	out := make(map[model.AccountID]int)
	for account, l := range latestByAccount {
		if l.patchSet == target {
			continue // counted (or cancelled) on the target patch set itself
		}
		if l.vote.Value < required.Value {
			continue
		}
		if required.IgnoreSelfApproval && account == l.uploader {
			continue
		}
		out[account] = l.patchSet
	}
	return out
}

func findPatchSet(patchSets []backend.PatchSet, number int) (backend.PatchSet, bool) {
	for _, ps := range patchSets {
		if ps.Number == number {
			return ps, true
		}
	}
	return backend.PatchSet{}, false
}

func satisfies(v backend.Vote, req LabelRequirement) bool {
	return v.Label == req.Name && v.Value >= req.Value
}

func selfApprovalExcluded(v backend.Vote, req LabelRequirement, uploader model.AccountID) bool {
	return req.IgnoreSelfApproval && v.Account == uploader
}
