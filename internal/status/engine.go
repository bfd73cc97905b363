// Package status combines resolved owner sets with approval evidence into
// per-file owner-approval statuses and the submittability decision.
package status

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"owncheck/internal/approval"
	"owncheck/internal/backend"
	"owncheck/internal/model"
	"owncheck/internal/resolve"
)

// Options are the per-check settings the engine consumes beyond the
// approval policy.
type Options struct {
	// ExemptPureRevert approves every file of a pure revert of an
	// already-submitted change.
	ExemptPureRevert bool

	// ExemptedUploaders are accounts whose uploads need no owner
	// approval.
	ExemptedUploaders []model.AccountID

	MergeStrategy model.MergeStrategy

	// Concurrency bounds the per-file fan-out; zero means 1.
	Concurrency int
}

// Engine computes file statuses. All computation is read-only against the
// change's fixed revision; independent invocations may run concurrently.
type Engine struct {
	Owners *resolve.Owners
	Files  backend.ChangedFiles
	Opts   Options
}

// Report is the outcome for one change: per-file statuses in path order,
// plus any per-directory resolution problems hit along the way (non-fatal,
// the affected files degrade toward INSUFFICIENT_REVIEWERS).
type Report struct {
	Files  []model.FileStatus
	Errors []resolve.DirError
}

// Approved reports whether every path-side of every file is APPROVED.
func (r Report) Approved() bool {
	for _, f := range r.Files {
		if !f.Approved() {
			return false
		}
	}
	return true
}

// FileStatuses computes the owner-approval status of every changed file of
// change, using the supplied evidence snapshot.
func (e *Engine) FileStatuses(ctx context.Context, change model.Change, snap *approval.Snapshot) (Report, error) {
	files, err := e.Files.Compute(ctx, change, e.Opts.MergeStrategy)
	if err != nil {
		return Report{}, fmt.Errorf("compute changed files of %s: %w", change, err)
	}

	// Overrides, revert exemption, and uploader exemption are change-wide:
	// they approve every file without consulting owner sets.
	if reason, ok := e.changeWideApproval(change, snap); ok {
		return blanketReport(files, reason), nil
	}

	results := make([]model.FileStatus, len(files))
	dirErrs := make([][]resolve.DirError, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.Opts.Concurrency, 1))
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			fs, errs, err := e.fileStatus(gctx, change, snap, f)
			if err != nil {
				return err
			}
			results[i] = fs
			dirErrs[i] = errs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := Report{Files: results}
	for _, errs := range dirErrs {
		rep.Errors = append(rep.Errors, errs...)
	}
	return rep, nil
}

// FileStatusesForAccount computes statuses considering only the given
// account's approvals, reviews, and overrides.
func (e *Engine) FileStatusesForAccount(ctx context.Context, change model.Change, snap *approval.Snapshot, account model.AccountID) (Report, error) {
	return e.FileStatuses(ctx, change, restrict(snap, account))
}

// OwnedPaths reports which changed paths the candidate accounts own. No
// votes are evaluated: a path-side is APPROVED when any candidate is in
// its resolved owner set, INSUFFICIENT_REVIEWERS otherwise.
func (e *Engine) OwnedPaths(ctx context.Context, change model.Change, candidates []model.AccountID) (Report, error) {
	files, err := e.Files.Compute(ctx, change, e.Opts.MergeStrategy)
	if err != nil {
		return Report{}, fmt.Errorf("compute changed files of %s: %w", change, err)
	}

	var rep Report
	for _, f := range files {
		fs := model.FileStatus{Changed: f}
		for _, side := range pathSides(f) {
			owners, errs, err := e.Owners.ForPath(ctx, change.Revision, side)
			if err != nil {
				return Report{}, err
			}
			rep.Errors = append(rep.Errors, errs...)

			ps := &model.PathStatus{Path: side, Status: model.StatusInsufficientReviewers}
			for _, c := range candidates {
				if owners.Contains(c) {
					ps.Status = model.StatusApproved
					ps.Reason = fmt.Sprintf("owned by %s", c)
					break
				}
			}
			assignSide(&fs, f, side, ps)
		}
		rep.Files = append(rep.Files, fs)
	}
	return rep, nil
}

// changeWideApproval evaluates the ladder steps that apply to every file
// at once, in precedence order.
func (e *Engine) changeWideApproval(change model.Change, snap *approval.Snapshot) (string, bool) {
	if snap.HasOverride() {
		v := snap.Overrides[0]
		return fmt.Sprintf("override %s+%d by %s", v.Label, v.Value, v.Account), true
	}
	if e.Opts.ExemptPureRevert && change.IsPureRevert {
		return "pure revert of a submitted change", true
	}
	for _, exempt := range e.Opts.ExemptedUploaders {
		if snap.Uploader == exempt {
			return fmt.Sprintf("uploader %s is exempted", exempt), true
		}
	}
	return "", false
}

func (e *Engine) fileStatus(ctx context.Context, change model.Change, snap *approval.Snapshot, f model.ChangedFile) (model.FileStatus, []resolve.DirError, error) {
	fs := model.FileStatus{Changed: f}
	var dirErrs []resolve.DirError
	for _, side := range pathSides(f) {
		ps, errs, err := e.pathStatus(ctx, change, snap, side)
		if err != nil {
			return model.FileStatus{}, nil, err
		}
		dirErrs = append(dirErrs, errs...)
		assignSide(&fs, f, side, ps)
	}
	return fs, dirErrs, nil
}

// pathStatus runs the per-path-side resolution ladder: owner approval,
// implicit approval, sticky carry-over, pending reviewer, insufficient.
func (e *Engine) pathStatus(ctx context.Context, change model.Change, snap *approval.Snapshot, path string) (*model.PathStatus, []resolve.DirError, error) {
	owners, dirErrs, err := e.Owners.ForPath(ctx, change.Revision, path)
	if err != nil {
		return nil, nil, err
	}

	if who, ok := anyOwnerIn(owners, snap.Approvers); ok {
		return &model.PathStatus{Path: path, Status: model.StatusApproved, Reason: fmt.Sprintf("approved by %s", who)}, dirErrs, nil
	}
	if snap.ImplicitApprover != "" && owners.Contains(snap.ImplicitApprover) {
		return &model.PathStatus{Path: path, Status: model.StatusApproved, Reason: fmt.Sprintf("implicitly approved by uploader %s", snap.ImplicitApprover)}, dirErrs, nil
	}
	if who, ps, ok := stickyOwnerApproval(owners, snap.PreviousApprovers); ok {
		return &model.PathStatus{Path: path, Status: model.StatusApproved, Reason: fmt.Sprintf("approved by %s on patch set %d", who, ps)}, dirErrs, nil
	}
	if who, ok := anyOwnerIn(owners, snap.Reviewers); ok {
		return &model.PathStatus{Path: path, Status: model.StatusPending, Reason: fmt.Sprintf("awaiting review from %s", who)}, dirErrs, nil
	}
	return &model.PathStatus{Path: path, Status: model.StatusInsufficientReviewers}, dirErrs, nil
}

// anyOwnerIn returns a deterministic member of set that is also an
// effective owner.
func anyOwnerIn(owners model.ResolvedOwners, set map[model.AccountID]struct{}) (model.AccountID, bool) {
	if len(set) == 0 {
		return "", false
	}
	if owners.OwnedByAllUsers {
		return sortedFirst(set), true
	}
	for _, o := range owners.Owners {
		if _, ok := set[o]; ok {
			return o, true
		}
	}
	return "", false
}

func stickyOwnerApproval(owners model.ResolvedOwners, previous map[model.AccountID]int) (model.AccountID, int, bool) {
	if len(previous) == 0 {
		return "", 0, false
	}
	if owners.OwnedByAllUsers {
		accounts := make([]model.AccountID, 0, len(previous))
		for a := range previous {
			accounts = append(accounts, a)
		}
		sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
		return accounts[0], previous[accounts[0]], true
	}
	for _, o := range owners.Owners {
		if ps, ok := previous[o]; ok {
			return o, ps, true
		}
	}
	return "", 0, false
}

func sortedFirst(set map[model.AccountID]struct{}) model.AccountID {
	var first model.AccountID
	for a := range set {
		if first == "" || a < first {
			first = a
		}
	}
	return first
}

// pathSides lists the path-sides a file entry contributes: the old path
// for deletions and renames, the new path for additions, modifications,
// and renames.
func pathSides(f model.ChangedFile) []string {
	switch {
	case f.IsDeletion:
		return []string{f.OldPath}
	case f.IsRename:
		return []string{f.OldPath, f.NewPath}
	default:
		return []string{f.NewPath}
	}
}

func assignSide(fs *model.FileStatus, f model.ChangedFile, side string, ps *model.PathStatus) {
	if (f.IsDeletion || f.IsRename) && side == f.OldPath {
		fs.OldPathStatus = ps
		return
	}
	fs.NewPathStatus = ps
}

func blanketReport(files []model.ChangedFile, reason string) Report {
	var rep Report
	for _, f := range files {
		fs := model.FileStatus{Changed: f}
		for _, side := range pathSides(f) {
			assignSide(&fs, f, side, &model.PathStatus{Path: side, Status: model.StatusApproved, Reason: reason})
		}
		rep.Files = append(rep.Files, fs)
	}
	return rep
}

// restrict narrows a snapshot's evidence to a single account.
func restrict(snap *approval.Snapshot, account model.AccountID) *approval.Snapshot {
	out := &approval.Snapshot{
		Uploader:  snap.Uploader,
		Reviewers: make(map[model.AccountID]struct{}),
		Approvers: make(map[model.AccountID]struct{}),
	}
	if _, ok := snap.Reviewers[account]; ok {
		out.Reviewers[account] = struct{}{}
	}
	if _, ok := snap.Approvers[account]; ok {
		out.Approvers[account] = struct{}{}
	}
	for _, v := range snap.Overrides {
		if v.Account == account {
			out.Overrides = append(out.Overrides, v)
		}
	}
	if snap.ImplicitApprover == account {
		out.ImplicitApprover = account
	}
	if ps, ok := snap.PreviousApprovers[account]; ok {
		out.PreviousApprovers = map[model.AccountID]int{account: ps}
	}
	return out
}
