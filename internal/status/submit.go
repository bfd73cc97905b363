package status

import (
	"context"

	"owncheck/internal/approval"
	"owncheck/internal/model"
)

// Submittable folds the per-file statuses into the single submittability
// decision: an override vote submits regardless of per-file outcomes;
// otherwise every path-side of every file must be APPROVED. A change with
// zero changed files is vacuously submittable.
func (e *Engine) Submittable(ctx context.Context, change model.Change, snap *approval.Snapshot) (bool, Report, error) {
	rep, err := e.FileStatuses(ctx, change, snap)
	if err != nil {
		return false, Report{}, err
	}
	return snap.HasOverride() || rep.Approved(), rep, nil
}
