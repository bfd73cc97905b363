package resolve

import (
	"context"
	"fmt"
	"io"

	"owncheck/internal/model"
)

// AccountDirectory resolves raw owner references to concrete accounts.
// Backends adapt the review system's account index to it.
type AccountDirectory interface {
	// Resolve maps an explicit owner reference to an account. ok=false
	// means the reference names no active resolvable account.
	Resolve(ctx context.Context, ref model.OwnerReference) (id model.AccountID, ok bool, err error)

	// ProjectOwners lists the holders of the project-owner permission,
	// used by the PROJECT_OWNERS fallback mode.
	ProjectOwners(ctx context.Context, project string) ([]model.AccountID, error)
}

// IdentityResolver expands owner references into accounts. Unresolvable
// explicit references are dropped silently (declarations are edited by
// humans and may name accounts that no longer exist); the all-users
// wildcard is never unresolvable.
type IdentityResolver struct {
	Accounts AccountDirectory

	// Log receives one line per dropped reference when non-nil.
	Log io.Writer
}

// Expand resolves refs into accounts in order, deduplicated, and reports
// whether the all-users wildcard was among them.
func (ir *IdentityResolver) Expand(ctx context.Context, refs []model.OwnerReference) (model.ResolvedOwners, error) {
	var out model.ResolvedOwners
	seen := make(map[model.AccountID]struct{})
	for _, ref := range refs {
		if ref.IsAllUsers() {
			out.OwnedByAllUsers = true
			continue
		}
		id, ok, err := ir.Accounts.Resolve(ctx, ref)
		if err != nil {
			return model.ResolvedOwners{}, fmt.Errorf("resolve owner %q: %w", ref, err)
		}
		if !ok {
			if ir.Log != nil {
				fmt.Fprintf(ir.Log, "dropping unresolvable code owner %q\n", ref)
			}
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.Owners = append(out.Owners, id)
	}
	return out, nil
}
