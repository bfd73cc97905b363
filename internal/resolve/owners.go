package resolve

import (
	"context"
	"fmt"

	"owncheck/internal/model"
)

// OwnerPolicy captures the server/project-wide owner population settings
// consumed during resolution. It is an immutable snapshot captured once
// per check.
type OwnerPolicy struct {
	// GlobalOwners are merged into every file's owner set unless a
	// matching rule disabled parent contributions.
	GlobalOwners []model.OwnerReference

	// DefaultOwnersRev names the revision that carries the default owner
	// declaration at its root (conventionally the refs-config ref). Nil
	// means no default owners.
	DefaultOwnersRev *model.Revision

	// Fallback applies only when no explicit ownership was ever declared
	// for the path.
	Fallback model.FallbackMode
}

// Owners is the facade the status engine consults: declaration-chain walk
// plus identity expansion plus global/default/fallback handling.
type Owners struct {
	Resolver *Resolver
	Identity *IdentityResolver
	Policy   OwnerPolicy
}

// ForPath resolves the effective owner population for filePath at rev.
// DirErrors are per-directory non-fatal problems; the error return is
// reserved for structural failures.
func (o *Owners) ForPath(ctx context.Context, rev model.Revision, filePath string) (model.ResolvedOwners, []DirError, error) {
	refres, err := o.Resolver.ResolveRefs(ctx, rev, filePath)
	if err != nil {
		return model.ResolvedOwners{}, nil, err
	}

	resolved, err := o.Identity.Expand(ctx, refres.Refs)
	if err != nil {
		return model.ResolvedOwners{}, nil, err
	}
	resolved.OwnedByAllUsers = resolved.OwnedByAllUsers || refres.AllUsers
	dirErrs := refres.Errors
	ownersDefined := refres.OwnersDefined

	if !refres.ParentsIgnored {
		global, err := o.Identity.Expand(ctx, o.Policy.GlobalOwners)
		if err != nil {
			return model.ResolvedOwners{}, nil, err
		}
		resolved = merge(resolved, global)
		if len(o.Policy.GlobalOwners) > 0 {
			ownersDefined = true
		}

		if o.Policy.DefaultOwnersRev != nil {
			def, defined, defErrs, err := o.defaultOwners(ctx, filePath)
			if err != nil {
				return model.ResolvedOwners{}, nil, err
			}
			resolved = merge(resolved, def)
			dirErrs = append(dirErrs, defErrs...)
			ownersDefined = ownersDefined || defined
		}
	}

	if resolved.Empty() && !ownersDefined {
		fb, err := o.fallbackOwners(ctx, rev.Project)
		if err != nil {
			return model.ResolvedOwners{}, nil, err
		}
		resolved = merge(resolved, fb)
	}

	return resolved, dirErrs, nil
}

// defaultOwners resolves the default owner declaration against filePath.
// Default owners live at the root of the configured revision and are
// subject to the same pattern matching as regular declarations.
func (o *Owners) defaultOwners(ctx context.Context, filePath string) (model.ResolvedOwners, bool, []DirError, error) {
	refres, err := o.Resolver.ResolveRefs(ctx, *o.Policy.DefaultOwnersRev, filePath)
	if err != nil {
		return model.ResolvedOwners{}, false, nil, err
	}
	resolved, err := o.Identity.Expand(ctx, refres.Refs)
	if err != nil {
		return model.ResolvedOwners{}, false, nil, err
	}
	resolved.OwnedByAllUsers = resolved.OwnedByAllUsers || refres.AllUsers
	return resolved, refres.OwnersDefined, refres.Errors, nil
}

func (o *Owners) fallbackOwners(ctx context.Context, project string) (model.ResolvedOwners, error) {
	switch o.Policy.Fallback {
	case model.FallbackAllUsers:
		return model.ResolvedOwners{OwnedByAllUsers: true}, nil
	case model.FallbackProjectOwners:
		ids, err := o.Identity.Accounts.ProjectOwners(ctx, project)
		if err != nil {
			return model.ResolvedOwners{}, fmt.Errorf("resolve project owners of %s: %w", project, err)
		}
		return model.ResolvedOwners{Owners: ids}, nil
	default:
		return model.ResolvedOwners{}, nil
	}
}

func merge(a, b model.ResolvedOwners) model.ResolvedOwners {
	out := model.ResolvedOwners{OwnedByAllUsers: a.OwnedByAllUsers || b.OwnedByAllUsers}
	seen := make(map[model.AccountID]struct{}, len(a.Owners)+len(b.Owners))
	for _, list := range [][]model.AccountID{a.Owners, b.Owners} {
		for _, id := range list {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out.Owners = append(out.Owners, id)
		}
	}
	return out
}
