package model

// Status is the owner-approval state of one path-side. States only
// escalate: INSUFFICIENT_REVIEWERS < PENDING < APPROVED.
type Status string

const (
	StatusInsufficientReviewers Status = "INSUFFICIENT_REVIEWERS"
	StatusPending               Status = "PENDING"
	StatusApproved              Status = "APPROVED"
)

// rank orders statuses by strength.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusApproved:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as strong as other.
func (s Status) AtLeast(other Status) bool {
	return s.rank() >= other.rank()
}

// PathStatus is the computed status for one path-side of a changed file.
type PathStatus struct {
	Path   string `json:"path"`
	Status Status `json:"status"`

	// Reason is a short human-readable explanation of how the status was
	// reached (e.g. "approved on patch set 2", "override Build-Cop+1").
	Reason string `json:"reason,omitempty"`
}

// FileStatus is the per-file result: an old-path status for deletions and
// renames, a new-path status for additions, modifications, and renames.
// A rename carries both, computed independently.
type FileStatus struct {
	Changed ChangedFile `json:"-"`

	OldPathStatus *PathStatus `json:"old_path_status,omitempty"`
	NewPathStatus *PathStatus `json:"new_path_status,omitempty"`
}

// Approved reports whether every present path-side is APPROVED.
func (f FileStatus) Approved() bool {
	if f.OldPathStatus != nil && f.OldPathStatus.Status != StatusApproved {
		return false
	}
	if f.NewPathStatus != nil && f.NewPathStatus.Status != StatusApproved {
		return false
	}
	return f.OldPathStatus != nil || f.NewPathStatus != nil
}

// ResolvedOwners is the effective owner population for one file path at one
// revision. Owners and OwnedByAllUsers are not mutually exclusive: both can
// be populated from different declarations in the chain.
type ResolvedOwners struct {
	// Owners holds concrete accounts in declaration order, deduplicated.
	Owners []AccountID

	// OwnedByAllUsers is set when the all-users wildcard matched.
	OwnedByAllUsers bool
}

// Contains reports whether the account is an effective owner.
func (r ResolvedOwners) Contains(a AccountID) bool {
	if r.OwnedByAllUsers {
		return true
	}
	for _, o := range r.Owners {
		if o == a {
			return true
		}
	}
	return false
}

// Empty reports whether no owner of any kind was resolved.
func (r ResolvedOwners) Empty() bool {
	return !r.OwnedByAllUsers && len(r.Owners) == 0
}
