package model

// OwnerReference is a raw owner entry as it appears in a declaration:
// an email-like identity, or the all-users wildcard.
type OwnerReference string

// AllUsersWildcard marks every registered user as an owner.
const AllUsersWildcard OwnerReference = "*"

// IsAllUsers reports whether the reference is the all-users wildcard.
func (r OwnerReference) IsAllUsers() bool {
	return r == AllUsersWildcard
}

// ImportMode controls how much of an imported declaration is pulled in.
type ImportMode string

const (
	// ImportAll imports the full declaration, recursively resolved the same
	// way as if it were inlined at the importing location.
	ImportAll ImportMode = "ALL"

	// ImportOwnerSetPatternsOnly imports only pattern-scoped owner sets.
	// Used for per-file imports so a pattern rule can pull in owners without
	// also pulling in the imported declaration's global owners.
	ImportOwnerSetPatternsOnly ImportMode = "OWNER_SET_PATTERNS_ONLY"
)

// ImportReference names another declaration location to merge in.
// An empty Project means "same project as the importing declaration".
type ImportReference struct {
	Project   string     `json:"project,omitempty"`
	Directory string     `json:"directory"`
	Mode      ImportMode `json:"mode"`
}

// OwnerSet is one rule inside a declaration. A set with no patterns applies
// to every file under the declaration's directory; a set with patterns
// applies only to matching files (patterns are OR'd).
type OwnerSet struct {
	Patterns []string `json:"patterns,omitempty"`

	Owners []OwnerReference `json:"owners,omitempty"`

	// InheritDisabled, when this set matches a file, drops ancestor and
	// global contributions for that file.
	InheritDisabled bool `json:"inherit_disabled,omitempty"`

	Imports []ImportReference `json:"imports,omitempty"`
}

// Declaration is the parsed ownership rule set for one directory at one
// revision. It is an immutable value; resolution never mutates it.
type Declaration struct {
	// Path is the absolute directory the declaration applies to ("/" rooted).
	Path string `json:"path"`

	// InheritDisabled stops ancestor declarations from contributing to
	// files in this directory's subtree.
	InheritDisabled bool `json:"inherit_disabled,omitempty"`

	// OwnerSets are evaluated in declaration order.
	OwnerSets []OwnerSet `json:"owner_sets,omitempty"`

	Imports []ImportReference `json:"imports,omitempty"`
}

// Normalize returns a copy with no-op owner sets removed. A set that has no
// owners, no patterns, and no imports contributes nothing and must not leak
// into resolved results.
func (d Declaration) Normalize() Declaration {
	if len(d.OwnerSets) == 0 {
		return d
	}
	kept := make([]OwnerSet, 0, len(d.OwnerSets))
	for _, os := range d.OwnerSets {
		if len(os.Owners) == 0 && len(os.Patterns) == 0 && len(os.Imports) == 0 {
			continue
		}
		kept = append(kept, os)
	}
	d.OwnerSets = kept
	return d
}

// DefinesOwners reports whether any owner set carries at least one owner
// reference. Used for fallback-owner suppression: a directory that attempted
// to declare owners suppresses fallback owners even if none of the
// references resolve.
func (d Declaration) DefinesOwners() bool {
	for _, os := range d.OwnerSets {
		if len(os.Owners) > 0 {
			return true
		}
	}
	return false
}
