package model

import "testing"

func TestDeclarationNormalize(t *testing.T) {
	d := Declaration{
		Path: "/foo",
		OwnerSets: []OwnerSet{
			{Owners: []OwnerReference{"a@example.com"}},
			{}, // no owners, no patterns, no imports: dropped
			{Patterns: []string{"*.md"}},
			{Imports: []ImportReference{{Directory: "/bar", Mode: ImportAll}}},
		},
	}

	got := d.Normalize()
	if len(got.OwnerSets) != 3 {
		t.Fatalf("want 3 owner sets after Normalize, got %d", len(got.OwnerSets))
	}
	// The original is untouched.
	if len(d.OwnerSets) != 4 {
		t.Fatalf("Normalize mutated the receiver")
	}
}

func TestDeclarationDefinesOwners(t *testing.T) {
	tests := []struct {
		name string
		decl Declaration
		want bool
	}{
		{
			name: "empty declaration",
			decl: Declaration{Path: "/"},
			want: false,
		},
		{
			name: "pattern-only sets",
			decl: Declaration{Path: "/", OwnerSets: []OwnerSet{{Patterns: []string{"*.go"}}}},
			want: false,
		},
		{
			name: "global owners",
			decl: Declaration{Path: "/", OwnerSets: []OwnerSet{{Owners: []OwnerReference{"a@example.com"}}}},
			want: true,
		},
		{
			name: "pattern-scoped owners",
			decl: Declaration{Path: "/", OwnerSets: []OwnerSet{{Patterns: []string{"*.go"}, Owners: []OwnerReference{"a@example.com"}}}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.decl.DefinesOwners(); got != tt.want {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestChangedFileValid(t *testing.T) {
	tests := []struct {
		name string
		file ChangedFile
		want bool
	}{
		{"addition", NewAddition("/a.txt"), true},
		{"modification", NewModification("/a.txt"), true},
		{"deletion", NewDeletion("/a.txt"), true},
		{"rename", NewRename("/a.txt", "/b.txt"), true},
		{"rename to same path", ChangedFile{OldPath: "/a.txt", NewPath: "/a.txt", IsRename: true}, false},
		{"deletion with new path", ChangedFile{OldPath: "/a.txt", NewPath: "/b.txt", IsDeletion: true}, false},
		{"empty", ChangedFile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.file.Valid(); got != tt.want {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStatusAtLeast(t *testing.T) {
	if !StatusApproved.AtLeast(StatusPending) {
		t.Errorf("APPROVED should be at least PENDING")
	}
	if !StatusPending.AtLeast(StatusInsufficientReviewers) {
		t.Errorf("PENDING should be at least INSUFFICIENT_REVIEWERS")
	}
	if StatusInsufficientReviewers.AtLeast(StatusPending) {
		t.Errorf("INSUFFICIENT_REVIEWERS should not be at least PENDING")
	}
	if !StatusApproved.AtLeast(StatusApproved) {
		t.Errorf("AtLeast should be reflexive")
	}
}

func TestResolvedOwnersContains(t *testing.T) {
	r := ResolvedOwners{Owners: []AccountID{"alice"}}
	if !r.Contains("alice") {
		t.Errorf("alice should be an owner")
	}
	if r.Contains("bob") {
		t.Errorf("bob should not be an owner")
	}

	all := ResolvedOwners{OwnedByAllUsers: true}
	if !all.Contains("anyone") {
		t.Errorf("all-users set should contain any account")
	}
	if all.Empty() {
		t.Errorf("all-users set is not empty")
	}
	if !(ResolvedOwners{}).Empty() {
		t.Errorf("zero value should be empty")
	}
}
