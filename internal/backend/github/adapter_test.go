package github

import (
	"testing"
	"time"

	"github.com/google/go-github/v68/github"

	"owncheck/internal/backend"
	"owncheck/internal/model"
)

func TestSplitRepo(t *testing.T) {
	owner, repo, err := splitRepo("acme/widgets")
	if err != nil {
		t.Fatalf("splitRepo: %v", err)
	}
	if owner != "acme" || repo != "widgets" {
		t.Errorf("want acme/widgets, got %s/%s", owner, repo)
	}

	for _, bad := range []string{"acme", "/widgets", "acme/", ""} {
		if _, _, err := splitRepo(bad); err == nil {
			t.Errorf("splitRepo(%q): want error", bad)
		}
	}
}

func TestChangedFile(t *testing.T) {
	tests := []struct {
		name   string
		file   *github.CommitFile
		want   model.ChangedFile
		wantOK bool
	}{
		{
			name:   "added",
			file:   &github.CommitFile{Filename: github.Ptr("docs/readme.md"), Status: github.Ptr("added")},
			want:   model.NewAddition("/docs/readme.md"),
			wantOK: true,
		},
		{
			name:   "removed",
			file:   &github.CommitFile{Filename: github.Ptr("old.go"), Status: github.Ptr("removed")},
			want:   model.NewDeletion("/old.go"),
			wantOK: true,
		},
		{
			name:   "modified",
			file:   &github.CommitFile{Filename: github.Ptr("main.go"), Status: github.Ptr("modified")},
			want:   model.NewModification("/main.go"),
			wantOK: true,
		},
		{
			name: "renamed",
			file: &github.CommitFile{
				Filename:         github.Ptr("pkg/new.go"),
				PreviousFilename: github.Ptr("pkg/old.go"),
				Status:           github.Ptr("renamed"),
			},
			want:   model.NewRename("/pkg/old.go", "/pkg/new.go"),
			wantOK: true,
		},
		{
			name:   "copied counts as addition",
			file:   &github.CommitFile{Filename: github.Ptr("copy.go"), Status: github.Ptr("copied")},
			want:   model.NewAddition("/copy.go"),
			wantOK: true,
		},
		{
			name: "unchanged skipped",
			file: &github.CommitFile{Filename: github.Ptr("same.go"), Status: github.Ptr("unchanged")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := changedFile(tt.file)
			if ok != tt.wantOK {
				t.Fatalf("want ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("want %+v, got %+v", tt.want, got)
			}
		})
	}
}

func review(login, state string, minute int) *github.PullRequestReview {
	return &github.PullRequestReview{
		User:        &github.User{Login: github.Ptr(login)},
		State:       github.Ptr(state),
		SubmittedAt: &github.Timestamp{Time: time.Date(2026, 8, 1, 10, minute, 0, 0, time.UTC)},
	}
}

func TestReviewVotes(t *testing.T) {
	reviews := []*github.PullRequestReview{
		review("alice", "APPROVED", 0),
		review("bob", "CHANGES_REQUESTED", 1),
		review("alice", "CHANGES_REQUESTED", 2), // supersedes her approval
		review("carol", "COMMENTED", 3),         // not a vote
		review("dave", "APPROVED", 4),
		review("erin", "APPROVED", 5),
		review("erin", "DISMISSED", 6), // dismissal clears the vote
	}

	got := reviewVotes(reviews, "Code-Review", 2)
	byAccount := make(map[model.AccountID]backend.Vote)
	for _, v := range got {
		byAccount[v.Account] = v
	}

	if v := byAccount["alice"]; v.Value != -2 {
		t.Errorf("alice's latest review is CHANGES_REQUESTED: want -2, got %d", v.Value)
	}
	if v := byAccount["bob"]; v.Value != -2 {
		t.Errorf("bob requested changes: want -2, got %d", v.Value)
	}
	if v := byAccount["dave"]; v.Value != 2 || v.Label != "Code-Review" {
		t.Errorf("dave approved: want Code-Review+2, got %+v", v)
	}
	if _, ok := byAccount["carol"]; ok {
		t.Errorf("a comment-only review must not produce a vote")
	}
	if _, ok := byAccount["erin"]; ok {
		t.Errorf("a dismissed review must not produce a vote")
	}
}

func TestReviewVotesEmpty(t *testing.T) {
	if got := reviewVotes(nil, "Code-Review", 2); len(got) != 0 {
		t.Errorf("want no votes, got %+v", got)
	}
}

func TestNewBackendDefaults(t *testing.T) {
	b := NewBackend(&Client{}, "Code-Review", 2)
	if b.DeclarationFile != DefaultDeclarationFile {
		t.Errorf("want default declaration file, got %q", b.DeclarationFile)
	}
	if b.Label != "Code-Review" || b.Value != 2 {
		t.Errorf("label requirement not carried: %q %d", b.Label, b.Value)
	}
}
