// Package github adapts a GitHub repository to the backend contracts. A
// pull request is modeled as a change with a single patch set: review
// approvals become votes on the configured required label at its threshold
// value, change requests become blocking votes.
package github

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/google/go-github/v68/github"

	"owncheck/internal/backend"
	"owncheck/internal/model"
	"owncheck/internal/store"
)

// DefaultDeclarationFile is the per-directory declaration filename read
// when none is configured.
const DefaultDeclarationFile = "OWNERS.json"

// Backend adapts one owner/repo pair. It implements
// store.DeclarationStore, backend.ChangedFiles, backend.VotingHistory, and
// resolve.AccountDirectory. Revision.Project carries "owner/repo".
type Backend struct {
	client *Client

	// DeclarationFile is the filename fetched per directory.
	DeclarationFile string

	// Label and Value are the required-label shape GitHub reviews are
	// mapped onto: an APPROVED review votes Value, a CHANGES_REQUESTED
	// review votes -Value.
	Label string
	Value int
}

// NewBackend wraps an authenticated client.
func NewBackend(client *Client, label string, value int) *Backend {
	return &Backend{
		client:          client,
		DeclarationFile: DefaultDeclarationFile,
		Label:           label,
		Value:           value,
	}
}

func splitRepo(project string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(project, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("project %q is not of the form owner/repo", project)
	}
	return owner, repo, nil
}

func notFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// LoadChange fetches a pull request and pins it at its head commit.
func (b *Backend) LoadChange(ctx context.Context, owner, repo string, number int) (model.Change, error) {
	pr, resp, err := b.client.Client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		if notFound(resp) {
			return model.Change{}, fmt.Errorf("pull request %s/%s#%d not found", owner, repo, number)
		}
		return model.Change{}, fmt.Errorf("get pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	project := owner + "/" + repo
	return model.Change{
		Project:        project,
		Branch:         pr.GetBase().GetRef(),
		Number:         number,
		Owner:          model.AccountID(pr.GetUser().GetLogin()),
		TargetPatchSet: 1,
		Revision:       model.Revision{Project: project, Ref: pr.GetHead().GetSHA()},
	}, nil
}

// Get implements store.DeclarationStore via the contents API at the
// revision's commit.
func (b *Backend) Get(ctx context.Context, rev model.Revision, dir string) (model.Declaration, error) {
	owner, repo, err := splitRepo(rev.Project)
	if err != nil {
		return model.Declaration{}, err
	}
	file := strings.TrimPrefix(path.Join(dir, b.declarationFile()), "/")
	content, _, resp, err := b.client.Client.Repositories.GetContents(ctx, owner, repo, file, &github.RepositoryContentGetOptions{Ref: rev.Ref})
	if err != nil {
		if notFound(resp) {
			return model.Declaration{}, store.ErrNotFound
		}
		return model.Declaration{}, fmt.Errorf("fetch %s at %s: %w", file, rev, err)
	}
	if content == nil {
		return model.Declaration{}, store.ErrNotFound
	}
	raw, err := content.GetContent()
	if err != nil {
		return model.Declaration{}, &store.ParseError{Revision: rev, Directory: dir, Err: err}
	}
	decl, err := store.DecodeDeclaration([]byte(raw), dir)
	if err != nil {
		return model.Declaration{}, &store.ParseError{Revision: rev, Directory: dir, Err: err}
	}
	return decl, nil
}

func (b *Backend) declarationFile() string {
	if b.DeclarationFile == "" {
		return DefaultDeclarationFile
	}
	return b.DeclarationFile
}

// Compute implements backend.ChangedFiles from the pull request file list.
// GitHub exposes a single diff per pull request, so both merge strategies
// see the same list.
func (b *Backend) Compute(ctx context.Context, change model.Change, strategy model.MergeStrategy) ([]model.ChangedFile, error) {
	owner, repo, err := splitRepo(change.Project)
	if err != nil {
		return nil, err
	}

	var files []model.ChangedFile
	opt := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := b.client.Client.PullRequests.ListFiles(ctx, owner, repo, change.Number, opt)
		if err != nil {
			return nil, fmt.Errorf("list files of %s: %w", change, err)
		}
		for _, cf := range page {
			f, ok := changedFile(cf)
			if !ok {
				continue
			}
			files = append(files, f)
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return backend.SortFiles(files), nil
}

// changedFile maps one pull-request file entry.
func changedFile(cf *github.CommitFile) (model.ChangedFile, bool) {
	name := "/" + cf.GetFilename()
	switch cf.GetStatus() {
	case "added", "copied":
		return model.NewAddition(name), true
	case "removed":
		return model.NewDeletion(name), true
	case "renamed":
		old := cf.GetPreviousFilename()
		if old == "" {
			return model.NewModification(name), true
		}
		return model.NewRename("/"+old, name), true
	case "unchanged":
		return model.ChangedFile{}, false
	default: // "modified", "changed"
		return model.NewModification(name), true
	}
}

// PatchSets implements backend.VotingHistory: one patch set at the pull
// request's head, with votes derived from each reviewer's latest review.
func (b *Backend) PatchSets(ctx context.Context, change model.Change) ([]backend.PatchSet, error) {
	owner, repo, err := splitRepo(change.Project)
	if err != nil {
		return nil, err
	}

	reviews, err := b.listReviews(ctx, owner, repo, change.Number)
	if err != nil {
		return nil, err
	}

	return []backend.PatchSet{{
		Number:   1,
		Uploader: change.Owner,
		Votes:    reviewVotes(reviews, b.Label, b.Value),
	}}, nil
}

// reviewVotes folds a review history into votes: only each reviewer's
// latest APPROVED or CHANGES_REQUESTED review counts, matching how GitHub
// presents review state.
func reviewVotes(reviews []*github.PullRequestReview, label string, value int) []backend.Vote {
	latest := make(map[string]*github.PullRequestReview)
	var order []string
	for _, r := range reviews {
		state := r.GetState()
		if state != "APPROVED" && state != "CHANGES_REQUESTED" && state != "DISMISSED" {
			continue
		}
		login := r.GetUser().GetLogin()
		if login == "" {
			continue
		}
		if _, ok := latest[login]; !ok {
			order = append(order, login)
		}
		latest[login] = r
	}

	var votes []backend.Vote
	for _, login := range order {
		r := latest[login]
		var v int
		switch r.GetState() {
		case "APPROVED":
			v = value
		case "CHANGES_REQUESTED":
			v = -value
		default: // DISMISSED clears the reviewer's vote
			continue
		}
		votes = append(votes, backend.Vote{
			Account: model.AccountID(login),
			Label:   label,
			Value:   v,
			Granted: r.GetSubmittedAt().Time,
		})
	}
	return votes
}

func (b *Backend) listReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	var reviews []*github.PullRequestReview
	opt := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := b.client.Client.PullRequests.ListReviews(ctx, owner, repo, number, opt)
		if err != nil {
			return nil, fmt.Errorf("list reviews of %s/%s#%d: %w", owner, repo, number, err)
		}
		reviews = append(reviews, page...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return reviews, nil
}

// Reviewers implements backend.VotingHistory: requested reviewers plus
// anyone who already reviewed.
func (b *Backend) Reviewers(ctx context.Context, change model.Change) ([]model.AccountID, error) {
	owner, repo, err := splitRepo(change.Project)
	if err != nil {
		return nil, err
	}

	seen := make(map[model.AccountID]struct{})
	var out []model.AccountID
	add := func(login string) {
		if login == "" {
			return
		}
		id := model.AccountID(login)
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	requested, _, err := b.client.Client.PullRequests.ListReviewers(ctx, owner, repo, change.Number, nil)
	if err != nil {
		return nil, fmt.Errorf("list reviewers of %s: %w", change, err)
	}
	for _, u := range requested.Users {
		add(u.GetLogin())
	}

	reviews, err := b.listReviews(ctx, owner, repo, change.Number)
	if err != nil {
		return nil, err
	}
	for _, r := range reviews {
		add(r.GetUser().GetLogin())
	}
	return out, nil
}

// BranchExists implements backend.VotingHistory.
func (b *Backend) BranchExists(ctx context.Context, project, branch string) (bool, error) {
	owner, repo, err := splitRepo(project)
	if err != nil {
		return false, err
	}
	_, resp, err := b.client.Client.Repositories.GetBranch(ctx, owner, repo, branch, 0)
	if err != nil {
		if notFound(resp) {
			return false, nil
		}
		return false, fmt.Errorf("get branch %s of %s: %w", branch, project, err)
	}
	return true, nil
}

// Resolve implements resolve.AccountDirectory: owner references are GitHub
// logins; an unknown login is unresolvable, not an error.
func (b *Backend) Resolve(ctx context.Context, ref model.OwnerReference) (model.AccountID, bool, error) {
	u, resp, err := b.client.Client.Users.Get(ctx, string(ref))
	if err != nil {
		if notFound(resp) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("look up user %q: %w", ref, err)
	}
	return model.AccountID(u.GetLogin()), true, nil
}

// ProjectOwners implements resolve.AccountDirectory as the repository's
// admin collaborators.
func (b *Backend) ProjectOwners(ctx context.Context, project string) ([]model.AccountID, error) {
	owner, repo, err := splitRepo(project)
	if err != nil {
		return nil, err
	}

	var out []model.AccountID
	opt := &github.ListCollaboratorsOptions{
		Permission:  "admin",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		users, resp, err := b.client.Client.Repositories.ListCollaborators(ctx, owner, repo, opt)
		if err != nil {
			return nil, fmt.Errorf("list admin collaborators of %s: %w", project, err)
		}
		for _, u := range users {
			out = append(out, model.AccountID(u.GetLogin()))
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
