// Package gerrit adapts a Gerrit REST host to the backend contracts:
// declarations are read from a JSON file per directory at the change's
// revision, changed files come from the revision file list, and votes come
// from the change's labels.
package gerrit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	gerritapi "github.com/andygrunwald/go-gerrit"

	"owncheck/internal/backend"
	"owncheck/internal/model"
	"owncheck/internal/store"
)

// DefaultDeclarationFile is the per-directory declaration filename read
// when none is configured.
const DefaultDeclarationFile = "OWNERS.json"

// Client adapts one Gerrit host. It implements store.DeclarationStore,
// backend.ChangedFiles, backend.VotingHistory, and resolve.AccountDirectory.
type Client struct {
	api *gerritapi.Client

	// DeclarationFile is the filename fetched per directory.
	DeclarationFile string

	// FallbackOwners backs the PROJECT_OWNERS fallback mode. Gerrit has no
	// single endpoint for owner-group membership, so the accounts are
	// supplied by configuration.
	FallbackOwners []model.AccountID
}

// NewClient connects to the Gerrit instance at baseURL. httpClient carries
// authentication (cookie or basic auth transport); pass nil for anonymous
// access.
func NewClient(ctx context.Context, baseURL string, httpClient *http.Client) (*Client, error) {
	api, err := gerritapi.NewClient(ctx, baseURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create gerrit client for %s: %w", baseURL, err)
	}
	return &Client{api: api, DeclarationFile: DefaultDeclarationFile}, nil
}

// VerboseHTTPClient returns an HTTP client that logs one line per API
// request and response to w, for use with NewClient under --verbose.
func VerboseHTTPClient(w io.Writer) *http.Client {
	return &http.Client{Transport: &loggingRoundTripper{base: http.DefaultTransport, w: w}}
}

type loggingRoundTripper struct {
	base http.RoundTripper
	w    io.Writer
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if t.w != nil {
		_, _ = fmt.Fprintf(t.w, "[verbose] gerrit api: %s %s\n", req.Method, req.URL.String())
	}
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start)
	if t.w != nil {
		if err != nil {
			_, _ = fmt.Fprintf(t.w, "[verbose] gerrit api: error after %s: %v\n", dur.Truncate(time.Millisecond), err)
		} else {
			_, _ = fmt.Fprintf(t.w, "[verbose] gerrit api: %d %s (%s)\n", resp.StatusCode, http.StatusText(resp.StatusCode), dur.Truncate(time.Millisecond))
		}
	}
	return resp, err
}

// changeID returns the unambiguous {project}~{number} change identifier.
func changeID(change model.Change) string {
	return fmt.Sprintf("%s~%d", change.Project, change.Number)
}

// LoadChange fetches a change and pins it at the given patch set. A
// patchSet of 0 selects the current patch set. Change numbers are
// server-unique, so no project qualifier is needed.
func (c *Client) LoadChange(ctx context.Context, number, patchSet int) (model.Change, error) {
	info, resp, err := c.api.Changes.GetChange(ctx, strconv.Itoa(number), &gerritapi.ChangeOptions{
		AdditionalFields: []string{"ALL_REVISIONS", "DETAILED_ACCOUNTS"},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return model.Change{}, fmt.Errorf("change %d not found", number)
		}
		return model.Change{}, fmt.Errorf("get change %d: %w", number, err)
	}

	ref := ""
	if patchSet == 0 {
		ref = info.CurrentRevision
		patchSet = info.Revisions[info.CurrentRevision].Number
	} else {
		for sha, rev := range info.Revisions {
			if rev.Number == patchSet {
				ref = sha
				break
			}
		}
	}
	if ref == "" {
		return model.Change{}, fmt.Errorf("patch set %d of change %d not found", patchSet, number)
	}

	return model.Change{
		Project:        info.Project,
		Branch:         info.Branch,
		Number:         info.Number,
		Owner:          accountID(info.Owner),
		TargetPatchSet: patchSet,
		Revision:       model.Revision{Project: info.Project, Ref: ref},
		IsPureRevert:   info.RevertOf != 0,
	}, nil
}

// Get implements store.DeclarationStore: it reads the declaration file of
// dir at the revision and decodes it.
func (c *Client) Get(ctx context.Context, rev model.Revision, dir string) (model.Declaration, error) {
	file := strings.TrimPrefix(path.Join(dir, c.declarationFile()), "/")
	content, resp, err := c.api.Projects.GetCommitContent(ctx, rev.Project, rev.Ref, file)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return model.Declaration{}, store.ErrNotFound
		}
		return model.Declaration{}, fmt.Errorf("fetch %s at %s: %w", file, rev, err)
	}
	decl, err := store.DecodeDeclaration([]byte(content), dir)
	if err != nil {
		return model.Declaration{}, &store.ParseError{Revision: rev, Directory: dir, Err: err}
	}
	return decl, nil
}

func (c *Client) declarationFile() string {
	if c.DeclarationFile == "" {
		return DefaultDeclarationFile
	}
	return c.DeclarationFile
}

// Compute implements backend.ChangedFiles from the revision's file list.
// ALL_CHANGED_FILES diffs against the first parent; the conflict-resolution
// strategy takes Gerrit's default diff base, which for merge commits is the
// automatic merge.
func (c *Client) Compute(ctx context.Context, change model.Change, strategy model.MergeStrategy) ([]model.ChangedFile, error) {
	opt := &gerritapi.FilesOptions{}
	if strategy != model.MergeFilesWithConflictResolution {
		opt.Parent = 1
	}
	infos, _, err := c.api.Changes.ListFiles(ctx, changeID(change), strconv.Itoa(change.TargetPatchSet), opt)
	if err != nil {
		return nil, fmt.Errorf("list files of %s: %w", change, err)
	}

	var files []model.ChangedFile
	for name, info := range infos {
		f, ok := changedFile(name, info)
		if !ok {
			continue
		}
		files = append(files, f)
	}
	return backend.SortFiles(files), nil
}

// changedFile maps one file-list entry. Magic entries such as /COMMIT_MSG
// and /MERGE_LIST are skipped; real paths are normalized to a leading
// slash.
func changedFile(name string, info gerritapi.FileInfo) (model.ChangedFile, bool) {
	if strings.HasPrefix(name, "/") {
		return model.ChangedFile{}, false
	}
	newPath := "/" + name
	switch info.Status {
	case "A", "C":
		return model.NewAddition(newPath), true
	case "D":
		return model.NewDeletion(newPath), true
	case "R":
		old := info.OldPath
		if old == "" {
			return model.NewModification(newPath), true
		}
		return model.NewRename("/"+old, newPath), true
	default: // "M", "W", or absent
		return model.NewModification(newPath), true
	}
}

// PatchSets implements backend.VotingHistory. Gerrit reports the current
// label state only; it applies its own copy conditions when votes survive a
// new patch set, so the current votes are attached to the patch set they
// are reported on.
func (c *Client) PatchSets(ctx context.Context, change model.Change) ([]backend.PatchSet, error) {
	info, _, err := c.api.Changes.GetChange(ctx, changeID(change), &gerritapi.ChangeOptions{
		AdditionalFields: []string{"ALL_REVISIONS", "DETAILED_LABELS", "DETAILED_ACCOUNTS"},
	})
	if err != nil {
		return nil, fmt.Errorf("get change %s: %w", change, err)
	}

	current := info.Revisions[info.CurrentRevision].Number
	byNumber := make(map[int]*backend.PatchSet)
	var patchSets []backend.PatchSet
	for _, rev := range info.Revisions {
		patchSets = append(patchSets, backend.PatchSet{
			Number:   rev.Number,
			Uploader: accountID(rev.Uploader),
		})
	}
	sortPatchSets(patchSets)
	for i := range patchSets {
		byNumber[patchSets[i].Number] = &patchSets[i]
	}

	for label, li := range info.Labels {
		for _, approval := range li.All {
			if approval.Value == 0 {
				continue
			}
			ps, ok := byNumber[current]
			if !ok {
				continue
			}
			ps.Votes = append(ps.Votes, backend.Vote{
				Account: accountID(approval.AccountInfo),
				Label:   label,
				Value:   approval.Value,
				Granted: parseVoteDate(approval.Date),
			})
		}
	}
	return patchSets, nil
}

// Reviewers implements backend.VotingHistory.
func (c *Client) Reviewers(ctx context.Context, change model.Change) ([]model.AccountID, error) {
	infos, _, err := c.api.Changes.ListReviewers(ctx, changeID(change))
	if err != nil {
		return nil, fmt.Errorf("list reviewers of %s: %w", change, err)
	}
	var out []model.AccountID
	for _, r := range *infos {
		out = append(out, accountID(r.AccountInfo))
	}
	return out, nil
}

// BranchExists implements backend.VotingHistory.
func (c *Client) BranchExists(ctx context.Context, project, branch string) (bool, error) {
	_, resp, err := c.api.Projects.GetBranch(ctx, project, branch)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("get branch %s of %s: %w", branch, project, err)
	}
	return true, nil
}

// Resolve implements resolve.AccountDirectory via account query. A
// reference that matches no account (or more than one) is unresolvable,
// not an error.
func (c *Client) Resolve(ctx context.Context, ref model.OwnerReference) (model.AccountID, bool, error) {
	accounts, _, err := c.api.Accounts.QueryAccounts(ctx, &gerritapi.QueryAccountOptions{
		QueryOptions: gerritapi.QueryOptions{Query: []string{string(ref)}, Limit: 2},
	})
	if err != nil {
		return "", false, fmt.Errorf("query account %q: %w", ref, err)
	}
	if accounts == nil || len(*accounts) != 1 {
		return "", false, nil
	}
	return accountID((*accounts)[0]), true, nil
}

// ProjectOwners implements resolve.AccountDirectory from the configured
// fallback accounts.
func (c *Client) ProjectOwners(ctx context.Context, project string) ([]model.AccountID, error) {
	if len(c.FallbackOwners) == 0 {
		return nil, fmt.Errorf("no fallback owners configured for project %s", project)
	}
	return c.FallbackOwners, nil
}

// accountID prefers the numeric account ID, which is stable even when
// emails change mid-review.
func accountID(a gerritapi.AccountInfo) model.AccountID {
	if a.AccountID != 0 {
		return model.AccountID(strconv.Itoa(a.AccountID))
	}
	if a.Email != "" {
		return model.AccountID(a.Email)
	}
	return model.AccountID(a.Username)
}

// parseVoteDate parses Gerrit's timestamp form ("2006-01-02
// 15:04:05.000000000"); an unparsable value yields the zero time, which
// only affects same-patch-set vote ordering.
func parseVoteDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05.000000000", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func sortPatchSets(patchSets []backend.PatchSet) {
	sort.Slice(patchSets, func(i, j int) bool { return patchSets[i].Number < patchSets[j].Number })
}
