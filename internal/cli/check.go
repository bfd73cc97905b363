package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"owncheck/internal/approval"
	"owncheck/internal/backend"
	"owncheck/internal/backend/gerrit"
	gh "owncheck/internal/backend/github"
	"owncheck/internal/config"
	"owncheck/internal/flags"
	"owncheck/internal/match"
	"owncheck/internal/model"
	"owncheck/internal/output"
	"owncheck/internal/resolve"
	"owncheck/internal/status"
	"owncheck/internal/store"
)

var cfg = config.New()

// reviewBackend is the full surface a check needs from one review system.
type reviewBackend interface {
	store.DeclarationStore
	backend.ChangedFiles
	backend.VotingHistory
	resolve.AccountDirectory
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a change's code-owner approval status",
	Long: `Check computes, per changed file, whether the required code-owner
approvals are present, and folds the answers into a submittability verdict.

Authentication:
	The GitHub backend uses an access token: --token, then GITHUB_TOKEN, then
	GitHub CLI authentication (gh auth token). The Gerrit backend uses
	anonymous access; point --gerrit at an authenticated reverse proxy if the
	host requires credentials.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events
	with a "type" field (check.started, file.status, check.finished).

Exit codes:
	0 = change is submittable
	1 = change is not submittable
	2 = partial (some declarations failed to resolve; statuses degraded)
	3 = fatal error (check did not run)

Examples:
	# Check a Gerrit change at its current patch set
	owncheck check --gerrit https://gerrit.example.com --change 4711

	# Check a GitHub pull request with an override label
	owncheck check --github octo/widgets --change 42 --override Owners-Override+1

	# Stream machine-readable events to stdout
	owncheck check --gerrit https://gerrit.example.com --change 4711 --no-console --emit ndjson

	# Report which changed paths alice and bob own (no vote evaluation)
	owncheck check --gerrit https://gerrit.example.com --change 4711 --owned-by alice,bob
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}
		os.Exit(runCheck(context.Background(), cfg))
	},
}

func runCheck(ctx context.Context, cfg *config.Check) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	mgr, err := buildManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	b, change, err := connect(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	code := check(ctx, cfg, b, change, mgr)
	if err := mgr.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == 0 {
			code = 3
		}
	}
	return code
}

func check(ctx context.Context, cfg *config.Check, b reviewBackend, change model.Change, mgr *output.Manager) int {
	engine := newEngine(cfg, b, change.Project)

	// Owned-paths mode skips vote evaluation entirely: it reports which
	// changed paths the candidate accounts own.
	if len(ownedBy) > 0 {
		return checkOwnedPaths(ctx, engine, change, mgr)
	}

	collector := &approval.Collector{History: b}
	snap, err := collector.Collect(ctx, change, cfg.ApprovalPolicy())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	_ = mgr.Write(output.Event{Type: "check.started", Change: change.String()})

	submittable, rep, err := engine.Submittable(ctx, change, snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	// The account view replaces the reported statuses but never the
	// submittability verdict, which always weighs the full evidence.
	if cfg.Target.Account != "" {
		rep, err = engine.FileStatusesForAccount(ctx, change, snap, model.AccountID(cfg.Target.Account))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 3
		}
	}

	for _, fs := range rep.Files {
		for _, r := range output.ResultsFromFile(change.String(), fs) {
			if err := mgr.Write(r); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
	for _, dirErr := range rep.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", dirErr)
	}

	code := exitCode(submittable, len(rep.Errors))
	_ = mgr.Write(output.Event{
		Type:        "check.finished",
		Change:      change.String(),
		Files:       len(rep.Files),
		Errors:      len(rep.Errors),
		Submittable: &submittable,
		ExitCode:    code,
	})
	return code
}

// checkOwnedPaths reports, per changed path-side, whether any of the
// --owned-by candidates is in its resolved owner set. The verdict means
// "the candidates cover every path", not submittability.
func checkOwnedPaths(ctx context.Context, engine *status.Engine, change model.Change, mgr *output.Manager) int {
	candidates := make([]model.AccountID, len(ownedBy))
	for i, a := range ownedBy {
		candidates[i] = model.AccountID(a)
	}

	_ = mgr.Write(output.Event{Type: "check.started", Change: change.String()})
	rep, err := engine.OwnedPaths(ctx, change, candidates)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	for _, fs := range rep.Files {
		for _, r := range output.ResultsFromFile(change.String(), fs) {
			if err := mgr.Write(r); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
	for _, dirErr := range rep.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", dirErr)
	}

	covered := rep.Approved()
	code := exitCode(covered, len(rep.Errors))
	_ = mgr.Write(output.Event{
		Type:        "check.finished",
		Change:      change.String(),
		Files:       len(rep.Files),
		Errors:      len(rep.Errors),
		Submittable: &covered,
		ExitCode:    code,
	})
	return code
}

// exitCode maps a check outcome onto the exit-code contract: resolution
// problems surface as partial even when the verdict would otherwise be
// clean.
func exitCode(submittable bool, resolutionErrors int) int {
	if resolutionErrors > 0 {
		return 2
	}
	if submittable {
		return 0
	}
	return 1
}

func newEngine(cfg *config.Check, b reviewBackend, project string) *status.Engine {
	var log io.Writer
	if cfg.Runtime.Verbose {
		log = os.Stderr
	}
	return &status.Engine{
		Owners: &resolve.Owners{
			Resolver: &resolve.Resolver{
				Store:    store.NewCaching(b),
				Matcher:  match.Doublestar{},
				MaxSteps: cfg.Owners.MaxDepth,
			},
			Identity: &resolve.IdentityResolver{Accounts: b, Log: log},
			Policy:   cfg.OwnerPolicy(project),
		},
		Files: b,
		Opts:  cfg.EngineOptions(),
	}
}

// connect builds the configured backend and loads the target change.
func connect(ctx context.Context, cfg *config.Check) (reviewBackend, model.Change, error) {
	if cfg.Target.GerritURL != "" {
		client, err := gerritClient(ctx, cfg)
		if err != nil {
			return nil, model.Change{}, err
		}
		change, err := client.LoadChange(ctx, cfg.Target.Change, cfg.Target.PatchSet)
		if err != nil {
			return nil, model.Change{}, err
		}
		return client, change, nil
	}

	be, err := githubBackend(ctx, cfg)
	if err != nil {
		return nil, model.Change{}, err
	}
	owner, repo, _ := strings.Cut(cfg.Target.GitHubRepo, "/")
	change, err := be.LoadChange(ctx, owner, repo, cfg.Target.Change)
	if err != nil {
		return nil, model.Change{}, err
	}
	return be, change, nil
}

func gerritClient(ctx context.Context, cfg *config.Check) (*gerrit.Client, error) {
	var httpClient *http.Client
	if cfg.Runtime.Verbose {
		httpClient = gerrit.VerboseHTTPClient(os.Stderr)
	}
	client, err := gerrit.NewClient(ctx, cfg.Target.GerritURL, httpClient)
	if err != nil {
		return nil, err
	}
	client.DeclarationFile = cfg.Target.DeclarationFile
	for _, a := range cfg.Owners.ProjectOwnerAccounts {
		client.FallbackOwners = append(client.FallbackOwners, model.AccountID(a))
	}
	return client, nil
}

func githubBackend(ctx context.Context, cfg *config.Check) (*gh.Backend, error) {
	token, _, err := gh.ResolveAuthToken(ctx, cfg.Target.Token)
	if err != nil {
		return nil, fmt.Errorf("resolve GitHub auth token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
	}
	client, err := gh.NewClient(ctx, token, gh.WithVerbose(cfg.Runtime.Verbose, nil))
	if err != nil {
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}

	required, err := config.ParseLabelSpec(cfg.Policy.Label)
	if err != nil {
		return nil, err
	}
	be := gh.NewBackend(client, required.Name, required.Value)
	be.DeclarationFile = cfg.Target.DeclarationFile
	return be, nil
}

func buildManager(cfg *config.Check) (*output.Manager, error) {
	mgr := output.NewManager()

	if !cfg.Output.NoConsole {
		if err := mgr.AddSink(output.NewConsoleSink(os.Stdout, cfg.Output.ConsoleFormat, consoleFilter)); err != nil {
			return nil, err
		}
	}
	if cfg.Output.Out != "" {
		sink, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			return nil, err
		}
		if err := mgr.AddSink(sink); err != nil {
			return nil, err
		}
	}
	for _, format := range cfg.Output.Emit {
		sink, err := output.NewEmitSink(os.Stdout, strings.ToLower(strings.TrimSpace(format)))
		if err != nil {
			return nil, err
		}
		if err := mgr.AddSink(sink); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

var (
	consoleFilter []string
	ownedBy       []string
)

func init() {
	rootCmd.AddCommand(checkCmd)

	// Target
	checkCmd.Flags().StringVar(&cfg.Target.GerritURL, flags.FlagGerrit, "", "Gerrit base URL to check against")
	checkCmd.Flags().StringVar(&cfg.Target.GitHubRepo, flags.FlagGitHub, "", "GitHub repository to check against as OWNER/REPO")
	checkCmd.Flags().IntVar(&cfg.Target.Change, flags.FlagChange, 0, "Change or pull-request number")
	checkCmd.Flags().IntVar(&cfg.Target.PatchSet, flags.FlagPatchSet, 0, "Patch set to check (0 = current; Gerrit only)")
	checkCmd.Flags().StringVar(&cfg.Target.DeclarationFile, flags.FlagDeclarationFile, cfg.Target.DeclarationFile, "Per-directory ownership declaration filename")
	checkCmd.Flags().StringVar(&cfg.Target.MergeStrategy, flags.FlagMergeStrategy, cfg.Target.MergeStrategy, "Merge-commit file strategy: all-changed-files|files-with-conflict-resolution")
	checkCmd.Flags().StringVar(&cfg.Target.Account, flags.FlagAccount, "", "Restrict the reported statuses to a single account's evidence")
	checkCmd.Flags().StringSliceVar(&ownedBy, flags.FlagOwnedBy, nil, "Report ownership coverage of the given account(s) instead of approval status")
	checkCmd.Flags().StringVar(&cfg.Target.Token, flags.FlagToken, "", "Backend access token (GitHub; falls back to GITHUB_TOKEN, then gh)")

	// Policy
	checkCmd.Flags().StringVar(&cfg.Policy.Label, flags.FlagLabel, cfg.Policy.Label, "Required approval label as NAME+VALUE, optional :noself suffix")
	checkCmd.Flags().StringSliceVar(&cfg.Policy.Overrides, flags.FlagOverride, nil, "Override label(s) as NAME+VALUE (repeatable; comma-separated accepted)")
	checkCmd.Flags().StringVar(&cfg.Policy.Implicit, flags.FlagImplicit, cfg.Policy.Implicit, "Implicit uploader approval: off|on|forced")
	checkCmd.Flags().BoolVar(&cfg.Policy.Sticky, flags.FlagSticky, false, "Carry qualifying approvals from earlier patch sets forward")
	checkCmd.Flags().BoolVar(&cfg.Policy.ExemptPureRevert, flags.FlagExemptPureRevert, false, "Approve every file of a pure revert")
	checkCmd.Flags().StringSliceVar(&cfg.Policy.ExemptUploaders, flags.FlagExemptUploader, nil, "Uploader account(s) whose uploads need no owner approval")

	// Owners
	checkCmd.Flags().StringSliceVar(&cfg.Owners.Global, flags.FlagGlobalOwner, nil, "Owner reference(s) added to every file's owner set")
	checkCmd.Flags().StringVar(&cfg.Owners.DefaultRef, flags.FlagDefaultOwnersRef, "", "Read an additional root declaration from this ref of the target project")
	checkCmd.Flags().StringVar(&cfg.Owners.Fallback, flags.FlagFallback, cfg.Owners.Fallback, "Fallback owners when none are declared: none|all-users|project-owners")
	checkCmd.Flags().StringSliceVar(&cfg.Owners.ProjectOwnerAccounts, flags.FlagProjectOwner, nil, "Account(s) backing the project-owners fallback on Gerrit")
	checkCmd.Flags().IntVar(&cfg.Owners.MaxDepth, flags.FlagMaxDepth, cfg.Owners.MaxDepth, "Maximum declarations visited per file resolution")

	// Output
	checkCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, cfg.Output.ConsoleFormat, "Console output format: text|json|ndjson")
	checkCmd.Flags().StringSliceVar(&consoleFilter, flags.FlagConsoleFilterStatus, nil, "Filter console output by status (APPROVED, PENDING, INSUFFICIENT_REVIEWERS). Comma-separated.")
	checkCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	checkCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	checkCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	checkCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out)")

	// Runtime
	checkCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent per-file status computations")
	checkCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout for the check")
}
