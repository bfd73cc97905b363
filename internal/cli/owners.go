package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"owncheck/internal/flags"
	"owncheck/internal/match"
	"owncheck/internal/model"
	"owncheck/internal/resolve"
	"owncheck/internal/store"
)

var (
	ownersProject string
	ownersRef     string
)

// ownerBackend is the surface owner resolution needs from a review system.
type ownerBackend interface {
	store.DeclarationStore
	resolve.AccountDirectory
}

var ownersCmd = &cobra.Command{
	Use:   "owners [paths...]",
	Short: "Resolve the effective code owners of one or more paths",
	Long: `Owners resolves the effective code-owner set for each given path at a
fixed revision, without reference to any change: declarations along the
directory chain, pattern overrides, imports, global and default owners,
and the configured fallback all apply.

Paths are repository-absolute; a missing leading slash is added.

Exit codes:
	0 = all paths resolved
	2 = partial (some declarations failed to resolve)
	3 = fatal error

Examples:
	# Resolve owners at the tip of a Gerrit branch
	owncheck owners --gerrit https://gerrit.example.com --project widgets --ref main /src/main.go

	# Resolve owners in a GitHub repository
	owncheck owners --github octo/widgets --ref main /src/main.go /docs/README.md
`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runOwners(context.Background(), args))
	},
}

func runOwners(ctx context.Context, paths []string) int {
	if err := validateOwnersTarget(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	b, project, err := connectOwners(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	var log io.Writer
	if cfg.Runtime.Verbose {
		log = os.Stderr
	}
	owners := &resolve.Owners{
		Resolver: &resolve.Resolver{
			Store:    store.NewCaching(b),
			Matcher:  match.Doublestar{},
			MaxSteps: cfg.Owners.MaxDepth,
		},
		Identity: &resolve.IdentityResolver{Accounts: b, Log: log},
		Policy:   cfg.OwnerPolicy(project),
	}

	rev := model.Revision{Project: project, Ref: ownersRef}
	partial := false
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		resolved, dirErrs, err := owners.ForPath(ctx, rev, p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 3
		}
		for _, dirErr := range dirErrs {
			partial = true
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", p, dirErr)
		}
		fmt.Printf("%s: %s\n", p, formatOwners(resolved))
	}
	if partial {
		return 2
	}
	return 0
}

func validateOwnersTarget() error {
	hasGerrit := cfg.Target.GerritURL != ""
	hasGitHub := cfg.Target.GitHubRepo != ""
	if hasGerrit == hasGitHub {
		return errors.New("exactly one of --gerrit and --github is required")
	}
	if hasGerrit && ownersProject == "" {
		return errors.New("--project is required with --gerrit")
	}
	if hasGitHub && !strings.Contains(cfg.Target.GitHubRepo, "/") {
		return fmt.Errorf("invalid --github repository %q, want OWNER/REPO", cfg.Target.GitHubRepo)
	}
	if ownersRef == "" {
		return errors.New("--ref is required")
	}
	if cfg.Owners.MaxDepth < 1 {
		return fmt.Errorf("--max-depth must be at least 1, got %d", cfg.Owners.MaxDepth)
	}
	switch cfg.Owners.Fallback {
	case "none", "all-users", "project-owners":
	default:
		return fmt.Errorf("invalid --fallback %q, want none, all-users, or project-owners", cfg.Owners.Fallback)
	}
	return nil
}

// connectOwners builds the configured backend and returns it together with
// the project name owner revisions are addressed by.
func connectOwners(ctx context.Context) (ownerBackend, string, error) {
	if cfg.Target.GerritURL != "" {
		client, err := gerritClient(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		return client, ownersProject, nil
	}
	be, err := githubBackend(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return be, cfg.Target.GitHubRepo, nil
}

func formatOwners(resolved model.ResolvedOwners) string {
	if resolved.OwnedByAllUsers {
		return "all users"
	}
	if len(resolved.Owners) == 0 {
		return "(no owners)"
	}
	parts := make([]string, len(resolved.Owners))
	for i, id := range resolved.Owners {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(ownersCmd)

	ownersCmd.Flags().StringVar(&cfg.Target.GerritURL, flags.FlagGerrit, "", "Gerrit base URL to resolve against")
	ownersCmd.Flags().StringVar(&cfg.Target.GitHubRepo, flags.FlagGitHub, "", "GitHub repository to resolve against as OWNER/REPO")
	ownersCmd.Flags().StringVar(&ownersProject, flags.FlagProject, "", "Project to resolve in (Gerrit only)")
	ownersCmd.Flags().StringVar(&ownersRef, flags.FlagRef, "", "Branch or commit to resolve at")
	ownersCmd.Flags().StringVar(&cfg.Target.DeclarationFile, flags.FlagDeclarationFile, cfg.Target.DeclarationFile, "Per-directory ownership declaration filename")
	ownersCmd.Flags().StringVar(&cfg.Target.Token, flags.FlagToken, "", "Backend access token (GitHub; falls back to GITHUB_TOKEN, then gh)")

	ownersCmd.Flags().StringSliceVar(&cfg.Owners.Global, flags.FlagGlobalOwner, nil, "Owner reference(s) added to every path's owner set")
	ownersCmd.Flags().StringVar(&cfg.Owners.DefaultRef, flags.FlagDefaultOwnersRef, "", "Read an additional root declaration from this ref of the project")
	ownersCmd.Flags().StringVar(&cfg.Owners.Fallback, flags.FlagFallback, cfg.Owners.Fallback, "Fallback owners when none are declared: none|all-users|project-owners")
	ownersCmd.Flags().StringSliceVar(&cfg.Owners.ProjectOwnerAccounts, flags.FlagProjectOwner, nil, "Account(s) backing the project-owners fallback on Gerrit")
	ownersCmd.Flags().IntVar(&cfg.Owners.MaxDepth, flags.FlagMaxDepth, cfg.Owners.MaxDepth, "Maximum declarations visited per path resolution")

	ownersCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout for the resolution")
}
