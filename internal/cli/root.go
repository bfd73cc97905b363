package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "owncheck",
	Short: "Compute code-owner approval statuses for a code-review change",
	Long: `Owncheck resolves the code owners of every file a change touches and
reports, per file, whether the required owner approvals are present, plus
the overall submittability verdict.

Ownership is declared per directory, inherited down the tree, overridable
per glob pattern, and importable from other directories. Approval evidence
covers direct votes, pending reviewers, implicit uploader approval, sticky
approvals from earlier patch sets, and override votes.

Examples:
	# Show available commands and global flags
	owncheck --help

	# Check a Gerrit change
	owncheck check --gerrit https://gerrit.example.com --change 4711

	# Check a GitHub pull request
	owncheck check --github octo/widgets --change 42

	# Resolve the owners of a path
	owncheck owners --gerrit https://gerrit.example.com --project widgets --ref main /src/main.go

	# Print build info
	owncheck version

Output:
	By default, commands write human-readable output to stdout.
	Structured output is available via emitter flags (see each command's --help).`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, "verbose", false, "Enable verbose logging (prints every backend API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
