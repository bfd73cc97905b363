package flags

// Package flags defines canonical CLI flag names shared across the CLI.
// Keeping these as constants helps avoid drift between Cobra flag wiring
// and other code paths that reference flags in messages.
// IMPORTANT: These are flag *names* without leading dashes.
const (
	// Target
	FlagGerrit          = "gerrit"
	FlagGitHub          = "github"
	FlagChange          = "change"
	FlagPatchSet        = "patchset"
	FlagDeclarationFile = "declaration-file"
	FlagMergeStrategy   = "merge-strategy"
	FlagAccount         = "account"
	FlagOwnedBy         = "owned-by"
	FlagToken           = "token"
	FlagRef             = "ref"
	FlagProject         = "project"

	// Policy
	FlagLabel            = "label"
	FlagOverride         = "override"
	FlagImplicit         = "implicit"
	FlagSticky           = "sticky"
	FlagExemptPureRevert = "exempt-pure-revert"
	FlagExemptUploader   = "exempt-uploader"

	// Owners
	FlagGlobalOwner     = "global-owner"
	FlagDefaultOwnersRef = "default-owners-ref"
	FlagFallback        = "fallback"
	FlagProjectOwner    = "project-owner"
	FlagMaxDepth        = "max-depth"

	// Output
	FlagConsoleFormat       = "console-format"
	FlagConsoleFilterStatus = "console-filter-status"
	FlagOut                 = "out"
	FlagOutFormat           = "out-format"
	FlagEmit                = "emit"
	FlagNoConsole           = "no-console"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
)
