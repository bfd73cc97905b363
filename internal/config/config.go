package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"owncheck/internal/approval"
	"owncheck/internal/model"
	"owncheck/internal/resolve"
	"owncheck/internal/status"
)

// Check is the immutable configuration snapshot of one check run.
type Check struct {
	// MAINTAINER NOTE: if you add/change/remove fields that affect check
	// behavior, keep the CLI flags in internal/cli/check.go in sync.
	Target  Target
	Policy  Policy
	Owners  Owners
	Output  Output
	Runtime Runtime

	required  approval.LabelRequirement
	overrides []approval.LabelRequirement
}

type Target struct {
	// GerritURL selects the Gerrit backend (see --gerrit).
	GerritURL string

	// GitHubRepo selects the GitHub backend as OWNER/REPO (see --github).
	GitHubRepo string

	// Change is the change or pull-request number (see --change).
	Change int

	// PatchSet pins the patch set to check; 0 means current (see --patchset).
	// GitHub pull requests always check the head (patch set 1).
	PatchSet int

	// DeclarationFile is the per-directory declaration filename
	// (see --declaration-file).
	DeclarationFile string

	// MergeStrategy selects which files a merge commit changes
	// (see --merge-strategy). Allowed values: all-changed-files,
	// files-with-conflict-resolution.
	MergeStrategy string

	// Account restricts evidence to a single account (see --account).
	Account string

	// Token authenticates the backend (see --token). For GitHub an empty
	// value falls back to GITHUB_TOKEN and then `gh auth token`.
	Token string
}

type Policy struct {
	// Label is the required approval label as NAME+VALUE, with an optional
	// ":noself" suffix excluding self-approval (see --label).
	Label string

	// Overrides are override labels in the same syntax; any satisfied
	// override approves the whole change (see --override).
	Overrides []string

	// Implicit controls implicit uploader approval (see --implicit).
	// Allowed values: off, on, forced.
	Implicit string

	// Sticky carries qualifying approvals from earlier patch sets forward
	// (see --sticky).
	Sticky bool

	// ExemptPureRevert approves every file of a pure revert (see
	// --exempt-pure-revert).
	ExemptPureRevert bool

	// ExemptUploaders lists accounts whose uploads need no owner approval
	// (see --exempt-uploader).
	ExemptUploaders []string
}

type Owners struct {
	// Global owner references added to every file's owner set (see
	// --global-owner).
	Global []string

	// DefaultRef reads an additional root declaration from this ref of the
	// target project (see --default-owners-ref).
	DefaultRef string

	// Fallback applies when no declaration in a file's chain defines any
	// owner (see --fallback). Allowed values: none, all-users,
	// project-owners.
	Fallback string

	// ProjectOwnerAccounts backs the project-owners fallback on backends
	// without a membership endpoint (see --project-owner).
	ProjectOwnerAccounts []string

	// MaxDepth bounds the resolution walk per file (see --max-depth).
	MaxDepth int
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see
	// --console-format). Allowed values: text, json, ndjson.
	ConsoleFormat string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format). Allowed
	// values: json, ndjson. If empty, it is inferred from the --out file
	// extension.
	OutFormat string

	// Emit writes an additional structured event stream to stdout (see
	// --emit). Allowed values: json, ndjson.
	Emit []string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool
}

type Runtime struct {
	// Concurrency bounds the per-file fan-out (see --concurrency). Must be
	// >= 1.
	Concurrency int

	// Timeout is the global timeout for the run (see --timeout). Must be
	// > 0.
	Timeout time.Duration

	// Verbose enables diagnostic logging on stderr (see --verbose).
	Verbose bool
}

func New() *Check {
	return &Check{
		Target: Target{
			DeclarationFile: "OWNERS.json",
			MergeStrategy:   "all-changed-files",
		},
		Policy: Policy{
			Label:    "Code-Review+2",
			Implicit: "on",
		},
		Owners: Owners{
			Fallback: "none",
			MaxDepth: 100,
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: 8,
			Timeout:     5 * time.Minute,
		},
	}
}

func (c *Check) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Policy.Overrides = splitCommaList(c.Policy.Overrides)
	c.Policy.ExemptUploaders = splitCommaList(c.Policy.ExemptUploaders)
	c.Owners.Global = splitCommaList(c.Owners.Global)
	c.Owners.ProjectOwnerAccounts = splitCommaList(c.Owners.ProjectOwnerAccounts)

	// Target validation
	c.Target.GerritURL = strings.TrimSpace(c.Target.GerritURL)
	c.Target.GitHubRepo = strings.TrimSpace(c.Target.GitHubRepo)
	if c.Target.GerritURL == "" && c.Target.GitHubRepo == "" {
		return errors.New("one of --gerrit or --github must be provided")
	}
	if c.Target.GerritURL != "" && c.Target.GitHubRepo != "" {
		return errors.New("--gerrit and --github are mutually exclusive")
	}
	if c.Target.GitHubRepo != "" && strings.Count(c.Target.GitHubRepo, "/") != 1 {
		return fmt.Errorf("invalid --github value %q: expected OWNER/REPO", c.Target.GitHubRepo)
	}
	if c.Target.Change <= 0 {
		return errors.New("--change must be >= 1")
	}
	if c.Target.PatchSet < 0 {
		return errors.New("--patchset must be >= 0")
	}
	if strings.TrimSpace(c.Target.DeclarationFile) == "" {
		return errors.New("--declaration-file must not be empty")
	}

	c.Target.MergeStrategy = normalizeEnumValue(c.Target.MergeStrategy)
	if c.Target.MergeStrategy == "" {
		c.Target.MergeStrategy = "all-changed-files"
	}
	if c.Target.MergeStrategy != "all-changed-files" && c.Target.MergeStrategy != "files-with-conflict-resolution" {
		return fmt.Errorf("unsupported --merge-strategy: %s (must be one of: all-changed-files, files-with-conflict-resolution)", c.Target.MergeStrategy)
	}

	// Label validation
	required, err := ParseLabelSpec(c.Policy.Label)
	if err != nil {
		return fmt.Errorf("invalid --label value: %w", err)
	}
	c.required = required

	c.overrides = c.overrides[:0]
	for _, spec := range c.Policy.Overrides {
		req, err := ParseLabelSpec(spec)
		if err != nil {
			return fmt.Errorf("invalid --override value: %w", err)
		}
		c.overrides = append(c.overrides, req)
	}

	c.Policy.Implicit = normalizeEnumValue(c.Policy.Implicit)
	if c.Policy.Implicit == "" {
		c.Policy.Implicit = "on"
	}
	if c.Policy.Implicit != "off" && c.Policy.Implicit != "on" && c.Policy.Implicit != "forced" {
		return fmt.Errorf("unsupported --implicit: %s (must be one of: off, on, forced)", c.Policy.Implicit)
	}

	// Owners validation
	c.Owners.Fallback = normalizeEnumValue(c.Owners.Fallback)
	if c.Owners.Fallback == "" {
		c.Owners.Fallback = "none"
	}
	if c.Owners.Fallback != "none" && c.Owners.Fallback != "all-users" && c.Owners.Fallback != "project-owners" {
		return fmt.Errorf("unsupported --fallback: %s (must be one of: none, all-users, project-owners)", c.Owners.Fallback)
	}
	if c.Owners.MaxDepth <= 0 {
		return errors.New("--max-depth must be >= 1")
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for _, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", emit)
		}
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			switch {
			case strings.HasSuffix(c.Output.Out, ".ndjson"):
				c.Output.OutFormat = "ndjson"
			case strings.HasSuffix(c.Output.Out, ".json"):
				c.Output.OutFormat = "json"
			default:
				return errors.New("cannot infer output format from file extension; use --out-format")
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	return nil
}

// ApprovalPolicy converts the snapshot to the evidence-collection policy.
// Call after Validate.
func (c *Check) ApprovalPolicy() approval.Policy {
	return approval.Policy{
		Required:  c.required,
		Overrides: c.overrides,
		Implicit:  c.ImplicitMode(),
		Sticky:    c.Policy.Sticky,
	}
}

// RequiredLabel returns the parsed required-label requirement. Call after
// Validate.
func (c *Check) RequiredLabel() approval.LabelRequirement {
	return c.required
}

func (c *Check) ImplicitMode() model.ImplicitMode {
	switch c.Policy.Implicit {
	case "forced":
		return model.ImplicitForced
	case "off":
		return model.ImplicitOff
	default:
		return model.ImplicitOn
	}
}

func (c *Check) FallbackMode() model.FallbackMode {
	switch c.Owners.Fallback {
	case "all-users":
		return model.FallbackAllUsers
	case "project-owners":
		return model.FallbackProjectOwners
	default:
		return model.FallbackNone
	}
}

func (c *Check) MergeStrategyValue() model.MergeStrategy {
	if c.Target.MergeStrategy == "files-with-conflict-resolution" {
		return model.MergeFilesWithConflictResolution
	}
	return model.MergeAllChangedFiles
}

// OwnerPolicy converts the snapshot to the owner-resolution policy for the
// given project. Call after Validate.
func (c *Check) OwnerPolicy(project string) resolve.OwnerPolicy {
	pol := resolve.OwnerPolicy{Fallback: c.FallbackMode()}
	for _, g := range c.Owners.Global {
		pol.GlobalOwners = append(pol.GlobalOwners, model.OwnerReference(g))
	}
	if c.Owners.DefaultRef != "" {
		pol.DefaultOwnersRev = &model.Revision{Project: project, Ref: c.Owners.DefaultRef}
	}
	return pol
}

// EngineOptions converts the snapshot to the status-engine options. Call
// after Validate.
func (c *Check) EngineOptions() status.Options {
	opts := status.Options{
		ExemptPureRevert: c.Policy.ExemptPureRevert,
		MergeStrategy:    c.MergeStrategyValue(),
		Concurrency:      c.Runtime.Concurrency,
	}
	for _, u := range c.Policy.ExemptUploaders {
		opts.ExemptedUploaders = append(opts.ExemptedUploaders, model.AccountID(u))
	}
	return opts
}

// ParseLabelSpec parses "NAME+VALUE" with an optional ":noself" suffix,
// e.g. "Code-Review+2" or "Owners-Override+1:noself".
func ParseLabelSpec(spec string) (approval.LabelRequirement, error) {
	raw := strings.TrimSpace(spec)
	var req approval.LabelRequirement
	if rest, ok := strings.CutSuffix(raw, ":noself"); ok {
		req.IgnoreSelfApproval = true
		raw = strings.TrimSpace(rest)
	}
	name, value, ok := strings.Cut(raw, "+")
	if !ok {
		return approval.LabelRequirement{}, fmt.Errorf("invalid label spec %q: expected NAME+VALUE", spec)
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return approval.LabelRequirement{}, fmt.Errorf("invalid label spec %q: empty or malformed label name", spec)
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v < 1 {
		return approval.LabelRequirement{}, fmt.Errorf("invalid label spec %q: value must be a positive integer", spec)
	}
	req.Name = name
	req.Value = v
	return req, nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
