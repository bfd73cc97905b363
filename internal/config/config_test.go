package config

import (
	"strings"
	"testing"

	"owncheck/internal/approval"
	"owncheck/internal/model"
)

func valid() *Check {
	c := New()
	c.Target.GerritURL = "https://gerrit.example.com"
	c.Target.Change = 42
	return c
}

func TestValidateDefaults(t *testing.T) {
	c := valid()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := c.RequiredLabel(); got.Name != "Code-Review" || got.Value != 2 {
		t.Errorf("default required label: got %+v", got)
	}
	if c.ImplicitMode() != model.ImplicitOn {
		t.Errorf("default implicit mode: got %v", c.ImplicitMode())
	}
	if c.FallbackMode() != model.FallbackNone {
		t.Errorf("default fallback mode: got %v", c.FallbackMode())
	}
	if c.MergeStrategyValue() != model.MergeAllChangedFiles {
		t.Errorf("default merge strategy: got %v", c.MergeStrategyValue())
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Check)
		wantErr string
	}{
		{
			name:    "no target",
			mutate:  func(c *Check) { c.Target.GerritURL = "" },
			wantErr: "one of --gerrit or --github",
		},
		{
			name: "both targets",
			mutate: func(c *Check) {
				c.Target.GitHubRepo = "acme/widgets"
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "malformed github repo",
			mutate: func(c *Check) {
				c.Target.GerritURL = ""
				c.Target.GitHubRepo = "acme"
			},
			wantErr: "expected OWNER/REPO",
		},
		{
			name:    "missing change",
			mutate:  func(c *Check) { c.Target.Change = 0 },
			wantErr: "--change",
		},
		{
			name:    "negative patchset",
			mutate:  func(c *Check) { c.Target.PatchSet = -1 },
			wantErr: "--patchset",
		},
		{
			name:    "bad merge strategy",
			mutate:  func(c *Check) { c.Target.MergeStrategy = "cherry-pick" },
			wantErr: "--merge-strategy",
		},
		{
			name:    "malformed label",
			mutate:  func(c *Check) { c.Policy.Label = "Code-Review" },
			wantErr: "--label",
		},
		{
			name:    "malformed override",
			mutate:  func(c *Check) { c.Policy.Overrides = []string{"Owners-Override"} },
			wantErr: "--override",
		},
		{
			name:    "bad implicit mode",
			mutate:  func(c *Check) { c.Policy.Implicit = "maybe" },
			wantErr: "--implicit",
		},
		{
			name:    "bad fallback",
			mutate:  func(c *Check) { c.Owners.Fallback = "everyone" },
			wantErr: "--fallback",
		},
		{
			name:    "zero max depth",
			mutate:  func(c *Check) { c.Owners.MaxDepth = 0 },
			wantErr: "--max-depth",
		},
		{
			name:    "bad console format",
			mutate:  func(c *Check) { c.Output.ConsoleFormat = "yaml" },
			wantErr: "--console-format",
		},
		{
			name:    "bad emit",
			mutate:  func(c *Check) { c.Output.Emit = []string{"xml"} },
			wantErr: "--emit",
		},
		{
			name:    "out without inferable format",
			mutate:  func(c *Check) { c.Output.Out = "results.txt" },
			wantErr: "infer output format",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Check) { c.Runtime.Concurrency = 0 },
			wantErr: "--concurrency",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Check) { c.Runtime.Timeout = 0 },
			wantErr: "--timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("Validate: want error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("want error containing %q, got %q", tt.wantErr, err)
			}
		})
	}
}

func TestValidateNormalizesLists(t *testing.T) {
	c := valid()
	c.Policy.Overrides = []string{"Owners-Override+1, Build-Cop-Override+1"}
	c.Owners.Global = []string{"alice, bob", "carol"}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(c.Policy.Overrides) != 2 {
		t.Errorf("want 2 overrides, got %v", c.Policy.Overrides)
	}
	if len(c.Owners.Global) != 3 {
		t.Errorf("want 3 global owners, got %v", c.Owners.Global)
	}
}

func TestValidateInfersOutFormat(t *testing.T) {
	c := valid()
	c.Output.Out = "results.ndjson"
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Output.OutFormat != "ndjson" {
		t.Errorf("want ndjson inferred, got %q", c.Output.OutFormat)
	}
}

func TestParseLabelSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    approval.LabelRequirement
		wantErr bool
	}{
		{spec: "Code-Review+2", want: approval.LabelRequirement{Name: "Code-Review", Value: 2}},
		{spec: "Owners-Override+1:noself", want: approval.LabelRequirement{Name: "Owners-Override", Value: 1, IgnoreSelfApproval: true}},
		{spec: " Verified+1 ", want: approval.LabelRequirement{Name: "Verified", Value: 1}},
		{spec: "Code-Review", wantErr: true},
		{spec: "+2", wantErr: true},
		{spec: "Code-Review+0", wantErr: true},
		{spec: "Code-Review+x", wantErr: true},
		{spec: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseLabelSpec(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLabelSpec(%q): want error", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLabelSpec(%q): %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("want %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestApprovalPolicy(t *testing.T) {
	c := valid()
	c.Policy.Label = "Code-Review+2:noself"
	c.Policy.Overrides = []string{"Owners-Override+1"}
	c.Policy.Implicit = "forced"
	c.Policy.Sticky = true
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	pol := c.ApprovalPolicy()
	if !pol.Required.IgnoreSelfApproval || pol.Required.Name != "Code-Review" {
		t.Errorf("required label: got %+v", pol.Required)
	}
	if len(pol.Overrides) != 1 || pol.Overrides[0].Name != "Owners-Override" {
		t.Errorf("overrides: got %+v", pol.Overrides)
	}
	if pol.Implicit != model.ImplicitForced {
		t.Errorf("implicit: got %v", pol.Implicit)
	}
	if !pol.Sticky {
		t.Errorf("sticky flag lost")
	}
}

func TestOwnerPolicy(t *testing.T) {
	c := valid()
	c.Owners.Global = []string{"sheriff"}
	c.Owners.DefaultRef = "refs/meta/config"
	c.Owners.Fallback = "all-users"
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	pol := c.OwnerPolicy("proj")
	if len(pol.GlobalOwners) != 1 || pol.GlobalOwners[0] != "sheriff" {
		t.Errorf("global owners: got %+v", pol.GlobalOwners)
	}
	if pol.DefaultOwnersRev == nil || pol.DefaultOwnersRev.Project != "proj" || pol.DefaultOwnersRev.Ref != "refs/meta/config" {
		t.Errorf("default owners revision: got %+v", pol.DefaultOwnersRev)
	}
	if pol.Fallback != model.FallbackAllUsers {
		t.Errorf("fallback: got %v", pol.Fallback)
	}
}

func TestEngineOptions(t *testing.T) {
	c := valid()
	c.Policy.ExemptPureRevert = true
	c.Policy.ExemptUploaders = []string{"release-bot"}
	c.Target.MergeStrategy = "files-with-conflict-resolution"
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	opts := c.EngineOptions()
	if !opts.ExemptPureRevert {
		t.Errorf("pure-revert exemption lost")
	}
	if len(opts.ExemptedUploaders) != 1 || opts.ExemptedUploaders[0] != "release-bot" {
		t.Errorf("exempt uploaders: got %+v", opts.ExemptedUploaders)
	}
	if opts.MergeStrategy != model.MergeFilesWithConflictResolution {
		t.Errorf("merge strategy: got %v", opts.MergeStrategy)
	}
	if opts.Concurrency != c.Runtime.Concurrency {
		t.Errorf("concurrency not carried")
	}
}
