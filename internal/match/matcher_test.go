package match

import "testing"

func TestDoublestarMatches(t *testing.T) {
	tests := []struct {
		expr string
		path string
		want bool
	}{
		{"*.md", "readme.md", true},
		{"*.md", "docs/readme.md", false},
		{"**/*.md", "docs/readme.md", true},
		{"**/*.md", "a/b/c/readme.md", true},
		{"{foo,bar}/*.go", "foo/x.go", true},
		{"{foo,bar}/*.go", "baz/x.go", false},
		{"BUILD", "BUILD", true},
		{"BUILD", "sub/BUILD", false},
		{"[", "x", false}, // malformed pattern never matches
	}

	m := Doublestar{}
	for _, tt := range tests {
		if got := m.Matches(tt.expr, tt.path); got != tt.want {
			t.Errorf("Doublestar.Matches(%q, %q) = %v, want %v", tt.expr, tt.path, got, tt.want)
		}
	}
}

func TestSimpleMatches(t *testing.T) {
	tests := []struct {
		expr string
		path string
		want bool
	}{
		{"*.md", "readme.md", true},
		{"*.md", "docs/readme.md", false},
		{"docs/*.md", "docs/readme.md", true},
		{"[", "x", false},
	}

	m := Simple{}
	for _, tt := range tests {
		if got := m.Matches(tt.expr, tt.path); got != tt.want {
			t.Errorf("Simple.Matches(%q, %q) = %v, want %v", tt.expr, tt.path, got, tt.want)
		}
	}
}

func TestAny(t *testing.T) {
	m := Doublestar{}
	if !Any(m, []string{"*.txt", "*.md"}, "readme.md") {
		t.Errorf("expected a match on the second expression")
	}
	if Any(m, []string{"*.txt"}, "readme.md") {
		t.Errorf("unexpected match")
	}
	if Any(m, nil, "readme.md") {
		t.Errorf("empty expression list must not match")
	}
}
