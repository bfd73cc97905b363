package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"owncheck/internal/model"
)

func init() {
	// Deterministic output regardless of the test environment's terminal.
	color.NoColor = true
}

func result(path string, st model.Status, reason string) FileResult {
	return FileResult{Change: "proj~42", Path: path, Side: "new", Status: st, Reason: reason}
}

func TestConsoleSinkText(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf, "text", nil)

	if err := s.Write(result("/x.txt", model.StatusApproved, "approved by alice")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(result("/y.txt", model.StatusInsufficientReviewers, "")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sub := true
	if err := s.Write(Event{Type: "check.finished", Change: "proj~42", Submittable: &sub}); err != nil {
		t.Fatalf("Write event: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[APPROVED] /x.txt - approved by alice") {
		t.Errorf("missing approved line, got:\n%s", out)
	}
	if !strings.Contains(out, "[INSUFFICIENT_REVIEWERS] /y.txt\n") {
		t.Errorf("missing status-only line, got:\n%s", out)
	}
	if !strings.Contains(out, "proj~42: submittable") {
		t.Errorf("missing verdict line, got:\n%s", out)
	}
}

func TestConsoleSinkTextFilter(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf, "text", []string{"pending"})

	_ = s.Write(result("/a.txt", model.StatusApproved, ""))
	_ = s.Write(result("/b.txt", model.StatusPending, "awaiting review from bob"))
	_ = s.Close()

	out := buf.String()
	if strings.Contains(out, "/a.txt") {
		t.Errorf("filtered status leaked, got:\n%s", out)
	}
	if !strings.Contains(out, "/b.txt") {
		t.Errorf("allowed status missing, got:\n%s", out)
	}
}

func TestConsoleSinkJSONAggregates(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf, "json", nil)

	_ = s.Write(Event{Type: "check.started", Change: "proj~42"})
	_ = s.Write(result("/x.txt", model.StatusApproved, "approved by alice"))
	_ = s.Write(result("/y.txt", model.StatusPending, ""))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var results []FileResult
	if err := json.Unmarshal(buf.Bytes(), &results); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].Path != "/x.txt" || results[0].Status != model.StatusApproved {
		t.Errorf("first result mangled: %+v", results[0])
	}
}

func TestConsoleSinkNDJSONStreams(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf, "ndjson", nil)

	_ = s.Write(Event{Type: "check.started", Change: "proj~42", Files: 1})
	_ = s.Write(result("/x.txt", model.StatusApproved, "approved by alice"))
	sub := false
	_ = s.Write(Event{Type: "check.finished", Change: "proj~42", Submittable: &sub, ExitCode: 1})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 NDJSON lines, got %d:\n%s", len(lines), buf.String())
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1: %v", err)
	}
	if first.Type != "check.started" || first.Files != 1 {
		t.Errorf("line 1 mangled: %+v", first)
	}

	var mid Event
	if err := json.Unmarshal([]byte(lines[1]), &mid); err != nil {
		t.Fatalf("line 2: %v", err)
	}
	if mid.Type != "file.status" || mid.FileResult == nil || mid.FileResult.Path != "/x.txt" {
		t.Errorf("line 2 mangled: %+v", mid)
	}

	var last Event
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("line 3: %v", err)
	}
	if last.Type != "check.finished" || last.Submittable == nil || *last.Submittable || last.ExitCode != 1 {
		t.Errorf("line 3 mangled: %+v", last)
	}
}

func TestResultsFromFile(t *testing.T) {
	fs := model.FileStatus{
		Changed:       model.NewRename("/old.go", "/new.go"),
		OldPathStatus: &model.PathStatus{Path: "/old.go", Status: model.StatusApproved, Reason: "approved by alice"},
		NewPathStatus: &model.PathStatus{Path: "/new.go", Status: model.StatusPending},
	}

	got := ResultsFromFile("proj~42", fs)
	if len(got) != 2 {
		t.Fatalf("want 2 records, got %d", len(got))
	}
	if got[0].Side != "old" || got[0].Path != "/old.go" {
		t.Errorf("old side mangled: %+v", got[0])
	}
	if got[1].Side != "new" || got[1].Status != model.StatusPending {
		t.Errorf("new side mangled: %+v", got[1])
	}
}
