package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"owncheck/internal/model"
)

func TestFileSinkJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	s, err := NewFileSink(path, "")
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	_ = s.Write(result("/x.txt", model.StatusApproved, "approved by alice"))
	_ = s.Write(Event{Type: "check.finished"}) // ignored in aggregate mode
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var results []FileResult
	if err := json.Unmarshal(raw, &results); err != nil {
		t.Fatalf("not a JSON array: %v\n%s", err, raw)
	}
	if len(results) != 1 || results[0].Path != "/x.txt" {
		t.Errorf("want one result for /x.txt, got %+v", results)
	}
}

func TestFileSinkNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.ndjson")
	s, err := NewFileSink(path, "")
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	_ = s.Write(Event{Type: "check.started", Change: "proj~42"})
	_ = s.Write(result("/x.txt", model.StatusPending, ""))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d:\n%s", len(lines), raw)
	}
}

func TestFileSinkRejectsUnknownExtension(t *testing.T) {
	if _, err := NewFileSink(filepath.Join(t.TempDir(), "results.txt"), ""); err == nil {
		t.Fatalf("want inference error for .txt")
	}
}
