package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"owncheck/internal/model"
)

type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	results         []FileResult // For JSON array output
	allowedStatuses map[string]bool
}

func NewConsoleSink(w io.Writer, format string, filterStatuses []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
	}

	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[string]bool)
		for _, st := range filterStatuses {
			s.allowedStatuses[strings.ToUpper(st)] = true
		}
	}

	return s
}

var (
	approvedColor     = color.New(color.FgGreen)
	pendingColor      = color.New(color.FgYellow)
	insufficientColor = color.New(color.FgRed)
)

func statusLabel(st model.Status) string {
	switch st {
	case model.StatusApproved:
		return approvedColor.Sprint(st)
	case model.StatusPending:
		return pendingColor.Sprint(st)
	default:
		return insufficientColor.Sprint(st)
	}
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	// Apply filtering if configured
	if len(s.allowedStatuses) > 0 {
		if r, ok := v.(FileResult); ok {
			if !s.allowedStatuses[string(r.Status)] {
				return nil
			}
		}
	}

	switch s.format {
	case "json":
		r, ok := v.(FileResult)
		if !ok {
			// Ignore non-result events in JSON console mode.
			return nil
		}
		s.results = append(s.results, r)
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		switch t := v.(type) {
		case Event:
			if err := encoder.Encode(t); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		case FileResult:
			if err := encoder.Encode(eventFromResult(t)); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		default:
			return nil
		}
	case "text":
		switch t := v.(type) {
		case FileResult:
			if _, err := fmt.Fprintf(s.writer, "[%s] %s", statusLabel(t.Status), t.Path); err != nil {
				return err
			}
			if t.Reason != "" {
				if _, err := fmt.Fprintf(s.writer, " - %s", t.Reason); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(s.writer); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		case Event:
			if t.Type != "check.finished" || t.Submittable == nil {
				return nil
			}
			verdict := insufficientColor.Sprint("not submittable")
			if *t.Submittable {
				verdict = approvedColor.Sprint("submittable")
			}
			if _, err := fmt.Fprintf(s.writer, "%s: %s\n", t.Change, verdict); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		default:
			return nil
		}
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.results); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}
