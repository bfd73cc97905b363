package output

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line), including:
// - check.started
// - file.status
// - check.finished
//
// JSON mode remains an aggregate of FileResult values.
type Event struct {
	Type   string `json:"type"`
	Change string `json:"change,omitempty"`
	*FileResult
	Files       int   `json:"files,omitempty"`
	Errors      int   `json:"errors,omitempty"`
	Submittable *bool `json:"submittable,omitempty"`
	ExitCode    int   `json:"exit_code,omitempty"`
}

func eventFromResult(r FileResult) Event {
	return Event{Type: "file.status", Change: r.Change, FileResult: &r}
}
