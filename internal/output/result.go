package output

import "owncheck/internal/model"

// FileResult is the structured record for one path-side of one changed
// file.
type FileResult struct {
	Change string       `json:"change"`
	Path   string       `json:"path"`
	Side   string       `json:"side"` // "old" | "new"
	Status model.Status `json:"status"`
	Reason string       `json:"reason,omitempty"`
}

// ResultsFromFile flattens a file status into its path-side records.
func ResultsFromFile(change string, fs model.FileStatus) []FileResult {
	var out []FileResult
	if fs.OldPathStatus != nil {
		out = append(out, FileResult{
			Change: change,
			Path:   fs.OldPathStatus.Path,
			Side:   "old",
			Status: fs.OldPathStatus.Status,
			Reason: fs.OldPathStatus.Reason,
		})
	}
	if fs.NewPathStatus != nil {
		out = append(out, FileResult{
			Change: change,
			Path:   fs.NewPathStatus.Path,
			Side:   "new",
			Status: fs.NewPathStatus.Status,
			Reason: fs.NewPathStatus.Reason,
		})
	}
	return out
}
