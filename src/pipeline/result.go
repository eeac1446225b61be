package pipeline

import "time"

// Stage statuses as rendered in the run summary.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StageResult is the outcome of one pipeline stage.
type StageResult struct {
	Name    string
	Status  string
	Detail  string // one-line summary for the run log
	Err     error
	Elapsed time.Duration
}

// Outcome is the final state of a run: the two published outputs plus the
// overall signal. ArtifactPath is empty for the run-mode-no-result and
// manual-upload branches.
type Outcome struct {
	Success      bool
	Message      string // first failure's message; empty on success
	ArtifactPath string
	ArtifactName string
	Stages       []StageResult
}
