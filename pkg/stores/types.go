package stores

import "time"

// RunRecord is one build run in the history database.
type RunRecord struct {
	ID          string     `json:"id"`
	Project     string     `json:"project"`
	Host        string     `json:"host"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepRecord is one build, fusion, or skipped step within a run.
type StepRecord struct {
	ID           string        `json:"id"`
	RunID        string        `json:"run_id"`
	Target       string        `json:"target"`
	Status       string        `json:"status"`
	ExitCode     int           `json:"exit_code"`
	ArtifactPath string        `json:"artifact_path"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}
