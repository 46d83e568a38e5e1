package engine

import (
	"context"
	"time"

	"github.com/crossforge/crossforge/pkg/platform"
)

// StepStatus is the explicit outcome of a single build or fusion step.
// Success is a recorded value, never inferred from filesystem probing.
type StepStatus string

const (
	// StepSucceeded means the command exited zero and the expected
	// artifact exists.
	StepSucceeded StepStatus = "succeeded"

	// StepFailed means the command exited non-zero.
	StepFailed StepStatus = "failed"

	// StepSkipped means the step was never attempted, either because an
	// earlier step failed or because its preconditions were not met.
	StepSkipped StepStatus = "skipped"

	// StepArtifactMissing means the command exited zero but the expected
	// artifact is absent.
	StepArtifactMissing StepStatus = "artifact_missing"
)

// StepResult records the outcome of one pipeline step.
type StepResult struct {
	// Target is the build target this step compiled, or the pseudo
	// "universal" entry for the fusion step.
	Target platform.Target `json:"target"`

	// Status is the explicit step outcome.
	Status StepStatus `json:"status"`

	// ArtifactPath is the produced binary's path when Status is
	// StepSucceeded, and the expected path otherwise.
	ArtifactPath string `json:"artifact_path,omitempty"`

	// ExitCode is the external command's exit status.
	ExitCode int `json:"exit_code"`

	// Duration is the step's wall-clock time.
	Duration time.Duration `json:"duration"`

	// Err carries the classified error for failed and artifact-missing
	// steps.
	Err *BuildError `json:"-"`
}

// RunStatus is the terminal outcome of a whole pipeline run.
type RunStatus string

const (
	// RunSucceeded means every attempted step succeeded.
	RunSucceeded RunStatus = "succeeded"

	// RunDegraded means the run finished with at least one
	// artifact-missing or precondition-skipped step but no hard failure.
	// Partial success is a terminal outcome; nothing is retried.
	RunDegraded RunStatus = "degraded"

	// RunFailed means a build command exited non-zero and the remaining
	// steps were skipped.
	RunFailed RunStatus = "failed"
)

// Report is the aggregate result of one pipeline run.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Project is the manifest project name.
	Project string `json:"project"`

	// Host is the detected build host.
	Host platform.Host `json:"host"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run reached its terminal outcome.
	CompletedAt time.Time `json:"completed_at"`

	// Steps are the per-target build results in execution order.
	Steps []StepResult `json:"steps"`

	// Universal is the fusion step result, nil when fusion was not
	// configured for this run.
	Universal *StepResult `json:"universal,omitempty"`

	// Status is the terminal run outcome.
	Status RunStatus `json:"status"`
}

// Artifacts returns the paths of every artifact the run actually produced,
// fusion output first.
func (r *Report) Artifacts() []string {
	var paths []string
	if r.Universal != nil && r.Universal.Status == StepSucceeded {
		paths = append(paths, r.Universal.ArtifactPath)
	}
	for _, s := range r.Steps {
		if s.Status == StepSucceeded {
			paths = append(paths, s.ArtifactPath)
		}
	}
	return paths
}

// FirstError returns the classified error of the first failed or
// artifact-missing step, or nil for clean runs.
func (r *Report) FirstError() *BuildError {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	if r.Universal != nil && r.Universal.Err != nil {
		return r.Universal.Err
	}
	return nil
}

// HistoryStore persists run outcomes. Implemented by pkg/stores; nil-able
// so the pipeline can run without history.
type HistoryStore interface {
	// CreateRun records the start of a run.
	CreateRun(ctx context.Context, runID, project, host string, startedAt time.Time) error

	// RecordStep records one step outcome for a run.
	RecordStep(ctx context.Context, runID string, step StepResult) error

	// CompleteRun records the terminal outcome of a run.
	CompleteRun(ctx context.Context, runID string, status RunStatus, completedAt time.Time) error
}
