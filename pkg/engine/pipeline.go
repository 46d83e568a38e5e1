package engine

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/crossforge/crossforge/pkg/config"
	"github.com/crossforge/crossforge/pkg/fusion"
	"github.com/crossforge/crossforge/pkg/platform"
	"github.com/crossforge/crossforge/pkg/telemetry"
	"github.com/crossforge/crossforge/pkg/toolchain"
)

// UniversalStep labels the fusion step in reports and the run history. It
// is not a buildable member of the closed target set.
const UniversalStep platform.Target = "universal"

// Pipeline executes the build flow for one manifest: one toolchain
// invocation per selected target, strictly in order, followed by optional
// universal-binary fusion. Execution is synchronous and sequential; nothing
// is retried and prior successes are never rolled back.
type Pipeline struct {
	// Manifest is the validated build manifest.
	Manifest *config.Manifest

	// Runner executes toolchain invocations.
	Runner toolchain.Runner

	// Fuser merges darwin artifacts into a universal binary.
	Fuser fusion.Fuser

	// History persists run outcomes. Nil disables history.
	History HistoryStore

	// Telemetry provides metrics and tracing. Nil disables both.
	Telemetry *telemetry.Telemetry

	// Host is the detected build host, used for default target selection.
	Host platform.Host

	// SkipFusion disables the fusion step regardless of the manifest.
	SkipFusion bool
}

// NewPipeline creates a pipeline for the manifest with the detected host.
func NewPipeline(m *config.Manifest, runner toolchain.Runner, fuser fusion.Fuser) *Pipeline {
	return &Pipeline{
		Manifest: m,
		Runner:   runner,
		Fuser:    fuser,
		Host:     platform.DetectHost(),
	}
}

// Targets resolves the target selection for this run: the manifest's
// explicit pins when present, otherwise the host-based default mapping.
func (p *Pipeline) Targets() []platform.Target {
	if pinned, err := p.Manifest.TargetList(); err == nil && len(pinned) > 0 {
		return pinned
	}
	return platform.TargetsForHost(p.Host)
}

// Execute runs the pipeline to its terminal outcome. The returned report is
// always complete; the error is non-nil only when a build command failed,
// and carries the classified failure so the CLI can exit non-zero. A
// degraded run (missing artifact, skipped fusion) is not an error.
func (p *Pipeline) Execute(ctx context.Context) (*Report, error) {
	runID := uuid.New().String()
	log := telemetry.FromContext(ctx).WithRunID(runID)

	report := &Report{
		RunID:     runID,
		Project:   p.Manifest.Project,
		Host:      p.Host,
		StartedAt: time.Now(),
	}

	if p.Telemetry != nil {
		p.Telemetry.Metrics.RecordRunStarted(p.Manifest.Project)
		spanCtx, span := p.Telemetry.Tracer.StartRunSpan(ctx, runID, p.Manifest.Project)
		ctx = spanCtx
		defer span.End()
	}

	targets := p.Targets()
	log.Infof("building %s for %d target(s) on %s", p.Manifest.Project, len(targets), p.Host)

	if p.History != nil {
		if err := p.History.CreateRun(ctx, runID, p.Manifest.Project, p.Host.String(), report.StartedAt); err != nil {
			log.WithError(err).Warn("failed to record run start")
		}
	}

	// Any non-zero exit halts the remaining targets; they are recorded
	// as skipped rather than silently dropped.
	halted := false
	for _, target := range targets {
		var step StepResult
		if halted {
			step = StepResult{
				Target:       target,
				Status:       StepSkipped,
				ArtifactPath: target.ArtifactPath(p.Manifest.OutputDir, p.Manifest.Binary),
			}
			log.WithTarget(target.String()).Z().Warn().Msg("skipping target after earlier failure")
		} else {
			step = p.buildTarget(ctx, runID, target)
			if step.Status == StepFailed {
				halted = true
			}
		}
		report.Steps = append(report.Steps, step)
		p.recordStep(ctx, log, runID, step)
	}

	if !halted {
		report.Universal = p.fuseUniversal(ctx, log, runID, report)
		if report.Universal != nil {
			p.recordStep(ctx, log, runID, *report.Universal)
		}
	}

	report.CompletedAt = time.Now()
	report.Status = terminalStatus(report, halted)

	if p.Telemetry != nil {
		p.Telemetry.Metrics.RecordRunCompleted(string(report.Status), report.CompletedAt.Sub(report.StartedAt))
	}
	if p.History != nil {
		if err := p.History.CompleteRun(ctx, runID, report.Status, report.CompletedAt); err != nil {
			log.WithError(err).Warn("failed to record run completion")
		}
	}

	if report.Status == RunFailed {
		return report, report.FirstError()
	}
	log.Infof("run finished: %s", report.Status)
	return report, nil
}

// buildTarget invokes the toolchain for one target and verifies the
// artifact. A zero exit with a missing artifact is its own outcome, not a
// success.
func (p *Pipeline) buildTarget(ctx context.Context, runID string, target platform.Target) StepResult {
	log := telemetry.FromContext(ctx).WithRunID(runID).WithTarget(target.String())
	artifact := target.ArtifactPath(p.Manifest.OutputDir, p.Manifest.Binary)

	endSpan := func(error) {}
	if p.Telemetry != nil {
		spanCtx, s := p.Telemetry.Tracer.StartBuildSpan(ctx, runID, target.String())
		ctx = spanCtx
		endSpan = func(err error) {
			if err != nil {
				telemetry.RecordError(s, err)
			} else {
				telemetry.RecordSuccess(s)
			}
			s.End()
		}
	}

	log.Info("invoking build command")
	inv := toolchain.BuildInvocation(p.Manifest, target)
	result, err := p.Runner.Run(ctx, inv)

	step := StepResult{
		Target:       target,
		ArtifactPath: artifact,
		ExitCode:     result.ExitCode,
		Duration:     result.Duration,
	}

	switch {
	case err != nil:
		// The command could not be started at all; surfaced with the
		// same failure policy as a non-zero exit.
		step.Status = StepFailed
		step.ExitCode = -1
		step.Err = &BuildError{
			Class:    ClassToolchain,
			Message:  "failed to invoke build command",
			Target:   target,
			ExitCode: -1,
			Err:      err,
		}
		log.WithError(err).Error("build command could not be started")
	case result.ExitCode != 0:
		step.Status = StepFailed
		step.Err = NewToolchainError(target, result.ExitCode)
		log.Errorf("build failed with exit status %d", result.ExitCode)
	default:
		if _, statErr := os.Stat(artifact); statErr != nil {
			step.Status = StepArtifactMissing
			step.Err = NewArtifactError(target, artifact)
			log.Warnf("build succeeded but artifact is missing: %s", artifact)
		} else {
			step.Status = StepSucceeded
			log.Infof("built %s in %s", artifact, step.Duration.Round(time.Millisecond))
		}
	}

	if p.Telemetry != nil {
		p.Telemetry.Metrics.RecordBuild(target.String(), string(step.Status), step.Duration)
	}
	var stepErr error
	if step.Err != nil {
		stepErr = step.Err
	}
	endSpan(stepErr)
	return step
}

// fuseUniversal runs the fusion step when it is configured and both darwin
// artifacts were built. Missing preconditions skip the step silently; the
// run degrades to whichever single-architecture binary exists.
func (p *Pipeline) fuseUniversal(ctx context.Context, log *telemetry.Logger, runID string, report *Report) *StepResult {
	if p.SkipFusion || !p.Manifest.Universal.Enabled {
		return nil
	}

	arm := report.stepFor(platform.TargetDarwinARM64)
	amd := report.stepFor(platform.TargetDarwinAMD64)
	if arm == nil || amd == nil {
		// Fusion only applies to runs that attempted both darwin halves.
		return nil
	}

	output := platform.UniversalPath(p.Manifest.OutputDir, p.Manifest.Binary)
	step := StepResult{Target: UniversalStep, ArtifactPath: output}

	if arm.Status != StepSucceeded || amd.Status != StepSucceeded {
		step.Status = StepSkipped
		log.Debug("skipping universal fusion: both darwin artifacts are required")
		return &step
	}

	endSpan := func(error) {}
	if p.Telemetry != nil {
		spanCtx, s := p.Telemetry.Tracer.StartFusionSpan(ctx, runID)
		ctx = spanCtx
		endSpan = func(err error) {
			if err != nil {
				telemetry.RecordError(s, err)
			} else {
				telemetry.RecordSuccess(s)
			}
			s.End()
		}
	}

	result, err := p.Fuser.Fuse(ctx, output, arm.ArtifactPath, amd.ArtifactPath)
	step.ExitCode = result.ExitCode
	step.Duration = result.Duration

	switch {
	case err != nil:
		step.Status = StepFailed
		step.Err = NewFusionError(-1, err)
		log.WithError(err).Error("universal fusion could not be started")
	case result.ExitCode != 0:
		step.Status = StepFailed
		step.Err = NewFusionError(result.ExitCode, nil)
		log.Errorf("universal fusion failed with exit status %d", result.ExitCode)
	default:
		step.Status = StepSucceeded
		log.Infof("fused universal binary: %s", output)
	}

	if p.Telemetry != nil {
		p.Telemetry.Metrics.RecordFusion(string(step.Status))
	}
	var stepErr error
	if step.Err != nil {
		stepErr = step.Err
	}
	endSpan(stepErr)
	return &step
}

// recordStep persists one step outcome, logging store failures without
// aborting the run.
func (p *Pipeline) recordStep(ctx context.Context, log *telemetry.Logger, runID string, step StepResult) {
	if p.History == nil {
		return
	}
	if err := p.History.RecordStep(ctx, runID, step); err != nil {
		log.WithError(err).Warn("failed to record build step")
	}
}

// stepFor finds the step result for a target, or nil when the target was
// not part of the run.
func (r *Report) stepFor(target platform.Target) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Target == target {
			return &r.Steps[i]
		}
	}
	return nil
}

// terminalStatus derives the run's terminal outcome from its steps.
func terminalStatus(r *Report, halted bool) RunStatus {
	if halted {
		return RunFailed
	}
	if r.Universal != nil && r.Universal.Status == StepFailed {
		return RunFailed
	}
	for _, s := range r.Steps {
		if s.Status != StepSucceeded {
			return RunDegraded
		}
	}
	if r.Universal != nil && r.Universal.Status == StepSkipped {
		return RunDegraded
	}
	return RunSucceeded
}
