package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crossforge/crossforge/pkg/config"
	"github.com/crossforge/crossforge/pkg/platform"
	"github.com/crossforge/crossforge/pkg/toolchain"
)

// Mock implementations for testing

// targetBehavior scripts what the fake runner does for one target.
type targetBehavior struct {
	exitCode      int
	writeArtifact bool
}

// mockRunner simulates the external build command. It records every
// invocation and writes artifact files according to its script, so the
// pipeline's real artifact check operates on real files.
type mockRunner struct {
	manifest   *config.Manifest
	behaviors  map[platform.Target]targetBehavior
	invoked    []platform.Target
	startError error
}

func (m *mockRunner) Run(_ context.Context, inv toolchain.Invocation) (toolchain.Result, error) {
	if m.startError != nil {
		return toolchain.Result{}, m.startError
	}

	target := platform.TargetNative
	for i, arg := range inv.Args {
		if arg == "--target" && i+1 < len(inv.Args) {
			parsed, err := platform.Parse(inv.Args[i+1])
			if err != nil {
				return toolchain.Result{}, err
			}
			target = parsed
		}
	}
	m.invoked = append(m.invoked, target)

	b := m.behaviors[target]
	if b.exitCode == 0 && b.writeArtifact {
		path := target.ArtifactPath(m.manifest.OutputDir, m.manifest.Binary)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return toolchain.Result{}, err
		}
		if err := os.WriteFile(path, []byte("binary"), 0755); err != nil {
			return toolchain.Result{}, err
		}
	}
	return toolchain.Result{ExitCode: b.exitCode, Duration: 10 * time.Millisecond}, nil
}

// mockFuser records fusion calls and writes the universal output.
type mockFuser struct {
	calls    int
	arm, amd string
	output   string
	exitCode int
}

func (m *mockFuser) Fuse(_ context.Context, output, arm64Path, amd64Path string) (toolchain.Result, error) {
	m.calls++
	m.output = output
	m.arm = arm64Path
	m.amd = amd64Path
	if m.exitCode == 0 {
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return toolchain.Result{}, err
		}
		if err := os.WriteFile(output, []byte("universal"), 0755); err != nil {
			return toolchain.Result{}, err
		}
	}
	return toolchain.Result{ExitCode: m.exitCode}, nil
}

// mockHistory records store calls in order.
type mockHistory struct {
	created   int
	completed int
	steps     []StepResult
	status    RunStatus
}

func (m *mockHistory) CreateRun(_ context.Context, _, _, _ string, _ time.Time) error {
	m.created++
	return nil
}

func (m *mockHistory) RecordStep(_ context.Context, _ string, step StepResult) error {
	m.steps = append(m.steps, step)
	return nil
}

func (m *mockHistory) CompleteRun(_ context.Context, _ string, status RunStatus, _ time.Time) error {
	m.completed++
	m.status = status
	return nil
}

func testManifest(t *testing.T) *config.Manifest {
	t.Helper()
	m := config.Default("dino-runner")
	m.OutputDir = filepath.Join(t.TempDir(), "target")
	m.Store.Path = ""
	return m
}

func darwinPipeline(m *config.Manifest, runner *mockRunner, fuser *mockFuser) *Pipeline {
	p := NewPipeline(m, runner, fuser)
	p.Host = platform.Host{OS: "darwin", Arch: "arm64"}
	return p
}

func TestBothDarwinBuildsSucceedFusesOnce(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetDarwinARM64: {writeArtifact: true},
			platform.TargetDarwinAMD64: {writeArtifact: true},
		},
	}
	fuser := &mockFuser{}
	p := darwinPipeline(m, runner, fuser)

	report, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fuser.calls != 1 {
		t.Fatalf("expected exactly one fusion call, got %d", fuser.calls)
	}
	wantArm := platform.TargetDarwinARM64.ArtifactPath(m.OutputDir, m.Binary)
	wantAmd := platform.TargetDarwinAMD64.ArtifactPath(m.OutputDir, m.Binary)
	if fuser.arm != wantArm || fuser.amd != wantAmd {
		t.Errorf("fusion inputs = (%s, %s), want (%s, %s)", fuser.arm, fuser.amd, wantArm, wantAmd)
	}
	if fuser.output != platform.UniversalPath(m.OutputDir, m.Binary) {
		t.Errorf("fusion output = %s, want %s", fuser.output, platform.UniversalPath(m.OutputDir, m.Binary))
	}

	if report.Status != RunSucceeded {
		t.Errorf("run status = %s, want %s", report.Status, RunSucceeded)
	}
	if report.Universal == nil || report.Universal.Status != StepSucceeded {
		t.Errorf("universal step not recorded as succeeded: %+v", report.Universal)
	}
	if got := len(report.Artifacts()); got != 3 {
		t.Errorf("expected 3 artifacts (universal + 2 targets), got %d", got)
	}
}

func TestSingleDarwinArtifactSkipsFusion(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetDarwinARM64: {writeArtifact: true},
			// Intel build exits zero but produces nothing.
			platform.TargetDarwinAMD64: {writeArtifact: false},
		},
	}
	fuser := &mockFuser{}
	p := darwinPipeline(m, runner, fuser)

	report, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fuser.calls != 0 {
		t.Fatalf("fusion must not run with a missing darwin artifact, got %d calls", fuser.calls)
	}
	if report.Status != RunDegraded {
		t.Errorf("run status = %s, want %s", report.Status, RunDegraded)
	}
	if report.Universal == nil || report.Universal.Status != StepSkipped {
		t.Errorf("universal step should be recorded as skipped: %+v", report.Universal)
	}

	arm := report.stepFor(platform.TargetDarwinARM64)
	if arm == nil || arm.Status != StepSucceeded {
		t.Errorf("arm64 step should have succeeded: %+v", arm)
	}
	amd := report.stepFor(platform.TargetDarwinAMD64)
	if amd == nil || amd.Status != StepArtifactMissing {
		t.Errorf("amd64 step should be artifact_missing: %+v", amd)
	}
	if amd != nil && amd.Err != nil && amd.Err.Class != ClassArtifact {
		t.Errorf("amd64 error class = %s, want %s", amd.Err.Class, ClassArtifact)
	}

	artifacts := report.Artifacts()
	if len(artifacts) != 1 || artifacts[0] != arm.ArtifactPath {
		t.Errorf("expected the surviving arm64 binary to be final, got %v", artifacts)
	}
}

func TestBuildFailureHaltsRemainingSteps(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetDarwinARM64: {exitCode: 101},
			platform.TargetDarwinAMD64: {writeArtifact: true},
		},
	}
	fuser := &mockFuser{}
	p := darwinPipeline(m, runner, fuser)

	report, err := p.Execute(context.Background())
	if err == nil {
		t.Fatal("expected an error for a failed build")
	}

	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected a BuildError, got %T", err)
	}
	if be.Class != ClassToolchain || be.ExitCode != 101 {
		t.Errorf("error = class %s exit %d, want class %s exit 101", be.Class, be.ExitCode, ClassToolchain)
	}

	if len(runner.invoked) != 1 {
		t.Errorf("expected only the first target to be invoked, got %v", runner.invoked)
	}
	if fuser.calls != 0 {
		t.Errorf("fusion must not run after a build failure")
	}
	if report.Status != RunFailed {
		t.Errorf("run status = %s, want %s", report.Status, RunFailed)
	}

	amd := report.stepFor(platform.TargetDarwinAMD64)
	if amd == nil || amd.Status != StepSkipped {
		t.Errorf("second target should be recorded as skipped: %+v", amd)
	}
}

func TestSecondDarwinFailureKeepsSurvivor(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetDarwinARM64: {writeArtifact: true},
			platform.TargetDarwinAMD64: {exitCode: 1},
		},
	}
	fuser := &mockFuser{}
	p := darwinPipeline(m, runner, fuser)

	report, err := p.Execute(context.Background())
	if err == nil {
		t.Fatal("expected an error for the failed target")
	}
	if fuser.calls != 0 {
		t.Fatalf("fusion must not run when one darwin build failed")
	}

	// The already built arm64 binary stays on disk as the final output.
	artifacts := report.Artifacts()
	wantArm := platform.TargetDarwinARM64.ArtifactPath(m.OutputDir, m.Binary)
	if len(artifacts) != 1 || artifacts[0] != wantArm {
		t.Errorf("expected the surviving arm64 binary, got %v", artifacts)
	}
	if _, statErr := os.Stat(wantArm); statErr != nil {
		t.Errorf("surviving artifact missing from disk: %v", statErr)
	}
}

func TestUnrecognizedHostSelectsNativeFallback(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetNative: {writeArtifact: true},
		},
	}
	p := NewPipeline(m, runner, &mockFuser{})
	p.Host = platform.Host{OS: "plan9", Arch: "386"}

	report, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runner.invoked) != 1 || runner.invoked[0] != platform.TargetNative {
		t.Errorf("expected exactly the native fallback build, got %v", runner.invoked)
	}
	if report.Status != RunSucceeded {
		t.Errorf("run status = %s, want %s", report.Status, RunSucceeded)
	}
	if report.Universal != nil {
		t.Errorf("no fusion step expected on a non-darwin selection")
	}
}

func TestExplicitTargetPinsOverrideHost(t *testing.T) {
	m := testManifest(t)
	m.Targets = []string{string(platform.TargetLinuxAMD64)}
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetLinuxAMD64: {writeArtifact: true},
		},
	}
	p := darwinPipeline(m, runner, &mockFuser{})

	report, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.invoked) != 1 || runner.invoked[0] != platform.TargetLinuxAMD64 {
		t.Errorf("expected pinned linux target only, got %v", runner.invoked)
	}
	if report.Universal != nil {
		t.Errorf("fusion must not run without both darwin targets in the selection")
	}
}

func TestSkipFusionFlag(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetDarwinARM64: {writeArtifact: true},
			platform.TargetDarwinAMD64: {writeArtifact: true},
		},
	}
	fuser := &mockFuser{}
	p := darwinPipeline(m, runner, fuser)
	p.SkipFusion = true

	report, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fuser.calls != 0 {
		t.Errorf("fusion must not run with SkipFusion set")
	}
	if report.Status != RunSucceeded {
		t.Errorf("run status = %s, want %s", report.Status, RunSucceeded)
	}
}

func TestFusionFailureFailsRun(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetDarwinARM64: {writeArtifact: true},
			platform.TargetDarwinAMD64: {writeArtifact: true},
		},
	}
	fuser := &mockFuser{exitCode: 1}
	p := darwinPipeline(m, runner, fuser)

	report, err := p.Execute(context.Background())
	if err == nil {
		t.Fatal("expected an error for a failed fusion")
	}
	if ClassOf(err) != ClassFusion {
		t.Errorf("error class = %s, want %s", ClassOf(err), ClassFusion)
	}
	if report.Status != RunFailed {
		t.Errorf("run status = %s, want %s", report.Status, RunFailed)
	}
}

func TestRunnerStartFailureIsToolchainError(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest:   m,
		startError: errors.New("executable not found"),
	}
	p := NewPipeline(m, runner, &mockFuser{})
	p.Host = platform.Host{OS: "linux", Arch: "amd64"}

	report, err := p.Execute(context.Background())
	if err == nil {
		t.Fatal("expected an error when the command cannot start")
	}
	if ClassOf(err) != ClassToolchain {
		t.Errorf("error class = %s, want %s", ClassOf(err), ClassToolchain)
	}
	if report.Steps[0].ExitCode != -1 {
		t.Errorf("exit code = %d, want -1 for an unstartable command", report.Steps[0].ExitCode)
	}
}

func TestHistoryRecordsAllSteps(t *testing.T) {
	m := testManifest(t)
	runner := &mockRunner{
		manifest: m,
		behaviors: map[platform.Target]targetBehavior{
			platform.TargetDarwinARM64: {writeArtifact: true},
			platform.TargetDarwinAMD64: {writeArtifact: true},
		},
	}
	history := &mockHistory{}
	p := darwinPipeline(m, runner, &mockFuser{})
	p.History = history

	if _, err := p.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if history.created != 1 || history.completed != 1 {
		t.Errorf("expected one run record, got created=%d completed=%d", history.created, history.completed)
	}
	// Two build steps plus the universal fusion step.
	if len(history.steps) != 3 {
		t.Errorf("expected 3 recorded steps, got %d", len(history.steps))
	}
	if history.status != RunSucceeded {
		t.Errorf("recorded run status = %s, want %s", history.status, RunSucceeded)
	}
	last := history.steps[len(history.steps)-1]
	if last.Target != UniversalStep {
		t.Errorf("last recorded step = %s, want %s", last.Target, UniversalStep)
	}
}
