package toolchain

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use /bin/sh")
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	skipWithoutShell(t)

	r := &ExecRunner{}
	result, err := r.Run(context.Background(), Invocation{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo out; echo err >&2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "out" {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if strings.TrimSpace(result.Stderr) != "err" {
		t.Errorf("stderr = %q", result.Stderr)
	}
	if result.Duration <= 0 {
		t.Errorf("duration = %s, want > 0", result.Duration)
	}
}

func TestExecRunnerNonZeroExitIsNotAnError(t *testing.T) {
	skipWithoutShell(t)

	r := &ExecRunner{}
	result, err := r.Run(context.Background(), Invocation{
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 42"},
	})
	if err != nil {
		t.Fatalf("non-zero exit must be reported, not returned as an error: %v", err)
	}
	if result.ExitCode != 42 {
		t.Errorf("exit code = %d, want 42", result.ExitCode)
	}
}

func TestExecRunnerMergesEnv(t *testing.T) {
	skipWithoutShell(t)

	r := &ExecRunner{}
	result, err := r.Run(context.Background(), Invocation{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo $CARGO_PROFILE_RELEASE_LTO"},
		Env:     map[string]string{"CARGO_PROFILE_RELEASE_LTO": "fat"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "fat" {
		t.Errorf("stdout = %q, want the injected variable", result.Stdout)
	}
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	r := &ExecRunner{}
	if _, err := r.Run(context.Background(), Invocation{Command: "definitely-not-a-command-xyz"}); err == nil {
		t.Fatal("a missing executable should be an error")
	}
}

func TestExecRunnerRequiresCommand(t *testing.T) {
	r := &ExecRunner{}
	if _, err := r.Run(context.Background(), Invocation{}); err == nil {
		t.Fatal("an empty command should be rejected")
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	skipWithoutShell(t)

	r := &ExecRunner{}
	result, err := r.Run(context.Background(), Invocation{
		Command: "/bin/sh",
		Args:    []string{"-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	})
	// A killed process surfaces as a non-zero exit, not a start failure.
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode == 0 {
		t.Error("timed-out invocation should not report exit 0")
	}
	if result.Duration >= 5*time.Second {
		t.Errorf("invocation was not cut short: %s", result.Duration)
	}
}
