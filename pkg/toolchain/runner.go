// Package toolchain invokes the external compiler driver and related
// utilities, surfacing their exit status verbatim.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Invocation describes one external command invocation.
type Invocation struct {
	// Command is the executable to run.
	Command string

	// Args are the command arguments.
	Args []string

	// Env holds additional environment variables merged over the parent
	// process environment.
	Env map[string]string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout bounds the invocation. Zero means no limit.
	Timeout time.Duration
}

// Result is the outcome of an external command invocation. Exit status is
// reported, never interpreted.
type Result struct {
	// ExitCode is the process exit status; 0 means success.
	ExitCode int

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// Duration is the wall-clock time the invocation took.
	Duration time.Duration
}

// Runner executes external commands. The build pipeline depends on this
// interface so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner runs invocations through os/exec.
type ExecRunner struct {
	// Stream mirrors the child's output to the parent's stdout/stderr in
	// addition to capturing it, so build progress stays visible.
	Stream bool
}

// Run executes the invocation and returns its result. A non-zero exit is
// not an error; errors are reserved for failures to start the process at
// all (missing executable, bad working directory).
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if inv.Command == "" {
		return Result{}, fmt.Errorf("command is required")
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}

	// Merge extra variables over the inherited environment.
	if len(inv.Env) > 0 {
		env := os.Environ()
		for k, v := range inv.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.Stream {
		cmd.Stdout = io.MultiWriter(&stdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	}

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to execute %s: %w", inv.Command, err)
	}
	return result, nil
}
