// Package fusion merges architecture-specific macOS binaries into a single
// universal executable via an external fusing utility.
package fusion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crossforge/crossforge/pkg/toolchain"
)

// Fuser merges two single-architecture binaries into one universal binary
// at output. Success is judged solely by the external tool's exit status.
type Fuser interface {
	Fuse(ctx context.Context, output, arm64Path, amd64Path string) (toolchain.Result, error)
}

// LipoFuser fuses binaries with Apple's lipo:
// lipo -create -output <out> <arm64> <x86_64>.
type LipoFuser struct {
	// Command is the fusion utility, normally "lipo".
	Command string

	// Runner executes the utility.
	Runner toolchain.Runner
}

// NewLipoFuser creates a LipoFuser over the given runner.
func NewLipoFuser(command string, runner toolchain.Runner) *LipoFuser {
	return &LipoFuser{Command: command, Runner: runner}
}

// Fuse runs the fusion utility. Both inputs must exist; the caller is
// expected to have checked that precondition and skipped the step otherwise.
func (f *LipoFuser) Fuse(ctx context.Context, output, arm64Path, amd64Path string) (toolchain.Result, error) {
	for _, in := range []string{arm64Path, amd64Path} {
		if _, err := os.Stat(in); err != nil {
			return toolchain.Result{}, fmt.Errorf("fusion input missing: %s", in)
		}
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return toolchain.Result{}, fmt.Errorf("failed to create universal output directory: %w", err)
	}
	return f.Runner.Run(ctx, toolchain.Invocation{
		Command: f.Command,
		Args:    []string{"-create", "-output", output, arm64Path, amd64Path},
	})
}
