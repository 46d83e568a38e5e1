// Package engine orchestrates the build pipeline: target selection, one
// toolchain invocation per target in order, artifact verification, optional
// universal-binary fusion, and run reporting.
package engine

import (
	"errors"
	"fmt"

	"github.com/crossforge/crossforge/pkg/platform"
)

// ErrorClass categorizes a build failure by the stage that produced it.
type ErrorClass string

const (
	// ClassConfig indicates an invalid or unloadable manifest.
	ClassConfig ErrorClass = "config"

	// ClassToolchain indicates a non-zero exit from the external build
	// command. The exit status is carried verbatim.
	ClassToolchain ErrorClass = "toolchain"

	// ClassArtifact indicates a build that exited zero but did not
	// produce the expected output file. Kept distinct from toolchain
	// failure so the gap between "command succeeded" and "artifact
	// exists" is visible instead of inferred.
	ClassArtifact ErrorClass = "artifact"

	// ClassFusion indicates a failure of the universal-binary fusion
	// utility.
	ClassFusion ErrorClass = "fusion"

	// ClassLaunch indicates a failure to start the produced binary.
	ClassLaunch ErrorClass = "launch"

	// ClassStore indicates a run-history persistence failure.
	ClassStore ErrorClass = "store"
)

// BuildError is a classified pipeline error.
type BuildError struct {
	// Class is the failure category.
	Class ErrorClass

	// Message is the human-readable error message.
	Message string

	// Target is the build target involved, if any.
	Target platform.Target

	// ExitCode is the external command's exit status for toolchain and
	// fusion failures.
	ExitCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Target != "" {
		msg += fmt.Sprintf(" (target=%s)", e.Target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is matches BuildErrors by class.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewToolchainError reports a non-zero exit from the build command.
func NewToolchainError(target platform.Target, exitCode int) *BuildError {
	return &BuildError{
		Class:    ClassToolchain,
		Message:  fmt.Sprintf("build command exited with status %d", exitCode),
		Target:   target,
		ExitCode: exitCode,
	}
}

// NewArtifactError reports an expected output binary that is absent after a
// zero-exit build.
func NewArtifactError(target platform.Target, path string) *BuildError {
	return &BuildError{
		Class:   ClassArtifact,
		Message: fmt.Sprintf("build reported success but artifact is missing: %s", path),
		Target:  target,
	}
}

// NewFusionError reports a fusion utility failure.
func NewFusionError(exitCode int, err error) *BuildError {
	return &BuildError{
		Class:    ClassFusion,
		Message:  "universal binary fusion failed",
		ExitCode: exitCode,
		Err:      err,
	}
}

// ClassOf extracts the error class from an error chain, or the empty string
// when the chain carries no BuildError.
func ClassOf(err error) ErrorClass {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Class
	}
	return ""
}
