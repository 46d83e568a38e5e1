package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/crossforge/crossforge/pkg/platform"
)

func TestBuildErrorMessage(t *testing.T) {
	err := NewToolchainError(platform.TargetLinuxAMD64, 101)
	msg := err.Error()
	if !strings.Contains(msg, "toolchain") {
		t.Errorf("message should carry the class: %s", msg)
	}
	if !strings.Contains(msg, "x86_64-unknown-linux-gnu") {
		t.Errorf("message should carry the target: %s", msg)
	}
	if !strings.Contains(msg, "101") {
		t.Errorf("message should carry the exit status: %s", msg)
	}
}

func TestBuildErrorMatchesByClass(t *testing.T) {
	err := NewToolchainError(platform.TargetDarwinARM64, 1)
	if !errors.Is(err, &BuildError{Class: ClassToolchain}) {
		t.Error("toolchain errors should match by class")
	}
	if errors.Is(err, &BuildError{Class: ClassFusion}) {
		t.Error("toolchain errors must not match the fusion class")
	}
}

func TestBuildErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("lipo not found")
	err := NewFusionError(-1, inner)
	if !errors.Is(err, inner) {
		t.Error("the underlying error should be reachable through the chain")
	}
}

func TestClassOf(t *testing.T) {
	wrapped := fmt.Errorf("run failed: %w", NewArtifactError(platform.TargetDarwinAMD64, "target/x86_64-apple-darwin/release/dino"))
	if got := ClassOf(wrapped); got != ClassArtifact {
		t.Errorf("ClassOf(wrapped) = %s, want %s", got, ClassArtifact)
	}
	if got := ClassOf(errors.New("plain")); got != "" {
		t.Errorf("ClassOf(plain) = %q, want empty", got)
	}
	if got := ClassOf(nil); got != "" {
		t.Errorf("ClassOf(nil) = %q, want empty", got)
	}
}
