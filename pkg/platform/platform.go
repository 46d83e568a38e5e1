// Package platform models the closed set of build targets CrossForge can
// produce, the mapping from the host operating system to its default target
// selection, and the filesystem layout of toolchain output artifacts.
package platform

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Target identifies a supported cross-compilation target. The set is closed:
// anything outside it is rejected at manifest validation time rather than
// passed through to the toolchain as an arbitrary string.
type Target string

const (
	// TargetDarwinARM64 is macOS on Apple Silicon.
	TargetDarwinARM64 Target = "aarch64-apple-darwin"

	// TargetDarwinAMD64 is macOS on Intel.
	TargetDarwinAMD64 Target = "x86_64-apple-darwin"

	// TargetLinuxAMD64 is Linux on x86_64 with the GNU ABI.
	TargetLinuxAMD64 Target = "x86_64-unknown-linux-gnu"

	// TargetWindowsAMD64 is Windows on x86_64 with the MSVC ABI.
	TargetWindowsAMD64 Target = "x86_64-pc-windows-msvc"

	// TargetNative builds for whatever the toolchain considers the host,
	// without an explicit --target flag. It is the fallback selection for
	// hosts the closed set does not recognize.
	TargetNative Target = "native"
)

// All lists every member of the closed target set, excluding TargetNative.
func All() []Target {
	return []Target{
		TargetDarwinARM64,
		TargetDarwinAMD64,
		TargetLinuxAMD64,
		TargetWindowsAMD64,
	}
}

// Parse converts a triple string into a Target, rejecting anything outside
// the closed set.
func Parse(s string) (Target, error) {
	switch Target(s) {
	case TargetDarwinARM64, TargetDarwinAMD64, TargetLinuxAMD64, TargetWindowsAMD64, TargetNative:
		return Target(s), nil
	}
	return "", fmt.Errorf("unsupported target triple: %q", s)
}

// Triple returns the toolchain target triple, or the empty string for the
// native fallback (which is built without a --target flag).
func (t Target) Triple() string {
	if t == TargetNative {
		return ""
	}
	return string(t)
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return string(t)
}

// IsDarwin reports whether the target produces a macOS binary.
func (t Target) IsDarwin() bool {
	return t == TargetDarwinARM64 || t == TargetDarwinAMD64
}

// IsWindows reports whether the target produces a Windows binary. The native
// target counts as Windows when the host itself is Windows.
func (t Target) IsWindows() bool {
	if t == TargetNative {
		return runtime.GOOS == "windows"
	}
	return t == TargetWindowsAMD64
}

// ArtifactPath returns the path where the toolchain writes the release
// binary for this target: outputDir/<triple>/release/<binary>, or
// outputDir/release/<binary> for the native fallback. Windows targets get
// the .exe suffix.
func (t Target) ArtifactPath(outputDir, binary string) string {
	name := binary
	if t.IsWindows() {
		name += ".exe"
	}
	if t == TargetNative {
		return filepath.Join(outputDir, "release", name)
	}
	return filepath.Join(outputDir, string(t), "release", name)
}

// UniversalPath returns the path of the fused macOS universal binary:
// outputDir/universal/release/<binary>.
func UniversalPath(outputDir, binary string) string {
	return filepath.Join(outputDir, "universal", "release", binary)
}

// Host describes the detected build host.
type Host struct {
	// OS is the host operating system identifier (GOOS).
	OS string

	// Arch is the host CPU architecture identifier (GOARCH).
	Arch string
}

// DetectHost inspects the running process for the host OS and architecture.
func DetectHost() Host {
	return Host{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// String implements fmt.Stringer.
func (h Host) String() string {
	return h.OS + "/" + h.Arch
}

// TargetsForHost maps a host to its default target selection: macOS hosts
// build both darwin architectures (so they can be fused into a universal
// binary), Linux and Windows hosts build their single x86_64 target, and
// unrecognized hosts fall back to exactly the native target.
func TargetsForHost(h Host) []Target {
	switch h.OS {
	case "darwin":
		return []Target{TargetDarwinARM64, TargetDarwinAMD64}
	case "linux":
		return []Target{TargetLinuxAMD64}
	case "windows":
		return []Target{TargetWindowsAMD64}
	default:
		return []Target{TargetNative}
	}
}

// HostTarget returns the closed-set member matching the host, or
// TargetNative when the host is not in the closed set. The launch step uses
// it to pick the artifact that can actually run locally.
func HostTarget(h Host) Target {
	switch {
	case h.OS == "darwin" && h.Arch == "arm64":
		return TargetDarwinARM64
	case h.OS == "darwin" && h.Arch == "amd64":
		return TargetDarwinAMD64
	case h.OS == "linux" && h.Arch == "amd64":
		return TargetLinuxAMD64
	case h.OS == "windows" && h.Arch == "amd64":
		return TargetWindowsAMD64
	default:
		return TargetNative
	}
}
