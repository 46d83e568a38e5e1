// Package launch implements the optional post-build step: prompt the
// operator and, on an affirmative answer, start the most specific produced
// binary as a detached process.
package launch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/crossforge/crossforge/pkg/config"
	"github.com/crossforge/crossforge/pkg/platform"
)

// Launcher prompts for and starts a produced binary. The process is
// fire-and-forget: no supervision, monitoring, or cancellation after start.
type Launcher struct {
	// In is the prompt answer source, normally os.Stdin.
	In io.Reader

	// Out is where the prompt is written, normally os.Stdout.
	Out io.Writer

	// Start starts the binary detached. Defaults to startDetached;
	// injectable for tests.
	Start func(path string) error
}

// NewLauncher creates a launcher over stdin/stdout.
func NewLauncher() *Launcher {
	return &Launcher{In: os.Stdin, Out: os.Stdout, Start: startDetached}
}

// PickArtifact selects the most specific runnable binary: the universal
// binary when present, then the host target's artifact, then the native
// fallback build. Returns the empty string when nothing exists on disk.
func PickArtifact(m *config.Manifest, host platform.Host) string {
	candidates := []string{
		platform.UniversalPath(m.OutputDir, m.Binary),
	}
	if t := platform.HostTarget(host); t != platform.TargetNative {
		candidates = append(candidates, t.ArtifactPath(m.OutputDir, m.Binary))
	}
	candidates = append(candidates, platform.TargetNative.ArtifactPath(m.OutputDir, m.Binary))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Confirm writes the prompt and reads one answer line. Only "y" or "yes"
// (case-insensitive) count as affirmative; anything else, including a read
// failure or closed input, declines.
func (l *Launcher) Confirm(prompt string) bool {
	fmt.Fprintf(l.Out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(l.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Launch starts the binary at path detached from the CLI process.
func (l *Launcher) Launch(path string) error {
	start := l.Start
	if start == nil {
		start = startDetached
	}
	if err := start(path); err != nil {
		return fmt.Errorf("failed to launch %s: %w", path, err)
	}
	return nil
}

// startDetached starts the binary and releases the process handle so the
// CLI can exit while the binary keeps running.
func startDetached(path string) error {
	cmd := exec.Command(path)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
