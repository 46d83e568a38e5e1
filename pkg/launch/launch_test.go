package launch

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crossforge/crossforge/pkg/config"
	"github.com/crossforge/crossforge/pkg/platform"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"  y  \n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"anything else\n", false},
		{"", false}, // closed input declines
		{"y", true}, // affirmative without trailing newline at EOF
	}
	for _, tt := range tests {
		var out bytes.Buffer
		l := &Launcher{In: strings.NewReader(tt.input), Out: &out}
		if got := l.Confirm("Launch?"); got != tt.want {
			t.Errorf("Confirm with input %q = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "[y/N]") {
			t.Errorf("prompt missing [y/N] marker: %q", out.String())
		}
	}
}

func writeArtifact(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("binary"), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestPickArtifactPrefersUniversal(t *testing.T) {
	m := config.Default("dino-runner")
	m.OutputDir = filepath.Join(t.TempDir(), "target")
	host := platform.Host{OS: "darwin", Arch: "arm64"}

	universal := platform.UniversalPath(m.OutputDir, m.Binary)
	hostArtifact := platform.TargetDarwinARM64.ArtifactPath(m.OutputDir, m.Binary)
	writeArtifact(t, universal)
	writeArtifact(t, hostArtifact)

	if got := PickArtifact(m, host); got != universal {
		t.Errorf("PickArtifact = %s, want universal %s", got, universal)
	}
}

func TestPickArtifactFallsBackToHostTarget(t *testing.T) {
	m := config.Default("dino-runner")
	m.OutputDir = filepath.Join(t.TempDir(), "target")
	host := platform.Host{OS: "linux", Arch: "amd64"}

	hostArtifact := platform.TargetLinuxAMD64.ArtifactPath(m.OutputDir, m.Binary)
	writeArtifact(t, hostArtifact)

	if got := PickArtifact(m, host); got != hostArtifact {
		t.Errorf("PickArtifact = %s, want host artifact %s", got, hostArtifact)
	}
}

func TestPickArtifactNativeFallback(t *testing.T) {
	m := config.Default("dino-runner")
	m.OutputDir = filepath.Join(t.TempDir(), "target")
	host := platform.Host{OS: "freebsd", Arch: "amd64"}

	native := platform.TargetNative.ArtifactPath(m.OutputDir, m.Binary)
	writeArtifact(t, native)

	if got := PickArtifact(m, host); got != native {
		t.Errorf("PickArtifact = %s, want native fallback %s", got, native)
	}
}

func TestPickArtifactNothingOnDisk(t *testing.T) {
	m := config.Default("dino-runner")
	m.OutputDir = filepath.Join(t.TempDir(), "target")

	if got := PickArtifact(m, platform.Host{OS: "linux", Arch: "amd64"}); got != "" {
		t.Errorf("PickArtifact on an empty output dir = %q, want empty", got)
	}
}

func TestLaunchUsesInjectedStart(t *testing.T) {
	var started string
	l := &Launcher{Start: func(path string) error {
		started = path
		return nil
	}}
	if err := l.Launch("/tmp/dino"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started != "/tmp/dino" {
		t.Errorf("started = %q, want /tmp/dino", started)
	}
}

func TestLaunchWrapsStartFailure(t *testing.T) {
	l := &Launcher{Start: func(string) error {
		return os.ErrPermission
	}}
	err := l.Launch("/tmp/dino")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "/tmp/dino") {
		t.Errorf("error should name the binary path: %v", err)
	}
}
