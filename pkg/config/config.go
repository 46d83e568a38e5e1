// Package config loads and validates the forge.yaml build manifest.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/crossforge/crossforge/pkg/platform"
)

// DefaultPath is the manifest filename looked up in the working directory
// when no --config flag is given.
const DefaultPath = "forge.yaml"

// Duration wraps time.Duration so manifest fields accept "500ms"-style
// strings as well as plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Manifest is the parsed forge.yaml build manifest.
type Manifest struct {
	// Project is the human-readable project name, used in logs and the
	// run history.
	Project string `yaml:"project" validate:"required"`

	// Binary is the name of the executable the toolchain produces.
	Binary string `yaml:"binary" validate:"required"`

	// Toolchain configures the external compiler driver.
	Toolchain Toolchain `yaml:"toolchain"`

	// Profile configures release-build codegen settings.
	Profile Profile `yaml:"profile"`

	// Targets optionally pins an explicit target list, overriding the
	// host-based default selection. Entries must belong to the closed
	// target set.
	Targets []string `yaml:"targets,omitempty"`

	// OutputDir is the toolchain output directory root.
	OutputDir string `yaml:"output_dir" validate:"required"`

	// Universal configures macOS universal-binary fusion.
	Universal Universal `yaml:"universal"`

	// Store configures the build run history database.
	Store Store `yaml:"store"`

	// Watch configures the rebuild-on-change file watcher.
	Watch Watch `yaml:"watch"`
}

// Toolchain configures the external build command.
type Toolchain struct {
	// Command is the compiler driver executable (e.g. "cargo").
	Command string `yaml:"command" validate:"required"`

	// BuildArgs are the driver arguments preceding any --target flag
	// (e.g. ["build", "--release"]).
	BuildArgs []string `yaml:"build_args" validate:"required,min=1"`

	// FuseCommand is the universal-binary fusion utility (e.g. "lipo").
	FuseCommand string `yaml:"fuse_command" validate:"required"`

	// Timeout bounds a single toolchain invocation. Zero means no limit.
	Timeout Duration `yaml:"timeout"`
}

// Profile configures release codegen, surfaced to the toolchain through
// CARGO_PROFILE_RELEASE_* environment variables.
type Profile struct {
	// OptLevel is the optimizer level ("0" through "3", "s", "z").
	OptLevel string `yaml:"opt_level" validate:"omitempty,oneof=0 1 2 3 s z"`

	// LTO selects link-time optimization ("off", "thin", "fat").
	LTO string `yaml:"lto" validate:"omitempty,oneof=off thin fat"`

	// CodegenUnits is the number of codegen units; 1 maximizes
	// optimization at the cost of build parallelism.
	CodegenUnits int `yaml:"codegen_units" validate:"omitempty,min=1"`

	// Strip removes symbols from the produced binary.
	Strip bool `yaml:"strip"`

	// Env holds additional environment variables passed verbatim to the
	// toolchain process.
	Env map[string]string `yaml:"env,omitempty"`
}

// Universal configures the macOS universal-binary fusion step.
type Universal struct {
	// Enabled turns fusion on when both darwin artifacts are present.
	Enabled bool `yaml:"enabled"`
}

// Store configures the build history database.
type Store struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `yaml:"path"`
}

// Watch configures watch mode.
type Watch struct {
	// Paths are the files and directories whose changes trigger a
	// rebuild.
	Paths []string `yaml:"paths"`

	// Debounce is the quiet period after the last change before a
	// rebuild starts.
	Debounce Duration `yaml:"debounce"`

	// MetricsAddr, when set, serves Prometheus metrics on this address
	// for the lifetime of the watch loop.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a manifest populated with the defaults the original build
// setup used: a cargo release build with opt-level 3, fat LTO, a single
// codegen unit and stripped symbols.
func Default(project string) *Manifest {
	return &Manifest{
		Project: project,
		Binary:  project,
		Toolchain: Toolchain{
			Command:     "cargo",
			BuildArgs:   []string{"build", "--release"},
			FuseCommand: "lipo",
		},
		Profile: Profile{
			OptLevel:     "3",
			LTO:          "fat",
			CodegenUnits: 1,
			Strip:        true,
		},
		OutputDir: "target",
		Universal: Universal{Enabled: true},
		Store:     Store{Path: ".forge/history.db"},
		Watch: Watch{
			Paths:    []string{"src", "Cargo.toml"},
			Debounce: Duration(500 * time.Millisecond),
		},
	}
}

// Load reads, parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates manifest bytes. Missing toolchain, profile and
// watch settings are filled from the defaults before validation.
func Parse(data []byte) (*Manifest, error) {
	m := Default("")
	m.Project = ""
	m.Binary = ""
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Binary == "" {
		m.Binary = m.Project
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the manifest against its struct constraints and the
// closed target set.
func (m *Manifest) Validate() error {
	if err := validator.New().Struct(m); err != nil {
		return fmt.Errorf("manifest validation failed: %w", err)
	}
	if _, err := m.TargetList(); err != nil {
		return err
	}
	if m.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}
	return nil
}

// TargetList resolves the manifest's explicit target pins into closed-set
// members. An empty list means "use the host default selection".
func (m *Manifest) TargetList() ([]platform.Target, error) {
	targets := make([]platform.Target, 0, len(m.Targets))
	for _, s := range m.Targets {
		t, err := platform.Parse(s)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Write marshals the manifest to path, refusing to overwrite an existing
// file.
func (m *Manifest) Write(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("manifest already exists: %s", path)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
