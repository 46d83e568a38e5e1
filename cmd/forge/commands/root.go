// Package commands implements the forge CLI command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/config"
	"github.com/crossforge/crossforge/pkg/engine"
	"github.com/crossforge/crossforge/pkg/fusion"
	"github.com/crossforge/crossforge/pkg/stores"
	"github.com/crossforge/crossforge/pkg/telemetry"
	"github.com/crossforge/crossforge/pkg/toolchain"
)

var (
	// Global flags
	configPath    string
	verbose       bool
	jsonOutput    bool
	traceExporter string
	traceEndpoint string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "CrossForge - cross-compilation build orchestrator",
		Long: `CrossForge drives an external compiler toolchain to cross-compile a
project for Windows, macOS (Apple Silicon and Intel, fused into a universal
binary), and Linux.

Features:
  - Closed target-platform set with host-based default selection
  - Explicit per-step results instead of filesystem probing
  - macOS universal-binary fusion via lipo
  - SQLite-backed build run history
  - Watch mode with rebuild-on-change and a metrics endpoint`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "manifest file path (default forge.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace", "", "enable tracing with this exporter (stdout, otlp)")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint for --trace=otlp")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newTargetsCommand())
	rootCmd.AddCommand(newBuildCommand(version))
	rootCmd.AddCommand(newFuseCommand(version))
	rootCmd.AddCommand(newRunCommand(version))
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand(version))

	return rootCmd
}

// manifestPath resolves the --config flag to a manifest path.
func manifestPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath
}

// loadManifest loads and validates the manifest selected by --config.
func loadManifest() (*config.Manifest, error) {
	return config.Load(manifestPath())
}

// newTelemetry builds the telemetry stack from the global flags.
func newTelemetry(version string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}
	if traceExporter != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = traceExporter
		cfg.Tracing.Endpoint = traceEndpoint
	}
	return telemetry.New(cfg)
}

// newPipeline assembles the build pipeline for the manifest, including the
// run-history store when one is configured. The returned cleanup closes the
// store and must be called after the pipeline finishes.
func newPipeline(ctx context.Context, m *config.Manifest, tel *telemetry.Telemetry) (*engine.Pipeline, func(), error) {
	runner := &toolchain.ExecRunner{Stream: !jsonOutput}
	fuser := fusion.NewLipoFuser(m.Toolchain.FuseCommand, runner)

	pipeline := engine.NewPipeline(m, runner, fuser)
	pipeline.Telemetry = tel

	cleanup := func() {}
	if m.Store.Path != "" {
		store, err := stores.Open(ctx, m.Store.Path)
		if err != nil {
			// History is a convenience; a broken store must not block
			// the build itself.
			tel.Logger.WithError(err).Warn("build history disabled: store unavailable")
		} else {
			pipeline.History = store
			cleanup = func() { _ = store.Close() }
		}
	}
	return pipeline, cleanup, nil
}
