package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/crossforge/crossforge/pkg/watch"
)

func newWatchCommand(version string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild on source changes",
		Long: `Run an initial build, then watch the manifest's source paths and
rebuild after each change burst. Build failures are logged and the loop
keeps running. With a metrics address configured, Prometheus metrics are
served for the lifetime of the loop.`,
		Example: `  # Watch with the manifest's paths
  forge watch

  # Watch and expose metrics
  forge watch --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest()
			if err != nil {
				return err
			}

			tel, err := newTelemetry(version)
			if err != nil {
				return err
			}
			ctx := tel.WithContext(cmd.Context())
			defer tel.Shutdown(context.Background())
			log := tel.Logger

			addr := metricsAddr
			if addr == "" {
				addr = m.Watch.MetricsAddr
			}
			if addr != "" {
				if handler := tel.Metrics.Handler(); handler != nil {
					mux := http.NewServeMux()
					mux.Handle("/metrics", handler)
					server := &http.Server{Addr: addr, Handler: mux}
					go func() {
						if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							log.WithError(err).Error("metrics endpoint failed")
						}
					}()
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
						defer cancel()
						_ = server.Shutdown(shutdownCtx)
					}()
					log.Infof("serving metrics on %s/metrics", addr)
				}
			}

			pipeline, cleanup, err := newPipeline(ctx, m, tel)
			if err != nil {
				return err
			}
			defer cleanup()

			rebuild := func(ctx context.Context) error {
				report, runErr := pipeline.Execute(ctx)
				printReport(report)
				return runErr
			}

			// Initial build; failures are logged and the watch loop
			// still starts, the next change gets another attempt.
			if err := rebuild(ctx); err != nil {
				log.WithError(err).Error("initial build failed")
			}

			watcher := watch.NewWatcher(tel.Logger, tel.Metrics, m.Watch.Debounce.Std())
			err = watcher.Run(ctx, m.Watch.Paths, rebuild)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}
