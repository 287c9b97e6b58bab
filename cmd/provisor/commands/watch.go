package commands

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/provisor/provisor/pkg/engine"
	"github.com/provisor/provisor/pkg/history"
	"github.com/provisor/provisor/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		continueOnError bool
		parallelism     int
		timeout         time.Duration
		historyPath     string
		interval        time.Duration
		listen          string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-converge on manifest changes and on a fixed interval",
		Long: `Run apply once, then keep the host converged: re-run whenever the
manifest file changes and on a fixed interval to repair external drift.

With --listen, run outcomes are exported as Prometheus metrics.`,
		Example: `  # Re-converge on edit and every 10 minutes
  provisor watch -m provisor.yaml --interval 10m

  # Export metrics while watching
  provisor watch -m provisor.yaml --listen :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			log = log.Component("watch")

			metrics := telemetry.NewMetrics()
			if listen != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: listen, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Error().Err(err).Msg("metrics server failed")
					}
				}()
				defer srv.Close()
				log.Info().Str("addr", listen).Msg("metrics server listening")
			}

			var store *history.Store
			if historyPath != "" {
				store, err = history.Open(historyPath)
				if err != nil {
					return err
				}
				defer store.Close()
			}

			policy := engine.FailFast
			if continueOnError {
				policy = engine.ContinueOnError
			}

			converge := func() {
				plan, err := loadPlan(manifestPath)
				if err != nil {
					pterm.Error.Println(err.Error())
					return
				}

				exec := engine.NewExecutor(engine.Options{
					Policy:          policy,
					Parallelism:     parallelism,
					ResourceTimeout: timeout,
					Logger:          log,
					Metrics:         metrics,
				})
				report := exec.Execute(cmd.Context(), plan)

				if store != nil {
					if err := store.RecordRun(cmd.Context(), manifestPath, report); err != nil {
						log.Warn().Err(err).Msg("failed to journal run")
					}
				}
				if err := renderReport(report); err != nil {
					log.Error().Err(err).Msg("failed to render report")
				}
			}

			// Watch the manifest's directory: editors typically replace
			// the file via rename, which drops a watch on the file itself.
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			absManifest, err := filepath.Abs(manifestPath)
			if err != nil {
				return err
			}
			if err := watcher.Add(filepath.Dir(absManifest)); err != nil {
				return err
			}

			tick, stopTick := driftTicker(interval)
			defer stopTick()

			// Debounce bursts of write events from a single save.
			var pending <-chan time.Time

			converge()
			for {
				select {
				case <-cmd.Context().Done():
					return nil

				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(ev.Name) != absManifest {
						continue
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
						pending = time.After(500 * time.Millisecond)
					}

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Error().Err(err).Msg("watch error")

				case <-pending:
					pending = nil
					log.Info().Msg("manifest changed, re-converging")
					converge()

				case <-tick:
					log.Debug().Msg("interval elapsed, re-converging")
					converge()
				}
			}
		},
	}

	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep independent branches running past a failure")
	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "max concurrent resources (1 = sequential)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-resource timeout (0 = none)")
	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite run journal path (empty = no journal)")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "drift repair interval (0 disables, manifest events only)")
	cmd.Flags().StringVar(&listen, "listen", "", "address for the Prometheus metrics endpoint (empty = disabled)")

	return cmd
}

// driftTicker returns the repair interval channel. A non-positive interval
// disables the ticker: the nil channel blocks forever in the select, so the
// loop reacts to manifest events only.
func driftTicker(interval time.Duration) (<-chan time.Time, func()) {
	if interval <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(interval)
	return t.C, t.Stop
}
