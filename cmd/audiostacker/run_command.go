package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"audiostacker/internal/logging"
	"audiostacker/internal/tracing"
	"audiostacker/internal/tracker"
	"audiostacker/internal/watchlist"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var watchlistPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search the catalog for every watchlist entry and store matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			logger := ctx.loggerValue()

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another run holds %s", cfg.LockPath())
			}
			defer func() { _ = lock.Unlock() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := tracing.Setup(runCtx, tracing.Config{
				Enabled:     cfg.Tracing.Enabled,
				Endpoint:    cfg.Tracing.Endpoint,
				Insecure:    cfg.Tracing.Insecure,
				ServiceName: cfg.Tracing.ServiceName,
				Version:     version,
			})
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Warn("trace flush failed", logging.Error(err))
				}
			}()

			path := watchlistPath
			if path == "" {
				path = cfg.Paths.Watchlist
			}
			list, err := watchlist.Load(path, logger)
			if err != nil {
				return err
			}

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			now := time.Now()
			if _, err := st.PruneReleased(runCtx, now, cfg.Database.CleanupGracePeriodDays); err != nil {
				logging.WarnWithContext(logger, "prune failed", "store_prune_failed", logging.Error(err))
			}
			interval := time.Duration(cfg.Database.VacuumIntervalDays) * 24 * time.Hour
			if _, err := st.VacuumIfDue(runCtx, now, interval); err != nil {
				logging.WarnWithContext(logger, "vacuum failed", "store_vacuum_failed", logging.Error(err))
			}

			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			rec := ctx.metricsValue()
			tr := tracker.New(client, st, ctx.newSelector(), tracker.OptionsFrom(cfg), logger, tracker.WithMetrics(rec))
			summary, runErr := tr.Run(runCtx, list)

			if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logging.WarnWithContext(logger, "metrics export failed", "metrics_textfile_failed", logging.Error(err))
			}
			if err := printSummary(ctx, cmd, summary); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&watchlistPath, "watchlist", "w", "", "Watchlist file (defaults to paths.watchlist)")
	return cmd
}

func printSummary(ctx *commandContext, cmd *cobra.Command, summary tracker.Summary) error {
	if ctx.wantJSON(cmd) {
		return writeJSON(cmd, summary)
	}
	columns := []column{{header: "metric"}, {header: "value", align: alignRight}}
	rows := [][]string{
		{"authors", strconv.Itoa(summary.Authors)},
		{"queries", strconv.Itoa(summary.Queries)},
		{"candidates", strconv.Itoa(summary.Candidates)},
		{"accepted", strconv.Itoa(summary.Accepted)},
		{"new", strconv.Itoa(summary.New)},
		{"updated", strconv.Itoa(summary.Updated)},
		{"needs review", strconv.Itoa(summary.NeedsReview)},
		{"errors", strconv.Itoa(summary.Errors)},
		{"duration", summary.Duration.Round(time.Millisecond).String()},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
	return nil
}
