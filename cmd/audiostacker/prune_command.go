package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var grace int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored audiobooks that have been released",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			days := ctx.configValue().Database.CleanupGracePeriodDays
			if cmd.Flags().Changed("grace") {
				days = grace
			}
			removed, err := st.PruneReleased(cmd.Context(), time.Now(), days)
			if err != nil {
				return err
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, map[string]int64{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d released audiobook(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&grace, "grace", 0, "Days after release to keep records (defaults to database.cleanup_grace_period_days)")
	return cmd
}
