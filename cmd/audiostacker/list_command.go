package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"audiostacker/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored upcoming audiobooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var from time.Time
			if !all {
				from = time.Now()
			}
			records, err := st.List(cmd.Context(), from)
			if err != nil {
				return err
			}

			if ctx.wantJSON(cmd) {
				if records == nil {
					records = []store.Record{}
				}
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No audiobooks stored")
				return nil
			}
			columns := []column{
				{header: "release"},
				{header: "title", maxWidth: 48},
				{header: "author", maxWidth: 28},
				{header: "narrator", maxWidth: 28},
				{header: "asin"},
				{header: "score", align: alignRight},
				{header: "review"},
			}
			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					dash(record.ReleaseDate),
					record.Title,
					dash(record.Author),
					dash(record.Narrator),
					record.ASIN,
					formatScore(record.Confidence),
					yesNo(record.NeedsReview),
				})
			}
			fmt.Fprintln(out, renderTable(columns, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include records released before today")
	return cmd
}
