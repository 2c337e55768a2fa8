package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"audiostacker/internal/audible"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <asin>",
		Short: "Show one catalog product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			asin := strings.TrimSpace(args[0])
			entry, err := client.Product(cmd.Context(), asin)
			if errors.Is(err, audible.ErrNotFound) {
				return fmt.Errorf("product %s not found", asin)
			}
			if err != nil {
				return err
			}

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, entry)
			}
			runtime := "-"
			if entry.RuntimeMinutes > 0 {
				runtime = strconv.Itoa(entry.RuntimeMinutes) + " min"
			}
			rows := [][]string{
				{"asin", entry.ID},
				{"title", entry.Title},
				{"subtitle", dash(entry.Subtitle)},
				{"author", dash(entry.Author)},
				{"narrator", dash(entry.Narrator)},
				{"publisher", dash(entry.Publisher)},
				{"series", dash(entry.Series)},
				{"series number", dash(entry.SeriesNumber)},
				{"release date", dash(entry.ReleaseDate)},
				{"runtime", runtime},
				{"genres", dash(strings.Join(entry.Genres, ", "))},
				{"link", entry.Link},
			}
			columns := []column{{header: "field"}, {header: "value", maxWidth: 72}}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(columns, rows))
			if entry.Description != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, entry.Description)
			}
			return nil
		},
	}
}
