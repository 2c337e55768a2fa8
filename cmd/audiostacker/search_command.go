package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"audiostacker/internal/audible"
	"audiostacker/internal/catalog"
	"audiostacker/internal/matching"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		fieldFlag string
		pages     int
		wanted    catalog.Wanted
		accepted  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog and show deduplicated results",
		Long: "Search the catalog and show deduplicated results. When any of --title, --series, " +
			"--author, --narrator or --publisher is given, results are scored against that book.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := catalog.ParseSearchField(fieldFlag)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			client, err := ctx.newClient()
			if err != nil {
				return err
			}

			req := audible.SearchRequest{Query: query, Field: field, MaxPages: pages}
			var results []catalog.Entry
			if ctx.configValue().Audible.ParallelPages {
				results = client.SearchParallel(cmd.Context(), req)
			} else {
				results = client.Search(cmd.Context(), req)
			}
			results = matching.Dedupe(results)

			switch {
			case field == catalog.FieldAuthor && wanted.Author == "":
				wanted.Author = query
			case field == catalog.FieldSeries && wanted.Series == "":
				wanted.Series = query
			}
			scored := wanted.Title != "" || wanted.Series != "" || wanted.Author != "" ||
				wanted.Publisher != "" || len(wanted.Narrators) > 0
			if scored {
				if accepted {
					results = ctx.newSelector().SelectAllGood(results, wanted)
				} else {
					results = scoreAll(ctx, results, wanted)
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			if ctx.wantJSON(cmd) {
				if results == nil {
					results = []catalog.Entry{}
				}
				return writeJSON(cmd, results)
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results")
				return nil
			}
			fmt.Fprintln(out, renderTable(entryColumns(scored), entryRows(results, scored)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&fieldFlag, "field", "f", "title", "Search field: title, author, series, narrator, publisher or keywords")
	cmd.Flags().IntVar(&pages, "pages", 0, "Maximum result pages (defaults to audible.max_pages)")
	cmd.Flags().StringVar(&wanted.Title, "title", "", "Wanted title to score against")
	cmd.Flags().StringVar(&wanted.Series, "series", "", "Wanted series to score against")
	cmd.Flags().StringVar(&wanted.Author, "author", "", "Wanted author to score against")
	cmd.Flags().StringSliceVar(&wanted.Narrators, "narrator", nil, "Wanted narrator (repeatable)")
	cmd.Flags().StringVar(&wanted.Publisher, "publisher", "", "Wanted publisher to score against")
	cmd.Flags().BoolVar(&accepted, "accepted", false, "Only show results meeting matching.min_confidence")
	return cmd
}

// scoreAll attaches scores to every result, highest first.
func scoreAll(ctx *commandContext, entries []catalog.Entry, wanted catalog.Wanted) []catalog.Entry {
	cfg := ctx.configValue()
	scorer := matching.NewScorer(ctx.loggerValue())
	out := make([]catalog.Entry, 0, len(entries))
	for _, entry := range entries {
		scoredEntry := entry.Clone()
		scoredEntry.ConfidenceScore = scorer.Score(entry, wanted)
		scoredEntry.NeedsReview = scoredEntry.ConfidenceScore < cfg.Matching.PreferredConfidence
		out = append(out, scoredEntry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out
}
