package main

import (
	"fmt"
	"strings"
	"time"

	"audiostacker/internal/catalog"
)

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.3f", score)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func entryColumns(scored bool) []column {
	cols := []column{
		{header: "asin"},
		{header: "title", maxWidth: 48},
		{header: "author", maxWidth: 28},
		{header: "series", maxWidth: 32},
		{header: "volume", align: alignRight},
		{header: "release"},
	}
	if scored {
		cols = append(cols, column{header: "score", align: alignRight}, column{header: "review"})
	}
	return cols
}

func entryRows(entries []catalog.Entry, scored bool) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		volume := "-"
		if entry.ExtractedVolume != nil {
			volume = entry.ExtractedVolume.String()
		}
		row := []string{
			entry.ID,
			entry.Title,
			dash(entry.Author),
			dash(entry.Series),
			volume,
			dash(entry.ReleaseDate),
		}
		if scored {
			row = append(row, formatScore(entry.ConfidenceScore), yesNo(entry.NeedsReview))
		}
		rows = append(rows, row)
	}
	return rows
}
