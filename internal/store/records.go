package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
)

// Record is one stored audiobook.
type Record struct {
	ASIN         string    `json:"asin"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Narrator     string    `json:"narrator"`
	Publisher    string    `json:"publisher"`
	Series       string    `json:"series"`
	SeriesNumber string    `json:"series_number"`
	ReleaseDate  string    `json:"release_date"`
	Link         string    `json:"link"`
	Confidence   float64   `json:"confidence"`
	NeedsReview  bool      `json:"needs_review"`
	FirstSeen    time.Time `json:"first_seen"`
	LastChecked  time.Time `json:"last_checked"`
}

const recordColumns = `asin, title, author, narrator, publisher, series, series_number,
	release_date, link, confidence, needs_review, first_seen, last_checked`

// Upsert stores entry, refreshing its fields when the row already exists.
// isNew reports whether the catalog id was seen for the first time.
func (s *Store) Upsert(ctx context.Context, entry catalog.Entry, now time.Time) (bool, error) {
	asin := strings.TrimSpace(entry.ID)
	if asin == "" {
		return false, errors.New("upsert: entry has no catalog id")
	}
	ctx = ensureContext(ctx)
	stamp := now.UTC().Format(timestampLayout)

	var isNew bool
	err := s.withLockRetry(ctx, "upsert", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM audiobooks WHERE asin = ?`, asin).Scan(&existing); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audiobooks (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(asin) DO UPDATE SET
				title = excluded.title,
				author = excluded.author,
				narrator = excluded.narrator,
				publisher = excluded.publisher,
				series = excluded.series,
				series_number = excluded.series_number,
				release_date = excluded.release_date,
				link = excluded.link,
				confidence = excluded.confidence,
				needs_review = excluded.needs_review,
				last_checked = excluded.last_checked`,
			asin, entry.Title, entry.Author, entry.Narrator, entry.Publisher, entry.Series, entry.SeriesNumber,
			entry.ReleaseDate, entry.Link, entry.ConfidenceScore, boolToInt(entry.NeedsReview), stamp, stamp,
		)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		isNew = existing == 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", asin, err)
	}
	s.logger.Debug("audiobook stored",
		logging.String(logging.FieldASIN, asin),
		logging.String("title", entry.Title),
		logging.Bool("new", isNew),
	)
	return isNew, nil
}

// Get returns the record for asin, or nil when it is not stored.
func (s *Store) Get(ctx context.Context, asin string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+recordColumns+` FROM audiobooks WHERE asin = ?`, strings.TrimSpace(asin))
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", asin, err)
	}
	return record, nil
}

// List returns stored records ordered by release date. A non-zero from
// limits the result to releases on or after that day; rows without a
// release date are listed last.
func (s *Store) List(ctx context.Context, from time.Time) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM audiobooks`
	var args []any
	if !from.IsZero() {
		query += ` WHERE release_date = '' OR release_date >= ?`
		args = append(args, from.Format(catalog.ReleaseDateLayout))
	}
	query += ` ORDER BY release_date = '', release_date, title`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audiobooks: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audiobook: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM audiobooks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audiobooks: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		record      Record
		needsReview int
		firstSeen   string
		lastChecked string
	)
	if err := row.Scan(
		&record.ASIN, &record.Title, &record.Author, &record.Narrator, &record.Publisher,
		&record.Series, &record.SeriesNumber, &record.ReleaseDate, &record.Link,
		&record.Confidence, &needsReview, &firstSeen, &lastChecked,
	); err != nil {
		return nil, err
	}
	record.NeedsReview = needsReview != 0
	record.FirstSeen = parseTimestamp(firstSeen)
	record.LastChecked = parseTimestamp(lastChecked)
	return &record, nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
