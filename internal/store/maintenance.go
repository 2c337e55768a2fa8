package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
)

const vacuumTask = "vacuum"

// PruneReleased deletes records released before today minus graceDays.
// Records without a release date are kept.
func (s *Store) PruneReleased(ctx context.Context, today time.Time, graceDays int) (int64, error) {
	if graceDays < 0 {
		graceDays = 0
	}
	cutoff := today.AddDate(0, 0, -graceDays).Format(catalog.ReleaseDateLayout)
	res, err := s.exec(ctx, "prune",
		`DELETE FROM audiobooks WHERE release_date <> '' AND release_date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune released: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune released rows: %w", err)
	}
	if removed > 0 {
		s.logger.Info("pruned released audiobooks",
			logging.Int64("removed", removed),
			logging.String("cutoff", cutoff),
		)
	}
	return removed, nil
}

// LastVacuum returns when the database was last vacuumed. ok is false when
// it never was.
func (s *Store) LastVacuum(ctx context.Context) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT last_run FROM maintenance WHERE task = ?`, vacuumTask).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last vacuum: %w", err)
	}
	ts, err := time.Parse(timestampLayout, value)
	if err != nil {
		// An unreadable timestamp is treated as never vacuumed.
		return time.Time{}, false, nil
	}
	return ts, true, nil
}

// VacuumIfDue compacts the database when interval has passed since the last
// vacuum, recording now as the new last run. It reports whether a vacuum ran.
func (s *Store) VacuumIfDue(ctx context.Context, now time.Time, interval time.Duration) (bool, error) {
	last, ok, err := s.LastVacuum(ctx)
	if err != nil {
		return false, err
	}
	if ok && now.Sub(last) < interval {
		return false, nil
	}
	if _, err := s.exec(ctx, "vacuum", `VACUUM`); err != nil {
		return false, fmt.Errorf("vacuum: %w", err)
	}
	if _, err := s.exec(ctx, "record vacuum",
		`INSERT INTO maintenance (task, last_run) VALUES (?, ?)
		 ON CONFLICT(task) DO UPDATE SET last_run = excluded.last_run`,
		vacuumTask, now.UTC().Format(timestampLayout),
	); err != nil {
		return true, fmt.Errorf("record vacuum: %w", err)
	}
	s.logger.Info("database vacuumed", logging.String("path", s.path))
	return true, nil
}
