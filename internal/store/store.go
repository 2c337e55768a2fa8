package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "modernc.org/sqlite"

	"audiostacker/internal/config"
	"audiostacker/internal/logging"
)

// Store manages audiobook persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// SQLite result codes that mean another connection holds the lock.
const (
	sqliteBusyCode   = 5
	sqliteLockedCode = 6
)

// Lock contention backs off from 10ms to 200ms over at most five attempts.
const (
	busyAttempts     = 5
	busyFirstBackoff = 10 * time.Millisecond
	busyMaxBackoff   = 200 * time.Millisecond
)

const timestampLayout = time.RFC3339

// Connection settings. Upserts read before they write, so transactions take
// the write lock up front instead of failing on upgrade.
var connParams = url.Values{
	"_pragma": {"journal_mode(WAL)", "busy_timeout(5000)", "synchronous(NORMAL)"},
	"_txlock": {"immediate"},
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isLockContention(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() & 0xff {
		case sqliteBusyCode, sqliteLockedCode:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withLockRetry runs op again while the audiobook database is locked by
// another audiostacker process. Other failures are returned at once.
func (s *Store) withLockRetry(ctx context.Context, op string, fn func() error) error {
	ctx = ensureContext(ctx)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = busyFirstBackoff
	policy.MaxInterval = busyMaxBackoff
	policy.RandomizationFactor = 0

	var last error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		last = fn()
		if last != nil && !isLockContention(last) {
			return struct{}{}, backoff.Permanent(last)
		}
		return struct{}{}, last
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(busyAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, next time.Duration) {
			s.logger.Debug("audiobook database locked",
				logging.String("operation", op),
				logging.Duration("retry_in", next),
			)
		}),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if last != nil {
		return last
	}
	return err
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := s.withLockRetry(ctx, op, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Open opens the audiobook database under the configured state directory.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath(), logger)
}

// OpenPath opens the database at path without touching other directories.
// A new file gets the current schema; an existing one must already carry it.
func OpenPath(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open audiobook database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open audiobook database %s: %w", path, err)
	}

	store := &Store{db: db, path: path, logger: logging.NewComponentLogger(logger, "store")}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
