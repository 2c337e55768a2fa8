package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"audiostacker/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is recorded in schema_version. Bump it when schema.sql changes;
// tracked audiobooks are rebuilt from the catalog on the next run.
const schemaVersion = 1

// ErrSchemaMismatch reports an audiobook database written by another build.
var ErrSchemaMismatch = errors.New("audiobook database schema mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var tables int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name IN ('schema_version', 'audiobooks')`,
	).Scan(&tables)
	if err != nil {
		return fmt.Errorf("inspect audiobook database: %w", err)
	}
	if tables == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("%w: %s has no readable schema version: %v", ErrSchemaMismatch, s.path, err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d; delete it and the next run will track audiobooks again",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	err := s.withLockRetry(ctx, "create schema", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("create audiobook schema: %w", err)
	}
	s.logger.Info("audiobook database created",
		logging.String("path", s.path),
		logging.Int("schema_version", schemaVersion),
	)
	return nil
}
