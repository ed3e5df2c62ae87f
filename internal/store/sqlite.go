// ABOUTME: SQLite implementation of the Store interface over routed tenant pools
// ABOUTME: Every call asks the resolver for the database of the tenant in scope

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// dateLayout is how release dates are stored.
const dateLayout = "2006-01-02"

// SQLiteStore implements Store. It holds no connection itself; each call
// resolves the tenant database from ctx.
type SQLiteStore struct {
	dbs    DBResolver
	logger *slog.Logger
}

// NewSQLiteStore creates a store that routes through dbs.
func NewSQLiteStore(dbs DBResolver) *SQLiteStore {
	return &SQLiteStore{
		dbs:    dbs,
		logger: slog.Default().With("component", "store"),
	}
}

// db resolves the tenant database for ctx.
func (s *SQLiteStore) db(ctx context.Context) (*sql.DB, error) {
	db, err := s.dbs.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("routing to tenant database: %w", err)
	}
	return db, nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
