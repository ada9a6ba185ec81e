package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/storage"
	"github.com/mattn/go-sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Store on SQLite. A Store returned inside InTx
// is bound to that transaction.
type Store struct {
	db *DB
	q  querier
	tx bool
}

// NewStore creates a store over an opened, migrated database.
func NewStore(db *DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Challenges() storage.ChallengeStore { return &ChallengeStore{q: s.q} }
func (s *Store) Players() storage.PlayerStore       { return &PlayerStore{q: s.q} }
func (s *Store) Ledger() storage.Ledger             { return &Ledger{q: s.q} }
func (s *Store) Hints() storage.HintStore           { return &HintStore{q: s.q} }

// InTx runs fn inside a transaction. Nested calls join the outer one.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.tx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&Store{db: s.db, q: tx, tx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// utc normalizes timestamps so stored DATETIME text compares lexically.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
