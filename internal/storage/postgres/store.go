package postgres

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/flagpost/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx. Begin on a
// transaction opens a savepoint.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store on PostgreSQL. A Store returned inside
// InTx is bound to that transaction.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	tx   bool
}

// NewStore creates a store over a migrated database.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
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
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, q: tx, tx: true})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
