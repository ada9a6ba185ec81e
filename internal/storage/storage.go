// Package storage defines the persistence contracts shared by the scoring
// engine, the hint tracker and the recommendation model. The sqlite and
// postgres packages implement them.
package storage

import (
	"context"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
)

// ChallengeStore holds challenge definitions and their solve aggregates
type ChallengeStore interface {
	// Get returns a challenge or domain.ErrNotFound
	Get(ctx context.Context, id string) (*domain.Challenge, error)

	// CompareAnswerDigest checks a normalized answer against the stored digest
	CompareAnswerDigest(ctx context.Context, id, answer string) (bool, error)

	// IncrementAttempt counts one attempt
	IncrementAttempt(ctx context.Context, id string) error

	// RecordSolve counts one solve and folds completionSeconds into the mean
	RecordSolve(ctx context.Context, id string, completionSeconds float64) error

	// ListActive returns active challenges ordered by id
	ListActive(ctx context.Context) ([]*domain.Challenge, error)

	// Save inserts or replaces a challenge definition, keeping aggregates
	Save(ctx context.Context, c *domain.Challenge) error
}

// PlayerStore holds per-player aggregate records
type PlayerStore interface {
	// Create registers a new record or returns domain.ErrConflict
	Create(ctx context.Context, p *domain.PlayerRecord) error

	// Get returns a record or domain.ErrPlayerNotFound
	Get(ctx context.Context, id string) (*domain.PlayerRecord, error)

	// ApplySolve atomically folds a solve into the record and returns the result
	ApplySolve(ctx context.Context, id string, d domain.SolveDelta, streakWindow time.Duration) (*domain.PlayerRecord, error)

	// List returns all player ids
	List(ctx context.Context) ([]string, error)
}

// Ledger is the append-only submission history
type Ledger interface {
	// Append writes a record. A second correct record for the same pair
	// fails with domain.ErrAlreadySolved.
	Append(ctx context.Context, r *domain.SubmissionRecord) error

	CountRecentAttempts(ctx context.Context, playerID, challengeID string, since time.Time) (int, error)
	HasCorrectSolve(ctx context.Context, playerID, challengeID string) (bool, error)

	// FirstAttemptTime returns nil when the player never attempted the challenge
	FirstAttemptTime(ctx context.Context, playerID, challengeID string) (*time.Time, error)

	// CountAttempts counts non-duplicate attempts on a challenge
	CountAttempts(ctx context.Context, playerID, challengeID string) (int, error)

	SolvedChallenges(ctx context.Context, playerID string) ([]string, error)
	History(ctx context.Context, playerID string) (domain.PlayerHistory, error)

	// Stats returns attempt totals and per-solve timings for the player
	Stats(ctx context.Context, playerID string) (domain.PlayerStats, error)
}

// HintStore tracks unlocked hint levels per (player, challenge)
type HintStore interface {
	UnlockedCount(ctx context.Context, playerID, challengeID string) (int, error)

	// UnlockNext records u. It fails with domain.ErrHintOutOfOrder unless
	// u.Level is exactly one above the unlocked count, and with
	// domain.ErrHintLimitReached when u.Level exceeds maxLevel.
	UnlockNext(ctx context.Context, u *domain.HintUnlock, maxLevel int) error

	// Unlocked returns unlocked hints ordered by level
	Unlocked(ctx context.Context, playerID, challengeID string) ([]*domain.HintUnlock, error)
}

// PredictionLog records recommendation model predictions for audit
type PredictionLog interface {
	Record(ctx context.Context, p *domain.Prediction) error
}

// Store groups the stores and runs work inside a transaction
type Store interface {
	Challenges() ChallengeStore
	Players() PlayerStore
	Ledger() Ledger
	Hints() HintStore

	// InTx runs fn against a store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
