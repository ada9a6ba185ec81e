package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const challengeColumns = `id, title, category, difficulty, points, flag_digest, hints,
	solve_count, attempt_count, avg_completion_time, active, created_at, updated_at`

// ChallengeStore implements challenge persistence on PostgreSQL.
type ChallengeStore struct {
	q querier
}

// Save inserts or replaces a challenge definition, keeping aggregates.
func (s *ChallengeStore) Save(ctx context.Context, c *domain.Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	hints, err := json.Marshal(c.Hints)
	if err != nil {
		return fmt.Errorf("marshal hints: %w", err)
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			difficulty = EXCLUDED.difficulty,
			points = EXCLUDED.points,
			flag_digest = EXCLUDED.flag_digest,
			hints = EXCLUDED.hints,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.Title, string(c.Category), int(c.Difficulty), c.Points, c.FlagDigest, hints,
		c.SolveCount, c.AttemptCount, c.AvgCompletionTime, c.Active, c.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("upsert challenge: %w", err)
	}
	c.UpdatedAt = now
	return nil
}

// Get retrieves a challenge by ID.
func (s *ChallengeStore) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	row := s.q.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
	c, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

// CompareAnswerDigest checks a normalized answer against the stored digest.
func (s *ChallengeStore) CompareAnswerDigest(ctx context.Context, id, answer string) (bool, error) {
	var digest string
	err := s.q.QueryRow(ctx, `SELECT flag_digest FROM challenges WHERE id = $1`, id).Scan(&digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get flag digest: %w", err)
	}
	return domain.MatchFlag(digest, answer)
}

// IncrementAttempt counts one attempt.
func (s *ChallengeStore) IncrementAttempt(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE challenges SET attempt_count = attempt_count + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment attempt: %w", err)
	}
	return requireRow(tag)
}

// RecordSolve counts one solve and folds the completion time into the
// running mean. The row lock taken by UPDATE orders concurrent solvers.
func (s *ChallengeStore) RecordSolve(ctx context.Context, id string, completionSeconds float64) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE challenges SET
			avg_completion_time = CASE WHEN solve_count = 0 THEN $1
				ELSE (avg_completion_time * solve_count + $1) / (solve_count + 1) END,
			solve_count = solve_count + 1,
			updated_at = now()
		WHERE id = $2`,
		completionSeconds, id)
	if err != nil {
		return fmt.Errorf("record solve: %w", err)
	}
	return requireRow(tag)
}

// ListActive returns active challenges ordered by id.
func (s *ChallengeStore) ListActive(ctx context.Context) ([]*domain.Challenge, error) {
	rows, err := s.q.Query(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []*domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChallenge(row pgx.Row) (*domain.Challenge, error) {
	var (
		c          domain.Challenge
		category   string
		difficulty int
		hints      []byte
	)
	err := row.Scan(&c.ID, &c.Title, &category, &difficulty, &c.Points, &c.FlagDigest, &hints,
		&c.SolveCount, &c.AttemptCount, &c.AvgCompletionTime, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Category = domain.Category(category)
	c.Difficulty = domain.Difficulty(difficulty)
	if err := json.Unmarshal(hints, &c.Hints); err != nil {
		return nil, fmt.Errorf("unmarshal hints: %w", err)
	}
	return &c, nil
}

func requireRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
