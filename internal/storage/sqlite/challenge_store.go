package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
)

const challengeColumns = `id, title, category, difficulty, points, flag_digest, hints,
	solve_count, attempt_count, avg_completion_time, active, created_at, updated_at`

// ChallengeStore implements challenge persistence backed by SQLite.
type ChallengeStore struct {
	q querier
}

// Save inserts or replaces a challenge definition. Solve and attempt
// aggregates of an existing row are left untouched.
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
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			category=excluded.category,
			difficulty=excluded.difficulty,
			points=excluded.points,
			flag_digest=excluded.flag_digest,
			hints=excluded.hints,
			active=excluded.active,
			updated_at=excluded.updated_at`,
		c.ID, c.Title, string(c.Category), int(c.Difficulty), c.Points, c.FlagDigest, string(hints),
		c.SolveCount, c.AttemptCount, c.AvgCompletionTime, boolToInt(c.Active),
		utc(c.CreatedAt), now,
	)
	if err != nil {
		return fmt.Errorf("upsert challenge: %w", err)
	}
	c.UpdatedAt = now
	return nil
}

// Get retrieves a challenge by ID.
func (s *ChallengeStore) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	err := s.q.QueryRowContext(ctx, `SELECT flag_digest FROM challenges WHERE id = ?`, id).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get flag digest: %w", err)
	}
	return domain.MatchFlag(digest, answer)
}

// IncrementAttempt counts one attempt.
func (s *ChallengeStore) IncrementAttempt(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE challenges SET attempt_count = attempt_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("increment attempt: %w", err)
	}
	return requireRow(res)
}

// RecordSolve counts one solve and folds the completion time into the
// running mean in a single statement.
func (s *ChallengeStore) RecordSolve(ctx context.Context, id string, completionSeconds float64) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE challenges SET
			avg_completion_time = CASE WHEN solve_count = 0 THEN ?1
				ELSE (avg_completion_time * solve_count + ?1) / (solve_count + 1) END,
			solve_count = solve_count + 1,
			updated_at = ?2
		WHERE id = ?3`,
		completionSeconds, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("record solve: %w", err)
	}
	return requireRow(res)
}

// ListActive returns active challenges ordered by id.
func (s *ChallengeStore) ListActive(ctx context.Context) ([]*domain.Challenge, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE active = 1 ORDER BY id`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row scanner) (*domain.Challenge, error) {
	var (
		c          domain.Challenge
		category   string
		difficulty int
		hints      string
		active     int
	)
	err := row.Scan(&c.ID, &c.Title, &category, &difficulty, &c.Points, &c.FlagDigest, &hints,
		&c.SolveCount, &c.AttemptCount, &c.AvgCompletionTime, &active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Category = domain.Category(category)
	c.Difficulty = domain.Difficulty(difficulty)
	c.Active = active == 1
	if err := json.Unmarshal([]byte(hints), &c.Hints); err != nil {
		return nil, fmt.Errorf("unmarshal hints: %w", err)
	}
	return &c, nil
}

func requireRow(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
