package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Ledger implements the append-only submission history on PostgreSQL.
type Ledger struct {
	q querier
}

// Append writes a submission record. A second correct record for the
// pair violates idx_submissions_one_solve and maps to domain.ErrAlreadySolved.
func (l *Ledger) Append(ctx context.Context, r *domain.SubmissionRecord) error {
	_, err := l.q.Exec(ctx, `
		INSERT INTO submissions (id, player_id, challenge_id, answer, kind, is_correct,
			hints_used, solve_time_seconds, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.PlayerID, r.ChallengeID, r.Answer, string(r.Kind), r.IsCorrect,
		r.HintsUsed, r.SolveTimeSeconds, r.SubmittedAt,
	)
	if isUniqueViolation(err) && r.IsCorrect {
		return domain.ErrAlreadySolved
	}
	if err != nil {
		return fmt.Errorf("append submission: %w", err)
	}
	return nil
}

// CountRecentAttempts counts every submission on the pair since the given time.
func (l *Ledger) CountRecentAttempts(ctx context.Context, playerID, challengeID string, since time.Time) (int, error) {
	var n int
	err := l.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE player_id = $1 AND challenge_id = $2 AND submitted_at >= $3`,
		playerID, challengeID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent attempts: %w", err)
	}
	return n, nil
}

// HasCorrectSolve reports whether the player already solved the challenge.
func (l *Ledger) HasCorrectSolve(ctx context.Context, playerID, challengeID string) (bool, error) {
	var exists bool
	err := l.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM submissions
			WHERE player_id = $1 AND challenge_id = $2 AND is_correct)`,
		playerID, challengeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check solve: %w", err)
	}
	return exists, nil
}

// FirstAttemptTime returns the time of the earliest counted attempt, or nil.
func (l *Ledger) FirstAttemptTime(ctx context.Context, playerID, challengeID string) (*time.Time, error) {
	var first time.Time
	err := l.q.QueryRow(ctx, `
		SELECT submitted_at FROM submissions
		WHERE player_id = $1 AND challenge_id = $2 AND kind <> 'duplicate'
		ORDER BY submitted_at LIMIT 1`,
		playerID, challengeID).Scan(&first)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first attempt: %w", err)
	}
	return &first, nil
}

// CountAttempts counts non-duplicate attempts on the pair.
func (l *Ledger) CountAttempts(ctx context.Context, playerID, challengeID string) (int, error) {
	var n int
	err := l.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE player_id = $1 AND challenge_id = $2 AND kind <> 'duplicate'`,
		playerID, challengeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

// SolvedChallenges returns the ids of challenges the player solved.
func (l *Ledger) SolvedChallenges(ctx context.Context, playerID string) ([]string, error) {
	rows, err := l.q.Query(ctx, `
		SELECT challenge_id FROM submissions
		WHERE player_id = $1 AND is_correct ORDER BY challenge_id`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list solved: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan solved: %w", err)
	}
	return ids, nil
}

// History aggregates the player's ledger in one pass.
func (l *Ledger) History(ctx context.Context, playerID string) (domain.PlayerHistory, error) {
	var h domain.PlayerHistory
	err := l.q.QueryRow(ctx, `
		WITH mine AS (
			SELECT s.*, ch.difficulty,
				bool_or(s.is_correct) OVER (PARTITION BY s.challenge_id) AS pair_solved
			FROM submissions s JOIN challenges ch ON ch.id = s.challenge_id
			WHERE s.player_id = $1
		)
		SELECT
			COUNT(*) FILTER (WHERE kind <> 'duplicate'),
			COUNT(*) FILTER (WHERE is_correct),
			COALESCE(SUM(solve_time_seconds) FILTER (WHERE is_correct), 0)::bigint,
			COUNT(*) FILTER (WHERE kind <> 'duplicate' AND pair_solved),
			COALESCE(SUM(hints_used) FILTER (WHERE is_correct), 0)::bigint,
			COALESCE(AVG(difficulty) FILTER (WHERE is_correct), 0)::float8
		FROM mine`, playerID).
		Scan(&h.TotalAttempts, &h.SuccessfulAttempts, &h.TotalSolveSeconds,
			&h.AttemptsOnSolved, &h.HintsUsedOnSolved, &h.AvgSolvedDifficulty)
	if err != nil {
		return h, fmt.Errorf("aggregate history: %w", err)
	}
	return h, nil
}

// Stats reads attempt totals and every correct solve with its category.
func (l *Ledger) Stats(ctx context.Context, playerID string) (domain.PlayerStats, error) {
	var attempts int
	err := l.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE player_id = $1 AND kind <> 'duplicate'`, playerID).Scan(&attempts)
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("count attempts: %w", err)
	}

	rows, err := l.q.Query(ctx, `
		SELECT s.challenge_id, ch.category, COALESCE(s.solve_time_seconds, 0)
		FROM submissions s JOIN challenges ch ON ch.id = s.challenge_id
		WHERE s.player_id = $1 AND s.is_correct
		ORDER BY s.submitted_at, s.challenge_id`, playerID)
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("list solves: %w", err)
	}
	solves, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SolveEntry, error) {
		var (
			e        domain.SolveEntry
			category string
		)
		err := row.Scan(&e.ChallengeID, &category, &e.Seconds)
		e.Category = domain.Category(category)
		return e, err
	})
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("scan solves: %w", err)
	}
	return domain.NewPlayerStats(attempts, solves), nil
}
