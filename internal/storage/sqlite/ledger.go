package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
)

// Ledger implements the append-only submission history backed by SQLite.
type Ledger struct {
	q querier
}

// Append writes a submission record. The partial unique index on correct
// submissions turns a second correct solve into domain.ErrAlreadySolved.
func (l *Ledger) Append(ctx context.Context, r *domain.SubmissionRecord) error {
	var solveTime sql.NullInt64
	if r.SolveTimeSeconds != nil {
		solveTime = sql.NullInt64{Int64: *r.SolveTimeSeconds, Valid: true}
	}
	_, err := l.q.ExecContext(ctx, `
		INSERT INTO submissions (id, player_id, challenge_id, answer, kind, is_correct,
			hints_used, solve_time_seconds, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.PlayerID, r.ChallengeID, r.Answer, string(r.Kind), boolToInt(r.IsCorrect),
		r.HintsUsed, solveTime, utc(r.SubmittedAt),
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
	err := l.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE player_id = ? AND challenge_id = ? AND submitted_at >= ?`,
		playerID, challengeID, utc(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent attempts: %w", err)
	}
	return n, nil
}

// HasCorrectSolve reports whether the player already solved the challenge.
func (l *Ledger) HasCorrectSolve(ctx context.Context, playerID, challengeID string) (bool, error) {
	var exists int
	err := l.q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM submissions
			WHERE player_id = ? AND challenge_id = ? AND is_correct = 1)`,
		playerID, challengeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check solve: %w", err)
	}
	return exists == 1, nil
}

// FirstAttemptTime returns the time of the earliest counted attempt, or nil.
func (l *Ledger) FirstAttemptTime(ctx context.Context, playerID, challengeID string) (*time.Time, error) {
	var first time.Time
	err := l.q.QueryRowContext(ctx, `
		SELECT submitted_at FROM submissions
		WHERE player_id = ? AND challenge_id = ? AND kind != 'duplicate'
		ORDER BY submitted_at ASC LIMIT 1`,
		playerID, challengeID).Scan(&first)
	if errors.Is(err, sql.ErrNoRows) {
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
	err := l.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE player_id = ? AND challenge_id = ? AND kind != 'duplicate'`,
		playerID, challengeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

// SolvedChallenges returns the ids of challenges the player solved.
func (l *Ledger) SolvedChallenges(ctx context.Context, playerID string) ([]string, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT challenge_id FROM submissions
		WHERE player_id = ? AND is_correct = 1 ORDER BY challenge_id`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list solved: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan solved: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// History aggregates the player's ledger for feature extraction.
func (l *Ledger) History(ctx context.Context, playerID string) (domain.PlayerHistory, error) {
	var h domain.PlayerHistory
	err := l.q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind != 'duplicate' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_correct), 0),
			COALESCE(SUM(CASE WHEN is_correct = 1 THEN COALESCE(solve_time_seconds, 0) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_correct = 1 THEN hints_used ELSE 0 END), 0)
		FROM submissions WHERE player_id = ?`, playerID).
		Scan(&h.TotalAttempts, &h.SuccessfulAttempts, &h.TotalSolveSeconds, &h.HintsUsedOnSolved)
	if err != nil {
		return h, fmt.Errorf("aggregate history: %w", err)
	}

	err = l.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions s
		WHERE s.player_id = ? AND s.kind != 'duplicate' AND EXISTS (
			SELECT 1 FROM submissions c
			WHERE c.player_id = s.player_id AND c.challenge_id = s.challenge_id AND c.is_correct = 1)`,
		playerID).Scan(&h.AttemptsOnSolved)
	if err != nil {
		return h, fmt.Errorf("attempts on solved: %w", err)
	}

	err = l.q.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(ch.difficulty), 0) FROM submissions s
		JOIN challenges ch ON ch.id = s.challenge_id
		WHERE s.player_id = ? AND s.is_correct = 1`, playerID).Scan(&h.AvgSolvedDifficulty)
	if err != nil {
		return h, fmt.Errorf("avg solved difficulty: %w", err)
	}
	return h, nil
}

// Stats reads attempt totals and every correct solve with its category.
func (l *Ledger) Stats(ctx context.Context, playerID string) (domain.PlayerStats, error) {
	var attempts int
	err := l.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE player_id = ? AND kind != 'duplicate'`, playerID).Scan(&attempts)
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("count attempts: %w", err)
	}

	rows, err := l.q.QueryContext(ctx, `
		SELECT s.challenge_id, ch.category, COALESCE(s.solve_time_seconds, 0)
		FROM submissions s JOIN challenges ch ON ch.id = s.challenge_id
		WHERE s.player_id = ? AND s.is_correct = 1
		ORDER BY s.submitted_at, s.challenge_id`, playerID)
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("list solves: %w", err)
	}
	defer rows.Close()

	var solves []domain.SolveEntry
	for rows.Next() {
		var (
			e        domain.SolveEntry
			category string
		)
		if err := rows.Scan(&e.ChallengeID, &category, &e.Seconds); err != nil {
			return domain.PlayerStats{}, fmt.Errorf("scan solve: %w", err)
		}
		e.Category = domain.Category(category)
		solves = append(solves, e)
	}
	if err := rows.Err(); err != nil {
		return domain.PlayerStats{}, fmt.Errorf("list solves: %w", err)
	}
	return domain.NewPlayerStats(attempts, solves), nil
}
