package postgres

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HintStore implements hint unlock persistence on PostgreSQL.
type HintStore struct {
	q querier
}

// UnlockedCount returns how many levels the pair has unlocked.
func (s *HintStore) UnlockedCount(ctx context.Context, playerID, challengeID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM hint_unlocks WHERE player_id = $1 AND challenge_id = $2`,
		playerID, challengeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unlocked hints: %w", err)
	}
	return n, nil
}

// UnlockNext records the next hint level. Two processes racing for the
// same level collide on the unique key and the loser sees ErrHintOutOfOrder.
func (s *HintStore) UnlockNext(ctx context.Context, u *domain.HintUnlock, maxLevel int) error {
	if u.Level > maxLevel {
		return domain.ErrHintLimitReached
	}
	count, err := s.UnlockedCount(ctx, u.PlayerID, u.ChallengeID)
	if err != nil {
		return err
	}
	if u.Level != count+1 {
		return fmt.Errorf("%w: level %d after %d unlocked", domain.ErrHintOutOfOrder, u.Level, count)
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO hint_unlocks (id, player_id, challenge_id, level, text, cost, unlocked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.PlayerID, u.ChallengeID, u.Level, u.Text, u.Cost, u.UnlockedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: level %d already unlocked", domain.ErrHintOutOfOrder, u.Level)
	}
	if err != nil {
		return fmt.Errorf("insert hint unlock: %w", err)
	}
	return nil
}

// Unlocked returns the unlocked hints for the pair ordered by level.
func (s *HintStore) Unlocked(ctx context.Context, playerID, challengeID string) ([]*domain.HintUnlock, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, player_id, challenge_id, level, text, cost, unlocked_at
		FROM hint_unlocks WHERE player_id = $1 AND challenge_id = $2
		ORDER BY level`, playerID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list hint unlocks: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.HintUnlock, error) {
		var u domain.HintUnlock
		err := row.Scan(&u.ID, &u.PlayerID, &u.ChallengeID, &u.Level, &u.Text, &u.Cost, &u.UnlockedAt)
		return &u, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan hint unlock: %w", err)
	}
	return out, nil
}
