package sqlite

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/google/uuid"
)

// HintStore implements hint unlock persistence backed by SQLite.
type HintStore struct {
	q querier
}

// UnlockedCount returns the highest unlocked level for the pair.
func (s *HintStore) UnlockedCount(ctx context.Context, playerID, challengeID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM hint_unlocks WHERE player_id = ? AND challenge_id = ?`,
		playerID, challengeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unlocked hints: %w", err)
	}
	return n, nil
}

// UnlockNext records the next hint level. Levels are contiguous from 1.
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
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO hint_unlocks (id, player_id, challenge_id, level, text, cost, unlocked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.PlayerID, u.ChallengeID, u.Level, u.Text, u.Cost, utc(u.UnlockedAt),
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
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, player_id, challenge_id, level, text, cost, unlocked_at
		FROM hint_unlocks WHERE player_id = ? AND challenge_id = ?
		ORDER BY level`, playerID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list hint unlocks: %w", err)
	}
	defer rows.Close()

	var out []*domain.HintUnlock
	for rows.Next() {
		var (
			u  domain.HintUnlock
			id string
		)
		if err := rows.Scan(&id, &u.PlayerID, &u.ChallengeID, &u.Level, &u.Text, &u.Cost, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan hint unlock: %w", err)
		}
		if u.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse hint unlock id: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}
