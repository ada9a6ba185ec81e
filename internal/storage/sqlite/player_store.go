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

const playerColumns = `id, total_points, challenges_completed, rank, current_streak,
	longest_streak, last_solved_at, skills, created_at, updated_at`

// PlayerStore implements player record persistence backed by SQLite.
type PlayerStore struct {
	q querier
}

// Create registers a new player record.
func (s *PlayerStore) Create(ctx context.Context, p *domain.PlayerRecord) error {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TotalPoints, p.ChallengesCompleted, int(p.Rank), p.CurrentStreak,
		p.LongestStreak, nullTime(p.LastSolvedAt), string(skills), utc(p.CreatedAt), utc(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("player %s: %w", p.ID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// Get retrieves a player record by ID.
func (s *PlayerStore) Get(ctx context.Context, id string) (*domain.PlayerRecord, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return p, nil
}

// ApplySolve folds a solve into the record. Callers run it inside InTx so
// the read and the write see the same row.
func (s *PlayerStore) ApplySolve(ctx context.Context, id string, d domain.SolveDelta, streakWindow time.Duration) (*domain.PlayerRecord, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ApplySolve(d, streakWindow)

	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return nil, fmt.Errorf("marshal skills: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		UPDATE players SET
			total_points = ?, challenges_completed = ?, rank = ?, current_streak = ?,
			longest_streak = ?, last_solved_at = ?, skills = ?, updated_at = ?
		WHERE id = ?`,
		p.TotalPoints, p.ChallengesCompleted, int(p.Rank), p.CurrentStreak,
		p.LongestStreak, nullTime(p.LastSolvedAt), string(skills), utc(p.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update player: %w", err)
	}
	return p, nil
}

// List returns all player ids.
func (s *PlayerStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPlayer(row scanner) (*domain.PlayerRecord, error) {
	var (
		p          domain.PlayerRecord
		rank       int
		lastSolved sql.NullTime
		skills     string
	)
	err := row.Scan(&p.ID, &p.TotalPoints, &p.ChallengesCompleted, &rank, &p.CurrentStreak,
		&p.LongestStreak, &lastSolved, &skills, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Rank = domain.Rank(rank)
	if lastSolved.Valid {
		t := lastSolved.Time
		p.LastSolvedAt = &t
	}
	if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
		return nil, fmt.Errorf("unmarshal skills: %w", err)
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
