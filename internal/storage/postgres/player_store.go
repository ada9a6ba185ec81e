package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/jackc/pgx/v5"
)

const playerColumns = `id, total_points, challenges_completed, rank, current_streak,
	longest_streak, last_solved_at, skills, created_at, updated_at`

// PlayerStore implements player record persistence on PostgreSQL.
type PlayerStore struct {
	q querier
}

// Create registers a new player record.
func (s *PlayerStore) Create(ctx context.Context, p *domain.PlayerRecord) error {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.TotalPoints, p.ChallengesCompleted, int(p.Rank), p.CurrentStreak,
		p.LongestStreak, p.LastSolvedAt, skills, p.CreatedAt, p.UpdatedAt,
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
	return s.get(ctx, s.q, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
}

// ApplySolve locks the row, folds the solve in and writes it back. Inside
// an outer transaction it runs as a savepoint.
func (s *PlayerStore) ApplySolve(ctx context.Context, id string, d domain.SolveDelta, streakWindow time.Duration) (*domain.PlayerRecord, error) {
	var p *domain.PlayerRecord
	err := pgx.BeginFunc(ctx, s.q, func(tx pgx.Tx) error {
		var err error
		p, err = s.get(ctx, tx, `SELECT `+playerColumns+` FROM players WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		p.ApplySolve(d, streakWindow)

		skills, err := json.Marshal(p.Skills)
		if err != nil {
			return fmt.Errorf("marshal skills: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE players SET
				total_points = $1, challenges_completed = $2, rank = $3, current_streak = $4,
				longest_streak = $5, last_solved_at = $6, skills = $7, updated_at = $8
			WHERE id = $9`,
			p.TotalPoints, p.ChallengesCompleted, int(p.Rank), p.CurrentStreak,
			p.LongestStreak, p.LastSolvedAt, skills, p.UpdatedAt, id,
		)
		if err != nil {
			return fmt.Errorf("update player: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all player ids.
func (s *PlayerStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan player ids: %w", err)
	}
	return ids, nil
}

func (s *PlayerStore) get(ctx context.Context, q querier, query, id string) (*domain.PlayerRecord, error) {
	var (
		p      domain.PlayerRecord
		rank   int
		skills []byte
	)
	err := q.QueryRow(ctx, query, id).Scan(&p.ID, &p.TotalPoints, &p.ChallengesCompleted, &rank,
		&p.CurrentStreak, &p.LongestStreak, &p.LastSolvedAt, &skills, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	p.Rank = domain.Rank(rank)
	if err := json.Unmarshal(skills, &p.Skills); err != nil {
		return nil, fmt.Errorf("unmarshal skills: %w", err)
	}
	return &p, nil
}
