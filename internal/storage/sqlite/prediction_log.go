package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/google/uuid"
)

// PredictionLog records recommendation predictions in SQLite.
type PredictionLog struct {
	db *DB
}

// NewPredictionLog creates a prediction log over db.
func NewPredictionLog(db *DB) *PredictionLog {
	return &PredictionLog{db: db}
}

// Record appends one prediction.
func (l *PredictionLog) Record(ctx context.Context, p *domain.Prediction) error {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO predictions (id, player_id, challenge_id, predicted_difficulty,
			confidence, suitable, source, features, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.PlayerID, p.ChallengeID, int(p.PredictedDifficulty),
		p.Confidence, boolToInt(p.Suitable), p.Source, string(features), utc(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// CountForPlayer returns how many predictions were logged for a player.
func (l *PredictionLog) CountForPlayer(ctx context.Context, playerID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions WHERE player_id = ?`, playerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}
