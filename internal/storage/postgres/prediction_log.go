package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// PredictionLog appends model predictions to the predictions table over a
// database/sql connection separate from the store's pool.
type PredictionLog struct {
	db *sql.DB
}

// OpenPredictionLog connects to dsn with the lib/pq driver.
func OpenPredictionLog(ctx context.Context, dsn string) (*PredictionLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open prediction log: %w", err)
	}
	db.SetMaxOpenConns(4)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping prediction log: %w", err)
	}
	return &PredictionLog{db: db}, nil
}

// Close releases the connection.
func (l *PredictionLog) Close() error {
	return l.db.Close()
}

// Record appends one prediction.
func (l *PredictionLog) Record(ctx context.Context, p *domain.Prediction) error {
	var features pqtype.NullRawMessage
	if len(p.Features) > 0 {
		raw, err := json.Marshal(p.Features)
		if err != nil {
			return fmt.Errorf("marshal features: %w", err)
		}
		features = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO predictions (id, player_id, challenge_id, predicted_difficulty,
			confidence, suitable, source, features, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID.String(), p.PlayerID, p.ChallengeID, int(p.PredictedDifficulty),
		p.Confidence, p.Suitable, p.Source, features, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// Features returns the feature snapshot of one logged prediction.
func (l *PredictionLog) Features(ctx context.Context, id uuid.UUID) ([]float64, error) {
	var raw pqtype.NullRawMessage
	err := l.db.QueryRowContext(ctx, `SELECT features FROM predictions WHERE id = $1`, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	if !raw.Valid {
		return nil, nil
	}
	var features []float64
	if err := json.Unmarshal(raw.RawMessage, &features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	return features, nil
}
