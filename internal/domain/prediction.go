package domain

import (
	"time"

	"github.com/google/uuid"
)

// Prediction is an audit record of one recommendation model call. It is
// written once and never updated.
type Prediction struct {
	ID                  uuid.UUID
	PlayerID            string
	ChallengeID         string
	PredictedDifficulty Difficulty
	Confidence          float64
	Suitable            bool
	Source              string    // "model" or "heuristic"
	Features            []float64 // feature snapshot fed to the model
	CreatedAt           time.Time
}
