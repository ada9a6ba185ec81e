package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/storage"
)

// Recommendation is one ranked challenge with the prediction behind it
type Recommendation struct {
	Challenge  *domain.Challenge
	Prediction domain.Prediction
	Score      float64
}

// Service ranks unsolved challenges for a player
type Service struct {
	store  storage.Store
	model  *Model
	logger *slog.Logger
}

// NewService creates a recommendation service
func NewService(store storage.Store, model *Model) *Service {
	return &Service{store: store, model: model, logger: slog.Default()}
}

// SetLogger replaces the service logger
func (s *Service) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Recommend returns up to count active, unsolved challenges the model
// considers suitable, best first. The score prefers confident fits that
// the population finds hard; ties go to the smaller challenge id.
func (s *Service) Recommend(ctx context.Context, playerID string, count int) ([]Recommendation, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", domain.ErrInvalidInput)
	}

	features, err := PlayerFeatures(ctx, s.store, playerID)
	if err != nil {
		return nil, err
	}

	solvedIDs, err := s.store.Ledger().SolvedChallenges(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load solved challenges: %w", err)
	}
	solved := make(map[string]bool, len(solvedIDs))
	for _, id := range solvedIDs {
		solved[id] = true
	}

	challenges, err := s.store.Challenges().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}

	var recs []Recommendation
	for _, c := range challenges {
		if solved[c.ID] {
			continue
		}
		pred := s.model.Predict(ctx, playerID, features, c)
		if !pred.Suitable {
			continue
		}
		recs = append(recs, Recommendation{
			Challenge:  c,
			Prediction: pred,
			Score:      pred.Confidence * (1 - c.SuccessRate()),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Challenge.ID < recs[j].Challenge.ID
	})
	if len(recs) > count {
		recs = recs[:count]
	}

	s.logger.Debug("recommendations computed",
		"player_id", playerID,
		"active", len(challenges),
		"returned", len(recs),
	)
	return recs, nil
}
