package recommend

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/storage"
)

// PlayerFeatures loads a player's record and ledger aggregates and
// extracts the feature vector.
func PlayerFeatures(ctx context.Context, store storage.Store, playerID string) (FeatureVector, error) {
	p, err := store.Players().Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	h, err := store.Ledger().History(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return ExtractFeatures(p, h), nil
}

// BuildDataset produces one sample per player with at least one solve,
// labelled with the rounded mean difficulty of the challenges they solved.
func BuildDataset(ctx context.Context, store storage.Store) ([]Sample, error) {
	ids, err := store.Players().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	var samples []Sample
	for _, id := range ids {
		p, err := store.Players().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load player %s: %w", id, err)
		}
		h, err := store.Ledger().History(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load history %s: %w", id, err)
		}
		if h.Solved() == 0 {
			continue
		}
		samples = append(samples, Sample{
			Features: ExtractFeatures(p, h),
			Label:    domain.ClampDifficulty(int(math.Round(h.AvgSolvedDifficulty))),
		})
	}
	return samples, nil
}

// SyntheticSamples generates n plausible samples for bootstrapping a model
// before real history exists. The label follows the mean category skill.
func SyntheticSamples(n int, rng *rand.Rand) []Sample {
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		completed := rng.Intn(51)
		attempts := 1 + rng.Float64()*4
		v := FeatureVector{
			float64(completed),
			0.1 + rng.Float64()*9.9,
			attempts,
			rng.Float64() * 2,
			0.3 + rng.Float64()*0.7,
		}
		var skillSum float64
		for range domain.Categories {
			skill := domain.MinSkill + rng.Float64()*(domain.MaxSkill-domain.MinSkill)
			skillSum += skill
			v = append(v, skill)
		}
		samples = append(samples, Sample{
			Features: v,
			Label:    labelForSkill(skillSum / float64(len(domain.Categories))),
		})
	}
	return samples
}

func labelForSkill(avg float64) domain.Difficulty {
	switch {
	case avg < 2:
		return domain.DifficultyEasy
	case avg < 2.5:
		return domain.DifficultyMedium
	case avg < 3.5:
		return domain.DifficultyHard
	case avg < 4.5:
		return domain.DifficultyExpert
	default:
		return domain.DifficultyInsane
	}
}
