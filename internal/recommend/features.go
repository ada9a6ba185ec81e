// Package recommend predicts which challenges suit a player and ranks them.
//
// A softmax classifier maps a player's feature vector to a difficulty
// class. Without a trained model, or when the model misbehaves, a fixed
// heuristic takes over, so prediction never fails.
package recommend

import (
	"github.com/felixgeelhaar/flagpost/internal/domain"
)

// FeatureNames lists the features in vector order. Artifacts record this
// list and are rejected when it differs.
var FeatureNames = buildFeatureNames()

const numBaseFeatures = 5

func buildFeatureNames() []string {
	names := []string{
		"challenges_completed",
		"mean_solve_hours",
		"mean_attempts_per_solve",
		"hint_usage_rate",
		"success_rate",
	}
	for _, c := range domain.Categories {
		names = append(names, "skill_"+string(c))
	}
	return names
}

// FeatureVector is a player's features in FeatureNames order
type FeatureVector []float64

// BeginnerVector is the fixed vector for a player with no history
func BeginnerVector() FeatureVector {
	v := make(FeatureVector, len(FeatureNames))
	for i := numBaseFeatures; i < len(v); i++ {
		v[i] = domain.MinSkill
	}
	return v
}

// ExtractFeatures derives a feature vector from a player record and the
// ledger aggregates. Ratios use a denominator floor of 1.
func ExtractFeatures(p *domain.PlayerRecord, h domain.PlayerHistory) FeatureVector {
	if p == nil || (h.TotalAttempts == 0 && p.ChallengesCompleted == 0) {
		return BeginnerVector()
	}

	solved := float64(max(1, h.Solved()))
	v := make(FeatureVector, 0, len(FeatureNames))
	v = append(v,
		float64(p.ChallengesCompleted),
		float64(h.TotalSolveSeconds)/solved/3600,
		float64(h.AttemptsOnSolved)/solved,
		float64(h.HintsUsedOnSolved)/solved,
		float64(h.SuccessfulAttempts)/float64(max(1, h.TotalAttempts)),
	)
	for _, c := range domain.Categories {
		v = append(v, p.Skill(c))
	}
	return v
}

// CompletedChallenges returns the challenges_completed feature
func (v FeatureVector) CompletedChallenges() int {
	if len(v) == 0 {
		return 0
	}
	return int(v[0])
}
