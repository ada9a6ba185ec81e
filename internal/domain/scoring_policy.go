package domain

import (
	"fmt"
	"time"
)

// ScoringPolicy holds the tunable constants of the scoring engine
type ScoringPolicy struct {
	PenaltyPerHint   int           // points deducted per hint in use at solve time
	FloorDivisor     int           // award never drops below points / FloorDivisor
	FloorEnabled     bool          // false gives a flat deduction clamped at zero
	Cooldown         time.Duration // minimum gap between attempts on one challenge
	StreakWindow     time.Duration // max gap between solves that keeps a streak alive
	GeneratedHintCap int           // max hint level when a challenge has no authored hints

	// AuthoredHintCosts charges each unlocked hint its authored cost instead
	// of PenaltyPerHint. Hints without an authored cost fall back to the penalty.
	AuthoredHintCosts bool
}

// DefaultScoringPolicy returns the standard policy
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		PenaltyPerHint:   10,
		FloorDivisor:     4,
		FloorEnabled:     true,
		Cooldown:         5 * time.Second,
		StreakWindow:     24 * time.Hour,
		GeneratedHintCap: 3,
	}
}

// AwardPoints computes the reward for a first-time solve:
// max(points - hintsUsed*penalty, points/divisor) with the floor enabled.
func (p ScoringPolicy) AwardPoints(points, hintsUsed int) int {
	return p.Award(points, max(hintsUsed, 0)*p.PenaltyPerHint)
}

// Award applies a total hint deduction to points. With the floor enabled a
// positive base never yields less than one point, so challenges worth fewer
// points than the divisor still pay out.
func (p ScoringPolicy) Award(points, deduction int) int {
	if points <= 0 {
		return 0
	}
	award := points - max(deduction, 0)

	floor := 0
	if p.FloorEnabled && p.FloorDivisor > 0 {
		floor = max(points/p.FloorDivisor, 1)
	}
	return min(points, max(award, floor))
}

// HintCost is the deduction one unlocked hint will cost at solve time
func (p ScoringPolicy) HintCost(authored int) int {
	if p.AuthoredHintCosts && authored > 0 {
		return authored
	}
	return p.PenaltyPerHint
}

// HintDeduction totals the solve-time deduction for the unlocked hints
func (p ScoringPolicy) HintDeduction(unlocked []*HintUnlock) int {
	if !p.AuthoredHintCosts {
		return len(unlocked) * p.PenaltyPerHint
	}
	total := 0
	for _, u := range unlocked {
		total += p.HintCost(u.Cost)
	}
	return total
}

// Validate rejects policies the engine cannot apply
func (p ScoringPolicy) Validate() error {
	switch {
	case p.PenaltyPerHint < 0:
		return fmt.Errorf("%w: penalty per hint must not be negative", ErrInvalidInput)
	case p.FloorEnabled && p.FloorDivisor <= 0:
		return fmt.Errorf("%w: floor divisor must be positive", ErrInvalidInput)
	case p.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidInput)
	case p.StreakWindow <= 0:
		return fmt.Errorf("%w: streak window must be positive", ErrInvalidInput)
	case p.GeneratedHintCap < 0:
		return fmt.Errorf("%w: generated hint cap must not be negative", ErrInvalidInput)
	}
	return nil
}
