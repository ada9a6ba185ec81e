package domain

import (
	"fmt"
	"strings"
	"time"
)

// Rank is a label derived from cumulative points. Higher values rank higher.
type Rank int

const (
	RankNewbie Rank = iota
	RankApprentice
	RankHacker
	RankExpert
	RankElite
	RankLegend
)

// rankThresholds holds the minimum points for each rank, in rank order
var rankThresholds = []struct {
	rank Rank
	min  int
}{
	{RankNewbie, 0},
	{RankApprentice, 100},
	{RankHacker, 500},
	{RankExpert, 1500},
	{RankElite, 3000},
	{RankLegend, 5000},
}

// RankFor maps total points to a rank. It is a monotonic step function.
func RankFor(totalPoints int) Rank {
	rank := RankNewbie
	for _, t := range rankThresholds {
		if totalPoints >= t.min {
			rank = t.rank
		}
	}
	return rank
}

// String returns the rank label
func (r Rank) String() string {
	switch r {
	case RankNewbie:
		return "newbie"
	case RankApprentice:
		return "apprentice"
	case RankHacker:
		return "hacker"
	case RankExpert:
		return "expert"
	case RankElite:
		return "elite"
	case RankLegend:
		return "legend"
	default:
		return "unknown"
	}
}

// ParseRank resolves a rank label
func ParseRank(s string) (Rank, error) {
	for _, t := range rankThresholds {
		if t.rank.String() == strings.ToLower(s) {
			return t.rank, nil
		}
	}
	return RankNewbie, fmt.Errorf("%w: unknown rank %q", ErrInvalidInput, s)
}

// Skill bounds for per-category skill levels
const (
	MinSkill = 1.0
	MaxSkill = 5.0

	// skillStep is the skill gained per difficulty level of a solved challenge
	skillStep = 0.1
)

// PlayerRecord holds a player's aggregate progression
type PlayerRecord struct {
	ID                  string
	TotalPoints         int
	ChallengesCompleted int
	Rank                Rank
	CurrentStreak       int
	LongestStreak       int
	LastSolvedAt        *time.Time
	Skills              map[Category]float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewPlayerRecord creates the record for a newly registered player
func NewPlayerRecord(id string, now time.Time) *PlayerRecord {
	skills := make(map[Category]float64, len(Categories))
	for _, c := range Categories {
		skills[c] = MinSkill
	}
	return &PlayerRecord{
		ID:        id,
		Rank:      RankNewbie,
		Skills:    skills,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Skill returns the skill for a category, defaulting to MinSkill
func (p *PlayerRecord) Skill(c Category) float64 {
	if s, ok := p.Skills[c]; ok {
		return s
	}
	return MinSkill
}

// SolveDelta describes a first-time correct solve applied to a player
type SolveDelta struct {
	Points     int
	Category   Category
	Difficulty Difficulty
	SolvedAt   time.Time
}

// ApplySolve folds a solve into the record. Points never decrease the total,
// the rank is recomputed and the streak continues only if the previous solve
// happened within streakWindow.
func (p *PlayerRecord) ApplySolve(d SolveDelta, streakWindow time.Duration) {
	if d.Points > 0 {
		p.TotalPoints += d.Points
	}
	p.ChallengesCompleted++
	p.Rank = RankFor(p.TotalPoints)

	if p.LastSolvedAt != nil && d.SolvedAt.Sub(*p.LastSolvedAt) <= streakWindow {
		p.CurrentStreak++
	} else {
		p.CurrentStreak = 1
	}
	p.LongestStreak = max(p.LongestStreak, p.CurrentStreak)
	solvedAt := d.SolvedAt
	p.LastSolvedAt = &solvedAt

	if p.Skills == nil {
		p.Skills = make(map[Category]float64)
	}
	p.Skills[d.Category] = min(MaxSkill, p.Skill(d.Category)+skillStep*float64(d.Difficulty))
	p.UpdatedAt = d.SolvedAt
}
