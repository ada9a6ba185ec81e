package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultScoringPolicy(t *testing.T) {
	p := DefaultScoringPolicy()

	if p.PenaltyPerHint != 10 {
		t.Errorf("PenaltyPerHint = %d; want 10", p.PenaltyPerHint)
	}
	if p.FloorDivisor != 4 {
		t.Errorf("FloorDivisor = %d; want 4", p.FloorDivisor)
	}
	if !p.FloorEnabled {
		t.Error("FloorEnabled should default to true")
	}
	if p.Cooldown != 5*time.Second {
		t.Errorf("Cooldown = %v; want 5s", p.Cooldown)
	}
	if p.GeneratedHintCap != 3 {
		t.Errorf("GeneratedHintCap = %d; want 3", p.GeneratedHintCap)
	}
}

func TestScoringPolicy_AwardPoints(t *testing.T) {
	p := DefaultScoringPolicy()

	tests := []struct {
		name      string
		points    int
		hintsUsed int
		want      int
	}{
		{"no hints", 100, 0, 100},
		{"two hints", 100, 2, 80},
		{"floor applies", 20, 3, 5},
		{"floor on large penalty", 100, 20, 25},
		{"zero points", 0, 2, 0},
		{"negative hints treated as zero", 50, -1, 50},
		{"points below divisor keep one point", 3, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.AwardPoints(tt.points, tt.hintsUsed); got != tt.want {
				t.Errorf("AwardPoints(%d, %d) = %d; want %d", tt.points, tt.hintsUsed, got, tt.want)
			}
		})
	}
}

func TestScoringPolicy_AwardPoints_Bounds(t *testing.T) {
	p := DefaultScoringPolicy()

	for points := 0; points <= 500; points += 7 {
		for hints := 0; hints <= 60; hints++ {
			got := p.AwardPoints(points, hints)
			if got < points/4 {
				t.Fatalf("AwardPoints(%d, %d) = %d; below floor %d", points, hints, got, points/4)
			}
			if got > points {
				t.Fatalf("AwardPoints(%d, %d) = %d; above base %d", points, hints, got, points)
			}
		}
	}
}

func TestScoringPolicy_AwardPoints_FlatDeduction(t *testing.T) {
	p := DefaultScoringPolicy()
	p.FloorEnabled = false

	if got := p.AwardPoints(20, 3); got != 0 {
		t.Errorf("AwardPoints(20, 3) = %d; want 0", got)
	}
	if got := p.AwardPoints(100, 2); got != 80 {
		t.Errorf("AwardPoints(100, 2) = %d; want 80", got)
	}
}

func TestScoringPolicy_Validate(t *testing.T) {
	if err := DefaultScoringPolicy().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *ScoringPolicy)
	}{
		{"negative penalty", func(p *ScoringPolicy) { p.PenaltyPerHint = -1 }},
		{"zero divisor with floor", func(p *ScoringPolicy) { p.FloorDivisor = 0 }},
		{"negative cooldown", func(p *ScoringPolicy) { p.Cooldown = -time.Second }},
		{"zero streak window", func(p *ScoringPolicy) { p.StreakWindow = 0 }},
		{"negative hint cap", func(p *ScoringPolicy) { p.GeneratedHintCap = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultScoringPolicy()
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error = %v; want ErrInvalidInput", err)
			}
		})
	}

	flat := DefaultScoringPolicy()
	flat.FloorEnabled = false
	flat.FloorDivisor = 0
	if err := flat.Validate(); err != nil {
		t.Errorf("Validate(flat) error = %v; want nil", err)
	}
}

func TestScoringPolicy_Award_MinimumOnePoint(t *testing.T) {
	p := DefaultScoringPolicy()
	for points := 1; points < p.FloorDivisor; points++ {
		if got := p.AwardPoints(points, 5); got != 1 {
			t.Errorf("AwardPoints(%d, 5) = %d; want 1", points, got)
		}
	}

	p.FloorEnabled = false
	if got := p.AwardPoints(3, 1); got != 0 {
		t.Errorf("AwardPoints(3, 1) without floor = %d; want 0", got)
	}
}

func TestScoringPolicy_HintCost(t *testing.T) {
	p := DefaultScoringPolicy()
	if got := p.HintCost(15); got != 10 {
		t.Errorf("HintCost(15) = %d; want penalty 10", got)
	}

	p.AuthoredHintCosts = true
	tests := []struct {
		authored int
		want     int
	}{
		{15, 15},
		{0, 10},
		{-3, 10},
	}
	for _, tt := range tests {
		if got := p.HintCost(tt.authored); got != tt.want {
			t.Errorf("HintCost(%d) = %d; want %d", tt.authored, got, tt.want)
		}
	}
}

func TestScoringPolicy_HintDeduction(t *testing.T) {
	unlocked := []*HintUnlock{{Level: 1, Cost: 15}, {Level: 2, Cost: 0}}

	p := DefaultScoringPolicy()
	if got := p.HintDeduction(unlocked); got != 20 {
		t.Errorf("HintDeduction() = %d; want 20", got)
	}

	p.AuthoredHintCosts = true
	if got := p.HintDeduction(unlocked); got != 25 {
		t.Errorf("HintDeduction() with authored costs = %d; want 25", got)
	}
	if got := p.HintDeduction(nil); got != 0 {
		t.Errorf("HintDeduction(nil) = %d; want 0", got)
	}
}
