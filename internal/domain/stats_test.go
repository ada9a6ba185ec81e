package domain

import "testing"

func TestNewPlayerStats(t *testing.T) {
	solves := []SolveEntry{
		{ChallengeID: "web-1", Category: CategoryWeb, Seconds: 120},
		{ChallengeID: "crypto-1", Category: CategoryCrypto, Seconds: 30},
		{ChallengeID: "web-2", Category: CategoryWeb, Seconds: 600},
		{ChallengeID: "crypto-2", Category: CategoryCrypto, Seconds: 30},
	}
	s := NewPlayerStats(10, solves)

	if s.Correct != 4 || s.Incorrect() != 6 {
		t.Errorf("Correct/Incorrect = %d/%d; want 4/6", s.Correct, s.Incorrect())
	}
	if s.SuccessRate() != 0.4 {
		t.Errorf("SuccessRate() = %f; want 0.4", s.SuccessRate())
	}
	if s.Fastest == nil || s.Fastest.ChallengeID != "crypto-1" {
		t.Errorf("Fastest = %+v; want crypto-1", s.Fastest)
	}
	if s.Slowest == nil || s.Slowest.ChallengeID != "web-2" {
		t.Errorf("Slowest = %+v; want web-2", s.Slowest)
	}

	want := []CategoryStats{
		{Category: CategoryWeb, Solved: 2, AvgSolveSeconds: 360},
		{Category: CategoryCrypto, Solved: 2, AvgSolveSeconds: 30},
	}
	if len(s.Categories) != len(want) {
		t.Fatalf("Categories = %+v; want %+v", s.Categories, want)
	}
	for i := range want {
		if s.Categories[i] != want[i] {
			t.Errorf("Categories[%d] = %+v; want %+v", i, s.Categories[i], want[i])
		}
	}
}

func TestNewPlayerStats_Empty(t *testing.T) {
	s := NewPlayerStats(0, nil)

	if s.Fastest != nil || s.Slowest != nil {
		t.Errorf("Fastest/Slowest = %v/%v; want nil", s.Fastest, s.Slowest)
	}
	if len(s.Categories) != 0 {
		t.Errorf("Categories = %v; want none", s.Categories)
	}
	if s.SuccessRate() != 0 {
		t.Errorf("SuccessRate() = %f; want 0", s.SuccessRate())
	}
}
