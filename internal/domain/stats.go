package domain

// SolveEntry is one correct solve as read from the ledger
type SolveEntry struct {
	ChallengeID string
	Category    Category
	Seconds     int64
}

// CategoryStats summarizes a player's solves in one category
type CategoryStats struct {
	Category        Category
	Solved          int
	AvgSolveSeconds float64
}

// PlayerStats is the statistics view of one player's ledger
type PlayerStats struct {
	Attempts   int         // incorrect + correct, duplicates excluded
	Correct    int         // solved challenges
	Fastest    *SolveEntry // nil without solves
	Slowest    *SolveEntry
	Categories []CategoryStats // solved categories, in Categories order
}

// Incorrect returns the number of failed attempts
func (s PlayerStats) Incorrect() int {
	return max(s.Attempts-s.Correct, 0)
}

// SuccessRate returns correct/attempts, 0 without attempts
func (s PlayerStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

// NewPlayerStats folds the solves into per-category totals and picks the
// fastest and slowest solve. Ties keep the earlier entry.
func NewPlayerStats(attempts int, solves []SolveEntry) PlayerStats {
	stats := PlayerStats{Attempts: attempts, Correct: len(solves)}

	type acc struct {
		solved int
		total  int64
	}
	byCategory := make(map[Category]*acc)
	for i := range solves {
		e := solves[i]
		if stats.Fastest == nil || e.Seconds < stats.Fastest.Seconds {
			stats.Fastest = &e
		}
		if stats.Slowest == nil || e.Seconds > stats.Slowest.Seconds {
			stats.Slowest = &e
		}
		a := byCategory[e.Category]
		if a == nil {
			a = &acc{}
			byCategory[e.Category] = a
		}
		a.solved++
		a.total += e.Seconds
	}

	for _, c := range Categories {
		a := byCategory[c]
		if a == nil {
			continue
		}
		stats.Categories = append(stats.Categories, CategoryStats{
			Category:        c,
			Solved:          a.solved,
			AvgSolveSeconds: float64(a.total) / float64(a.solved),
		})
	}
	return stats
}
