package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionKind records how the ledger classified an attempt
type SubmissionKind string

const (
	SubmissionCorrect   SubmissionKind = "correct"
	SubmissionIncorrect SubmissionKind = "incorrect"
	SubmissionDuplicate SubmissionKind = "duplicate" // attempt after the challenge was solved, audit only
)

// SubmissionRecord is one immutable ledger entry for a flag attempt
type SubmissionRecord struct {
	ID               uuid.UUID
	PlayerID         string
	ChallengeID      string
	Answer           string // trimmed audit copy, correctness uses the digest
	Kind             SubmissionKind
	IsCorrect        bool
	HintsUsed        int
	SolveTimeSeconds *int64 // set only on the first correct solve
	SubmittedAt      time.Time
}

// NewSubmissionRecord creates a ledger entry
func NewSubmissionRecord(playerID, challengeID, answer string, kind SubmissionKind, hintsUsed int, at time.Time) *SubmissionRecord {
	return &SubmissionRecord{
		ID:          uuid.New(),
		PlayerID:    playerID,
		ChallengeID: challengeID,
		Answer:      AuditCopy(answer),
		Kind:        kind,
		IsCorrect:   kind == SubmissionCorrect,
		HintsUsed:   hintsUsed,
		SubmittedAt: at,
	}
}

// OutcomeStatus summarizes a submission result
type OutcomeStatus string

const (
	OutcomeSolved        OutcomeStatus = "solved"
	OutcomeIncorrect     OutcomeStatus = "incorrect"
	OutcomeAlreadySolved OutcomeStatus = "already_solved"
)

// SubmissionOutcome is returned for every accepted submission
type SubmissionOutcome struct {
	Status           OutcomeStatus
	Correct          bool
	PointsAwarded    int
	TotalPoints      int
	Rank             Rank
	Attempts         int
	HintsUsed        int
	SolveTimeSeconds *int64
	CurrentStreak    int
}

// HintUnlock records one unlocked hint level for a (player, challenge) pair
type HintUnlock struct {
	ID          uuid.UUID
	PlayerID    string
	ChallengeID string
	Level       int // 1-based, strictly increasing per pair
	Text        string
	Cost        int
	UnlockedAt  time.Time
}

// HintPayload is what a player receives when a hint is unlocked
type HintPayload struct {
	Text      string
	Level     int
	Remaining int
	Cost      int
}

// PlayerHistory holds ledger aggregates for one player
type PlayerHistory struct {
	TotalAttempts       int     // incorrect + correct, duplicates excluded
	SuccessfulAttempts  int     // correct solves
	TotalSolveSeconds   int64   // sum of solve times over solved challenges
	AttemptsOnSolved    int     // attempts made on challenges that ended solved
	HintsUsedOnSolved   int     // hints in use at solve time, summed
	AvgSolvedDifficulty float64 // mean difficulty of solved challenges, 0 when none
}

// Solved reports the number of solved challenges in the history
func (h PlayerHistory) Solved() int {
	return h.SuccessfulAttempts
}
