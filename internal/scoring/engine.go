// Package scoring validates flag submissions and applies their effects to
// the submission ledger, the challenge aggregates and the player record.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/keylock"
	"github.com/felixgeelhaar/flagpost/internal/storage"
)

// Engine is the scoring engine
type Engine struct {
	store  storage.Store
	policy domain.ScoringPolicy
	locks  *keylock.Map
	events *domain.EventDispatcher
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a scoring engine over store using policy
func NewEngine(store storage.Store, policy domain.ScoringPolicy) *Engine {
	return &Engine{
		store:  store,
		policy: policy,
		locks:  keylock.New(),
		events: domain.NewEventDispatcher(),
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SetLogger replaces the engine logger
func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetClock replaces the time source
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetLocks shares a lock map with other services touching the same pairs
func (e *Engine) SetLocks(m *keylock.Map) {
	e.locks = m
}

// Events returns the dispatcher that receives SolveRecordedEvent after
// each committed first-time solve.
func (e *Engine) Events() *domain.EventDispatcher {
	return e.events
}

// Policy returns the scoring policy in effect
func (e *Engine) Policy() domain.ScoringPolicy {
	return e.policy
}

// SubmitRequest is one flag submission
type SubmitRequest struct {
	PlayerID    string
	ChallengeID string
	Answer      string

	// ClientElapsed is the client-reported time spent on the challenge. It
	// is used as the solve time only when the correct answer is also the
	// player's first attempt.
	ClientElapsed *time.Duration
}

// Submit validates an answer and applies its effects atomically.
//
// Guards run in order: challenge availability, player existence, rate
// limit, already solved, input validation. A rate-limited attempt is not
// recorded. A repeat submission after a solve is recorded for audit and
// returns an outcome with status already_solved and a nil error.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*domain.SubmissionOutcome, error) {
	challenge, err := e.availableChallenge(ctx, req.ChallengeID)
	if err != nil {
		return nil, err
	}
	player, err := e.store.Players().Get(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(keylock.PairKey(req.PlayerID, req.ChallengeID))
	defer unlock()

	now := e.now()
	ledger := e.store.Ledger()

	if err := e.checkCooldown(ctx, req, now); err != nil {
		return nil, err
	}

	solved, err := ledger.HasCorrectSolve(ctx, req.PlayerID, req.ChallengeID)
	if err != nil {
		return nil, transient("check solve", err)
	}
	if solved {
		return e.alreadySolved(ctx, req, player, now)
	}

	answer, err := domain.NormalizeAnswer(req.Answer)
	if err != nil {
		return nil, err
	}

	correct, err := e.store.Challenges().CompareAnswerDigest(ctx, req.ChallengeID, answer)
	if err != nil {
		return nil, fmt.Errorf("compare answer: %w", err)
	}

	hintsUsed, err := e.store.Hints().UnlockedCount(ctx, req.PlayerID, req.ChallengeID)
	if err != nil {
		return nil, transient("count hints", err)
	}

	if !correct {
		return e.recordIncorrect(ctx, req, player, hintsUsed, now)
	}

	first, err := ledger.FirstAttemptTime(ctx, req.PlayerID, req.ChallengeID)
	if err != nil {
		return nil, transient("first attempt", err)
	}

	deduction, err := e.hintDeduction(ctx, req, hintsUsed)
	if err != nil {
		return nil, err
	}

	outcome, err := e.recordSolve(ctx, req, challenge, hintsUsed, deduction, solveSeconds(first, req.ClientElapsed, now), now)
	if errors.Is(err, domain.ErrAlreadySolved) {
		// Another process committed the solve first.
		return e.alreadySolved(ctx, req, player, now)
	}
	return outcome, err
}

func (e *Engine) checkCooldown(ctx context.Context, req SubmitRequest, now time.Time) error {
	if e.policy.Cooldown <= 0 {
		return nil
	}
	recent, err := e.store.Ledger().CountRecentAttempts(ctx, req.PlayerID, req.ChallengeID, now.Add(-e.policy.Cooldown))
	if err != nil {
		return transient("count recent attempts", err)
	}
	if recent > 0 {
		e.logger.Debug("submission rate limited", "player", req.PlayerID, "challenge", req.ChallengeID)
		return domain.ErrRateLimited
	}
	return nil
}

func (e *Engine) recordIncorrect(ctx context.Context, req SubmitRequest, player *domain.PlayerRecord, hintsUsed int, now time.Time) (*domain.SubmissionOutcome, error) {
	record := domain.NewSubmissionRecord(req.PlayerID, req.ChallengeID, req.Answer, domain.SubmissionIncorrect, hintsUsed, now)

	var attempts int
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.Ledger().Append(ctx, record); err != nil {
			return err
		}
		if err := tx.Challenges().IncrementAttempt(ctx, req.ChallengeID); err != nil {
			return err
		}
		var err error
		attempts, err = tx.Ledger().CountAttempts(ctx, req.PlayerID, req.ChallengeID)
		return err
	})
	if err != nil {
		return nil, transient("record attempt", err)
	}

	e.logger.Debug("incorrect submission", "player", req.PlayerID, "challenge", req.ChallengeID, "attempts", attempts)
	return &domain.SubmissionOutcome{
		Status:        domain.OutcomeIncorrect,
		TotalPoints:   player.TotalPoints,
		Rank:          player.Rank,
		Attempts:      attempts,
		HintsUsed:     hintsUsed,
		CurrentStreak: player.CurrentStreak,
	}, nil
}

func (e *Engine) recordSolve(ctx context.Context, req SubmitRequest, c *domain.Challenge, hintsUsed, deduction int, seconds int64, now time.Time) (*domain.SubmissionOutcome, error) {
	record := domain.NewSubmissionRecord(req.PlayerID, req.ChallengeID, req.Answer, domain.SubmissionCorrect, hintsUsed, now)
	record.SolveTimeSeconds = &seconds
	awarded := e.policy.Award(c.Points, deduction)

	var (
		updated  *domain.PlayerRecord
		attempts int
	)
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.Ledger().Append(ctx, record); err != nil {
			return err
		}
		if err := tx.Challenges().IncrementAttempt(ctx, req.ChallengeID); err != nil {
			return err
		}
		if err := tx.Challenges().RecordSolve(ctx, req.ChallengeID, float64(seconds)); err != nil {
			return err
		}
		var err error
		updated, err = tx.Players().ApplySolve(ctx, req.PlayerID, domain.SolveDelta{
			Points:     awarded,
			Category:   c.Category,
			Difficulty: c.Difficulty,
			SolvedAt:   now,
		}, e.policy.StreakWindow)
		if err != nil {
			return err
		}
		attempts, err = tx.Ledger().CountAttempts(ctx, req.PlayerID, req.ChallengeID)
		return err
	})
	if errors.Is(err, domain.ErrAlreadySolved) {
		return nil, err
	}
	if err != nil {
		e.logger.Error("solve rolled back", "player", req.PlayerID, "challenge", req.ChallengeID, "error", err)
		return nil, transient("apply solve", err)
	}

	e.logger.Info("challenge solved",
		"player", req.PlayerID,
		"challenge", req.ChallengeID,
		"points", awarded,
		"hints", hintsUsed,
		"solve_seconds", seconds,
		"rank", updated.Rank.String(),
	)

	if err := e.events.Publish(ctx, domain.NewSolveRecordedEvent(updated, req.ChallengeID, awarded, now)); err != nil {
		e.logger.Warn("solve event handler failed", "player", req.PlayerID, "challenge", req.ChallengeID, "error", err)
	}

	return &domain.SubmissionOutcome{
		Status:           domain.OutcomeSolved,
		Correct:          true,
		PointsAwarded:    awarded,
		TotalPoints:      updated.TotalPoints,
		Rank:             updated.Rank,
		Attempts:         attempts,
		HintsUsed:        hintsUsed,
		SolveTimeSeconds: &seconds,
		CurrentStreak:    updated.CurrentStreak,
	}, nil
}

// hintDeduction is the solve-time penalty for the hints unlocked on the pair.
// Authored costs are read from the unlock records, which hold the cost the
// player was shown.
func (e *Engine) hintDeduction(ctx context.Context, req SubmitRequest, hintsUsed int) (int, error) {
	if !e.policy.AuthoredHintCosts {
		return max(hintsUsed, 0) * e.policy.PenaltyPerHint, nil
	}
	unlocked, err := e.store.Hints().Unlocked(ctx, req.PlayerID, req.ChallengeID)
	if err != nil {
		return 0, transient("list hints", err)
	}
	return e.policy.HintDeduction(unlocked), nil
}

// alreadySolved appends an audit-only record and reports the existing state.
// No aggregate changes.
func (e *Engine) alreadySolved(ctx context.Context, req SubmitRequest, player *domain.PlayerRecord, now time.Time) (*domain.SubmissionOutcome, error) {
	hintsUsed, err := e.store.Hints().UnlockedCount(ctx, req.PlayerID, req.ChallengeID)
	if err != nil {
		return nil, transient("count hints", err)
	}

	record := domain.NewSubmissionRecord(req.PlayerID, req.ChallengeID, req.Answer, domain.SubmissionDuplicate, hintsUsed, now)
	if err := e.store.Ledger().Append(ctx, record); err != nil {
		return nil, transient("append duplicate", err)
	}

	attempts, err := e.store.Ledger().CountAttempts(ctx, req.PlayerID, req.ChallengeID)
	if err != nil {
		return nil, transient("count attempts", err)
	}

	// Re-read so a concurrent solve from another process is reflected.
	if fresh, err := e.store.Players().Get(ctx, req.PlayerID); err == nil {
		player = fresh
	}

	e.logger.Debug("repeat submission after solve", "player", req.PlayerID, "challenge", req.ChallengeID)
	return &domain.SubmissionOutcome{
		Status:        domain.OutcomeAlreadySolved,
		TotalPoints:   player.TotalPoints,
		Rank:          player.Rank,
		Attempts:      attempts,
		HintsUsed:     hintsUsed,
		CurrentStreak: player.CurrentStreak,
	}, nil
}

// RegisterPlayer creates the record for a new player. It is the only way a
// player record comes into existence.
func (e *Engine) RegisterPlayer(ctx context.Context, playerID string) (*domain.PlayerRecord, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", domain.ErrInvalidInput)
	}
	p := domain.NewPlayerRecord(playerID, e.now())
	if err := e.store.Players().Create(ctx, p); err != nil {
		return nil, err
	}
	e.logger.Info("player registered", "player", playerID)
	return p, nil
}

// Progress summarizes a player's state on one challenge
type Progress struct {
	Player    *domain.PlayerRecord
	Solved    bool
	Attempts  int
	HintsUsed int
	MaxHints  int
}

// Progress returns the player's record together with their attempts and
// hints on a challenge.
func (e *Engine) Progress(ctx context.Context, playerID, challengeID string) (*Progress, error) {
	challenge, err := e.availableChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	player, err := e.store.Players().Get(ctx, playerID)
	if err != nil {
		return nil, err
	}

	solved, err := e.store.Ledger().HasCorrectSolve(ctx, playerID, challengeID)
	if err != nil {
		return nil, transient("check solve", err)
	}
	attempts, err := e.store.Ledger().CountAttempts(ctx, playerID, challengeID)
	if err != nil {
		return nil, transient("count attempts", err)
	}
	hints, err := e.store.Hints().UnlockedCount(ctx, playerID, challengeID)
	if err != nil {
		return nil, transient("count hints", err)
	}

	return &Progress{
		Player:    player,
		Solved:    solved,
		Attempts:  attempts,
		HintsUsed: hints,
		MaxHints:  challenge.MaxHintLevel(e.policy.GeneratedHintCap),
	}, nil
}

func (e *Engine) availableChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	c, err := e.store.Challenges().Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeUnavailable, id)
	}
	if err != nil {
		return nil, transient("get challenge", err)
	}
	if !c.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeUnavailable, id)
	}
	return c, nil
}

// solveSeconds measures a solve from the first recorded attempt. When the
// solving submission is itself the first attempt, the client-reported
// elapsed time is used, or zero without one.
func solveSeconds(first *time.Time, clientElapsed *time.Duration, now time.Time) int64 {
	if first != nil {
		return max(0, int64(now.Sub(*first)/time.Second))
	}
	if clientElapsed != nil && *clientElapsed > 0 {
		return int64(*clientElapsed / time.Second)
	}
	return 0
}

func transient(op string, err error) error {
	if errors.Is(err, domain.ErrTransient) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransient, err)
}
