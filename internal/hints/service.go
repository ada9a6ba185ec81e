// Package hints unlocks progressive hints for a player on a challenge.
// Levels unlock strictly in order and every unlocked text is stored, so
// asking again for an unlocked level returns the same text.
package hints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/keylock"
	"github.com/felixgeelhaar/flagpost/internal/storage"
	"github.com/google/uuid"
)

// Service is the hint unlock tracker
type Service struct {
	store    storage.Store
	policy   domain.ScoringPolicy
	provider TextProvider
	locks    *keylock.Map
	events   *domain.EventDispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a hint service. A nil provider uses the templates.
func NewService(store storage.Store, policy domain.ScoringPolicy, provider TextProvider) *Service {
	if provider == nil {
		provider = NewTemplateProvider()
	}
	return &Service{
		store:    store,
		policy:   policy,
		provider: provider,
		locks:    keylock.New(),
		events:   domain.NewEventDispatcher(),
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// SetLogger replaces the service logger
func (s *Service) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetLocks shares a lock map with the scoring engine so an unlock and a
// submission on the same pair never interleave.
func (s *Service) SetLocks(m *keylock.Map) {
	s.locks = m
}

// Events returns the dispatcher that receives HintUnlockedEvent
func (s *Service) Events() *domain.EventDispatcher {
	return s.events
}

// UnlockNext unlocks the next hint level for the player on the challenge.
// It never changes points; the penalty applies at solve time.
func (s *Service) UnlockNext(ctx context.Context, playerID, challengeID string) (*domain.HintPayload, error) {
	c, err := s.store.Challenges().Get(ctx, challengeID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !c.Active) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeUnavailable, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	if _, err := s.store.Players().Get(ctx, playerID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.PairKey(playerID, challengeID))
	defer unlock()

	solved, err := s.store.Ledger().HasCorrectSolve(ctx, playerID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("check solve: %w", err)
	}
	if solved {
		return nil, domain.ErrAlreadySolved
	}

	count, err := s.store.Hints().UnlockedCount(ctx, playerID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("count hints: %w", err)
	}
	maxLevel := c.MaxHintLevel(s.policy.GeneratedHintCap)
	if count >= maxLevel {
		return nil, domain.ErrHintLimitReached
	}

	level := count + 1
	text, cost, err := s.hintFor(ctx, c, level)
	if err != nil {
		return nil, err
	}

	u := &domain.HintUnlock{
		ID:          uuid.New(),
		PlayerID:    playerID,
		ChallengeID: challengeID,
		Level:       level,
		Text:        text,
		Cost:        cost,
		UnlockedAt:  s.now(),
	}
	if err := s.store.Hints().UnlockNext(ctx, u, maxLevel); err != nil {
		return nil, err
	}

	s.logger.Info("hint unlocked", "player", playerID, "challenge", challengeID, "level", level)
	if err := s.events.Publish(ctx, domain.NewHintUnlockedEvent(u)); err != nil {
		s.logger.Warn("hint event handler failed", "player", playerID, "challenge", challengeID, "error", err)
	}

	return &domain.HintPayload{
		Text:      text,
		Level:     level,
		Remaining: maxLevel - level,
		Cost:      cost,
	}, nil
}

// Unlocked returns the hints the player already unlocked, with the text
// stored at unlock time.
func (s *Service) Unlocked(ctx context.Context, playerID, challengeID string) ([]*domain.HintUnlock, error) {
	return s.store.Hints().Unlocked(ctx, playerID, challengeID)
}

// hintFor returns the authored hint for level, or asks the provider when
// the challenge has none. The cost is the deduction the hint adds at solve
// time under the policy.
func (s *Service) hintFor(ctx context.Context, c *domain.Challenge, level int) (string, int, error) {
	if level <= len(c.Hints) {
		h := c.Hints[level-1]
		return h.Text, s.policy.HintCost(h.Cost), nil
	}

	text, err := s.provider.TextFor(ctx, c, level)
	if err != nil {
		return "", 0, fmt.Errorf("generate hint: %w", err)
	}
	return text, s.policy.PenaltyPerHint, nil
}
