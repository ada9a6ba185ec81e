// Package leaderboard projects committed solves into Redis: a sorted set
// of total points per player and a capped feed of recent solves. The
// projection is rebuilt from events and never read by the scoring path.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix   = "flagpost"
	defaultFeedSize = 100
	topCacheTTL     = 15 * time.Second
)

// Entry is one leaderboard row
type Entry struct {
	Position int    `json:"position"` // 1-based
	PlayerID string `json:"player_id"`
	Points   int    `json:"points"`
}

// FeedItem is one recent solve
type FeedItem struct {
	PlayerID    string    `json:"player_id"`
	ChallengeID string    `json:"challenge_id"`
	Points      int       `json:"points"`
	SolvedAt    time.Time `json:"solved_at"`
}

// Board is the Redis leaderboard
type Board struct {
	rdb      redis.Cmdable
	prefix   string
	feedSize int64
	logger   *slog.Logger
}

// Connect opens a client and verifies it with PING
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 20,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// New creates a board over rdb. Keys are namespaced under prefix.
func New(rdb redis.Cmdable, prefix string) *Board {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Board{rdb: rdb, prefix: prefix, feedSize: defaultFeedSize, logger: slog.Default()}
}

// SetLogger replaces the board logger
func (b *Board) SetLogger(l *slog.Logger) {
	if l != nil {
		b.logger = l
	}
}

func (b *Board) scoresKey() string { return b.prefix + ":leaderboard" }
func (b *Board) feedKey() string { return b.prefix + ":solves" }

// topCacheKey holds cached Top snapshots as one hash keyed by page size, so
// a single DEL drops every page.
func (b *Board) topCacheKey() string { return b.prefix + ":leaderboard:top" }

// Record raises the player's total and appends the solve to the feed. The
// total is absolute and only ever moves up, so replayed or reordered events
// never lower a score.
func (b *Board) Record(ctx context.Context, item FeedItem, totalPoints int) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode feed item: %w", err)
	}

	pipe := b.rdb.TxPipeline()
	pipe.ZAddArgs(ctx, b.scoresKey(), redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: float64(totalPoints), Member: item.PlayerID}},
	})
	pipe.LPush(ctx, b.feedKey(), raw)
	pipe.LTrim(ctx, b.feedKey(), 0, b.feedSize-1)
	pipe.Del(ctx, b.topCacheKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record solve: %w", err)
	}
	return nil
}

// Sync rebuilds the sorted set from the player records. Projection
// updates lost while Redis was unreachable are restored this way; like
// Record it only raises scores.
func (b *Board) Sync(ctx context.Context, players storage.PlayerStore) (int, error) {
	ids, err := players.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list players: %w", err)
	}

	members := make([]redis.Z, 0, len(ids))
	for _, id := range ids {
		p, err := players.Get(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("load player %s: %w", id, err)
		}
		if p.TotalPoints > 0 {
			members = append(members, redis.Z{Score: float64(p.TotalPoints), Member: p.ID})
		}
	}

	pipe := b.rdb.TxPipeline()
	if len(members) > 0 {
		pipe.ZAddArgs(ctx, b.scoresKey(), redis.ZAddArgs{GT: true, Members: members})
	}
	pipe.Del(ctx, b.topCacheKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("sync leaderboard: %w", err)
	}
	return len(members), nil
}

// Top returns the n best players. Snapshots are cached briefly.
func (b *Board) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive", domain.ErrInvalidInput)
	}

	page := strconv.Itoa(n)
	if raw, err := b.rdb.HGet(ctx, b.topCacheKey(), page).Bytes(); err == nil {
		var cached []Entry
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}

	zs, err := b.rdb.ZRevRangeWithScores(ctx, b.scoresKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	entries := make([]Entry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{Position: i + 1, PlayerID: member, Points: int(z.Score)})
	}

	if raw, err := json.Marshal(entries); err == nil {
		pipe := b.rdb.TxPipeline()
		pipe.HSet(ctx, b.topCacheKey(), page, raw)
		pipe.Expire(ctx, b.topCacheKey(), topCacheTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			b.logger.Warn("leaderboard cache write failed", "error", err)
		}
	}
	return entries, nil
}

// Position returns a player's 1-based position and points
func (b *Board) Position(ctx context.Context, playerID string) (Entry, error) {
	rank, err := b.rdb.ZRevRank(ctx, b.scoresKey(), playerID).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read rank: %w", err)
	}
	score, err := b.rdb.ZScore(ctx, b.scoresKey(), playerID).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("read score: %w", err)
	}
	return Entry{Position: int(rank) + 1, PlayerID: playerID, Points: int(score)}, nil
}

// Feed returns up to n recent solves, newest first
func (b *Board) Feed(ctx context.Context, n int) ([]FeedItem, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive", domain.ErrInvalidInput)
	}
	raws, err := b.rdb.LRange(ctx, b.feedKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	items := make([]FeedItem, 0, len(raws))
	for _, raw := range raws {
		var item FeedItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			b.logger.Warn("skipping malformed feed item", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Handler returns an event handler that records SolveRecordedEvent
func (b *Board) Handler() domain.EventHandler {
	return func(ctx context.Context, event domain.Event) error {
		e, ok := event.(domain.SolveRecordedEvent)
		if !ok {
			return nil
		}
		item := FeedItem{
			PlayerID:    e.PlayerID,
			ChallengeID: e.ChallengeID,
			Points:      e.PointsAwarded,
			SolvedAt:    e.OccurredAt(),
		}
		return b.Record(ctx, item, e.TotalPoints)
	}
}
