package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/redis/go-redis/v9"
)

func newTestBoard(t *testing.T) (*Board, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, "test"), mr
}

func solve(player, challenge string, awarded, total int, at time.Time) domain.SolveRecordedEvent {
	p := domain.NewPlayerRecord(player, at)
	p.TotalPoints = total
	return domain.NewSolveRecordedEvent(p, challenge, awarded, at)
}

func TestBoard_TopAndPosition(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx := context.Background()
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	handle := b.Handler()

	events := []domain.SolveRecordedEvent{
		solve("alice", "c1", 100, 100, at),
		solve("bob", "c1", 90, 90, at.Add(time.Minute)),
		solve("carol", "c2", 300, 300, at.Add(2*time.Minute)),
		solve("alice", "c3", 250, 350, at.Add(3*time.Minute)),
	}
	for _, e := range events {
		if err := handle(ctx, e); err != nil {
			t.Fatalf("handle() error = %v", err)
		}
	}

	top, err := b.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	want := []Entry{
		{Position: 1, PlayerID: "alice", Points: 350},
		{Position: 2, PlayerID: "carol", Points: 300},
	}
	if len(top) != len(want) {
		t.Fatalf("len(Top()) = %d; want %d", len(top), len(want))
	}
	for i := range want {
		if top[i] != want[i] {
			t.Errorf("Top()[%d] = %+v; want %+v", i, top[i], want[i])
		}
	}

	pos, err := b.Position(ctx, "bob")
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if pos.Position != 3 || pos.Points != 90 {
		t.Errorf("Position(bob) = %+v; want position 3 with 90 points", pos)
	}

	if _, err := b.Position(ctx, "nobody"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("Position(nobody) error = %v; want ErrPlayerNotFound", err)
	}
}

func TestBoard_ReplayIsIdempotent(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx := context.Background()
	e := solve("alice", "c1", 100, 100, time.Now())

	for i := 0; i < 3; i++ {
		if err := b.Handler()(ctx, e); err != nil {
			t.Fatalf("handle() error = %v", err)
		}
	}

	pos, err := b.Position(ctx, "alice")
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if pos.Points != 100 {
		t.Errorf("Points = %d; want 100", pos.Points)
	}
}

func TestBoard_OutOfOrderEventsKeepHighestTotal(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx := context.Background()
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	handle := b.Handler()

	// The later solve is delivered before the earlier one
	if err := handle(ctx, solve("alice", "c2", 100, 200, at.Add(time.Minute))); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if err := handle(ctx, solve("alice", "c1", 100, 100, at)); err != nil {
		t.Fatalf("handle() error = %v", err)
	}

	pos, err := b.Position(ctx, "alice")
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if pos.Points != 200 {
		t.Errorf("Points = %d; want 200", pos.Points)
	}
}

func TestBoard_TopCacheInvalidatedOnRecord(t *testing.T) {
	b, mr := newTestBoard(t)
	ctx := context.Background()
	at := time.Now()

	if err := b.Record(ctx, FeedItem{PlayerID: "alice", ChallengeID: "c1", Points: 50, SolvedAt: at}, 50); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := b.Top(ctx, 5); err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if _, err := b.Top(ctx, 1); err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	pages, err := mr.HKeys(b.topCacheKey())
	if err != nil || len(pages) != 2 {
		t.Fatalf("cached pages = %v, %v; want 2", pages, err)
	}

	if err := b.Record(ctx, FeedItem{PlayerID: "bob", ChallengeID: "c1", Points: 80, SolvedAt: at}, 80); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if mr.Exists(b.topCacheKey()) {
		t.Error("Record() should drop cached snapshots")
	}

	top, err := b.Top(ctx, 5)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(top) != 2 || top[0].PlayerID != "bob" {
		t.Errorf("Top() = %+v; want bob first of 2", top)
	}
}

func TestBoard_FeedNewestFirstAndCapped(t *testing.T) {
	b, _ := newTestBoard(t)
	b.feedSize = 3
	ctx := context.Background()
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, c := range []string{"c1", "c2", "c3", "c4"} {
		item := FeedItem{PlayerID: "alice", ChallengeID: c, Points: 10, SolvedAt: at.Add(time.Duration(i) * time.Minute)}
		if err := b.Record(ctx, item, 10*(i+1)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	feed, err := b.Feed(ctx, 10)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("len(Feed()) = %d; want 3", len(feed))
	}
	if feed[0].ChallengeID != "c4" || feed[2].ChallengeID != "c2" {
		t.Errorf("Feed() order = %s..%s; want c4..c2", feed[0].ChallengeID, feed[2].ChallengeID)
	}
	if !feed[0].SolvedAt.Equal(at.Add(3 * time.Minute)) {
		t.Errorf("SolvedAt = %v; want %v", feed[0].SolvedAt, at.Add(3*time.Minute))
	}
}

func TestBoard_HandlerIgnoresOtherEvents(t *testing.T) {
	b, mr := newTestBoard(t)
	e := domain.NewModelTrainedEvent("v1", 40, time.Now())

	if err := b.Handler()(context.Background(), e); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys = %v; want none", keys)
	}
}

func TestBoard_InvalidCount(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx := context.Background()

	if _, err := b.Top(ctx, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Top(0) error = %v; want ErrInvalidInput", err)
	}
	if _, err := b.Feed(ctx, -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Feed(-1) error = %v; want ErrInvalidInput", err)
	}
}

// stubPlayers serves fixed records
type stubPlayers struct {
	records map[string]*domain.PlayerRecord
}

func (s *stubPlayers) Create(context.Context, *domain.PlayerRecord) error { return nil }

func (s *stubPlayers) Get(_ context.Context, id string) (*domain.PlayerRecord, error) {
	p, ok := s.records[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return p, nil
}

func (s *stubPlayers) ApplySolve(context.Context, string, domain.SolveDelta, time.Duration) (*domain.PlayerRecord, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPlayers) List(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestBoard_Sync(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx := context.Background()
	now := time.Now()

	players := &stubPlayers{records: map[string]*domain.PlayerRecord{}}
	for id, points := range map[string]int{"alice": 300, "bob": 0, "carol": 120} {
		p := domain.NewPlayerRecord(id, now)
		p.TotalPoints = points
		players.records[id] = p
	}

	n, err := b.Sync(ctx, players)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Sync() = %d; want 2 players with points", n)
	}

	top, err := b.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(top) != 2 || top[0].PlayerID != "alice" || top[1].PlayerID != "carol" {
		t.Errorf("Top() = %+v; want alice, carol", top)
	}

	// A stale record never lowers a projected total
	players.records["alice"].TotalPoints = 50
	if _, err := b.Sync(ctx, players); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	pos, err := b.Position(ctx, "alice")
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if pos.Points != 300 {
		t.Errorf("Position(alice).Points = %d; want 300", pos.Points)
	}
}
