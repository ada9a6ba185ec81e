package recommend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/storage/sqlite"
)

type fixture struct {
	db    *sqlite.DB
	store *sqlite.Store
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "flagpost.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return &fixture{db: db, store: sqlite.NewStore(db), now: fixedNow()}
}

func (f *fixture) addChallenge(t *testing.T, id string, difficulty domain.Difficulty, active bool) *domain.Challenge {
	t.Helper()
	c := &domain.Challenge{
		ID:         id,
		Title:      id,
		Category:   domain.CategoryWeb,
		Difficulty: difficulty,
		Points:     100 * int(difficulty),
		FlagDigest: domain.DigestFlag("flag{" + id + "}"),
		Active:     active,
	}
	if err := f.store.Challenges().Save(context.Background(), c); err != nil {
		t.Fatalf("Save(%s) error = %v", id, err)
	}
	return c
}

// bump adds population attempts and solves to a challenge's aggregates
func (f *fixture) bump(t *testing.T, id string, attempts, solves int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < attempts; i++ {
		if err := f.store.Challenges().IncrementAttempt(ctx, id); err != nil {
			t.Fatalf("IncrementAttempt(%s) error = %v", id, err)
		}
	}
	for i := 0; i < solves; i++ {
		if err := f.store.Challenges().RecordSolve(ctx, id, 60); err != nil {
			t.Fatalf("RecordSolve(%s) error = %v", id, err)
		}
	}
}

func (f *fixture) register(t *testing.T, id string) {
	t.Helper()
	if err := f.store.Players().Create(context.Background(), domain.NewPlayerRecord(id, f.now)); err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
}

// solve writes the ledger and aggregate effects of a first-time solve
func (f *fixture) solve(t *testing.T, player string, c *domain.Challenge, seconds int64) {
	t.Helper()
	ctx := context.Background()
	f.now = f.now.Add(time.Minute)

	rec := domain.NewSubmissionRecord(player, c.ID, "flag{"+c.ID+"}", domain.SubmissionCorrect, 0, f.now)
	rec.SolveTimeSeconds = &seconds
	if err := f.store.Ledger().Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	f.bump(t, c.ID, 1, 0)
	if err := f.store.Challenges().RecordSolve(ctx, c.ID, float64(seconds)); err != nil {
		t.Fatalf("RecordSolve() error = %v", err)
	}
	delta := domain.SolveDelta{Points: c.Points, Category: c.Category, Difficulty: c.Difficulty, SolvedAt: f.now}
	if _, err := f.store.Players().ApplySolve(ctx, player, delta, 24*time.Hour); err != nil {
		t.Fatalf("ApplySolve() error = %v", err)
	}
}

func (f *fixture) miss(t *testing.T, player string, c *domain.Challenge) {
	t.Helper()
	f.now = f.now.Add(time.Minute)
	rec := domain.NewSubmissionRecord(player, c.ID, "nope", domain.SubmissionIncorrect, 0, f.now)
	if err := f.store.Ledger().Append(context.Background(), rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	f.bump(t, c.ID, 1, 0)
}
