//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/scoring"
	"github.com/felixgeelhaar/flagpost/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its DSN
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "flagpost",
				"POSTGRES_PASSWORD": "flagpost",
				"POSTGRES_DB":       "flagpost",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get port: %v", err)
	}
	return fmt.Sprintf("postgres://flagpost:flagpost@%s:%s/flagpost?sslmode=disable", host, port.Port())
}

func openStore(t *testing.T) (*pgxpool.Pool, *postgres.Store, string) {
	t.Helper()
	ctx := context.Background()
	dsn := setupPostgres(t)

	pool, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	return pool, postgres.NewStore(pool), dsn
}

func seed(t *testing.T, store *postgres.Store) {
	t.Helper()
	ctx := context.Background()
	err := store.Challenges().Save(ctx, &domain.Challenge{
		ID:         "crypto-200",
		Title:      "XOR Party",
		Category:   domain.CategoryCrypto,
		Difficulty: domain.DifficultyHard,
		Points:     200,
		FlagDigest: domain.DigestFlag("flag{xor}"),
		Active:     true,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestIntegration_Version(t *testing.T) {
	pool, _, _ := openStore(t)
	v, err := postgres.Version(context.Background(), pool)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v != 2 {
		t.Errorf("Version() = %d; want 2", v)
	}
}

func TestIntegration_SubmitConcurrentSolves(t *testing.T) {
	_, store, _ := openStore(t)
	seed(t, store)

	policy := domain.DefaultScoringPolicy()
	policy.Cooldown = 0
	engine := scoring.NewEngine(store, policy)
	if _, err := engine.RegisterPlayer(context.Background(), "alice"); err != nil {
		t.Fatalf("RegisterPlayer() error = %v", err)
	}

	// separate engines share nothing in process, like separate replicas
	const n = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		solved int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replica := scoring.NewEngine(store, policy)
			out, err := replica.Submit(context.Background(), scoring.SubmitRequest{
				PlayerID: "alice", ChallengeID: "crypto-200", Answer: "flag{xor}",
			})
			if err != nil {
				t.Errorf("Submit() error = %v", err)
				return
			}
			if out.Status == domain.OutcomeSolved {
				mu.Lock()
				solved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if solved != 1 {
		t.Errorf("solved outcomes = %d; want 1", solved)
	}
	p, err := store.Players().Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.TotalPoints != 200 {
		t.Errorf("TotalPoints = %d; want 200", p.TotalPoints)
	}
	c, err := store.Challenges().Get(context.Background(), "crypto-200")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c.SolveCount != 1 {
		t.Errorf("SolveCount = %d; want 1", c.SolveCount)
	}
}

func TestIntegration_LedgerHistory(t *testing.T) {
	_, store, _ := openStore(t)
	seed(t, store)
	ctx := context.Background()

	if err := store.Players().Create(ctx, domain.NewPlayerRecord("bob", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Players().Create(ctx, domain.NewPlayerRecord("bob", time.Now())); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second Create() error = %v; want ErrConflict", err)
	}

	start := time.Now().UTC().Truncate(time.Second)
	miss := domain.NewSubmissionRecord("bob", "crypto-200", "nope", domain.SubmissionIncorrect, 0, start)
	if err := store.Ledger().Append(ctx, miss); err != nil {
		t.Fatalf("Append(miss) error = %v", err)
	}
	secs := int64(90)
	hit := domain.NewSubmissionRecord("bob", "crypto-200", "flag{xor}", domain.SubmissionCorrect, 1, start.Add(90*time.Second))
	hit.SolveTimeSeconds = &secs
	if err := store.Ledger().Append(ctx, hit); err != nil {
		t.Fatalf("Append(hit) error = %v", err)
	}
	again := domain.NewSubmissionRecord("bob", "crypto-200", "flag{xor}", domain.SubmissionCorrect, 1, start.Add(time.Hour))
	if err := store.Ledger().Append(ctx, again); !errors.Is(err, domain.ErrAlreadySolved) {
		t.Errorf("second correct Append() error = %v; want ErrAlreadySolved", err)
	}

	first, err := store.Ledger().FirstAttemptTime(ctx, "bob", "crypto-200")
	if err != nil || first == nil || !first.Equal(start) {
		t.Errorf("FirstAttemptTime() = %v, %v; want %v", first, err, start)
	}

	h, err := store.Ledger().History(ctx, "bob")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := domain.PlayerHistory{
		TotalAttempts:       2,
		SuccessfulAttempts:  1,
		TotalSolveSeconds:   90,
		AttemptsOnSolved:    2,
		HintsUsedOnSolved:   1,
		AvgSolvedDifficulty: 3,
	}
	if h != want {
		t.Errorf("History() = %+v; want %+v", h, want)
	}

	stats, err := store.Ledger().Stats(ctx, "bob")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Attempts != 2 || stats.Correct != 1 {
		t.Errorf("Stats() attempts = %d/%d; want 2/1", stats.Attempts, stats.Correct)
	}
	if len(stats.Categories) != 1 || stats.Categories[0].Category != domain.CategoryCrypto {
		t.Errorf("Stats().Categories = %+v; want crypto only", stats.Categories)
	}
}

func TestIntegration_LedgerStoresMultibyteAnswer(t *testing.T) {
	_, store, _ := openStore(t)
	seed(t, store)
	ctx := context.Background()

	if err := store.Players().Create(ctx, domain.NewPlayerRecord("carol", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	answer := strings.Repeat("a", 199) + "é" + strings.Repeat("b", 50)
	r := domain.NewSubmissionRecord("carol", "crypto-200", answer, domain.SubmissionIncorrect, 0, time.Now())
	if err := store.Ledger().Append(ctx, r); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
}

func TestIntegration_HintsAndPredictionLog(t *testing.T) {
	_, store, dsn := openStore(t)
	seed(t, store)
	ctx := context.Background()

	if err := store.Players().Create(ctx, domain.NewPlayerRecord("carol", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	unlock := func(level int) error {
		return store.Hints().UnlockNext(ctx, &domain.HintUnlock{
			PlayerID: "carol", ChallengeID: "crypto-200", Level: level, Text: "t", UnlockedAt: time.Now(),
		}, 2)
	}
	if err := unlock(2); !errors.Is(err, domain.ErrHintOutOfOrder) {
		t.Errorf("UnlockNext(2) error = %v; want ErrHintOutOfOrder", err)
	}
	if err := unlock(1); err != nil {
		t.Fatalf("UnlockNext(1) error = %v", err)
	}
	if err := unlock(2); err != nil {
		t.Fatalf("UnlockNext(2) error = %v", err)
	}
	if err := unlock(3); !errors.Is(err, domain.ErrHintLimitReached) {
		t.Errorf("UnlockNext(3) error = %v; want ErrHintLimitReached", err)
	}
	hints, err := store.Hints().Unlocked(ctx, "carol", "crypto-200")
	if err != nil || len(hints) != 2 {
		t.Fatalf("Unlocked() = %d hints, %v; want 2", len(hints), err)
	}

	log, err := postgres.OpenPredictionLog(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPredictionLog() error = %v", err)
	}
	defer log.Close()

	pred := &domain.Prediction{
		PlayerID: "carol", ChallengeID: "crypto-200", PredictedDifficulty: 2,
		Confidence: 0.7, Suitable: true, Source: "model", Features: []float64{1, 2.5}, CreatedAt: time.Now(),
	}
	if err := log.Record(ctx, pred); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	features, err := log.Features(ctx, pred.ID)
	if err != nil {
		t.Fatalf("Features() error = %v", err)
	}
	if len(features) != 2 || features[1] != 2.5 {
		t.Errorf("Features() = %v; want [1 2.5]", features)
	}
}
