package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/flagpost/internal/config"
	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/hints"
	"github.com/felixgeelhaar/flagpost/internal/queue"
	"github.com/felixgeelhaar/flagpost/internal/scoring"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		Storage: config.StorageConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(dir, "flagpost.db"),
		},
		Policy:       domain.DefaultScoringPolicy(),
		ArtifactDir:  filepath.Join(dir, "models"),
		MinSamples:   30,
		HintProvider: HintsTemplate,
	}
}

func newTestRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	rt, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestNew_SQLite(t *testing.T) {
	rt := newTestRuntime(t, testOptions(t))
	ctx := context.Background()

	v, err := rt.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v < 1 {
		t.Errorf("SchemaVersion() = %d; want at least 1", v)
	}
	if rt.Board != nil {
		t.Error("Board should be nil without a Redis address")
	}

	c := &domain.Challenge{
		ID:         "web-1",
		Title:      "Cookie Monster",
		Category:   domain.CategoryWeb,
		Difficulty: domain.DifficultyEasy,
		Points:     100,
		FlagDigest: domain.DigestFlag("flag{cookies}"),
		Active:     true,
	}
	if err := rt.Store.Challenges().Save(ctx, c); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := rt.Engine.RegisterPlayer(ctx, "alice"); err != nil {
		t.Fatalf("RegisterPlayer() error = %v", err)
	}

	payload, err := rt.Hints.UnlockNext(ctx, "alice", "web-1")
	if err != nil {
		t.Fatalf("UnlockNext() error = %v", err)
	}
	if payload.Level != 1 {
		t.Errorf("hint level = %d; want 1", payload.Level)
	}

	out, err := rt.Engine.Submit(ctx, scoring.SubmitRequest{PlayerID: "alice", ChallengeID: "web-1", Answer: "flag{cookies}"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if out.PointsAwarded != 90 {
		t.Errorf("PointsAwarded = %d; want 90", out.PointsAwarded)
	}

	recs, err := rt.Recommender.Recommend(ctx, "alice", 5)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("len(Recommend()) = %d; want 0 once the only challenge is solved", len(recs))
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	opts := testOptions(t)
	opts.Storage.Driver = "mongo"

	if _, err := New(context.Background(), opts); err == nil {
		t.Error("New() with an unknown driver should fail")
	}
}

func TestNew_LLMWithoutProvidersFallsBack(t *testing.T) {
	opts := testOptions(t)
	opts.HintProvider = HintsLLM
	opts.LLM = config.LLMConfig{
		DefaultProvider: "claude",
		Providers: map[string]*config.ProviderConfig{
			"claude": {Enabled: true, Model: "m"}, // no API key
		},
	}

	rt := newTestRuntime(t, opts)
	if _, ok := rt.hintProvider(opts).(*hints.TemplateProvider); !ok {
		t.Error("hintProvider() should fall back to templates without a usable LLM")
	}
}

func TestNew_UnreachableRedisDisablesBoard(t *testing.T) {
	opts := testOptions(t)
	opts.RedisAddr = "127.0.0.1:1"

	rt := newTestRuntime(t, opts)
	if rt.Board != nil {
		t.Error("Board should be nil when Redis is unreachable")
	}
}

func TestOptionsFromLocal(t *testing.T) {
	cfg := config.DefaultLocalConfig()
	cfg.Leaderboard.Addr = "redis:6379"

	opts, err := OptionsFromLocal(cfg, "pw")
	if err != nil {
		t.Fatalf("OptionsFromLocal() error = %v", err)
	}
	if opts.Policy != domain.DefaultScoringPolicy() {
		t.Errorf("Policy = %+v; want default", opts.Policy)
	}
	if opts.RedisAddr != "redis:6379" || opts.RedisPassword != "pw" {
		t.Errorf("redis = %q/%q; want redis:6379/pw", opts.RedisAddr, opts.RedisPassword)
	}

	cfg.Scoring.FloorDivisor = 0
	if _, err := OptionsFromLocal(cfg, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("OptionsFromLocal(bad policy) error = %v; want ErrInvalidInput", err)
	}
}

func TestTrainHandler(t *testing.T) {
	rt := newTestRuntime(t, testOptions(t))
	handle := TrainHandler(rt.Trainer)
	ctx := context.Background()

	res, err := handle(ctx, queue.NewTrainJob("test", 0, 0))
	if err != nil {
		t.Fatalf("handle(ledger) error = %v", err)
	}
	if res.Status != queue.StatusSkipped {
		t.Errorf("Status = %q; want skipped with an empty ledger", res.Status)
	}

	res, err = handle(ctx, queue.NewTrainJob("test", 150, 3))
	if err != nil {
		t.Fatalf("handle(synthetic) error = %v", err)
	}
	if res.Status != queue.StatusCompleted {
		t.Errorf("Status = %q; want completed", res.Status)
	}
	if res.Samples != 150 {
		t.Errorf("Samples = %d; want 150", res.Samples)
	}
	if res.Version == "" {
		t.Error("Version should name the new artifact")
	}

	versions, err := rt.Artifacts.Versions()
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 1 || versions[0] != res.Version {
		t.Errorf("Versions() = %v; want [%s]", versions, res.Version)
	}
}
