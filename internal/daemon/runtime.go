// Package daemon assembles the scoring, hint and recommendation services
// from configuration. Both binaries build their components through it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/flagpost/internal/config"
	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/hints"
	"github.com/felixgeelhaar/flagpost/internal/keylock"
	"github.com/felixgeelhaar/flagpost/internal/leaderboard"
	"github.com/felixgeelhaar/flagpost/internal/llm"
	"github.com/felixgeelhaar/flagpost/internal/recommend"
	"github.com/felixgeelhaar/flagpost/internal/scoring"
	"github.com/felixgeelhaar/flagpost/internal/storage"
	"github.com/felixgeelhaar/flagpost/internal/storage/postgres"
	"github.com/felixgeelhaar/flagpost/internal/storage/sqlite"
)

// Hint text sources
const (
	HintsTemplate = "template"
	HintsLLM      = "llm"
)

// Options selects and configures every component of a Runtime
type Options struct {
	Storage       config.StorageConfig
	Policy        domain.ScoringPolicy
	ArtifactDir   string
	KeepArtifacts int
	MinSamples    int

	HintProvider string
	LLM          config.LLMConfig

	// Leaderboard is disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	Logger *slog.Logger
}

// Runtime holds the wired components and the resources behind them
type Runtime struct {
	Store       storage.Store
	Engine      *scoring.Engine
	Hints       *hints.Service
	Model       *recommend.Model
	Artifacts   *recommend.FileArtifactStore
	Recommender *recommend.Service
	Trainer     *recommend.Trainer
	Board       *leaderboard.Board // nil when disabled

	schemaVersion func(ctx context.Context) (int, error)
	closers       []func() error
	logger        *slog.Logger
}

// OptionsFromLocal builds options from the CLI configuration
func OptionsFromLocal(cfg *config.LocalConfig, redisPassword string) (Options, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Storage:       cfg.Storage,
		Policy:        policy,
		ArtifactDir:   cfg.Recommend.ArtifactDir,
		KeepArtifacts: cfg.Recommend.KeepArtifacts,
		MinSamples:    cfg.Recommend.MinSamples,
		HintProvider:  cfg.Hints.Provider,
		LLM:           cfg.Hints.LLM,
		RedisAddr:     cfg.Leaderboard.Addr,
		RedisPassword: redisPassword,
		RedisDB:       cfg.Leaderboard.DB,
		RedisPrefix:   cfg.Leaderboard.Prefix,
	}, nil
}

// OptionsFromEnv builds options from the daemon configuration
func OptionsFromEnv(cfg *config.Config) Options {
	return Options{
		Storage: config.StorageConfig{
			Driver:      cfg.StorageDriver,
			SQLitePath:  cfg.SQLitePath,
			PostgresURL: cfg.PostgresURL,
		},
		Policy:        domain.DefaultScoringPolicy(),
		ArtifactDir:   cfg.ArtifactDir,
		KeepArtifacts: cfg.KeepArtifacts,
		MinSamples:    cfg.MinSamples,
		HintProvider:  HintsTemplate,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	}
}

// New opens storage, runs migrations and wires the services. Close
// releases everything New opened.
func New(ctx context.Context, opts Options) (_ *Runtime, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	predlog, err := rt.openStorage(ctx, opts.Storage)
	if err != nil {
		return nil, err
	}

	locks := keylock.New()

	rt.Engine = scoring.NewEngine(rt.Store, opts.Policy)
	rt.Engine.SetLogger(logger)
	rt.Engine.SetLocks(locks)

	rt.Hints = hints.NewService(rt.Store, opts.Policy, rt.hintProvider(opts))
	rt.Hints.SetLogger(logger)
	rt.Hints.SetLocks(locks)

	rt.Artifacts, err = recommend.NewFileArtifactStore(opts.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	if opts.KeepArtifacts > 0 {
		rt.Artifacts.SetKeep(opts.KeepArtifacts)
	}

	rt.Model = recommend.NewModel(rt.Artifacts)
	rt.Model.SetLogger(logger)
	rt.Model.SetPredictionLog(predlog)
	if opts.MinSamples > 0 {
		rt.Model.SetMinSamples(opts.MinSamples)
	}
	if err := rt.Model.Load(ctx); err != nil && !errors.Is(err, domain.ErrModelArtifactCorrupt) {
		return nil, fmt.Errorf("load model: %w", err)
	}

	rt.Recommender = recommend.NewService(rt.Store, rt.Model)
	rt.Recommender.SetLogger(logger)
	rt.Trainer = recommend.NewTrainer(rt.Store, rt.Model)
	rt.Trainer.SetLogger(logger)

	if opts.RedisAddr != "" {
		rt.connectLeaderboard(ctx, opts)
	}

	return rt, nil
}

func (rt *Runtime) openStorage(ctx context.Context, cfg config.StorageConfig) (storage.PredictionLog, error) {
	switch cfg.Driver {
	case "", config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		rt.Store = sqlite.NewStore(db)
		rt.schemaVersion = db.Version
		return sqlite.NewPredictionLog(db), nil

	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		predlog, err := postgres.OpenPredictionLog(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, predlog.Close)
		rt.Store = postgres.NewStore(pool)
		rt.schemaVersion = func(ctx context.Context) (int, error) { return postgres.Version(ctx, pool) }
		return predlog, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// hintProvider returns the LLM-backed provider when one is configured and
// usable, and the templates otherwise
func (rt *Runtime) hintProvider(opts Options) hints.TextProvider {
	if opts.HintProvider != HintsLLM {
		return hints.NewTemplateProvider()
	}

	registry := llm.NewRegistry()
	setupLLMProviders(registry, opts.LLM, rt.logger)
	if opts.LLM.DefaultProvider != "" && opts.LLM.DefaultProvider != "auto" {
		if err := registry.SetDefault(opts.LLM.DefaultProvider); err != nil {
			rt.logger.Warn("default LLM provider unavailable", "provider", opts.LLM.DefaultProvider, "error", err)
		}
	}

	p, err := registry.Default()
	if err != nil {
		rt.logger.Warn("no LLM provider configured, using hint templates", "error", err)
		return hints.NewTemplateProvider()
	}

	cfg := llm.DefaultResilientConfig()
	cfg.Logger = rt.logger
	resilient := llm.NewResilientProvider(p, cfg)
	rt.closers = append(rt.closers, resilient.Close)
	return hints.NewLLMProvider(resilient, rt.logger)
}

// setupLLMProviders registers every enabled provider that has what it needs
func setupLLMProviders(registry *llm.Registry, cfg config.LLMConfig, logger *slog.Logger) {
	for name, providerCfg := range cfg.Providers {
		if providerCfg == nil || !providerCfg.Enabled {
			continue
		}

		switch name {
		case "claude":
			if providerCfg.APIKey == "" {
				logger.Debug("Claude provider enabled but no API key set")
				continue
			}
			registry.Register("claude", llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			}))
			logger.Info("registered LLM provider", "name", "claude", "model", providerCfg.Model)

		case "ollama":
			registry.Register("ollama", llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
			}))
			logger.Info("registered LLM provider", "name", "ollama", "model", providerCfg.Model)

		default:
			logger.Warn("unknown LLM provider in config", "name", name)
		}
	}
}

// connectLeaderboard subscribes the Redis projection to solve events. An
// unreachable Redis leaves the leaderboard disabled.
func (rt *Runtime) connectLeaderboard(ctx context.Context, opts Options) {
	rdb, err := leaderboard.Connect(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	if err != nil {
		rt.logger.Warn("leaderboard disabled", "addr", opts.RedisAddr, "error", err)
		return
	}
	rt.closers = append(rt.closers, rdb.Close)

	rt.Board = leaderboard.New(rdb, opts.RedisPrefix)
	rt.Board.SetLogger(rt.logger)
	rt.Engine.Events().Subscribe(domain.EventSolveRecorded, rt.Board.Handler())
}

// SchemaVersion reports the applied migration version
func (rt *Runtime) SchemaVersion(ctx context.Context) (int, error) {
	if rt.schemaVersion == nil {
		return 0, errors.New("storage not open")
	}
	return rt.schemaVersion(ctx)
}

// Close releases resources in reverse order of acquisition
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
