package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for the flagpost CLI
type LocalConfig struct {
	Log         LogConfig         `yaml:"log"`
	Storage     StorageConfig     `yaml:"storage"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Recommend   RecommendConfig   `yaml:"recommend"`
	Hints       HintsConfig       `yaml:"hints"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig selects and locates the store. Relative paths are
// resolved against ~/.flagpost.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url,omitempty"`
}

// ScoringConfig mirrors domain.ScoringPolicy in file-friendly units
type ScoringConfig struct {
	PenaltyPerHint    int  `yaml:"penalty_per_hint"`
	FloorDivisor      int  `yaml:"floor_divisor"`
	FloorEnabled      bool `yaml:"floor_enabled"`
	CooldownSeconds   int  `yaml:"cooldown_seconds"`
	StreakWindowHours int  `yaml:"streak_window_hours"`
	GeneratedHintCap  int  `yaml:"generated_hint_cap"`
	AuthoredHintCosts bool `yaml:"authored_hint_costs"`
}

// RecommendConfig holds recommendation model settings
type RecommendConfig struct {
	MinSamples           int    `yaml:"min_samples"`
	ArtifactDir          string `yaml:"artifact_dir"`
	KeepArtifacts        int    `yaml:"keep_artifacts"`
	TrainIntervalMinutes int    `yaml:"train_interval_minutes"`
	RabbitMQURL          string `yaml:"rabbitmq_url,omitempty"`
	JobTimeoutSeconds    int    `yaml:"job_timeout_seconds"`
}

// HintsConfig selects where generated hint text comes from
type HintsConfig struct {
	Provider string    `yaml:"provider"` // template or llm
	LLM      LLMConfig `yaml:"llm"`
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for a single LLM provider
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"` // For Ollama
	APIKey  string `yaml:"-"`             // Loaded from secrets.yaml
}

// LeaderboardConfig points at the Redis leaderboard, disabled when Addr is empty
type LeaderboardConfig struct {
	Addr   string `yaml:"addr,omitempty"`
	DB     int    `yaml:"db"`
	Prefix string `yaml:"prefix"`
}

// SecretsConfig holds API keys loaded from secrets.yaml
type SecretsConfig struct {
	Providers map[string]struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"providers"`
	RedisPassword string `yaml:"redis_password,omitempty"`
}

// FlagpostDir returns the path to ~/.flagpost
func FlagpostDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".flagpost"), nil
}

// EnsureFlagpostDir creates ~/.flagpost and subdirectories if they don't exist
func EnsureFlagpostDir() (string, error) {
	dir, err := FlagpostDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"models",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	policy := domain.DefaultScoringPolicy()
	return &LocalConfig{
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "flagpost.db",
		},
		Scoring: ScoringConfig{
			PenaltyPerHint:    policy.PenaltyPerHint,
			FloorDivisor:      policy.FloorDivisor,
			FloorEnabled:      policy.FloorEnabled,
			CooldownSeconds:   int(policy.Cooldown / time.Second),
			StreakWindowHours: int(policy.StreakWindow / time.Hour),
			GeneratedHintCap:  policy.GeneratedHintCap,
			AuthoredHintCosts: policy.AuthoredHintCosts,
		},
		Recommend: RecommendConfig{
			MinSamples:           30,
			ArtifactDir:          "models",
			KeepArtifacts:        5,
			TrainIntervalMinutes: 60,
			JobTimeoutSeconds:    600,
		},
		Hints: HintsConfig{
			Provider: "template",
			LLM: LLMConfig{
				DefaultProvider: "auto",
				Providers: map[string]*ProviderConfig{
					"claude": {
						Enabled: true,
						Model:   "claude-sonnet-4-20250514",
					},
					"ollama": {
						Enabled: true,
						URL:     "http://localhost:11434",
						Model:   "llama3",
					},
				},
			},
		},
		Leaderboard: LeaderboardConfig{Prefix: "flagpost"},
	}
}

// Policy converts the scoring section into a validated policy
func (c *LocalConfig) Policy() (domain.ScoringPolicy, error) {
	p := domain.ScoringPolicy{
		PenaltyPerHint:   c.Scoring.PenaltyPerHint,
		FloorDivisor:     c.Scoring.FloorDivisor,
		FloorEnabled:     c.Scoring.FloorEnabled,
		Cooldown:         time.Duration(c.Scoring.CooldownSeconds) * time.Second,
		StreakWindow:     time.Duration(c.Scoring.StreakWindowHours) * time.Hour,
		GeneratedHintCap: c.Scoring.GeneratedHintCap,

		AuthoredHintCosts: c.Scoring.AuthoredHintCosts,
	}
	if err := p.Validate(); err != nil {
		return domain.ScoringPolicy{}, fmt.Errorf("scoring config: %w", err)
	}
	return p, nil
}

// TrainInterval returns the periodic training interval
func (c *LocalConfig) TrainInterval() time.Duration {
	return time.Duration(c.Recommend.TrainIntervalMinutes) * time.Minute
}

// Resolve makes relative storage and artifact paths absolute under base
func (c *LocalConfig) Resolve(base string) {
	if c.Storage.SQLitePath != "" && !filepath.IsAbs(c.Storage.SQLitePath) {
		c.Storage.SQLitePath = filepath.Join(base, c.Storage.SQLitePath)
	}
	if c.Recommend.ArtifactDir != "" && !filepath.IsAbs(c.Recommend.ArtifactDir) {
		c.Recommend.ArtifactDir = filepath.Join(base, c.Recommend.ArtifactDir)
	}
}

// LoadLocalConfig loads configuration from ~/.flagpost/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := FlagpostDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, "config.yaml")

	cfg := DefaultLocalConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	cfg.Resolve(dir)
	return cfg, nil
}

// loadSecrets loads API keys from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	// If secrets file doesn't exist, skip
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.Hints.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}

	return nil
}

// RedisPassword reads the leaderboard password from secrets.yaml
func RedisPassword() (string, error) {
	dir, err := FlagpostDir()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read secrets: %w", err)
	}
	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return "", fmt.Errorf("parse secrets: %w", err)
	}
	return secrets.RedisPassword, nil
}

// SaveLocalConfig saves configuration to ~/.flagpost/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureFlagpostDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets saves API keys to ~/.flagpost/secrets.yaml, keeping any
// Redis password already stored there
func SaveSecrets(secrets map[string]string) error {
	dir, err := EnsureFlagpostDir()
	if err != nil {
		return err
	}

	secretsPath := filepath.Join(dir, "secrets.yaml")

	redisPassword, err := RedisPassword()
	if err != nil {
		return err
	}
	secretsCfg := SecretsConfig{
		Providers: make(map[string]struct {
			APIKey string `yaml:"api_key"`
		}),
		RedisPassword: redisPassword,
	}

	for name, key := range secrets {
		secretsCfg.Providers[name] = struct {
			APIKey string `yaml:"api_key"`
		}{APIKey: key}
	}

	data, err := yaml.Marshal(secretsCfg)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(secretsPath, data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}
