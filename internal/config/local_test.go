package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"gopkg.in/yaml.v3"
)

// useHome points HOME at a temp directory and returns ~/.flagpost inside it
func useHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return filepath.Join(home, ".flagpost")
}

func TestFlagpostDir(t *testing.T) {
	dir, err := FlagpostDir()
	if err != nil {
		t.Fatalf("FlagpostDir() error = %v", err)
	}

	if filepath.Base(dir) != ".flagpost" {
		t.Errorf("FlagpostDir() = %q, want ending with .flagpost", dir)
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("FlagpostDir() = %q, want absolute path", dir)
	}
}

func TestEnsureFlagpostDir(t *testing.T) {
	want := useHome(t)

	dir, err := EnsureFlagpostDir()
	if err != nil {
		t.Fatalf("EnsureFlagpostDir() error = %v", err)
	}
	if dir != want {
		t.Errorf("EnsureFlagpostDir() = %q, want %q", dir, want)
	}

	for _, subdir := range []string{"logs", "models"} {
		if _, err := os.Stat(filepath.Join(dir, subdir)); os.IsNotExist(err) {
			t.Errorf("EnsureFlagpostDir() should create %s", subdir)
		}
	}
}

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()

	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Recommend.MinSamples != 30 {
		t.Errorf("Recommend.MinSamples = %d, want 30", cfg.Recommend.MinSamples)
	}
	if cfg.TrainInterval() != time.Hour {
		t.Errorf("TrainInterval() = %v, want 1h", cfg.TrainInterval())
	}
	if cfg.Hints.Provider != "template" {
		t.Errorf("Hints.Provider = %q, want template", cfg.Hints.Provider)
	}
	if cfg.Leaderboard.Addr != "" {
		t.Errorf("Leaderboard.Addr = %q, want disabled", cfg.Leaderboard.Addr)
	}

	policy, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy() error = %v", err)
	}
	if policy != domain.DefaultScoringPolicy() {
		t.Errorf("Policy() = %+v, want %+v", policy, domain.DefaultScoringPolicy())
	}
}

func TestDefaultLocalConfig_ProviderDetails(t *testing.T) {
	cfg := DefaultLocalConfig()

	tests := []struct {
		name    string
		enabled bool
		model   string
		url     string
	}{
		{"claude", true, "claude-sonnet-4-20250514", ""},
		{"ollama", true, "llama3", "http://localhost:11434"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, ok := cfg.Hints.LLM.Providers[tt.name]
			if !ok {
				t.Fatalf("Provider %q not found", tt.name)
			}
			if provider.Enabled != tt.enabled {
				t.Errorf("Provider.Enabled = %v, want %v", provider.Enabled, tt.enabled)
			}
			if provider.Model != tt.model {
				t.Errorf("Provider.Model = %q, want %q", provider.Model, tt.model)
			}
			if provider.URL != tt.url {
				t.Errorf("Provider.URL = %q, want %q", provider.URL, tt.url)
			}
		})
	}
}

func TestLocalConfig_PolicyRejectsInvalid(t *testing.T) {
	cfg := DefaultLocalConfig()
	cfg.Scoring.StreakWindowHours = 0

	if _, err := cfg.Policy(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Policy() error = %v, want ErrInvalidInput", err)
	}
}

func TestLocalConfig_Resolve(t *testing.T) {
	cfg := DefaultLocalConfig()
	cfg.Recommend.ArtifactDir = "/srv/models"
	cfg.Resolve("/home/p/.flagpost")

	if cfg.Storage.SQLitePath != "/home/p/.flagpost/flagpost.db" {
		t.Errorf("SQLitePath = %q, want resolved under base", cfg.Storage.SQLitePath)
	}
	if cfg.Recommend.ArtifactDir != "/srv/models" {
		t.Errorf("ArtifactDir = %q, absolute path should be kept", cfg.Recommend.ArtifactDir)
	}
}

func TestLoadSecrets(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultLocalConfig()

	secretsContent := `providers:
  claude:
    api_key: sk-claude-test-key
  unknown_provider:
    api_key: some-key
`
	if err := os.WriteFile(filepath.Join(tmpDir, "secrets.yaml"), []byte(secretsContent), 0600); err != nil {
		t.Fatalf("Failed to write secrets file: %v", err)
	}

	if err := loadSecrets(tmpDir, cfg); err != nil {
		t.Fatalf("loadSecrets() error = %v", err)
	}

	if cfg.Hints.LLM.Providers["claude"].APIKey != "sk-claude-test-key" {
		t.Errorf("claude APIKey = %q, want sk-claude-test-key", cfg.Hints.LLM.Providers["claude"].APIKey)
	}
	if cfg.Hints.LLM.Providers["ollama"].APIKey != "" {
		t.Errorf("ollama APIKey = %q, want empty", cfg.Hints.LLM.Providers["ollama"].APIKey)
	}
	if _, ok := cfg.Hints.LLM.Providers["unknown_provider"]; ok {
		t.Error("unknown providers should not be added")
	}
}

func TestLoadSecrets_NoSecretsFile(t *testing.T) {
	if err := loadSecrets(t.TempDir(), DefaultLocalConfig()); err != nil {
		t.Errorf("loadSecrets() should not error when secrets file is missing: %v", err)
	}
}

func TestLoadSecrets_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "secrets.yaml"), []byte("invalid: yaml: content:"), 0600); err != nil {
		t.Fatalf("Failed to write secrets file: %v", err)
	}

	if err := loadSecrets(tmpDir, DefaultLocalConfig()); err == nil {
		t.Error("loadSecrets() should error on invalid YAML")
	}
}

func TestLoadLocalConfig_DefaultsWhenNoFile(t *testing.T) {
	dir := useHome(t)

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}

	if want := filepath.Join(dir, "flagpost.db"); cfg.Storage.SQLitePath != want {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, want)
	}
	if want := filepath.Join(dir, "models"); cfg.Recommend.ArtifactDir != want {
		t.Errorf("Recommend.ArtifactDir = %q, want %q", cfg.Recommend.ArtifactDir, want)
	}
}

func TestLoadLocalConfig_WithConfigFile(t *testing.T) {
	dir := useHome(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create .flagpost dir: %v", err)
	}

	configContent := `log:
  level: debug
scoring:
  penalty_per_hint: 25
  floor_enabled: false
  authored_hint_costs: true
recommend:
  min_samples: 50
leaderboard:
  addr: localhost:6379
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Recommend.MinSamples != 50 {
		t.Errorf("Recommend.MinSamples = %d, want 50", cfg.Recommend.MinSamples)
	}
	if cfg.Leaderboard.Addr != "localhost:6379" {
		t.Errorf("Leaderboard.Addr = %q, want localhost:6379", cfg.Leaderboard.Addr)
	}

	policy, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy() error = %v", err)
	}
	if policy.PenaltyPerHint != 25 {
		t.Errorf("PenaltyPerHint = %d, want 25", policy.PenaltyPerHint)
	}
	if policy.FloorEnabled {
		t.Error("FloorEnabled should be false")
	}
	if !policy.AuthoredHintCosts {
		t.Error("AuthoredHintCosts should be true")
	}
	// Unset fields keep their defaults
	if policy.Cooldown != 5*time.Second {
		t.Errorf("Cooldown = %v, want 5s", policy.Cooldown)
	}
}

func TestLoadLocalConfig_InvalidConfigYAML(t *testing.T) {
	dir := useHome(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create .flagpost dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("invalid: yaml: [broken"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadLocalConfig(); err == nil {
		t.Error("LoadLocalConfig() should error on invalid YAML")
	}
}

func TestSaveLocalConfig(t *testing.T) {
	dir := useHome(t)

	cfg := DefaultLocalConfig()
	cfg.Scoring.PenaltyPerHint = 15
	cfg.Hints.Provider = "llm"

	if err := SaveLocalConfig(cfg); err != nil {
		t.Fatalf("SaveLocalConfig() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}

	var loaded LocalConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to parse saved config: %v", err)
	}
	if loaded.Scoring.PenaltyPerHint != 15 {
		t.Errorf("Saved Scoring.PenaltyPerHint = %d, want 15", loaded.Scoring.PenaltyPerHint)
	}
	if loaded.Hints.Provider != "llm" {
		t.Errorf("Saved Hints.Provider = %q, want llm", loaded.Hints.Provider)
	}
}

func TestSaveSecrets(t *testing.T) {
	dir := useHome(t)

	if err := SaveSecrets(map[string]string{"claude": "sk-test"}); err != nil {
		t.Fatalf("SaveSecrets() error = %v", err)
	}

	path := filepath.Join(dir, "secrets.yaml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat secrets file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("secrets.yaml permissions = %o, want 600", perm)
	}

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if cfg.Hints.LLM.Providers["claude"].APIKey != "sk-test" {
		t.Errorf("claude APIKey = %q, want sk-test", cfg.Hints.LLM.Providers["claude"].APIKey)
	}
}

func TestRedisPassword(t *testing.T) {
	dir := useHome(t)

	got, err := RedisPassword()
	if err != nil || got != "" {
		t.Fatalf("RedisPassword() = %q, %v; want empty, nil", got, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create .flagpost dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte("redis_password: s3cret\n"), 0600); err != nil {
		t.Fatalf("Failed to write secrets file: %v", err)
	}

	got, err = RedisPassword()
	if err != nil {
		t.Fatalf("RedisPassword() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("RedisPassword() = %q, want s3cret", got)
	}
}

func TestSaveSecrets_KeepsRedisPassword(t *testing.T) {
	dir := useHome(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create .flagpost dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte("redis_password: keep-me\n"), 0600); err != nil {
		t.Fatalf("Failed to write secrets file: %v", err)
	}

	if err := SaveSecrets(map[string]string{"claude": "sk-new"}); err != nil {
		t.Fatalf("SaveSecrets() error = %v", err)
	}

	got, err := RedisPassword()
	if err != nil {
		t.Fatalf("RedisPassword() error = %v", err)
	}
	if got != "keep-me" {
		t.Errorf("RedisPassword() = %q, want keep-me", got)
	}
}
