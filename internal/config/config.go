package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SourceConfig describes one searchable document index.
type SourceConfig struct {
	Name  string `yaml:"name" validate:"required"`
	Label string `yaml:"label"`

	// Kind is "azure" for a direct Azure Cognitive Search call or "edge" to go
	// through the edge function.
	Kind                  string         `yaml:"kind" validate:"oneof=azure edge"`
	Endpoint              string         `yaml:"endpoint"`
	Index                 string         `yaml:"index"`
	APIKey                string         `yaml:"api_key,omitempty"`
	APIKeyEnv             string         `yaml:"api_key_env,omitempty"`
	APIVersion            string         `yaml:"api_version,omitempty"`
	SemanticConfiguration string         `yaml:"semantic_configuration,omitempty"`
	HighlightFields       []string       `yaml:"highlight_fields,omitempty"`
	IncludeTotalCount     bool           `yaml:"include_total_count,omitempty"`
	TimeoutSecs           int            `yaml:"timeout_secs"`
	Breaker               *BreakerConfig `yaml:"breaker,omitempty"`
}

// BreakerConfig trips a source after repeated failures.
type BreakerConfig struct {
	MaxRequests      uint32  `yaml:"max_requests"`
	IntervalSecs     int     `yaml:"interval_secs"`
	TimeoutSecs      int     `yaml:"timeout_secs"`
	MinRequests      uint32  `yaml:"min_requests"`
	FailureThreshold float64 `yaml:"failure_threshold" validate:"gte=0,lte=1"`
}

// FanoutConfig controls which sources a turn queries.
type FanoutConfig struct {
	DefaultSource string `yaml:"default_source"`
	Concurrency   int    `yaml:"concurrency" validate:"gte=0"`
	Top           int    `yaml:"top" validate:"gte=0"`
}

// ComposerConfig bounds the assistant reply.
type ComposerConfig struct {
	SnippetLength    int `yaml:"snippet_length" validate:"gt=0"`
	ResultsPerSource int `yaml:"results_per_source" validate:"gt=0"`
	MaxCitations     int `yaml:"max_citations" validate:"gt=0"`
}

// StoreConfig selects the conversation store backend.
type StoreConfig struct {
	Type     string          `yaml:"type" validate:"oneof=memory supabase postgres"`
	Supabase *SupabaseConfig `yaml:"supabase,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// SupabaseConfig contains the project URL and key of the backend-as-a-service.
type SupabaseConfig struct {
	URL    string `yaml:"url"`
	Key    string `yaml:"key,omitempty"`
	KeyEnv string `yaml:"key_env,omitempty"`
	Schema string `yaml:"schema"`
}

// PostgresConfig contains connection details for a plain Postgres store.
type PostgresConfig struct {
	DSN          string `yaml:"dsn,omitempty"`
	DSNEnv       string `yaml:"dsn_env,omitempty"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

// EdgeConfig configures the edge HTTP service. Credentials usually come from the
// environment, as they did for the hosted functions.
type EdgeConfig struct {
	Addr    string            `yaml:"addr" env:"AZCHAT_EDGE_ADDR"`
	Search  EdgeSearchConfig  `yaml:"search"`
	Storage EdgeStorageConfig `yaml:"storage"`
}

// EdgeSearchConfig holds the default Azure Cognitive Search credentials.
type EdgeSearchConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" env:"AZURE_SEARCH_ENDPOINT"`
	Key         string `yaml:"key,omitempty" env:"AZURE_SEARCH_KEY"`
	Index       string `yaml:"index,omitempty" env:"AZURE_SEARCH_INDEX"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EdgeStorageConfig holds the Azure Blob Storage credentials.
type EdgeStorageConfig struct {
	Account   string `yaml:"account,omitempty" env:"AZURE_STORAGE_ACCOUNT"`
	Key       string `yaml:"key,omitempty" env:"AZURE_STORAGE_KEY"`
	Container string `yaml:"container,omitempty" env:"AZURE_STORAGE_CONTAINER"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT" validate:"omitempty,oneof=console json"`
	File   string `yaml:"file,omitempty" env:"LOG_FILE"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Sources  []SourceConfig `yaml:"sources" validate:"dive"`
	Fanout   FanoutConfig   `yaml:"fanout"`
	Composer ComposerConfig `yaml:"composer"`
	Store    StoreConfig    `yaml:"store"`
	Edge     EdgeConfig     `yaml:"edge"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment variables override the edge and logging settings in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			if err := applyEnv(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/azchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/azchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the structural rules of the configuration.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("invalid config: duplicate source %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	if d := c.Fanout.DefaultSource; d != "" && d != "all" {
		if _, ok := seen[d]; !ok {
			return fmt.Errorf("invalid config: default source %q is not configured", d)
		}
	}
	switch c.Store.Type {
	case "supabase":
		if c.Store.Supabase == nil || c.Store.Supabase.URL == "" {
			return errors.New("invalid config: supabase store requires store.supabase.url")
		}
	case "postgres":
		if c.Store.Postgres == nil {
			return errors.New("invalid config: postgres store requires store.postgres")
		}
	}
	return nil
}

// Secret returns the inline value when set, otherwise the named environment variable.
func Secret(inline, envName string) string {
	if inline != "" {
		return inline
	}
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

func applyEnv(cfg *AppConfig) error {
	if err := env.Parse(&cfg.Edge); err != nil {
		return fmt.Errorf("parse edge env: %w", err)
	}
	if err := env.Parse(&cfg.Logging); err != nil {
		return fmt.Errorf("parse logging env: %w", err)
	}
	// azure sources on the edge endpoint share its credentials unless they carry a key
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.Kind != "azure" {
			continue
		}
		shared := s.Endpoint == "" || s.Endpoint == cfg.Edge.Search.Endpoint
		if s.Endpoint == "" {
			s.Endpoint = cfg.Edge.Search.Endpoint
		}
		if s.Index == "" {
			s.Index = cfg.Edge.Search.Index
		}
		if shared && Secret(s.APIKey, s.APIKeyEnv) == "" {
			s.APIKey = cfg.Edge.Search.Key
		}
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "azchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Sources: []SourceConfig{{
			Name:      "knowledge-base",
			Label:     "Knowledge base",
			Kind:      "azure",
			APIKeyEnv: "AZURE_SEARCH_KEY",
		}},
		Fanout:   FanoutConfig{DefaultSource: "knowledge-base", Concurrency: 1, Top: 3},
		Composer: ComposerConfig{SnippetLength: 200, ResultsPerSource: 3, MaxCitations: 3},
		Store:    StoreConfig{Type: "memory"},
		Edge:     EdgeConfig{Addr: ":8787", Storage: EdgeStorageConfig{Container: "documents"}},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.Kind == "" {
			s.Kind = "azure"
		}
		if s.Label == "" {
			s.Label = s.Name
		}
		if s.APIVersion == "" {
			s.APIVersion = "2023-11-01"
		}
		if s.TimeoutSecs == 0 {
			s.TimeoutSecs = 30
		}
	}
	if cfg.Fanout.DefaultSource == "" && len(cfg.Sources) > 0 {
		cfg.Fanout.DefaultSource = cfg.Sources[0].Name
	}
	if cfg.Fanout.Concurrency == 0 {
		cfg.Fanout.Concurrency = 1
	}
	if cfg.Fanout.Top == 0 {
		cfg.Fanout.Top = 3
	}
	if cfg.Composer.SnippetLength == 0 {
		cfg.Composer.SnippetLength = 200
	}
	if cfg.Composer.ResultsPerSource == 0 {
		cfg.Composer.ResultsPerSource = 3
	}
	if cfg.Composer.MaxCitations == 0 {
		cfg.Composer.MaxCitations = 3
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Supabase != nil {
		if cfg.Store.Supabase.KeyEnv == "" {
			cfg.Store.Supabase.KeyEnv = "SUPABASE_ANON_KEY"
		}
		if cfg.Store.Supabase.Schema == "" {
			cfg.Store.Supabase.Schema = "public"
		}
	}
	if cfg.Store.Postgres != nil && cfg.Store.Postgres.DSNEnv == "" {
		cfg.Store.Postgres.DSNEnv = "DATABASE_URL"
	}
	if cfg.Edge.Addr == "" {
		cfg.Edge.Addr = ":8787"
	}
	if cfg.Edge.Search.TimeoutSecs == 0 {
		cfg.Edge.Search.TimeoutSecs = 30
	}
	if cfg.Edge.Storage.Container == "" {
		cfg.Edge.Storage.Container = "documents"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}
