// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.dbnotebook/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimensions indicates the embedder dimensions are out of range.
	ErrInvalidEmbedderDimensions = errors.New("invalid embedder dimensions")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is unknown.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidClusterSize indicates the cluster sizing is inconsistent.
	ErrInvalidClusterSize = errors.New("invalid cluster size")

	// ErrInvalidWorkerCount indicates the worker count is out of range.
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// DefaultEmbedderModel outputs 768-dimension vectors, matching the
// default embedding config row seeded by the migrations.
const DefaultEmbedderModel = "text-embedding-004"

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama", "openai"
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDims  int     `mapstructure:"embedder_dimensions" json:"embedder_dimensions"`
	EmbedderRPS   float64 `mapstructure:"embedder_rps" json:"embedder_rps"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Tree build tuning
	TargetClusterSize  int `mapstructure:"target_cluster_size" json:"target_cluster_size"`
	MinClusterSize     int `mapstructure:"min_cluster_size" json:"min_cluster_size"`
	MaxTreeDepth       int `mapstructure:"max_tree_depth" json:"max_tree_depth"`
	BuildRetries       int `mapstructure:"build_retries" json:"build_retries"`
	GroupParallelism   int `mapstructure:"group_parallelism" json:"group_parallelism"`
	SummaryTargetWords int `mapstructure:"summary_target_words" json:"summary_target_words"`
	BuildTimeoutSec    int `mapstructure:"build_timeout_sec" json:"build_timeout_sec"`

	// Retrieval tuning
	RetrievalK         int `mapstructure:"retrieval_k" json:"retrieval_k"`
	RetrievalOverFetch int `mapstructure:"retrieval_over_fetch" json:"retrieval_over_fetch"`

	// Worker pool tuning
	Workers         int `mapstructure:"workers" json:"workers"`
	PollIntervalSec int `mapstructure:"poll_interval_sec" json:"poll_interval_sec"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".dbnotebook")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimensions", 768)
	viper.SetDefault("embedder_rps", 5.0)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "dbnotebook")
	viper.SetDefault("postgres_password", "dbnotebook_dev_password")
	viper.SetDefault("postgres_db_name", "dbnotebook")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Tree build defaults
	viper.SetDefault("target_cluster_size", 8)
	viper.SetDefault("min_cluster_size", 3)
	viper.SetDefault("max_tree_depth", 5)
	viper.SetDefault("build_retries", 3)
	viper.SetDefault("group_parallelism", 4)
	viper.SetDefault("summary_target_words", 200)
	viper.SetDefault("build_timeout_sec", 600)

	// Retrieval defaults
	viper.SetDefault("retrieval_k", 8)
	viper.SetDefault("retrieval_over_fetch", 4)

	// Worker pool defaults
	viper.SetDefault("workers", 2)
	viper.SetDefault("poll_interval_sec", 5)
}

// bindEnvVariables binds sensitive environment variables explicitly.
func bindEnvVariables() {
	_ = viper.BindEnv("postgres_password", "POSTGRES_PASSWORD")
	_ = viper.BindEnv("postgres_host", "POSTGRES_HOST")
	_ = viper.BindEnv("provider", "DBNOTEBOOK_PROVIDER")
	_ = viper.BindEnv("model_name", "DBNOTEBOOK_MODEL")
	_ = viper.BindEnv("embedder_model", "DBNOTEBOOK_EMBEDDER_MODEL")
	_ = viper.BindEnv("ollama_host", "OLLAMA_HOST")
}

// Validate checks the configuration, failing fast on the first problem.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (want gemini, ollama, or openai)", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDims <= 0 || c.EmbedderDims > 10000 {
		return fmt.Errorf("%w: %d", ErrInvalidEmbedderDimensions, c.EmbedderDims)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.TargetClusterSize < 2 {
		return fmt.Errorf("%w: target %d must be at least 2", ErrInvalidClusterSize, c.TargetClusterSize)
	}
	if c.MinClusterSize < 1 || c.MinClusterSize > c.TargetClusterSize {
		return fmt.Errorf("%w: min %d with target %d", ErrInvalidClusterSize, c.MinClusterSize, c.TargetClusterSize)
	}

	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("%w: %d (want 1-64)", ErrInvalidWorkerCount, c.Workers)
	}
	return nil
}
