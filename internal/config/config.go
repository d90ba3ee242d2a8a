// Package config provides configuration management for the RAG backend.
// It follows Uber Go Style Guide conventions for struct organization and error handling.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Common configuration errors.
var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ServiceConfig holds common configuration for an external HTTP provider.
type ServiceConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// ChunkingConfig defines the parent/child chunk sizing used by the
// orchestrator; Validate fills in the spec's default sizing policy.
type ChunkingConfig struct {
	MaxChunkSize      int `mapstructure:"max_chunk_size" validate:"min=100"`
	DefaultParentSize int `mapstructure:"default_parent_size" validate:"min=100"`
	DefaultChildSize  int `mapstructure:"default_child_size" validate:"min=50"`
	LargeParentSize   int `mapstructure:"large_parent_size" validate:"min=100"`
	LargeChildSize    int `mapstructure:"large_child_size" validate:"min=50"`
	LargeDocThreshold int `mapstructure:"large_doc_threshold_bytes"`
	OverlapSize       int `mapstructure:"overlap_size" validate:"min=0"`
}

// Validate fills zero-value fields with the spec's defaults and rejects
// impossible size combinations.
func (c *ChunkingConfig) Validate() error {
	if c.DefaultParentSize == 0 {
		c.DefaultParentSize = 2000
	}
	if c.DefaultChildSize == 0 {
		c.DefaultChildSize = 600
	}
	if c.LargeParentSize == 0 {
		c.LargeParentSize = 3000
	}
	if c.LargeChildSize == 0 {
		c.LargeChildSize = 800
	}
	if c.LargeDocThreshold == 0 {
		c.LargeDocThreshold = 500 * 1024
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 4000
	}
	if c.OverlapSize == 0 {
		c.OverlapSize = 100
	}

	if c.DefaultChildSize >= c.DefaultParentSize {
		return fmt.Errorf("%w: default child size must be less than default parent size", ErrInvalidConfig)
	}
	if c.LargeChildSize >= c.LargeParentSize {
		return fmt.Errorf("%w: large child size must be less than large parent size", ErrInvalidConfig)
	}
	if c.DefaultParentSize > c.MaxChunkSize || c.LargeParentSize > c.MaxChunkSize {
		return fmt.Errorf("%w: parent size must not exceed max chunk size", ErrInvalidConfig)
	}
	return nil
}

// StoreConfig configures the on-disk shard store.
type StoreConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	CacheTTL  int    `mapstructure:"cache_ttl_seconds"`
	CacheSize int    `mapstructure:"cache_size"`
}

// Validate fills in the shard store's defaults.
func (c *StoreConfig) Validate() error {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 60
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	return nil
}

// QueueConfig configures the embedding task queue.
type QueueConfig struct {
	BatchSize            int `mapstructure:"batch_size"`
	FlushThreshold        int `mapstructure:"flush_threshold"`
	BatchSleepMS          int `mapstructure:"batch_sleep_ms"`
	MaxTasks              int `mapstructure:"max_tasks"`
	RecoveryDelaySeconds  int `mapstructure:"recovery_delay_seconds"`
}

// Validate fills in the queue's batching defaults per spec.md §4.3.
func (c *QueueConfig) Validate() error {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.FlushThreshold <= 0 {
		c.FlushThreshold = 10
	}
	if c.BatchSleepMS <= 0 {
		c.BatchSleepMS = 200
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = 100
	}
	if c.RecoveryDelaySeconds <= 0 {
		c.RecoveryDelaySeconds = 5
	}
	return nil
}

// Config represents the complete application configuration.
// Structs are organized by functional domain with clear separation.
type Config struct {
	Server struct {
		Host string `mapstructure:"host" validate:"required"`
		Port string `mapstructure:"port" validate:"required,numeric"`
	} `mapstructure:"server"`

	Chunking ChunkingConfig `mapstructure:"chunking"`
	Store    StoreConfig    `mapstructure:"store"`
	Queue    QueueConfig    `mapstructure:"queue"`

	Services struct {
		Embedding ServiceConfig `mapstructure:"embedding"`
		Chat      ServiceConfig `mapstructure:"chat"`
		Reranker  ServiceConfig `mapstructure:"reranker"`
	} `mapstructure:"services"`
}

// Validate performs configuration validation and sets defaults across all
// nested sections.
func (c *Config) Validate() error {
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking config: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.SetEnvPrefix("RAG")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file on disk is fine; defaults + env vars still apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures sensible default values, matching spec.md §6.
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8787")

	viper.SetDefault("chunking.max_chunk_size", 4000)
	viper.SetDefault("chunking.default_parent_size", 2000)
	viper.SetDefault("chunking.default_child_size", 600)
	viper.SetDefault("chunking.large_parent_size", 3000)
	viper.SetDefault("chunking.large_child_size", 800)
	viper.SetDefault("chunking.large_doc_threshold_bytes", 500*1024)
	viper.SetDefault("chunking.overlap_size", 100)

	viper.SetDefault("store.data_dir", "data")
	viper.SetDefault("store.cache_ttl_seconds", 60)
	viper.SetDefault("store.cache_size", 256)

	viper.SetDefault("queue.batch_size", 5)
	viper.SetDefault("queue.flush_threshold", 10)
	viper.SetDefault("queue.batch_sleep_ms", 200)
	viper.SetDefault("queue.max_tasks", 100)
	viper.SetDefault("queue.recovery_delay_seconds", 5)

	viper.SetDefault("services.embedding.base_url", "https://api.siliconflow.cn/v1")
	viper.SetDefault("services.embedding.model", "BAAI/bge-m3")
	viper.SetDefault("services.chat.base_url", "https://api.siliconflow.cn/v1")
	viper.SetDefault("services.reranker.base_url", "https://api.siliconflow.cn/v1")
}

// MustLoadConfig loads configuration and panics on failure. Use this only in
// main() where a failed load should be fatal.
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
