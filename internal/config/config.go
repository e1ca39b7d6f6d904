// Package config provides configuration loading and structs for the cvsearch server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the YAML file.
const (
	EnvPGVectorDSN   = "CVSEARCH_PGVECTOR_DSN"
	EnvRedisPassword = "CVSEARCH_REDIS_PASSWORD"
	EnvQdrantAPIKey  = "CVSEARCH_QDRANT_API_KEY"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Segment   SegmentConfig   `yaml:"segment"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"gte=1,lte=65535"`
}

// StorageConfig holds paths for the catalog database and local indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path" validate:"required"`
	BleveIndexPath  string `yaml:"bleve_index_path" validate:"required"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" validate:"oneof=onnx mock"`
	ModelName  string `yaml:"model_name"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions" validate:"gte=1"`
	MaxTokens  int    `yaml:"max_tokens" validate:"gte=1"`
	CacheSize  int    `yaml:"cache_size" validate:"gte=0"`
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	Backend    string         `yaml:"backend" validate:"oneof=memory pgvector redis qdrant"`
	Collection string         `yaml:"collection" validate:"required,max=63"`
	PGVector   PGVectorConfig `yaml:"pgvector"`
	Redis      RedisConfig    `yaml:"redis"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
}

// PGVectorConfig holds PostgreSQL connection settings.
type PGVectorConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds Redis Stack connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// QdrantConfig holds Qdrant REST settings.
type QdrantConfig struct {
	URL            string `yaml:"url" validate:"omitempty,url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

// SegmentConfig holds chunking settings. Sizes are in characters.
type SegmentConfig struct {
	ChunkSize    int  `yaml:"chunk_size" validate:"gte=1"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
	// KeepOversized emits a line longer than chunk_size whole instead of cutting it.
	KeepOversized *bool `yaml:"keep_oversized"`
}

// Overlap returns the configured overlap, or 0 when unset.
func (s *SegmentConfig) Overlap() int {
	if s.ChunkOverlap == nil {
		return 0
	}
	return *s.ChunkOverlap
}

// KeepOversizedOrDefault returns whether oversized lines are kept whole; defaults to true
// when unset.
func (s *SegmentConfig) KeepOversizedOrDefault() bool {
	if s.KeepOversized != nil {
		return *s.KeepOversized
	}
	return true
}

// IngestConfig holds corpus ingestion settings.
type IngestConfig struct {
	Extensions []string `yaml:"extensions" validate:"min=1,dive,startswith=."`
	Exclude    []string `yaml:"exclude"`
	Workers    int      `yaml:"workers" validate:"gte=1,lte=64"`
}

// SearchConfig holds query-time settings.
type SearchConfig struct {
	DefaultK      int      `yaml:"default_k" validate:"gte=1"`
	MaxK          int      `yaml:"max_k" validate:"gte=1"`
	Alpha         *float64 `yaml:"alpha"`
	DefaultLimit  int      `yaml:"default_limit" validate:"gte=0"`
	MinScore      float64  `yaml:"min_score"`
	DefaultSource string   `yaml:"default_source" validate:"oneof=semantic keyword"`
	// KeywordFuzziness is the edit distance allowed per term in keyword search (0 = exact).
	KeywordFuzziness int `yaml:"keyword_fuzziness" validate:"gte=0,lte=2"`
}

// AlphaOrDefault returns alpha, or DefaultAlpha when unset.
func (s *SearchConfig) AlphaOrDefault() float64 {
	if s.Alpha == nil {
		return DefaultAlpha
	}
	return *s.Alpha
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, loads .env files next to it and in the
// working directory, applies environment overrides and defaults, expands paths and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(configDir, ".env"), ".env"); err != nil {
		return nil, err
	}
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	if cfg.Storage.VectorIndexPath != "" {
		cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
// Secrets that came from the environment are not written back.
func Save(path string, cfg *Config) error {
	out := *cfg
	if os.Getenv(EnvPGVectorDSN) != "" {
		out.Vector.PGVector.DSN = ""
	}
	if os.Getenv(EnvRedisPassword) != "" {
		out.Vector.Redis.Password = ""
	}
	if os.Getenv(EnvQdrantAPIKey) != "" {
		out.Vector.Qdrant.APIKey = ""
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides secrets with environment variables when they are set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvPGVectorDSN); v != "" {
		cfg.Vector.PGVector.DSN = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Vector.Redis.Password = v
	}
	if v := os.Getenv(EnvQdrantAPIKey); v != "" {
		cfg.Vector.Qdrant.APIKey = v
	}
}

// loadDotEnv loads each existing file; variables already in the environment win.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
