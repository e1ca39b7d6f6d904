package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/cvsearch/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Vector.Collection != DefaultCollection {
		t.Errorf("collection = %q, want %q", cfg.Vector.Collection, DefaultCollection)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/catalog.db"
  bleve_index_path: "./data/bleve"
watch:
  directories: ["./resumes"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "catalog.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	if want := filepath.Join(dir, "resumes"); cfg.Watch.Directories[0] != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], want)
	}
}

func TestLoad_explicitZeroOverlapAndAlphaKept(t *testing.T) {
	path := writeConfig(t, `
segment:
  chunk_size: 300
  chunk_overlap: 0
  keep_oversized: false
search:
  alpha: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Segment.Overlap() != 0 {
		t.Errorf("chunk_overlap = %d, want explicit 0", cfg.Segment.Overlap())
	}
	if cfg.Search.AlphaOrDefault() != 0 {
		t.Errorf("alpha = %v, want explicit 0", cfg.Search.AlphaOrDefault())
	}
	if cfg.Segment.KeepOversizedOrDefault() {
		t.Error("keep_oversized = true, want explicit false")
	}
}

func TestLoad_invalidValuesFail(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"overlap not below size", "segment:\n  chunk_size: 100\n  chunk_overlap: 100\n", "chunk_overlap"},
		{"alpha above one", "search:\n  alpha: 1.5\n", "alpha"},
		{"default k above max k", "search:\n  default_k: 60\n  max_k: 50\n", "default_k"},
		{"unknown backend", "vector:\n  backend: milvus\n", "Backend"},
		{"pgvector without dsn", "vector:\n  backend: pgvector\n", "pgvector.dsn"},
		{"bad extension", "ingest:\n  extensions: [pdf]\n", "Extensions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvPGVectorDSN, "")
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should mention %q", err, tt.field)
			}
		})
	}
}

func TestLoad_envOverridesSecrets(t *testing.T) {
	t.Setenv(EnvPGVectorDSN, "postgres://u:p@db:5432/cv")
	path := writeConfig(t, `
vector:
  backend: pgvector
  pgvector:
    dsn: "postgres://ignored"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vector.PGVector.DSN != "postgres://u:p@db:5432/cv" {
		t.Errorf("dsn = %q, want env value", cfg.Vector.PGVector.DSN)
	}
}

func TestLoad_dotEnvNextToConfig(t *testing.T) {
	path := writeConfig(t, "vector:\n  backend: qdrant\n  qdrant:\n    url: http://localhost:6333\n")
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envFile, []byte(EnvQdrantAPIKey+"=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvQdrantAPIKey, "")
	os.Unsetenv(EnvQdrantAPIKey)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vector.Qdrant.APIKey != "from-dotenv" {
		t.Errorf("api key = %q, want value from .env", cfg.Vector.Qdrant.APIKey)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Segment.ChunkSize != 500 || cfg.Segment.Overlap() != 100 {
		t.Errorf("segment defaults: got size=%d overlap=%d", cfg.Segment.ChunkSize, cfg.Segment.Overlap())
	}
	if cfg.Search.DefaultK != 20 || cfg.Search.MaxK != 50 {
		t.Errorf("k defaults: got %d/%d", cfg.Search.DefaultK, cfg.Search.MaxK)
	}
	if cfg.Search.AlphaOrDefault() != 0.9 {
		t.Errorf("alpha default: got %v", cfg.Search.AlphaOrDefault())
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("dimensions default: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("workers default: got %d", cfg.Ingest.Workers)
	}
	if len(cfg.Ingest.Extensions) != len(DefaultExtensions) || cfg.Ingest.Extensions[0] != ".pdf" {
		t.Errorf("extensions: got %v", cfg.Ingest.Extensions)
	}
	if cfg.Storage.VectorIndexPath == "" {
		t.Error("memory backend should get a vector index path")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/resumes"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSegmentConfig_KeepOversizedOrDefault(t *testing.T) {
	s := &SegmentConfig{}
	if !s.KeepOversizedOrDefault() {
		t.Error("unset keep_oversized should default to true")
	}
	f := false
	s.KeepOversized = &f
	if s.KeepOversizedOrDefault() {
		t.Error("explicit false should be kept")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db", BleveIndexPath: "/tmp/bleve"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}

func TestSave_doesNotPersistEnvSecrets(t *testing.T) {
	t.Setenv(EnvRedisPassword, "s3cret")
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{Vector: VectorConfig{Redis: RedisConfig{Password: "s3cret"}}}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Error("password from environment should not be written to the config file")
	}
	if cfg.Vector.Redis.Password != "s3cret" {
		t.Error("Save must not modify the caller's config")
	}
}
