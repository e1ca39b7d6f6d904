package vector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/cvsearch/internal/config"
)

// Backend names accepted in vector.backend.
const (
	BackendMemory   = "memory"
	BackendPGVector = "pgvector"
	BackendRedis    = "redis"
	BackendQdrant   = "qdrant"
)

// NewStore opens the backend selected by cfg. memoryPath is the snapshot file used by the
// memory backend; empty keeps it purely in memory.
func NewStore(ctx context.Context, cfg config.VectorConfig, memoryPath string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", cfg.Backend))
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(memoryPath)
	case BackendPGVector:
		return NewPGVectorStore(ctx, cfg.PGVector.DSN, logger)
	case BackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
	case BackendQdrant:
		return NewQdrantStore(QdrantOptions{
			URL:     cfg.Qdrant.URL,
			APIKey:  cfg.Qdrant.APIKey,
			Timeout: time.Duration(cfg.Qdrant.TimeoutSeconds) * time.Second,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, pgvector, redis, qdrant)", cfg.Backend)
	}
}
