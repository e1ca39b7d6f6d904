package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hyperjump/cvsearch/internal/models"
)

var validate = validator.New()

// Validate checks struct constraints and cross-field rules. Errors wrap models.ErrInvalidArgument.
func (c *Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: failed %q %s", fieldPath(fe), fe.Tag(), fe.Param()))
		}
	}

	overlap := c.Segment.Overlap()
	if overlap < 0 || overlap >= c.Segment.ChunkSize {
		problems = append(problems, fmt.Sprintf("segment.chunk_overlap: must be in [0, chunk_size), got %d", overlap))
	}
	if c.Search.DefaultK > c.Search.MaxK {
		problems = append(problems, fmt.Sprintf("search.default_k: %d exceeds max_k %d", c.Search.DefaultK, c.Search.MaxK))
	}
	if a := c.Search.AlphaOrDefault(); math.IsNaN(a) || a < 0 || a > 1 {
		problems = append(problems, fmt.Sprintf("search.alpha: must be within [0,1], got %v", a))
	}
	switch c.Vector.Backend {
	case "pgvector":
		if c.Vector.PGVector.DSN == "" {
			problems = append(problems, "vector.pgvector.dsn: required for the pgvector backend (or set "+EnvPGVectorDSN+")")
		}
	case "redis":
		if c.Vector.Redis.Addr == "" {
			problems = append(problems, "vector.redis.addr: required for the redis backend")
		}
	case "qdrant":
		if c.Vector.Qdrant.URL == "" {
			problems = append(problems, "vector.qdrant.url: required for the qdrant backend")
		}
	}
	if c.Embedding.Provider == "onnx" && c.Embedding.ModelPath == "" {
		problems = append(problems, "embedding.model_path: required for the onnx provider")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: invalid config: %s", models.ErrInvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}

// fieldPath turns "Config.Search.DefaultK" into "Search.DefaultK".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
