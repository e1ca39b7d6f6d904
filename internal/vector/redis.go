package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hyperjump/cvsearch/internal/models"
	"github.com/hyperjump/cvsearch/pkg/utils"
)

// Hash field names.
const (
	redisFieldVector     = "vector"
	redisFieldText       = "text"
	redisFieldDocumentID = "document_id"
	redisFieldSourcePath = "source_path"
	redisFieldDistance   = "dist"

	redisMaxDeleteBatch = 10000
)

// RedisOptions configures the RediSearch store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps records as hashes under "cvsearch:<collection>:" and indexes them with
// a RediSearch HNSW cosine index named after the collection.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to Redis Stack and checks the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		// FT.SEARCH replies are parsed in their RESP2 array form.
		Protocol: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client, logger: logger}, nil
}

func redisKeyPrefix(collection string) string {
	return "cvsearch:" + collection + ":"
}

// EnsureCollection creates the search index if FT.INFO does not know it.
func (s *RedisStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := s.client.Do(ctx, "FT.INFO", name).Result(); err == nil {
		return nil
	} else if !isUnknownIndex(err) {
		return fmt.Errorf("redis: inspect index %s: %w", name, err)
	}
	_, err := s.client.Do(ctx, "FT.CREATE", name,
		"ON", "HASH",
		"PREFIX", "1", redisKeyPrefix(name),
		"SCHEMA",
		redisFieldVector, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
		redisFieldText, "TEXT",
		redisFieldDocumentID, "TAG",
		redisFieldSourcePath, "TAG",
	).Result()
	if err != nil {
		return fmt.Errorf("redis: create index %s: %w", name, err)
	}
	s.logger.Info("redis index created", zap.String("collection", name), zap.Int("dim", dim))
	return nil
}

// Insert writes one hash per record in a pipeline. HSET overwrites, so this is an upsert.
func (s *RedisStore) Insert(ctx context.Context, name string, records []models.Record) error {
	if err := validateName(name); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	prefix := redisKeyPrefix(name)
	pipe := s.client.Pipeline()
	for _, r := range records {
		pipe.HSet(ctx, prefix+r.ID,
			redisFieldVector, utils.Float32sToBytes(r.Vector),
			redisFieldText, r.Text,
			redisFieldDocumentID, r.DocumentID,
			redisFieldSourcePath, r.SourcePath,
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: insert into %s: %w", name, err)
	}
	return nil
}

// Search runs a KNN query. RediSearch returns cosine distance; similarity is 1 - distance.
func (s *RedisStore) Search(ctx context.Context, name string, query []float32, topK int) ([]Match, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Match{}, nil
	}
	reply, err := s.client.Do(ctx, "FT.SEARCH", name,
		fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", topK, redisFieldVector, redisFieldDistance),
		"PARAMS", "2", "vec", utils.Float32sToBytes(query),
		"SORTBY", redisFieldDistance,
		"RETURN", "4", redisFieldDistance, redisFieldText, redisFieldDocumentID, redisFieldSourcePath,
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
		}
		return nil, fmt.Errorf("redis: search %s: %w", name, err)
	}
	return parseSearchReply(reply, redisKeyPrefix(name))
}

// DeleteByDocument finds the document's keys through the TAG index and deletes them.
func (s *RedisStore) DeleteByDocument(ctx context.Context, name, documentID string) error {
	if err := validateName(name); err != nil {
		return err
	}
	for {
		reply, err := s.client.Do(ctx, "FT.SEARCH", name,
			fmt.Sprintf("@%s:{%s}", redisFieldDocumentID, escapeTag(documentID)),
			"NOCONTENT",
			"LIMIT", "0", strconv.Itoa(redisMaxDeleteBatch),
			"DIALECT", "2",
		).Result()
		if err != nil {
			if isUnknownIndex(err) {
				return nil
			}
			return fmt.Errorf("redis: find %s in %s: %w", documentID, name, err)
		}
		keys, err := parseKeysReply(reply)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis: delete %s: %w", documentID, err)
		}
		if len(keys) < redisMaxDeleteBatch {
			return nil
		}
	}
}

// Count returns the number of indexed hashes.
func (s *RedisStore) Count(ctx context.Context, name string) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	reply, err := s.client.Do(ctx, "FT.SEARCH", name, "*", "LIMIT", "0", "0").Result()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
		}
		return 0, fmt.Errorf("redis: count %s: %w", name, err)
	}
	values, ok := reply.([]interface{})
	if !ok || len(values) == 0 {
		return 0, fmt.Errorf("redis: unexpected FT.SEARCH reply %T", reply)
	}
	n, ok := values[0].(int64)
	if !ok {
		return 0, fmt.Errorf("redis: unexpected total %T", values[0])
	}
	return n, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func isUnknownIndex(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

// escapeTag backslash-escapes every rune RediSearch treats as syntax in a TAG query.
func escapeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseSearchReply decodes the RESP2 FT.SEARCH reply:
// [total, key1, [field, value, ...], key2, [...], ...].
func parseSearchReply(reply interface{}, keyPrefix string) ([]Match, error) {
	values, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("redis: unexpected FT.SEARCH reply %T", reply)
	}
	if len(values) == 0 {
		return []Match{}, nil
	}
	matches := make([]Match, 0, (len(values)-1)/2)
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("redis: unexpected key %T", values[i])
		}
		fields, ok := values[i+1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("redis: unexpected fields %T", values[i+1])
		}
		m := Match{ID: strings.TrimPrefix(key, keyPrefix)}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			val, _ := fields[j+1].(string)
			switch name {
			case redisFieldDistance:
				d, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("redis: bad distance %q: %w", val, err)
				}
				m.Similarity = 1 - d
			case redisFieldText:
				m.Text = val
			case redisFieldDocumentID:
				m.DocumentID = val
			case redisFieldSourcePath:
				m.SourcePath = val
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// parseKeysReply decodes a NOCONTENT reply: [total, key1, key2, ...].
func parseKeysReply(reply interface{}) ([]string, error) {
	values, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("redis: unexpected FT.SEARCH reply %T", reply)
	}
	keys := make([]string, 0, len(values))
	for _, v := range values[min(1, len(values)):] {
		if k, ok := v.(string); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
