package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/hyperjump/cvsearch/internal/models"
)

// PGVectorStore keeps each collection in its own PostgreSQL table with a pgvector column
// and an HNSW cosine index.
type PGVectorStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPGVectorStore connects to dsn and checks the connection.
func NewPGVectorStore(ctx context.Context, dsn string, logger *zap.Logger) (*PGVectorStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}
	return &PGVectorStore{pool: pool, logger: logger}, nil
}

func tableIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// EnsureCollection creates the extension, table and indexes if needed.
func (p *PGVectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := validateName(name); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", models.ErrInvalidArgument)
	}
	table := tableIdent(name)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			source_path TEXT,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, table, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id)`, pgx.Identifier{name + "_doc_idx"}.Sanitize(), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`, pgx.Identifier{name + "_hnsw_idx"}.Sanitize(), table),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector: ensure collection %s: %w", name, err)
		}
	}
	p.logger.Debug("pgvector collection ready", zap.String("collection", name), zap.Int("dim", dim))
	return nil
}

func (p *PGVectorStore) exists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname = current_schema() AND tablename = $1)`,
		name,
	).Scan(&ok)
	return ok, err
}

// Insert upserts records in one batch.
func (p *PGVectorStore) Insert(ctx context.Context, name string, records []models.Record) error {
	if err := validateName(name); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, document_id, source_path, text, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			source_path = EXCLUDED.source_path,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding`, tableIdent(name))

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, r.ID, r.DocumentID, r.SourcePath, r.Text, pgvector.NewVector(r.Vector))
	}
	br := p.pool.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("pgvector: insert into %s: %w", name, err)
		}
	}
	return br.Close()
}

// Search orders by cosine distance; similarity is 1 - distance.
func (p *PGVectorStore) Search(ctx context.Context, name string, query []float32, topK int) ([]Match, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	ok, err := p.exists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("pgvector: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	if topK <= 0 {
		return []Match{}, nil
	}
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, document_id, COALESCE(source_path, ''), text, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, tableIdent(name)),
		pgvector.NewVector(query), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search %s: %w", name, err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.SourcePath, &m.Text, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteByDocument removes the document's rows. A missing table is not an error.
func (p *PGVectorStore) DeleteByDocument(ctx context.Context, name, documentID string) error {
	if err := validateName(name); err != nil {
		return err
	}
	ok, err := p.exists(ctx, name)
	if err != nil || !ok {
		return err
	}
	_, err = p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, tableIdent(name)), documentID)
	return err
}

// Count returns the number of rows in the collection table.
func (p *PGVectorStore) Count(ctx context.Context, name string) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	ok, err := p.exists(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	var n int64
	err = p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableIdent(name))).Scan(&n)
	return n, err
}

// Close closes the connection pool.
func (p *PGVectorStore) Close() error {
	p.pool.Close()
	return nil
}
