// Package index provides the two retrieval sources of the pipeline: an
// approximate-nearest-neighbor vector index (pgvector) and a ranked full-text
// keyword index, both over the same Postgres chunk table so that every search
// applies identical tenant/framework/date filtering.
package index

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/complyra/ragsafe/internal/models"
)

type Config struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// Index owns the chunk table and exposes the vector and keyword searchers.
type Index struct {
	config Config
	pool   *pgxpool.Pool
}

func New(ctx context.Context, config Config) (*Index, error) {
	if config.TableName == "" {
		config.TableName = "control_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ix := &Index{config: config, pool: pool}

	if err := ix.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return ix, nil
}

func (ix *Index) initialize(ctx context.Context) error {
	if _, err := ix.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			framework TEXT NOT NULL DEFAULT '',
			control_id TEXT NOT NULL DEFAULT '',
			section TEXT NOT NULL DEFAULT '',
			heading TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d),
			tsv tsvector GENERATED ALWAYS AS (
				to_tsvector('english', coalesce(heading, '') || ' ' || content)
			) STORED,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, ix.config.TableName, ix.config.VectorDim)

	if _, err := ix.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	stmts := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			ix.config.TableName, ix.config.TableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_tsv_idx ON %s USING gin (tsv)`,
			ix.config.TableName, ix.config.TableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_tenant_idx ON %s (tenant_id)`,
			ix.config.TableName, ix.config.TableName),
	}
	for _, stmt := range stmts {
		if _, err := ix.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// UpsertChunks stores ingested chunks with their embeddings. Called by the
// ingestion path only; the retrieval core never writes here.
func (ix *Index) UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, tenant_id, framework, control_id, section, heading, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chunk_id) DO UPDATE SET
			content = EXCLUDED.content,
			heading = EXCLUDED.heading,
			embedding = EXCLUDED.embedding`,
		ix.config.TableName)

	for _, chunk := range chunks {
		_, err := tx.Exec(ctx, stmt,
			chunk.ChunkID,
			chunk.TenantID,
			chunk.Framework,
			chunk.ControlID,
			chunk.Section,
			sanitizeUTF8(chunk.Heading),
			sanitizeUTF8(chunk.Content),
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Vector returns the ANN searcher backed by this index.
func (ix *Index) Vector() *VectorIndex {
	return &VectorIndex{ix: ix}
}

// Keyword returns the full-text searcher backed by this index.
func (ix *Index) Keyword() *KeywordIndex {
	return &KeywordIndex{ix: ix}
}

func (ix *Index) Close() {
	if ix.pool != nil {
		ix.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
