package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/internal/types"
)

// ChunkWriter persists chunks, replacing any prior version by ChunkID.
type ChunkWriter interface {
	UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) error
}

// Ingestor runs the fetch, chunk, embed, and store sequence for one
// framework corpus.
type Ingestor struct {
	fetcher  *Fetcher
	chunker  Chunker
	embedder types.Embedder
	writer   ChunkWriter
	logger   *slog.Logger

	// OnChunk, when set, is called once per embedded chunk for progress
	// reporting.
	OnChunk func(chunk models.DocumentChunk)
}

func NewIngestor(fetcher *Fetcher, chunker Chunker, embedder types.Embedder, writer ChunkWriter, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		fetcher:  fetcher,
		chunker:  chunker,
		embedder: embedder,
		writer:   writer,
		logger:   logger,
	}
}

// Run crawls from startURL and stores the resulting chunks. It returns the
// number of chunks written. After ingestion completes, the caller is
// responsible for invalidating the tenant's cached retrievals.
func (in *Ingestor) Run(ctx context.Context, startURL string) (int, error) {
	docs, err := in.fetcher.Fetch(ctx, startURL)
	if err != nil {
		return 0, fmt.Errorf("fetch failed: %w", err)
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("no documents fetched from %s", startURL)
	}
	in.logger.Info("fetched documents", "count", len(docs), "start_url", startURL)

	chunks := in.chunker.Chunk(docs)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced from %d documents", len(docs))
	}

	for i := range chunks {
		vec, err := in.embedder.Embed(ctx, chunks[i].Content)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %s: %w", chunks[i].ChunkID, err)
		}
		chunks[i].Embedding = vec
		if in.OnChunk != nil {
			in.OnChunk(chunks[i])
		}
	}

	if err := in.writer.UpsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}

	in.logger.Info("ingestion complete", "chunks", len(chunks))
	return len(chunks), nil
}
