package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureContextSchema creates the pgvector extension and the context
// tables when they are missing. Chunk rows cascade with their document so
// a remove is always a single tag-scoped delete.
func EnsureContextSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS context_documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			format TEXT NOT NULL,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS context_chunks (
			id UUID PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES context_documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			chunk_size INT NOT NULL,
			chunk_overlap INT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			UNIQUE(document_id, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_context_chunks_document ON context_chunks(document_id)",
		"CREATE INDEX IF NOT EXISTS idx_context_chunks_embedding ON context_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
