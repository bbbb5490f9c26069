package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/doc-analyzer/ingestion"
)

// PostgresIndex persists the context in Postgres with pgvector embeddings,
// so the context survives process restarts. Insert runs in a single
// transaction; chunk rows cascade away with their document row.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

func (p *PostgresIndex) Insert(ctx context.Context, doc Document, vectors [][]float32) (err error) {
	if len(vectors) != len(doc.Chunks) {
		return fmt.Errorf("vector count %d does not match chunk count %d", len(vectors), len(doc.Chunks))
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO context_documents (id, name, format, added_at)
		VALUES ($1, $2, $3, $4)
	`, doc.ID, doc.Name, string(doc.Format), doc.AddedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	for i, chunk := range doc.Chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO context_chunks (id, document_id, chunk_index, content, chunk_size, chunk_overlap, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), doc.ID, chunk.Index, chunk.Text, chunk.Size, chunk.Overlap, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Delete(ctx context.Context, documentID string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM context_documents WHERE id = $1", documentID); err != nil {
		return fmt.Errorf("delete document rows: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "TRUNCATE context_chunks, context_documents"); err != nil {
		return fmt.Errorf("truncate context tables: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if limit <= 0 {
		limit = defaultTopK
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := limit * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT
			document_id,
			chunk_index,
			content,
			(embedding <-> $1::vector) AS distance
		FROM context_chunks
		ORDER BY embedding <-> $1::vector, document_id, chunk_index
		LIMIT $2
	`, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, limit)
	for rows.Next() {
		var match Match
		var distance float64
		if err := rows.Scan(&match.DocumentID, &match.ChunkIndex, &match.Text, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		match.Score = 1 / (1 + distance)
		matches = append(matches, match)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return matches, nil
}

// Restore rebuilds the active document set from the persisted tables.
// Chunk text and shape come back; raw document text is not stored and
// stays empty on restored documents.
func (p *PostgresIndex) Restore(ctx context.Context) ([]Document, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT d.id, d.name, d.format, d.added_at, c.chunk_index, c.content, c.chunk_size, c.chunk_overlap
		FROM context_documents d
		JOIN context_chunks c ON c.document_id = d.id
		ORDER BY d.added_at, d.id, c.chunk_index
	`)
	if err != nil {
		return nil, fmt.Errorf("query persisted documents: %w", err)
	}
	defer rows.Close()

	var documents []Document
	byID := make(map[string]int)

	for rows.Next() {
		var doc Document
		var chunk ingestion.Chunk
		var format string
		if err := rows.Scan(&doc.ID, &doc.Name, &format, &doc.AddedAt,
			&chunk.Index, &chunk.Text, &chunk.Size, &chunk.Overlap); err != nil {
			return nil, fmt.Errorf("scan persisted chunk: %w", err)
		}

		pos, seen := byID[doc.ID]
		if !seen {
			doc.Format = ingestion.DocumentFormat(format)
			documents = append(documents, doc)
			pos = len(documents) - 1
			byID[doc.ID] = pos
		}

		chunk.DocumentID = doc.ID
		documents[pos].Chunks = append(documents[pos].Chunks, chunk)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return documents, nil
}

var _ Index = (*PostgresIndex)(nil)
