package store

import "context"

// Index is the vector index a Store mutates. Insert must be atomic: either
// every chunk of the document becomes visible or none does, even on error
// or cancellation. Chunks are stored with the owning document id as an
// index key, so Delete is a tag-scoped operation with no dangling
// references to chase.
type Index interface {
	Insert(ctx context.Context, doc Document, vectors [][]float32) error
	Delete(ctx context.Context, documentID string) error
	Reset(ctx context.Context) error
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)
	// Restore returns the documents an index already holds at startup.
	// Volatile indexes return nothing.
	Restore(ctx context.Context) ([]Document, error)
}
