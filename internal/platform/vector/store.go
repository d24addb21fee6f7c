package vector

import "context"

// Vector is one article embedding plus the payload the index keeps alongside
// it for filtering and recovery.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is a KNN hit; Score is cosine similarity, higher is closer.
type Match struct {
	ID    string
	Score float64
}

// Store is the K-nearest-neighbor index behind the similarity engine.
// Embeddings are immutable once written, so query results are cacheable.
type Store interface {
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, q []float32, topK int, excludeIDs []string) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
}
