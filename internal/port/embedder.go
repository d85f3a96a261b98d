package port

import (
	"context"

	"photosearch/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding of text. The vector length equals Dimension().
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores photo records in named collections and searches them.
type VectorIndex interface {
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates a collection with a fixed dimension and metric.
	CreateCollection(ctx context.Context, c domain.Collection) error

	// Collection returns the stored description of a collection.
	Collection(ctx context.Context, name string) (domain.Collection, error)

	Count(ctx context.Context, collection string) (int, error)

	// Insert stores rec, assigning its ID. A path that is already indexed
	// fails with domain.ErrDuplicatePath.
	Insert(ctx context.Context, collection string, rec domain.PhotoRecord) (domain.PhotoRecord, error)

	// Scroll returns up to limit records in index-defined order.
	Scroll(ctx context.Context, collection string, limit int) ([]domain.PhotoRecord, error)

	// Search returns up to limit hits ordered by descending similarity.
	Search(ctx context.Context, collection string, query []float32, limit int) ([]domain.SearchHit, error)

	// HasPath reports whether a record references path.
	HasPath(ctx context.Context, collection, path string) (bool, error)

	Close() error
}
