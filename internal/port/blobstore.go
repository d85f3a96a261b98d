package port

import "context"

// BlobStore stores immutable image bytes by key.
//
// Get returns an error satisfying errors.Is(err, domain.ErrNotFound) for
// missing keys.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
