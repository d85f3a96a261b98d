package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"photosearch/internal/domain"
	"photosearch/internal/logging"
	"photosearch/internal/port"
)

// PhotoUseCase reads stored photos back out of the blob store.
type PhotoUseCase struct {
	blobs      port.BlobStore
	index      port.VectorIndex
	collection string
	namespace  string
	logger     *slog.Logger
}

func NewPhotoUseCase(blobs port.BlobStore, index port.VectorIndex, collection, namespace string, logger *slog.Logger) *PhotoUseCase {
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	return &PhotoUseCase{
		blobs:      blobs,
		index:      index,
		collection: collection,
		namespace:  namespace,
		logger:     logging.OrDiscard(logger),
	}
}

// Get returns the bytes of a stored photo. Unknown names wrap domain.ErrNotFound.
func (u *PhotoUseCase) Get(ctx context.Context, name string) ([]byte, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return u.blobs.Get(ctx, u.namespace+cleaned)
}

// List returns the names of all stored photos, sorted.
func (u *PhotoUseCase) List(ctx context.Context) ([]string, error) {
	keys, err := u.blobs.List(ctx, u.namespace)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if name := strings.TrimPrefix(k, u.namespace); name != "" && !strings.HasSuffix(name, "/") {
			names = append(names, name)
		}
	}
	return names, nil
}

// Orphans returns stored photos that have no index record, typically left
// behind by a failed describe or embed step. Nothing is deleted.
func (u *PhotoUseCase) Orphans(ctx context.Context) ([]string, error) {
	names, err := u.List(ctx)
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, name := range names {
		ok, err := u.index.HasPath(ctx, u.collection, name)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", name, err)
		}
		if !ok {
			orphans = append(orphans, name)
		}
	}
	u.logger.Debug("orphan scan", "photos", len(names), "orphans", len(orphans))
	return orphans, nil
}
