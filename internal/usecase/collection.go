package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"photosearch/internal/domain"
	"photosearch/internal/logging"
	"photosearch/internal/port"
)

// CollectionUseCase handles collection setup and inspection.
type CollectionUseCase struct {
	index  port.VectorIndex
	logger *slog.Logger
}

func NewCollectionUseCase(index port.VectorIndex, logger *slog.Logger) *CollectionUseCase {
	return &CollectionUseCase{index: index, logger: logging.OrDiscard(logger)}
}

// Ensure creates the collection when absent and otherwise checks that its
// dimension, metric and model match want. Safe to call on every startup.
// A mismatch is rejected; switching models needs a new collection name.
func (u *CollectionUseCase) Ensure(ctx context.Context, want domain.Collection) error {
	if want.Metric == "" {
		want.Metric = domain.MetricCosine
	}
	if want.Metric != domain.MetricCosine {
		return fmt.Errorf("%w: %s: unsupported metric %q", domain.ErrCollectionInitFailure, want.Name, want.Metric)
	}
	if want.Dimension <= 0 {
		return fmt.Errorf("%w: %s: dimension must be positive, got %d", domain.ErrCollectionInitFailure, want.Name, want.Dimension)
	}

	exists, err := u.index.CollectionExists(ctx, want.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCollectionInitFailure, err)
	}

	if !exists {
		err := u.index.CreateCollection(ctx, want)
		switch {
		case err == nil:
			u.logger.Info("created collection",
				"collection", want.Name, "dimension", want.Dimension, "model", want.Model)
			return nil
		case errors.Is(err, domain.ErrCollectionExists):
			// created concurrently; fall through to verification
		default:
			return fmt.Errorf("%w: %w", domain.ErrCollectionInitFailure, err)
		}
	}

	have, err := u.index.Collection(ctx, want.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCollectionInitFailure, err)
	}
	return checkCompatible(have, want)
}

func checkCompatible(have, want domain.Collection) error {
	if have.Dimension != want.Dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, embedder produces %d: %w",
			domain.ErrCollectionInitFailure, have.Name, have.Dimension, want.Dimension, domain.ErrDimensionMismatch)
	}
	if have.Metric != want.Metric {
		return fmt.Errorf("%w: collection %s uses metric %s, want %s",
			domain.ErrCollectionInitFailure, have.Name, have.Metric, want.Metric)
	}
	if have.Model != "" && want.Model != "" && have.Model != want.Model {
		return fmt.Errorf("%w: collection %s was built with %s, embedder is %s: %w",
			domain.ErrCollectionInitFailure, have.Name, have.Model, want.Model, domain.ErrModelMismatch)
	}
	return nil
}

// Stats returns the collection description and its record count.
func (u *CollectionUseCase) Stats(ctx context.Context, name string) (domain.Stats, error) {
	c, err := u.index.Collection(ctx, name)
	if err != nil {
		return domain.Stats{}, err
	}
	n, err := u.index.Count(ctx, name)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{Collection: c, Records: n}, nil
}
