package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"photosearch/internal/domain"
	"photosearch/internal/logging"
	"photosearch/internal/port"
)

// RetrieveUseCase handles browse and semantic search.
type RetrieveUseCase struct {
	embedder          port.Embedder
	index             port.VectorIndex
	collection        string
	topK              int
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
	logger            *slog.Logger
}

// RetrieveSettings are the static parameters of a RetrieveUseCase.
type RetrieveSettings struct {
	Collection        string
	TopK              int
	MinScoreThreshold float64
}

// NewRetrieveUseCase creates a new retrieve use case. embedder must be the
// same model and dimension used for ingestion.
func NewRetrieveUseCase(
	embedder port.Embedder,
	index port.VectorIndex,
	settings RetrieveSettings,
	logger *slog.Logger,
) *RetrieveUseCase {
	topK := settings.TopK
	if topK <= 0 {
		topK = 5
	}
	return &RetrieveUseCase{
		embedder:          embedder,
		index:             index,
		collection:        settings.Collection,
		topK:              topK,
		minScoreThreshold: settings.MinScoreThreshold,
		logger:            logging.OrDiscard(logger),
	}
}

// Retrieve browses when the query is blank and searches otherwise. Search
// results are ordered by descending score; browse results carry no score.
// Errors are *domain.RetrieveError.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, req domain.RetrieveRequest) ([]domain.ScoredResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return u.browse(ctx, req.Limit)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = u.topK
	}

	vec, err := u.embedder.Embed(ctx, query)
	if err != nil {
		return nil, u.fail(query, fmt.Errorf("embed query: %w", err))
	}

	hits, err := u.index.Search(ctx, u.collection, vec, limit)
	if err != nil {
		return nil, u.fail(query, fmt.Errorf("search: %w", err))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	results := make([]domain.ScoredResult, 0, len(hits))
	for _, h := range hits {
		if u.minScoreThreshold > 0 && h.Score < u.minScoreThreshold {
			continue
		}
		score := h.Score
		results = append(results, domain.ScoredResult{
			ID:    h.Record.ID,
			Text:  h.Record.Text,
			Path:  h.Record.Path,
			Score: &score,
		})
	}
	if len(results) > limit {
		results = results[:limit]
	}

	u.logger.Debug("search", "query", query, "limit", limit, "results", len(results))
	return results, nil
}

func (u *RetrieveUseCase) browse(ctx context.Context, limit int) ([]domain.ScoredResult, error) {
	if limit <= 0 || limit > domain.BrowseLimit {
		limit = domain.BrowseLimit
	}

	records, err := u.index.Scroll(ctx, u.collection, limit)
	if err != nil {
		return nil, u.fail("", fmt.Errorf("scroll: %w", err))
	}

	results := make([]domain.ScoredResult, len(records))
	for i, r := range records {
		results[i] = domain.ScoredResult{ID: r.ID, Text: r.Text, Path: r.Path}
	}
	return results, nil
}

func (u *RetrieveUseCase) fail(query string, err error) error {
	u.logger.Error("retrieve failed", "query", query, "error", err)
	return &domain.RetrieveError{Query: query, Err: err}
}
