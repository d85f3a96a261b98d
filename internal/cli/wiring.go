package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"photosearch/config"
	"photosearch/internal/adapter/blob"
	"photosearch/internal/adapter/cache"
	"photosearch/internal/adapter/embedding"
	"photosearch/internal/adapter/fs"
	"photosearch/internal/adapter/store"
	"photosearch/internal/adapter/throttle"
	"photosearch/internal/adapter/vision"
	"photosearch/internal/domain"
	"photosearch/internal/port"
	"photosearch/internal/usecase"
)

// app holds the clients and use cases of one command invocation. Clients
// are built once here and injected everywhere else.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	blobs    port.BlobStore
	index    port.VectorIndex
	embedder port.Embedder

	collection *usecase.CollectionUseCase
	retrieve   *usecase.RetrieveUseCase
	photos     *usecase.PhotoUseCase
	ingest     *usecase.IngestUseCase // nil unless opened withDescriber
	batch      *usecase.BatchIngestUseCase
}

// openApp wires the configured backends. The vision client is only built
// when withDescriber is set, so read-only commands need no vision API key.
func openApp(ctx context.Context, cfg *config.Config, root string, logger *slog.Logger, withDescriber bool) (*app, error) {
	if err := config.EnsureDataDir(root); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg, root)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	embedder = throttle.WrapEmbedder(embedder, cfg.Embedding.RateLimit)

	index, err := newVectorIndex(cfg, root)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, blobs: blobs, index: index, embedder: embedder}
	a.collection = usecase.NewCollectionUseCase(index, logger)

	if err := a.collection.Ensure(ctx, domain.Collection{
		Name:      cfg.Index.Collection,
		Dimension: embedder.Dimension(),
		Metric:    cfg.Index.Metric,
		Model:     embedder.ModelName(),
	}); err != nil {
		index.Close()
		return nil, err
	}

	queryEmbedder := embedder
	if cfg.Embedding.CacheSize > 0 {
		queryEmbedder = cache.NewCachedEmbedder(embedder, cache.NewQueryCache(cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL))
	}
	a.retrieve = usecase.NewRetrieveUseCase(queryEmbedder, index, usecase.RetrieveSettings{
		Collection:        cfg.Index.Collection,
		TopK:              cfg.Retrieve.TopK,
		MinScoreThreshold: cfg.Retrieve.MinScoreThreshold,
	}, logger)
	a.photos = usecase.NewPhotoUseCase(blobs, index, cfg.Index.Collection, cfg.Blob.Namespace, logger)

	if withDescriber {
		describer, err := newDescriber(cfg)
		if err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to create describer: %w", err)
		}
		describer = throttle.WrapDescriber(describer, cfg.Vision.RateLimit)

		a.ingest = usecase.NewIngestUseCase(blobs, describer, embedder, index, usecase.IngestSettings{
			Collection: cfg.Index.Collection,
			Namespace:  cfg.Blob.Namespace,
			MaxBytes:   cfg.Ingest.MaxBytes,
		}, logger)
		walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
		a.batch = usecase.NewBatchIngestUseCase(a.ingest, walker, cfg.Ingest.Workers, logger)
	}

	return a, nil
}

func (a *app) Close() error {
	return a.index.Close()
}

func newBlobStore(ctx context.Context, cfg *config.Config, root string) (port.BlobStore, error) {
	bc := cfg.Blob
	switch bc.Backend {
	case "local":
		return blob.NewLocalStore(cfg.BlobDir(root))
	case "memory":
		return blob.NewMemoryStore(), nil
	case "minio":
		client, err := blob.NewMinioClient(blob.MinioOptions{
			Endpoint:  bc.Endpoint,
			AccessKey: os.Getenv(bc.AccessKeyEnv),
			SecretKey: os.Getenv(bc.SecretKeyEnv),
			Region:    bc.Region,
			UseSSL:    bc.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		st := blob.NewMinioStore(client, bc.Bucket, bc.Prefix)
		if err := st.EnsureBucket(ctx, bc.Region); err != nil {
			return nil, err
		}
		return st, nil
	case "s3":
		client, err := blob.NewS3Client(ctx, blob.S3Options{
			Region:    bc.Region,
			Endpoint:  bc.Endpoint,
			AccessKey: os.Getenv(bc.AccessKeyEnv),
			SecretKey: os.Getenv(bc.SecretKeyEnv),
		})
		if err != nil {
			return nil, err
		}
		return blob.NewS3Store(client, bc.Bucket, bc.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", bc.Backend)
	}
}

func newVectorIndex(cfg *config.Config, root string) (port.VectorIndex, error) {
	path := cfg.IndexDBPath(root)
	switch cfg.Index.Backend {
	case "bolt":
		idx, err := store.OpenBoltIndex(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		return idx, nil
	case "sqlite":
		idx, err := store.OpenSQLiteIndex(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Index.Backend)
	}
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding

	var (
		e   *embedding.OpenAIEmbedder
		err error
	)
	switch ec.Provider {
	case "openai":
		if ec.BaseURL != "" {
			e, err = embedding.NewOpenAICompatibleEmbedder(ec.APIKeyEnv, ec.Model, ec.BaseURL, ec.Dimension)
		} else {
			e, err = embedding.NewOpenAIEmbedder(ec.APIKeyEnv, ec.Model, ec.Dimension)
		}
	case "deepseek":
		e, err = embedding.NewDeepSeekEmbedder(ec.APIKeyEnv, ec.Model, ec.Dimension)
	case "jina":
		e, err = embedding.NewJinaEmbedder(ec.APIKeyEnv, ec.Model, ec.Dimension)
	case "ollama":
		e, err = embedding.NewOllamaEmbedder(ec.Model, ec.BaseURL, ec.Dimension)
	case "mock":
		return embedding.NewHashEmbedder(ec.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}
	if err != nil {
		return nil, err
	}
	return e.WithTimeout(ec.Timeout), nil
}

func newDescriber(cfg *config.Config) (port.Describer, error) {
	vc := cfg.Vision
	switch vc.Provider {
	case "openai", "local":
		d, err := vision.NewChatDescriber(vc.Provider, vc.Model, vc.BaseURL, vc.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return d.WithPrompt(vc.Prompt).WithMaxTokens(vc.MaxTokens).WithTimeout(vc.Timeout), nil
	case "ollama":
		return vision.NewOllamaDescriber(vc.Model, vc.BaseURL).WithPrompt(vc.Prompt).WithTimeout(vc.Timeout), nil
	case "mock":
		return vision.NewStaticDescriber(""), nil
	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", vc.Provider)
	}
}
