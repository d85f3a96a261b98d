package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"photosearch/internal/domain"
	"photosearch/internal/logging"
	"photosearch/internal/port"
)

// IngestUseCase adds photos: duplicate check, store blob, describe, embed,
// index. Steps run strictly in order and nothing is retried or rolled back.
type IngestUseCase struct {
	blobs      port.BlobStore
	describer  port.Describer
	embedder   port.Embedder
	index      port.VectorIndex
	collection string
	namespace  string
	maxBytes   int64
	logger     *slog.Logger
	now        func() time.Time
}

// IngestSettings are the static parameters of an IngestUseCase.
type IngestSettings struct {
	Collection string
	Namespace  string // blob key prefix, defaults to domain.DefaultNamespace
	MaxBytes   int64  // 0 = unlimited
}

func NewIngestUseCase(
	blobs port.BlobStore,
	describer port.Describer,
	embedder port.Embedder,
	index port.VectorIndex,
	settings IngestSettings,
	logger *slog.Logger,
) *IngestUseCase {
	ns := settings.Namespace
	if ns == "" {
		ns = domain.DefaultNamespace
	}
	return &IngestUseCase{
		blobs:      blobs,
		describer:  describer,
		embedder:   embedder,
		index:      index,
		collection: settings.Collection,
		namespace:  ns,
		maxBytes:   settings.MaxBytes,
		logger:     logging.OrDiscard(logger),
		now:        time.Now,
	}
}

// BlobKey returns the blob store key for a photo name.
func (u *IngestUseCase) BlobKey(name string) string {
	return u.namespace + name
}

// Ingest runs the pipeline for one photo. Errors are *domain.IngestError.
func (u *IngestUseCase) Ingest(ctx context.Context, req domain.IngestRequest) (domain.PhotoRecord, error) {
	name, err := CleanName(req.Name)
	if err != nil {
		return domain.PhotoRecord{}, u.fail(domain.StageValidate, req.Name, domain.ErrInvalidInput, err)
	}
	if len(req.Data) == 0 {
		return domain.PhotoRecord{}, u.fail(domain.StageValidate, name, domain.ErrInvalidInput, errors.New("empty image"))
	}
	if u.maxBytes > 0 && int64(len(req.Data)) > u.maxBytes {
		return domain.PhotoRecord{}, u.fail(domain.StageValidate, name, domain.ErrInvalidInput,
			fmt.Errorf("image is %d bytes, limit is %d", len(req.Data), u.maxBytes))
	}

	key := u.BlobKey(name)
	log := u.logger.With("name", name, "key", key)

	exists, err := u.blobs.Exists(ctx, key)
	if err != nil {
		return domain.PhotoRecord{}, u.fail(domain.StageDedup, name, domain.ErrStorageFailure, err)
	}
	if exists {
		log.Info("photo already exists")
		return domain.PhotoRecord{}, &domain.IngestError{Stage: domain.StageDedup, Name: name, Kind: domain.ErrAlreadyExists}
	}

	if err := u.blobs.Put(ctx, key, req.Data); err != nil {
		return domain.PhotoRecord{}, u.fail(domain.StageStore, name, domain.ErrStorageFailure, err)
	}
	log.Debug("stored blob", "bytes", len(req.Data))

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(req.Data)
	}

	text, err := u.describer.Describe(ctx, req.Data, mimeType)
	if err != nil {
		log.Warn("blob stored without index record", "stage", domain.StageDescribe, "error", err)
		return domain.PhotoRecord{}, u.fail(domain.StageDescribe, name, domain.ErrDescriptionFailure, err)
	}
	log.Debug("described photo", "model", u.describer.ModelName(), "text", text)

	vec, err := u.embedder.Embed(ctx, text)
	if err == nil && len(vec) != u.embedder.Dimension() {
		err = fmt.Errorf("got %d values, want %d: %w", len(vec), u.embedder.Dimension(), domain.ErrDimensionMismatch)
	}
	if err != nil {
		log.Warn("blob stored without index record", "stage", domain.StageEmbed, "error", err)
		return domain.PhotoRecord{}, u.fail(domain.StageEmbed, name, domain.ErrEmbeddingFailure, err)
	}

	rec, err := u.index.Insert(ctx, u.collection, domain.PhotoRecord{
		Vector:    vec,
		Text:      text,
		Path:      name,
		CreatedAt: u.now().UTC(),
	})
	if errors.Is(err, domain.ErrDuplicatePath) {
		log.Info("photo indexed concurrently")
		return domain.PhotoRecord{}, &domain.IngestError{Stage: domain.StageIndex, Name: name, Kind: domain.ErrAlreadyExists, Err: err}
	}
	if err != nil {
		log.Warn("blob stored without index record", "stage", domain.StageIndex, "error", err)
		return domain.PhotoRecord{}, u.fail(domain.StageIndex, name, domain.ErrIndexFailure, err)
	}

	log.Info("ingested photo", "id", rec.ID)
	return rec, nil
}

func (u *IngestUseCase) fail(stage domain.Stage, name string, kind, err error) error {
	u.logger.Error("ingest failed", "name", name, "stage", stage, "error", err)
	return &domain.IngestError{Stage: stage, Name: name, Kind: kind, Err: err}
}

// CleanName normalizes a photo name to a relative slash path with an image
// extension.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", errors.New("empty name")
	}
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("name %q must be relative", name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("name %q escapes the namespace", name)
	}

	ext := strings.ToLower(path.Ext(cleaned))
	for _, allowed := range domain.ImageExtensions {
		if ext == allowed {
			return cleaned, nil
		}
	}
	return "", fmt.Errorf("name %q: unsupported extension, want one of %s",
		name, strings.Join(domain.ImageExtensions, ", "))
}
