package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"photosearch/internal/adapter/blob"
	"photosearch/internal/adapter/embedding"
	"photosearch/internal/adapter/store"
	"photosearch/internal/adapter/vision"
	"photosearch/internal/domain"
	"photosearch/internal/port"
)

const testDim = 256

type testEnv struct {
	blobs     *blob.MemoryStore
	index     *store.BoltIndex
	describer *vision.StaticDescriber
	embedder  *embedding.HashEmbedder
	ingest    *IngestUseCase
	retrieve  *RetrieveUseCase
	photos    *PhotoUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	idx, err := store.OpenBoltIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	env := &testEnv{
		blobs:     blob.NewMemoryStore(),
		index:     idx,
		describer: vision.NewStaticDescriber(""),
		embedder:  embedding.NewHashEmbedder(testDim),
	}

	cu := NewCollectionUseCase(idx, nil)
	require.NoError(t, cu.Ensure(context.Background(), domain.Collection{
		Name: "photos", Dimension: testDim, Metric: domain.MetricCosine, Model: env.embedder.ModelName(),
	}))

	env.ingest = env.newIngest(env.blobs, env.describer, env.embedder)
	env.retrieve = NewRetrieveUseCase(env.embedder, idx, RetrieveSettings{Collection: "photos", TopK: 5}, nil)
	env.photos = NewPhotoUseCase(env.blobs, idx, "photos", "", nil)
	return env
}

func (e *testEnv) newIngest(blobs port.BlobStore, d port.Describer, emb port.Embedder) *IngestUseCase {
	return NewIngestUseCase(blobs, d, emb, e.index, IngestSettings{Collection: "photos"}, nil)
}

// addPhoto registers a description for data and ingests it.
func (e *testEnv) addPhoto(t *testing.T, name, description string) domain.PhotoRecord {
	t.Helper()
	data := []byte("image-bytes:" + name)
	e.describer.Set(data, description)
	rec, err := e.ingest.Ingest(context.Background(), domain.IngestRequest{Name: name, Data: data})
	require.NoError(t, err)
	return rec
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	n, err := e.index.Count(context.Background(), "photos")
	require.NoError(t, err)
	return n
}

type failingDescriber struct{}

func (failingDescriber) Describe(context.Context, []byte, string) (string, error) {
	return "", errors.New("vision model unavailable")
}
func (failingDescriber) ModelName() string { return "failing" }

type failingEmbedder struct{ port.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding quota exceeded")
}

type shortEmbedder struct{ port.Embedder }

func (shortEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

type failingPutStore struct{ port.BlobStore }

func (failingPutStore) Put(context.Context, string, []byte) error {
	return errors.New("bucket is read-only")
}

// blindStore never reports existing blobs, simulating a concurrent
// ingest that passed the duplicate check before the other wrote.
type blindStore struct{ port.BlobStore }

func (blindStore) Exists(context.Context, string) (bool, error) { return false, nil }
