package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosearch/internal/adapter/blob"
	"photosearch/internal/domain"
)

func TestIngest_CatOnWindowsill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cat := env.addPhoto(t, "cat.png", "A photo of an orange cat sitting on a windowsill")
	env.addPhoto(t, "dog.jpg", "A brown dog running along a sandy beach")
	env.addPhoto(t, "bike.jpeg", "A red bicycle leaning against a brick wall")

	assert.Equal(t, "cat.png", cat.Path)
	assert.Equal(t, "A photo of an orange cat sitting on a windowsill", cat.Text)
	assert.Len(t, cat.Vector, testDim)

	ok, err := env.blobs.Exists(ctx, "img/cat.png")
	require.NoError(t, err)
	assert.True(t, ok)

	results, err := env.retrieve.Retrieve(ctx, domain.RetrieveRequest{Query: "cat on a windowsill", Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "cat.png", results[0].Path)
	require.NotNil(t, results[0].Score)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, *results[i-1].Score, *results[i].Score)
	}
}

func TestIngest_DuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addPhoto(t, "cat.png", "A photo of an orange cat sitting on a windowsill")
	before := env.count(t)
	original, err := env.blobs.Get(ctx, "img/cat.png")
	require.NoError(t, err)

	_, err = env.ingest.Ingest(ctx, domain.IngestRequest{Name: "cat.png", Data: []byte("different bytes")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.True(t, domain.IsDuplicate(err))

	var ie *domain.IngestError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, domain.StageDedup, ie.Stage)

	assert.Equal(t, before, env.count(t))
	after, err := env.blobs.Get(ctx, "img/cat.png")
	require.NoError(t, err)
	assert.Equal(t, original, after)
	assert.Equal(t, 1, env.blobs.Len())
}

func TestIngest_IndexRejectsRacingDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	racing := env.newIngest(blindStore{env.blobs}, env.describer, env.embedder)

	env.addPhoto(t, "cat.png", "A cat")

	_, err := racing.Ingest(ctx, domain.IngestRequest{Name: "cat.png", Data: []byte("image-bytes:cat.png")})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.ErrorIs(t, err, domain.ErrDuplicatePath)

	var ie *domain.IngestError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, domain.StageIndex, ie.Stage)
	assert.Equal(t, 1, env.count(t))
}

func TestIngest_DescriptionFailureLeavesBlobWithoutRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	uc := env.newIngest(env.blobs, failingDescriber{}, env.embedder)

	_, err := uc.Ingest(ctx, domain.IngestRequest{Name: "cat.png", Data: []byte("cat")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDescriptionFailure)
	assert.False(t, errors.Is(err, domain.ErrStorageFailure))

	ok, err := env.blobs.Exists(ctx, "img/cat.png")
	require.NoError(t, err)
	assert.True(t, ok, "blob is written before describing")

	indexed, err := env.index.HasPath(ctx, "photos", "cat.png")
	require.NoError(t, err)
	assert.False(t, indexed)
	assert.Zero(t, env.count(t))

	orphans, err := env.photos.Orphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat.png"}, orphans)
}

func TestIngest_StageErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		uc    *IngestUseCase
		kind  error
		stage domain.Stage
	}{
		{"storage", env.newIngest(failingPutStore{env.blobs}, env.describer, env.embedder), domain.ErrStorageFailure, domain.StageStore},
		{"embedding", env.newIngest(env.blobs, env.describer, failingEmbedder{env.embedder}), domain.ErrEmbeddingFailure, domain.StageEmbed},
		{"wrong dimension", env.newIngest(env.blobs, env.describer, shortEmbedder{env.embedder}), domain.ErrEmbeddingFailure, domain.StageEmbed},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := fmt.Sprintf("photo%d.png", i)
			_, err := tt.uc.Ingest(context.Background(), domain.IngestRequest{Name: name, Data: []byte(name)})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var ie *domain.IngestError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.stage, ie.Stage)
			assert.Equal(t, name, ie.Name)

			indexed, err := env.index.HasPath(context.Background(), "photos", name)
			require.NoError(t, err)
			assert.False(t, indexed)
		})
	}
	assert.Zero(t, env.count(t))
}

func TestIngest_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  domain.IngestRequest
	}{
		{"empty name", domain.IngestRequest{Name: " ", Data: []byte("x")}},
		{"empty data", domain.IngestRequest{Name: "a.png"}},
		{"absolute", domain.IngestRequest{Name: "/etc/a.png", Data: []byte("x")}},
		{"escape", domain.IngestRequest{Name: "../a.png", Data: []byte("x")}},
		{"not an image", domain.IngestRequest{Name: "notes.txt", Data: []byte("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ingest.Ingest(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Zero(t, env.blobs.Len())
}

func TestIngest_MaxBytes(t *testing.T) {
	env := newTestEnv(t)
	uc := NewIngestUseCase(env.blobs, env.describer, env.embedder, env.index,
		IngestSettings{Collection: "photos", MaxBytes: 4}, nil)

	_, err := uc.Ingest(context.Background(), domain.IngestRequest{Name: "big.png", Data: []byte("12345")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCleanName(t *testing.T) {
	got, err := CleanName(`trips\2024/./Beach.JPG`)
	require.NoError(t, err)
	assert.Equal(t, "trips/2024/Beach.JPG", got)
}

func TestIngest_LocalStoreDotsInName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	local, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	uc := env.newIngest(local, env.describer, env.embedder)
	photos := NewPhotoUseCase(local, env.index, "photos", "", nil)

	data := []byte("image-bytes:my..cat.png")
	env.describer.Set(data, "A grey cat asleep in a basket")
	rec, err := uc.Ingest(ctx, domain.IngestRequest{Name: "my..cat.png", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "my..cat.png", rec.Path)

	got, err := photos.Get(ctx, "my..cat.png")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = uc.Ingest(ctx, domain.IngestRequest{Name: "my..cat.png", Data: data})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestIngest_ConcurrentIngestsGetDistinctIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 16
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("p%02d.png", i)
			rec, err := env.ingest.Ingest(ctx, domain.IngestRequest{Name: name, Data: []byte(name)})
			assert.NoError(t, err)
			ids[i] = rec.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Equal(t, n, env.count(t))
}
