package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosearch/internal/adapter/fs"
	"photosearch/internal/domain"
	"photosearch/internal/port"
)

func writeImage(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestBatchIngest(t *testing.T) {
	env := newTestEnv(t)
	root := t.TempDir()
	writeImage(t, root, "cat.png", "cat-bytes")
	writeImage(t, root, "trips/beach.jpg", "beach-bytes")
	writeImage(t, root, "notes.txt", "ignored")
	env.describer.Set([]byte("cat-bytes"), "An orange cat on a windowsill")
	env.describer.Set([]byte("beach-bytes"), "Waves on a sandy beach")

	walker := fs.NewWalker([]string{"**/*.png", "**/*.jpg"}, nil)
	uc := NewBatchIngestUseCase(env.ingest, walker, 4, nil)

	var calls atomic.Int32
	res, err := uc.IngestDir(context.Background(), root, func(port.FileInfo, error) { calls.Add(1) })
	require.NoError(t, err)

	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 2, res.Ingested)
	assert.Zero(t, res.Failed)
	assert.Equal(t, int32(2), calls.Load())

	names, err := env.photos.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cat.png", "trips/beach.jpg"}, names)

	again, err := uc.IngestDir(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Duplicates)
	assert.Zero(t, again.Ingested)
	assert.Zero(t, again.Failed)
	assert.NotEqual(t, res.BatchID, again.BatchID)
}

func TestBatchIngest_CollectsFailures(t *testing.T) {
	env := newTestEnv(t)
	root := t.TempDir()
	writeImage(t, root, "a.png", "a")
	writeImage(t, root, "b.png", "b")

	failing := env.newIngest(env.blobs, failingDescriber{}, env.embedder)
	uc := NewBatchIngestUseCase(failing, fs.NewWalker([]string{"**/*.png"}, nil), 2, nil)

	res, err := uc.IngestDir(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "a.png", res.Errors[0].Path)
	assert.ErrorIs(t, res.Errors[0].Err, domain.ErrDescriptionFailure)
}

func TestBatchIngest_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	root := t.TempDir()
	writeImage(t, root, "a.png", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := NewBatchIngestUseCase(env.ingest, fs.NewWalker(nil, nil), 1, nil)
	_, err := uc.IngestDir(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
