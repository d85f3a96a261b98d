package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosearch/internal/domain"
	"photosearch/internal/port"
)

func testStoreContract(t *testing.T, store port.BlobStore) {
	ctx := context.Background()

	ok, err := store.Exists(ctx, "img/cat.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, "img/cat.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	data := []byte("\x89PNG\r\n\x1a\nfake-cat")
	require.NoError(t, store.Put(ctx, "img/cat.png", data))
	require.NoError(t, store.Put(ctx, "img/sub/dog.jpg", []byte("dog")))
	require.NoError(t, store.Put(ctx, "other/readme.txt", []byte("x")))

	ok, err = store.Exists(ctx, "img/cat.png")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, "img/cat.png")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	keys, err := store.List(ctx, "img/")
	require.NoError(t, err)
	assert.Equal(t, []string{"img/cat.png", "img/sub/dog.jpg"}, keys)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	testStoreContract(t, store)
	assert.Equal(t, 3, store.Len())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	testStoreContract(t, store)

	_, err = os.Stat(filepath.Join(dir, "img", "cat.png"))
	require.NoError(t, err)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, store.Put(ctx, "../escape.png", []byte("x")))
	assert.Error(t, store.Put(ctx, "/abs.png", []byte("x")))
	assert.Error(t, store.Put(ctx, "img/../../escape.png", []byte("x")))
	_, err = store.Exists(ctx, "")
	assert.Error(t, err)
}

func TestLocalStore_AllowsDotsInsideNames(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "img/my..cat.png", []byte("x")))

	ok, err := store.Exists(ctx, "img/my..cat.png")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, "img/my..cat.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	keys, err := store.List(ctx, "img/")
	require.NoError(t, err)
	assert.Equal(t, []string{"img/my..cat.png"}, keys)
}

func TestLocalStore_OverwriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "img/a.png", []byte("first")))
	require.NoError(t, store.Put(ctx, "img/a.png", []byte("second")))

	got, err := store.Get(ctx, "img/a.png")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"img/a.png"}, keys, "no temp files left behind")
}
