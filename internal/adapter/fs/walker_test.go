package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestWalker_IncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "cat.png")
	writeFile(t, root, "trips/beach.JPG")
	writeFile(t, root, "trips/notes.txt")
	writeFile(t, root, ".photosearch/blobs/img/cat.png")
	writeFile(t, root, ".git/objects/x.png")

	w := NewWalker(
		[]string{"**/*.png", "**/*.PNG", "**/*.jpg", "**/*.JPG"},
		[]string{"**/.git/**", "**/.photosearch/**"},
	)
	files, err := w.Walk(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelPath)
		assert.True(t, filepath.IsAbs(f.Path))
		assert.Equal(t, int64(1), f.Size)
	}
	assert.Equal(t, []string{"cat.png", "trips/beach.JPG"}, rel)
}

func TestWalker_SingleFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dog.jpg")

	files, err := NewWalker(nil, nil).Walk(filepath.Join(root, "dog.jpg"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "dog.jpg", files[0].RelPath)
}

func TestWalker_MissingRoot(t *testing.T) {
	_, err := NewWalker(nil, nil).Walk(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
