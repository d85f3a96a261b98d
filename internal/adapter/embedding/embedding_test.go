package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosearch/internal/domain"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, "An orange cat on a windowsill")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "An orange cat on a windowsill")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 128)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestHashEmbedder_RanksSharedWordsHigher(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "cat on a windowsill")
	cat, _ := e.Embed(ctx, "A photo of an orange cat sitting on a windowsill")
	dog, _ := e.Embed(ctx, "A brown dog running along a sandy beach")

	assert.Greater(t, cosine(query, cat), cosine(query, dog))
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	vec, err := NewHashEmbedder(16).Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"two", "cat", "grass"}, Tokenize("Two cats, on the grass!"))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: []float32{0.1, 0.2, 0.3, 0.4}, Index: 0}},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_EMBED_KEY", "test-key")
	e, err := NewOpenAICompatibleEmbedder("TEST_EMBED_KEY", "text-embedding-3-small", srv.URL, 4)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vec)
	assert.Equal(t, []string{"hello"}, got.Input)
	assert.Equal(t, 4, got.Dimensions, "shortened dimension is requested from the provider")
	assert.Equal(t, 4, e.Dimension())
	assert.Equal(t, "text-embedding-3-small", e.ModelName())
}

func TestOpenAIEmbedder_WrongLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: []float32{1, 2}}},
		})
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder("nomic-embed-text", srv.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimension())

	_, err = e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder("all-minilm", srv.URL, 0)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewOpenAIEmbedder_MissingKey(t *testing.T) {
	t.Setenv("TEST_EMBED_MISSING", "")
	_, err := NewOpenAIEmbedder("TEST_EMBED_MISSING", "text-embedding-3-small", 0)
	assert.Error(t, err)
}

func TestNewOllamaEmbedder_UnknownModelNeedsDimension(t *testing.T) {
	_, err := NewOllamaEmbedder("custom-model", "", 0)
	assert.Error(t, err)

	e, err := NewOllamaEmbedder("custom-model", "", 512)
	require.NoError(t, err)
	assert.Equal(t, 512, e.Dimension())
	assert.False(t, e.sendDimensions)
}
