package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestChatDescriber_Describe(t *testing.T) {
	var raw map[string]any
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &raw))
		require.NoError(t, json.Unmarshal(body, &got))

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  An orange cat on a windowsill. "}}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_VISION_KEY", "secret")
	d, err := NewChatDescriber("openai", "gpt-4o-mini", srv.URL, "TEST_VISION_KEY")
	require.NoError(t, err)

	text, err := d.Describe(context.Background(), pngHeader, "")
	require.NoError(t, err)
	assert.Equal(t, "An orange cat on a windowsill.", text)

	temp, present := raw["temperature"]
	assert.True(t, present, "temperature must be sent even when zero")
	assert.Equal(t, float64(0), temp)

	require.Len(t, got.Messages, 1)
	parts := got.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, DefaultPrompt, parts[0].Text)
	require.NotNil(t, parts[1].ImageURL)
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
	assert.Equal(t, want, parts[1].ImageURL.URL)
}

func TestChatDescriber_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusInternalServerError, `boom`},
		{"api error", http.StatusOK, `{"error":{"message":"bad image"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"empty text", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d, err := NewChatDescriber("local", "llava", srv.URL, "")
			require.NoError(t, err)
			_, err = d.Describe(context.Background(), pngHeader, "image/png")
			assert.Error(t, err)
		})
	}
}

func TestNewChatDescriber_UnknownProvider(t *testing.T) {
	_, err := NewChatDescriber("acme", "m", "", "")
	assert.Error(t, err)
}

func TestOllamaDescriber_Describe(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaResponse{Response: "A dog on a beach.", Done: true})
	}))
	defer srv.Close()

	d := NewOllamaDescriber("", srv.URL).WithPrompt("What is this?")
	text, err := d.Describe(context.Background(), pngHeader, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "A dog on a beach.", text)
	assert.Equal(t, "llava", got.Model)
	assert.Equal(t, "What is this?", got.Prompt)
	assert.False(t, got.Stream)
	assert.Zero(t, got.Options.Temperature)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString(pngHeader)}, got.Images)
}

func TestStaticDescriber(t *testing.T) {
	d := NewStaticDescriber("")
	d.Set([]byte("cat"), "A cat.")

	text, err := d.Describe(context.Background(), []byte("cat"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "A cat.", text)

	text, err = d.Describe(context.Background(), []byte("other"), "image/jpeg")
	require.NoError(t, err)
	assert.Contains(t, text, "image/jpeg")
}
