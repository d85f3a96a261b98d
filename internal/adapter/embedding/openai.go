package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"photosearch/internal/domain"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	// sendDimensions asks the provider to shorten vectors to dimension.
	sendDimensions bool
	client         *http.Client
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

const (
	openAIBaseURL   = "https://api.openai.com/v1"
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	jinaBaseURL     = "https://api.jina.ai/v1"
	ollamaBaseURL   = "http://localhost:11434/v1"
)

// nativeDimension returns the default output size of well-known models, or 0.
func nativeDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "jina-embeddings-v3":
		return 1024
	case "jina-embeddings-v4":
		return 2048
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	}
	return 0
}

func NewOpenAIEmbedder(apiKeyEnv, model string, dimension int) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, openAIBaseURL, dimension)
}

func NewDeepSeekEmbedder(apiKeyEnv, model string, dimension int) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, deepSeekBaseURL, dimension)
}

func NewJinaEmbedder(apiKeyEnv, model string, dimension int) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, jinaBaseURL, dimension)
}

// NewOllamaEmbedder talks to Ollama's OpenAI-compatible endpoint. No API key is needed.
func NewOllamaEmbedder(model, baseURL string, dimension int) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	return newEmbedder("ollama", model, baseURL, dimension, 120*time.Second)
}

// NewOpenAICompatibleEmbedder reads the API key from apiKeyEnv. A zero
// dimension falls back to the model's native size.
func NewOpenAICompatibleEmbedder(apiKeyEnv, model, baseURL string, dimension int) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return newEmbedder(apiKey, model, baseURL, dimension, 60*time.Second)
}

func newEmbedder(apiKey, model, baseURL string, dimension int, timeout time.Duration) (*OpenAIEmbedder, error) {
	native := nativeDimension(model)
	if dimension <= 0 {
		dimension = native
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("unknown dimension for model %s, set embedding.dimension", model)
	}

	return &OpenAIEmbedder{
		apiKey:         apiKey,
		model:          model,
		baseURL:        baseURL,
		dimension:      dimension,
		sendDimensions: native != 0 && dimension != native,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// WithTimeout replaces the HTTP client timeout.
func (e *OpenAIEmbedder) WithTimeout(d time.Duration) *OpenAIEmbedder {
	if d > 0 {
		e.client.Timeout = d
	}
	return e
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingRequest{
		Input: []string{text},
		Model: e.model,
	}
	if e.sendDimensions {
		reqBody.Dimensions = e.dimension
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200]
		}
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", bodyPreview, err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("API returned no embeddings")
	}

	vec := embResp.Data[0].Embedding
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("model %s returned %d values, want %d: %w",
			e.model, len(vec), e.dimension, domain.ErrDimensionMismatch)
	}
	return vec, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
