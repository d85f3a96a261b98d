package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultPrompt is sent alongside the image when none is configured.
const DefaultPrompt = "Describe this photo in one or two plain sentences. Mention the main subjects, setting, colors and activity."

// ChatDescriber describes images through an OpenAI-compatible
// /chat/completions endpoint that accepts image_url content parts.
type ChatDescriber struct {
	baseURL   string
	apiKey    string
	model     string
	prompt    string
	maxTokens int
	client    *http.Client
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// Temperature has no omitempty: zero must reach the provider.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

var providers = map[string]string{
	"openai": "https://api.openai.com/v1",
	"local":  "http://localhost:11434/v1",
}

// NewChatDescriber creates a describer for provider. baseURL overrides the
// provider default; apiKeyEnv may be empty for local endpoints.
func NewChatDescriber(provider, model, baseURL, apiKeyEnv string) (*ChatDescriber, error) {
	if baseURL == "" {
		var ok bool
		baseURL, ok = providers[provider]
		if !ok {
			return nil, fmt.Errorf("unknown vision provider: %s (set vision.base_url for custom endpoints)", provider)
		}
	}

	var apiKey string
	if apiKeyEnv != "" {
		apiKey = os.Getenv(apiKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found. Set %s environment variable", apiKeyEnv)
		}
	}

	return &ChatDescriber{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		prompt:    DefaultPrompt,
		maxTokens: 300,
		client:    &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// WithPrompt sets the instruction sent with every image.
func (d *ChatDescriber) WithPrompt(prompt string) *ChatDescriber {
	if prompt != "" {
		d.prompt = prompt
	}
	return d
}

func (d *ChatDescriber) WithMaxTokens(n int) *ChatDescriber {
	if n > 0 {
		d.maxTokens = n
	}
	return d
}

func (d *ChatDescriber) WithTimeout(t time.Duration) *ChatDescriber {
	if t > 0 {
		d.client.Timeout = t
	}
	return d
}

func (d *ChatDescriber) ModelName() string { return d.model }

// Describe sends the image as a base64 data URI with temperature 0.
func (d *ChatDescriber) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	req := chatRequest{
		Model: d.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: d.prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			},
		}},
		Temperature: 0,
		MaxTokens:   d.maxTokens,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("model returned an empty description")
	}
	return text, nil
}
