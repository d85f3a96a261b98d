package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaDescriber uses Ollama's native /api/generate endpoint with a
// multimodal model such as llava.
type OllamaDescriber struct {
	baseURL string
	model   string
	prompt  string
	client  *http.Client
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Images  []string      `json:"images"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func NewOllamaDescriber(model, baseURL string) *OllamaDescriber {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llava"
	}
	return &OllamaDescriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		prompt:  DefaultPrompt,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (d *OllamaDescriber) WithPrompt(prompt string) *OllamaDescriber {
	if prompt != "" {
		d.prompt = prompt
	}
	return d
}

func (d *OllamaDescriber) WithTimeout(t time.Duration) *OllamaDescriber {
	if t > 0 {
		d.client.Timeout = t
	}
	return d
}

func (d *OllamaDescriber) ModelName() string { return d.model }

func (d *OllamaDescriber) Describe(ctx context.Context, image []byte, _ string) (string, error) {
	url := fmt.Sprintf("%s/api/generate", d.baseURL)

	reqBody := ollamaRequest{
		Model:   d.model,
		Prompt:  d.prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
		Stream:  false,
		Options: ollamaOptions{Temperature: 0},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if ollamaResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", ollamaResp.Error)
	}

	text := strings.TrimSpace(ollamaResp.Response)
	if text == "" {
		return "", fmt.Errorf("ollama returned an empty description")
	}
	return text, nil
}
