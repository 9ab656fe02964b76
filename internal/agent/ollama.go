package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Ollama generates content through a local Ollama instance. The model must
// be multimodal, since every prompt carries the image.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllama creates an Ollama backend client.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Ollama{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies this backend in generation results.
func (o *Ollama) Name() string { return "ollama" }

// Generate produces the story first, then a title conditioned on the story,
// mirroring the two-call flow the generate API expects.
func (o *Ollama) Generate(ctx context.Context, image []byte, metadata string) (Draft, error) {
	encoded := base64.StdEncoding.EncodeToString(image)

	body, err := o.generate(ctx, fmt.Sprintf(storyPrompt, metadata), encoded)
	if err != nil {
		return Draft{}, fmt.Errorf("generate story: %w", err)
	}

	title, err := o.generate(ctx, fmt.Sprintf(titlePrompt, body), encoded)
	if err != nil {
		return Draft{}, fmt.Errorf("generate title: %w", err)
	}

	return Draft{Title: title, Body: body}, nil
}

func (o *Ollama) generate(ctx context.Context, prompt, encodedImage string) (string, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		Images: []string{encodedImage},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned %d", resp.StatusCode)
	}

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Response == "" {
		return "", fmt.Errorf("ollama returned empty response")
	}
	return decoded.Response, nil
}
