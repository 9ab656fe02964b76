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

const anthropicAPIVersion = "2023-06-01"

// Claude generates content through the Anthropic messages API.
type Claude struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClaude creates a Claude backend client.
func NewClaude(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *Claude {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Claude{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies this backend in generation results.
func (c *Claude) Name() string { return "claude" }

// Generate produces the story first, then a title conditioned on the story.
// Both calls carry the image so the title can reference what is depicted.
func (c *Claude) Generate(ctx context.Context, image []byte, metadata string) (Draft, error) {
	mediaType := http.DetectContentType(image)
	encoded := base64.StdEncoding.EncodeToString(image)

	body, err := c.message(ctx, fmt.Sprintf(storyPrompt, metadata), mediaType, encoded)
	if err != nil {
		return Draft{}, fmt.Errorf("generate story: %w", err)
	}

	title, err := c.message(ctx, fmt.Sprintf(titlePrompt, body), mediaType, encoded)
	if err != nil {
		return Draft{}, fmt.Errorf("generate title: %w", err)
	}

	return Draft{Title: title, Body: body}, nil
}

func (c *Claude) message(ctx context.Context, prompt, mediaType, encodedImage string) (string, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{
					Type: "image",
					Source: &anthropicSource{
						Type:      "base64",
						MediaType: mediaType,
						Data:      encodedImage,
					},
				},
				{Type: "text", Text: prompt},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic returned %d", resp.StatusCode)
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Content) == 0 || decoded.Content[0].Text == "" {
		return "", fmt.Errorf("anthropic returned empty content")
	}
	return decoded.Content[0].Text, nil
}
