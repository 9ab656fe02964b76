// Package moderation decides whether an image is safe for unrestricted
// publication. A Client wraps one call to the NSFW detector sidecar; an
// Engine aggregates repeated calls into a Verdict.
package moderation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable indicates the NSFW detector sidecar is unreachable or
// answered with a non-OK status.
var ErrUnavailable = errors.New("nsfw detector unavailable")

// Sample is one classifier invocation's result. The two probabilities sum
// to approximately 1.
type Sample struct {
	SafeProbability   float64 `json:"sfw_probability"`
	UnsafeProbability float64 `json:"nsfw_probability"`
}

type classifyRequest struct {
	Image string `json:"image"`
}

// Client is an HTTP client for the NSFW detector sidecar.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a detector client. A timeout of zero falls back to 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Classify sends one classification request for the given image bytes.
// Any single failure is retryable at the sampling level, not fatal.
func (c *Client) Classify(ctx context.Context, image []byte) (Sample, error) {
	body, err := json.Marshal(classifyRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return Sample{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return Sample{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sample{}, fmt.Errorf("%w: detector returned %d", ErrUnavailable, resp.StatusCode)
	}

	var sample Sample
	if err := json.NewDecoder(resp.Body).Decode(&sample); err != nil {
		return Sample{}, fmt.Errorf("decode response: %w", err)
	}
	return sample, nil
}

// Health checks whether the detector sidecar is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unhealthy status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
