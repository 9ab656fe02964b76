package ghost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

// Post is the fully assembled payload for one blog post.
type Post struct {
	Title        string
	Tags         []string
	HTML         string
	FeatureImage string
	Status       string
	Visibility   string
	PublishedAt  time.Time
}

type postPayload struct {
	Title        string   `json:"title"`
	Tags         []string `json:"tags"`
	HTML         string   `json:"html"`
	FeatureImage string   `json:"feature_image,omitempty"`
	Status       string   `json:"status"`
	Visibility   string   `json:"visibility,omitempty"`
	PublishedAt  string   `json:"published_at,omitempty"`
}

type postsEnvelope struct {
	Posts []postPayload `json:"posts"`
}

type postsResponse struct {
	Posts []PostSummary `json:"posts"`
}

// PostSummary is the subset of post fields the maintenance commands need.
type PostSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Visibility  string `json:"visibility"`
	UpdatedAt   string `json:"updated_at"`
	PublishedAt string `json:"published_at"`
}

type uploadResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// UploadImage uploads one rendered asset to the CMS binary store and returns
// its public URL. Anything but the created status is ErrUploadFailed.
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open asset %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy asset into request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL+"/images/upload/", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := c.authorize(req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrUploadFailed, resp.StatusCode, body)
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", domain.ErrUploadFailed, err)
	}
	if len(decoded.Images) == 0 || decoded.Images[0].URL == "" {
		return "", fmt.Errorf("%w: response carried no image URL", domain.ErrUploadFailed)
	}

	c.log.Debug("uploaded asset",
		logger.String("file", filepath.Base(path)),
		logger.String("url", decoded.Images[0].URL),
	)
	return decoded.Images[0].URL, nil
}

// CreatePost submits an assembled post document. Only the created status
// counts as success; anything else is ErrPublishRejected. At most one
// submission happens per call.
func (c *Client) CreatePost(ctx context.Context, post Post) (string, error) {
	payload := postPayload{
		Title:        post.Title,
		Tags:         post.Tags,
		HTML:         post.HTML,
		FeatureImage: post.FeatureImage,
		Status:       post.Status,
		Visibility:   post.Visibility,
	}
	if payload.Status == "" {
		payload.Status = "published"
	}
	if !post.PublishedAt.IsZero() {
		payload.PublishedAt = post.PublishedAt.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(postsEnvelope{Posts: []postPayload{payload}})
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL+"/posts/?source=html", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrPublishRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrPublishRejected, resp.StatusCode, respBody)
	}

	var decoded postsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		// The post was created; a malformed body only costs us the id.
		c.log.Warn("created post but could not decode response", logger.Error(err))
		return "", nil
	}

	var postID string
	if len(decoded.Posts) > 0 {
		postID = decoded.Posts[0].ID
	}
	c.log.Info("posted article",
		logger.String("title", post.Title),
		logger.String("post_id", postID),
	)
	return postID, nil
}

// ListPosts fetches all posts through the Content API, oldest first.
// Requires the content API key.
func (c *Client) ListPosts(ctx context.Context) ([]PostSummary, error) {
	if c.contentKey == "" {
		return nil, fmt.Errorf("content API key is not configured")
	}

	q := url.Values{}
	q.Set("key", c.contentKey)
	q.Set("limit", "all")
	q.Set("order", "published_at asc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentURL+"/posts/?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content API returned %d", resp.StatusCode)
	}

	var decoded postsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded.Posts, nil
}

// DeletePost removes one post by id. Ghost signals success with 204.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.adminURL+"/posts/"+id, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete returned %d", resp.StatusCode)
	}
	return nil
}

// UpdatePostVisibility sets a post's visibility. Ghost requires the post's
// current updated_at for optimistic concurrency.
func (c *Client) UpdatePostVisibility(ctx context.Context, id, updatedAt, visibility string) error {
	body, err := json.Marshal(map[string]any{
		"posts": []map[string]string{{
			"updated_at": updatedAt,
			"visibility": visibility,
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.adminURL+"/posts/"+id+"/?source=html", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update returned %d", resp.StatusCode)
	}
	return nil
}
