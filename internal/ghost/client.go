// Package ghost is a client for the Ghost CMS Admin and Content APIs (v3).
// Admin calls authenticate with a short-lived signed JWT regenerated per
// call; Content API calls use the read-only content key.
package ghost

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/config"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

const (
	acceptVersion = "v3.0"
	tokenLifetime = 5 * time.Minute
	adminAudience = "/v3/admin/"
)

// Client talks to one Ghost installation.
type Client struct {
	adminURL   string
	contentURL string
	keyID      string
	secret     []byte
	contentKey string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient parses the admin API key ("id:hexsecret") and builds a client.
// A malformed key is a configuration error and fatal for the run.
func NewClient(cfg config.GhostConfig, log logger.Logger) (*Client, error) {
	if cfg.Domain == "" {
		return nil, errors.New("ghost domain is required")
	}

	id, hexSecret, ok := strings.Cut(cfg.AdminAPIKey, ":")
	if !ok || id == "" || hexSecret == "" {
		return nil, errors.New("ghost admin API key must be in id:secret form")
	}
	secret, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("decode ghost admin secret: %w", err)
	}

	return &Client{
		adminURL:   fmt.Sprintf("https://%s/ghost/api/v3/admin", cfg.Domain),
		contentURL: fmt.Sprintf("https://%s/ghost/api/v3/content", cfg.Domain),
		keyID:      id,
		secret:     secret,
		contentKey: cfg.ContentAPIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}, nil
}

// token signs a fresh admin JWT: HS256, kid = key id, five-minute expiry,
// audience fixed to the v3 admin API.
func (c *Client) token() (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
		"aud": adminAudience,
	})
	tok.Header["kid"] = c.keyID

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// authorize sets the admin JWT and version headers on a request.
func (c *Client) authorize(req *http.Request) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Ghost "+tok)
	req.Header.Set("Accept-Version", acceptVersion)
	return nil
}
