// Package config holds the pipeline configuration. Values come from an
// optional YAML file, with .env files and environment variables layered on
// top via `env` struct tags (environment always wins).
package config

import (
	"errors"
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultSampleCount   = 10
	DefaultVoteThreshold = 0.5
	DefaultMaxBlurRadius = 20
	DefaultJPEGQuality   = 90
	DefaultTitleMaxLen   = 180
	DefaultConcurrency   = 4
	DefaultPollInterval  = 5 * time.Minute
	DefaultCallTimeout   = 30 * time.Second
	DefaultAgentTimeout  = 2 * time.Minute
	defaultOllamaURL     = "http://localhost:11434"
	defaultAnthropicURL  = "https://api.anthropic.com"
	defaultDedupDistance = 10
)

// Config holds all configuration for the pipeline.
type Config struct {
	Debug       bool             `env:"APP_DEBUG"  yaml:"debug"`
	Directories DirectoryConfig  `yaml:"directories"`
	Moderation  ModerationConfig `yaml:"moderation"`
	Render      RenderConfig     `yaml:"render"`
	Agents      AgentConfig      `yaml:"agents"`
	Ghost       GhostConfig      `yaml:"ghost"`
	Tags        TagsConfig       `yaml:"tags"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}

// DirectoryConfig names the filesystem boundaries of the pipeline.
type DirectoryConfig struct {
	Input   string `env:"INPUT_DIR"   yaml:"input"`
	Output  string `env:"OUTPUT_DIR"  yaml:"output"`
	Archive string `env:"ARCHIVE_DIR" yaml:"archive"`
}

// ModerationConfig configures the NSFW detector sidecar and the decision engine.
type ModerationConfig struct {
	DetectorURL   string        `env:"NSFW_DETECTOR_URL" yaml:"detector_url"`
	SampleCount   int           `env:"NSFW_SAMPLE_COUNT" yaml:"sample_count"`
	VoteThreshold float64       `env:"NSFW_THRESHOLD"    yaml:"vote_threshold"`
	Timeout       time.Duration `yaml:"timeout"`
}

// RenderConfig configures watermarking and moderation blur.
type RenderConfig struct {
	WatermarkPath string `env:"WATERMARK_PATH"       yaml:"watermark"`
	MarkerPath    string `env:"MODERATION_MARK_PATH" yaml:"moderation_marker"`
	MaxBlurRadius int    `yaml:"max_blur_radius"`
	JPEGQuality   int    `yaml:"jpeg_quality"`
}

// AgentConfig configures the generative backends and their ordering.
type AgentConfig struct {
	// Primary and Fallback name backends by identifier: "ollama" or "claude".
	Primary     string          `env:"LLM_PRIMARY"  yaml:"primary"`
	Fallback    string          `env:"LLM_FALLBACK" yaml:"fallback"`
	TitleMaxLen int             `yaml:"title_max_length"`
	Ollama      OllamaConfig    `yaml:"ollama"`
	Anthropic   AnthropicConfig `yaml:"anthropic"`
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	URL     string        `env:"OLLAMA_URL"   yaml:"url"`
	Model   string        `env:"OLLAMA_MODEL" yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// AnthropicConfig configures the remote Claude backend.
type AnthropicConfig struct {
	URL       string        `yaml:"url"`
	APIKey    string        `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model     string        `env:"ANTHROPIC_MODEL"   yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// GhostConfig configures the Ghost CMS endpoint and credentials.
type GhostConfig struct {
	// Domain is the blog domain without scheme, e.g. "blog.example.com".
	Domain string `env:"GHOST_BLOG_URL" yaml:"domain"`
	// AdminAPIKey is the Ghost admin key in "id:hexsecret" form.
	AdminAPIKey string `env:"GHOST_ADMIN_API_KEY" yaml:"admin_api_key"`
	// ContentAPIKey authenticates read-only Content API calls.
	ContentAPIKey string        `env:"GHOST_API_KEY" yaml:"content_api_key"`
	Visibility    string        `yaml:"visibility"`
	TagLine       string        `env:"TAGLINE" yaml:"tag_line"`
	Timeout       time.Duration `yaml:"timeout"`
}

// TagsConfig configures post tagging.
type TagsConfig struct {
	Base   string `yaml:"base"`
	Unsafe string `yaml:"unsafe"`
	// Keywords are matched against sidecar generation metadata; hits become
	// additional post tags.
	Keywords []string `yaml:"keywords"`
}

// PipelineConfig configures the batch driver.
type PipelineConfig struct {
	Concurrency   int           `env:"PIPELINE_CONCURRENCY" yaml:"concurrency"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	DedupEnabled  bool          `yaml:"dedup_enabled"`
	DedupDistance int           `yaml:"dedup_distance"`
}

// MetricsConfig configures the optional Prometheus listener (watch mode only).
type MetricsConfig struct {
	Address string `env:"METRICS_ADDR" yaml:"address"`
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	if c.Directories.Input == "" {
		return errors.New("directories.input is required")
	}
	if c.Directories.Output == "" {
		return errors.New("directories.output is required")
	}
	if c.Directories.Archive == "" {
		return errors.New("directories.archive is required")
	}

	if err := c.Moderation.validate(); err != nil {
		return err
	}

	if c.Render.WatermarkPath == "" {
		return errors.New("render.watermark is required")
	}
	if c.Render.MarkerPath == "" {
		c.Render.MarkerPath = c.Render.WatermarkPath
	}
	if c.Render.MaxBlurRadius <= 0 {
		c.Render.MaxBlurRadius = DefaultMaxBlurRadius
	}
	if c.Render.JPEGQuality <= 0 || c.Render.JPEGQuality > 100 {
		c.Render.JPEGQuality = DefaultJPEGQuality
	}

	c.Agents.setDefaults()
	c.Ghost.setDefaults()

	if c.Ghost.Domain == "" {
		return errors.New("ghost.domain is required")
	}
	if c.Ghost.AdminAPIKey == "" {
		return errors.New("ghost.admin_api_key is required")
	}

	if c.Tags.Base == "" {
		c.Tags.Base = "ai_art"
	}
	if c.Tags.Unsafe == "" {
		c.Tags.Unsafe = "nsfw"
	}

	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = DefaultConcurrency
	}
	if c.Pipeline.PollInterval <= 0 {
		c.Pipeline.PollInterval = DefaultPollInterval
	}
	if c.Pipeline.DedupDistance <= 0 {
		c.Pipeline.DedupDistance = defaultDedupDistance
	}

	return nil
}

func (m *ModerationConfig) validate() error {
	if m.DetectorURL == "" {
		return errors.New("moderation.detector_url is required")
	}
	if m.SampleCount == 0 {
		m.SampleCount = DefaultSampleCount
	}
	if m.SampleCount < 1 {
		return fmt.Errorf("moderation.sample_count must be >= 1, got %d", m.SampleCount)
	}
	if m.VoteThreshold == 0 {
		m.VoteThreshold = DefaultVoteThreshold
	}
	if m.VoteThreshold <= 0 || m.VoteThreshold >= 1 {
		return fmt.Errorf("moderation.vote_threshold must be in (0,1), got %g", m.VoteThreshold)
	}
	if m.Timeout <= 0 {
		m.Timeout = DefaultCallTimeout
	}
	return nil
}

func (a *AgentConfig) setDefaults() {
	if a.Primary == "" {
		a.Primary = "ollama"
	}
	if a.Fallback == "" {
		a.Fallback = a.Primary
	}
	if a.TitleMaxLen <= 0 {
		a.TitleMaxLen = DefaultTitleMaxLen
	}
	if a.Ollama.URL == "" {
		a.Ollama.URL = defaultOllamaURL
	}
	if a.Ollama.Timeout <= 0 {
		a.Ollama.Timeout = DefaultAgentTimeout
	}
	if a.Anthropic.URL == "" {
		a.Anthropic.URL = defaultAnthropicURL
	}
	if a.Anthropic.MaxTokens <= 0 {
		a.Anthropic.MaxTokens = 1024
	}
	if a.Anthropic.Timeout <= 0 {
		a.Anthropic.Timeout = DefaultAgentTimeout
	}
}

func (g *GhostConfig) setDefaults() {
	if g.Visibility == "" {
		g.Visibility = "members"
	}
	if g.Timeout <= 0 {
		g.Timeout = DefaultCallTimeout
	}
}
