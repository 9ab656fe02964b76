package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
directories:
  input: /data/input
  output: /data/output
  archive: /data/archive
moderation:
  detector_url: http://localhost:3333
render:
  watermark: /data/watermark.png
ghost:
  domain: blog.example.com
  admin_api_key: abc123:deadbeef
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "/data/input", cfg.Directories.Input)
	assert.Equal(t, DefaultSampleCount, cfg.Moderation.SampleCount)
	assert.Equal(t, DefaultVoteThreshold, cfg.Moderation.VoteThreshold)
	assert.Equal(t, DefaultMaxBlurRadius, cfg.Render.MaxBlurRadius)
	assert.Equal(t, DefaultJPEGQuality, cfg.Render.JPEGQuality)
	assert.Equal(t, "/data/watermark.png", cfg.Render.MarkerPath, "marker falls back to the watermark")
	assert.Equal(t, "ollama", cfg.Agents.Primary)
	assert.Equal(t, DefaultTitleMaxLen, cfg.Agents.TitleMaxLen)
	assert.Equal(t, "members", cfg.Ghost.Visibility)
	assert.Equal(t, "ai_art", cfg.Tags.Base)
	assert.Equal(t, "nsfw", cfg.Tags.Unsafe)
	assert.Equal(t, DefaultConcurrency, cfg.Pipeline.Concurrency)
	assert.Equal(t, DefaultPollInterval, cfg.Pipeline.PollInterval)
}

func TestLoadFullYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
debug: true
directories:
  input: /in
  output: /out
  archive: /arch
moderation:
  detector_url: http://detector:3333
  sample_count: 6
  vote_threshold: 0.7
  timeout: 10s
render:
  watermark: /w.png
  moderation_marker: /m.png
  max_blur_radius: 12
  jpeg_quality: 85
agents:
  primary: claude
  fallback: ollama
  title_max_length: 140
  anthropic:
    api_key: sk-test
    model: claude-3-haiku-20240307
ghost:
  domain: blog.example.com
  admin_api_key: abc:def0
  visibility: public
  tag_line: Generated nightly
tags:
  keywords: [portrait, landscape]
pipeline:
  concurrency: 8
  poll_interval: 1m
  dedup_enabled: true
  dedup_distance: 5
metrics:
  address: :9090
`))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 6, cfg.Moderation.SampleCount)
	assert.Equal(t, 0.7, cfg.Moderation.VoteThreshold)
	assert.Equal(t, 10*time.Second, cfg.Moderation.Timeout)
	assert.Equal(t, "/m.png", cfg.Render.MarkerPath)
	assert.Equal(t, 12, cfg.Render.MaxBlurRadius)
	assert.Equal(t, "claude", cfg.Agents.Primary)
	assert.Equal(t, "ollama", cfg.Agents.Fallback)
	assert.Equal(t, 140, cfg.Agents.TitleMaxLen)
	assert.Equal(t, "public", cfg.Ghost.Visibility)
	assert.Equal(t, "Generated nightly", cfg.Ghost.TagLine)
	assert.Equal(t, []string{"portrait", "landscape"}, cfg.Tags.Keywords)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, time.Minute, cfg.Pipeline.PollInterval)
	assert.True(t, cfg.Pipeline.DedupEnabled)
	assert.Equal(t, 5, cfg.Pipeline.DedupDistance)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("INPUT_DIR", "/env/input")
	t.Setenv("NSFW_SAMPLE_COUNT", "3")
	t.Setenv("NSFW_THRESHOLD", "0.8")
	t.Setenv("APP_DEBUG", "yes")
	t.Setenv("GHOST_BLOG_URL", "env.example.com")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "/env/input", cfg.Directories.Input)
	assert.Equal(t, 3, cfg.Moderation.SampleCount)
	assert.Equal(t, 0.8, cfg.Moderation.VoteThreshold)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "env.example.com", cfg.Ghost.Domain)
}

func TestLoadMissingFileUsesEnvironmentOnly(t *testing.T) {
	t.Setenv("INPUT_DIR", "/in")
	t.Setenv("OUTPUT_DIR", "/out")
	t.Setenv("ARCHIVE_DIR", "/arch")
	t.Setenv("NSFW_DETECTOR_URL", "http://localhost:3333")
	t.Setenv("WATERMARK_PATH", "/w.png")
	t.Setenv("GHOST_BLOG_URL", "blog.example.com")
	t.Setenv("GHOST_ADMIN_API_KEY", "abc:def0")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	require.NoError(t, err)
	assert.Equal(t, "/in", cfg.Directories.Input)
	assert.Equal(t, "blog.example.com", cfg.Ghost.Domain)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing input directory",
			yaml: `
directories:
  output: /out
  archive: /arch
moderation: {detector_url: http://d}
render: {watermark: /w.png}
ghost: {domain: d, admin_api_key: a:b0}
`,
		},
		{
			name: "missing detector url",
			yaml: `
directories: {input: /in, output: /out, archive: /arch}
render: {watermark: /w.png}
ghost: {domain: d, admin_api_key: a:b0}
`,
		},
		{
			name: "missing watermark",
			yaml: `
directories: {input: /in, output: /out, archive: /arch}
moderation: {detector_url: http://d}
ghost: {domain: d, admin_api_key: a:b0}
`,
		},
		{
			name: "missing ghost admin key",
			yaml: `
directories: {input: /in, output: /out, archive: /arch}
moderation: {detector_url: http://d}
render: {watermark: /w.png}
ghost: {domain: d}
`,
		},
		{
			name: "vote threshold out of range",
			yaml: `
directories: {input: /in, output: /out, archive: /arch}
moderation: {detector_url: http://d, vote_threshold: 1.5}
render: {watermark: /w.png}
ghost: {domain: d, admin_api_key: a:b0}
`,
		},
		{
			name: "negative sample count",
			yaml: `
directories: {input: /in, output: /out, archive: /arch}
moderation: {detector_url: http://d, sample_count: -2}
render: {watermark: /w.png}
ghost: {domain: d, admin_api_key: a:b0}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "::: not yaml"))
	assert.Error(t, err)
}
