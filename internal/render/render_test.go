package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/config"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func newTestRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	watermarkPath := filepath.Join(dir, "watermark.png")
	writePNG(t, watermarkPath, 40, 40, color.RGBA{R: 255, A: 255})

	outputDir := filepath.Join(dir, "out")
	renderer, err := NewRenderer(config.RenderConfig{
		WatermarkPath: watermarkPath,
		MarkerPath:    watermarkPath,
		MaxBlurRadius: 20,
		JPEGQuality:   90,
	}, outputDir, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return renderer, dir
}

func decodeDims(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode config %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func TestRenderSafeItem(t *testing.T) {
	renderer, dir := newTestRenderer(t)

	sourcePath := filepath.Join(dir, "sunset.png")
	writePNG(t, sourcePath, 320, 240, color.RGBA{B: 255, A: 255})

	assets, err := renderer.Render(domain.Item{ImagePath: sourcePath}, domain.Verdict{IsUnsafe: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(assets) != 1 {
		t.Fatalf("got %d assets, want 1", len(assets))
	}
	if assets[0].Role != domain.RolePrimary {
		t.Errorf("role = %v, want primary", assets[0].Role)
	}
	if filepath.Base(assets[0].Path) != "processed_sunset.jpeg" {
		t.Errorf("asset name = %s, want processed_sunset.jpeg", filepath.Base(assets[0].Path))
	}

	w, h := decodeDims(t, assets[0].Path)
	if w != 320 || h != 240 {
		t.Errorf("asset dims = %dx%d, want 320x240", w, h)
	}
}

func TestRenderUnsafeItem(t *testing.T) {
	renderer, dir := newTestRenderer(t)

	sourcePath := filepath.Join(dir, "risky.png")
	writePNG(t, sourcePath, 320, 240, color.RGBA{G: 255, A: 255})

	assets, err := renderer.Render(domain.Item{ImagePath: sourcePath}, domain.Verdict{IsUnsafe: true, Severity: 0.8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(assets) != 2 {
		t.Fatalf("got %d assets, want 2", len(assets))
	}
	if assets[0].Role != domain.RolePrimary || assets[1].Role != domain.RoleModerated {
		t.Errorf("roles = %v, %v; want primary, moderated", assets[0].Role, assets[1].Role)
	}
	if filepath.Base(assets[1].Path) != "blurred_risky.jpeg" {
		t.Errorf("moderated name = %s, want blurred_risky.jpeg", filepath.Base(assets[1].Path))
	}

	for _, asset := range assets {
		w, h := decodeDims(t, asset.Path)
		if w != 320 || h != 240 {
			t.Errorf("%s dims = %dx%d, want 320x240", asset.Path, w, h)
		}
	}
}

func TestRenderMissingSource(t *testing.T) {
	renderer, dir := newTestRenderer(t)

	_, err := renderer.Render(domain.Item{ImagePath: filepath.Join(dir, "missing.png")}, domain.Verdict{})
	if err == nil {
		t.Fatal("expected error for missing source image")
	}
}

func TestNewRendererMissingWatermark(t *testing.T) {
	dir := t.TempDir()
	_, err := NewRenderer(config.RenderConfig{
		WatermarkPath: filepath.Join(dir, "nope.png"),
		MarkerPath:    filepath.Join(dir, "nope.png"),
	}, filepath.Join(dir, "out"), logger.NewNop())
	if err == nil {
		t.Fatal("expected error for missing watermark")
	}
}

func TestBlurRadius(t *testing.T) {
	tests := []struct {
		severity  float64
		maxRadius int
		want      int
	}{
		{0, 20, 0},
		{1, 20, 20},
		{0.5, 20, 10},
		{0.34, 20, 7},
		{0.69, 20, 14},
		{0.025, 20, 1},
	}

	for _, tt := range tests {
		if got := BlurRadius(tt.severity, tt.maxRadius); got != tt.want {
			t.Errorf("BlurRadius(%g, %d) = %d, want %d", tt.severity, tt.maxRadius, got, tt.want)
		}
	}
}
