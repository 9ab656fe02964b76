// Package render produces publish-ready assets from source images: a fixed
// corner watermark on every image, plus a severity-proportional blur and a
// centered moderation marker for unsafe content.
package render

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/config"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

const (
	// watermarkSize is the edge length of the corner watermark in pixels.
	watermarkSize = 120
	// markerDivisor sizes the centered moderation marker relative to the
	// image: one quarter of width and height.
	markerDivisor = 4
)

// Renderer renders publish assets into the scratch output directory.
// Watermark resources are loaded once at construction; a missing resource is
// a configuration error and fatal for the whole run, not per item.
type Renderer struct {
	watermark     image.Image
	marker        image.Image
	maxBlurRadius int
	jpegQuality   int
	outputDir     string
	log           logger.Logger
}

// NewRenderer loads the watermark and moderation-marker resources and
// ensures the scratch directory exists.
func NewRenderer(cfg config.RenderConfig, outputDir string, log logger.Logger) (*Renderer, error) {
	watermark, err := loadImage(cfg.WatermarkPath)
	if err != nil {
		return nil, fmt.Errorf("load watermark %s: %w", cfg.WatermarkPath, err)
	}
	marker, err := loadImage(cfg.MarkerPath)
	if err != nil {
		return nil, fmt.Errorf("load moderation marker %s: %w", cfg.MarkerPath, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &Renderer{
		watermark:     watermark,
		marker:        marker,
		maxBlurRadius: cfg.MaxBlurRadius,
		jpegQuality:   cfg.JPEGQuality,
		outputDir:     outputDir,
		log:           log,
	}, nil
}

// Render emits the primary asset for every item and additionally the
// moderated asset when the verdict is unsafe. Emitted assets keep the pixel
// dimensions of the source and are encoded as JPEG.
func (r *Renderer) Render(item domain.Item, verdict domain.Verdict) ([]domain.Asset, error) {
	src, err := loadImage(item.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("decode source %s: %w", item.ImagePath, err)
	}

	primary := r.applyWatermark(src)
	primaryPath := filepath.Join(r.outputDir, "processed_"+item.BaseName()+".jpeg")
	if err := r.saveJPEG(primaryPath, primary); err != nil {
		return nil, err
	}
	assets := []domain.Asset{{Path: primaryPath, Role: domain.RolePrimary}}

	if !verdict.IsUnsafe {
		return assets, nil
	}

	moderated := r.applyModerationMark(primary, verdict.Severity)
	moderatedPath := filepath.Join(r.outputDir, "blurred_"+item.BaseName()+".jpeg")
	if err := r.saveJPEG(moderatedPath, moderated); err != nil {
		return nil, err
	}
	assets = append(assets, domain.Asset{Path: moderatedPath, Role: domain.RoleModerated})

	r.log.Debug("rendered moderated asset",
		logger.String("path", moderatedPath),
		logger.Int("blur_radius", BlurRadius(verdict.Severity, r.maxBlurRadius)),
	)
	return assets, nil
}

// BlurRadius maps a severity score to a blur radius. It is deterministic and
// monotonic: 0 maps to 0, 1 maps to maxRadius.
func BlurRadius(severity float64, maxRadius int) int {
	return int(math.Round(severity * float64(maxRadius)))
}

// applyWatermark copies the source and scales the watermark into the
// bottom-right corner, alpha blended.
func (r *Renderer) applyWatermark(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)

	corner := image.Rect(b.Dx()-watermarkSize, b.Dy()-watermarkSize, b.Dx(), b.Dy())
	xdraw.CatmullRom.Scale(dst, corner, r.watermark, r.watermark.Bounds(), xdraw.Over, nil)
	return dst
}

// applyModerationMark blurs the primary asset proportionally to severity and
// composites the centered moderation marker on top. The radius is computed,
// never special-cased: a vote-only unsafe verdict at severity 0 still yields
// a marked (if unblurred) moderated asset.
func (r *Renderer) applyModerationMark(primary image.Image, severity float64) image.Image {
	radius := BlurRadius(severity, r.maxBlurRadius)
	blurred := imaging.Blur(primary, float64(radius))

	b := primary.Bounds()
	marker := imaging.Resize(r.marker, b.Dx()/markerDivisor, b.Dy()/markerDivisor, imaging.Lanczos)
	return imaging.OverlayCenter(blurred, marker, 1.0)
}

func (r *Renderer) saveJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create asset %s: %w", path, err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: r.jpegQuality}); err != nil {
		return fmt.Errorf("encode jpeg %s: %w", path, err)
	}
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
