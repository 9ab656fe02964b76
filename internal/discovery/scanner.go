// Package discovery enumerates pending pipeline items: source images in the
// input directory paired with optional sidecar metadata text files.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// Scanner discovers pending items. With dedup enabled it additionally skips
// inputs that are perceptually identical to already-archived images, so a
// re-dropped file does not get published twice.
type Scanner struct {
	inputDir      string
	archiveDir    string
	dedupEnabled  bool
	dedupDistance int
	log           logger.Logger
}

// NewScanner creates a Scanner over the given input and archive directories.
func NewScanner(inputDir, archiveDir string, dedupEnabled bool, dedupDistance int, log logger.Logger) *Scanner {
	return &Scanner{
		inputDir:      inputDir,
		archiveDir:    archiveDir,
		dedupEnabled:  dedupEnabled,
		dedupDistance: dedupDistance,
		log:           log,
	}
}

// Discover lists all currently pending items, sorted by filename. Items that
// failed in a previous run look exactly like first-time discoveries.
func (s *Scanner) Discover(ctx context.Context) ([]domain.Item, error) {
	entries, err := os.ReadDir(s.inputDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var filter *dedupFilter
	if s.dedupEnabled {
		filter = newDedupFilter(s.dedupDistance)
		if err := filter.indexArchive(ctx, s.archiveDir); err != nil {
			// Dedup is a guard, not a gate: index trouble degrades to
			// accepting everything.
			s.log.Warn("archive dedup index unavailable", logger.Error(err))
		}
	}

	items := make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		imagePath := filepath.Join(s.inputDir, entry.Name())
		if filter != nil && filter.isDuplicate(imagePath) {
			s.log.Info("skipping perceptual duplicate", logger.String("image", entry.Name()))
			continue
		}

		item := domain.Item{ImagePath: imagePath}
		sidecar := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt"
		if data, err := os.ReadFile(sidecar); err == nil {
			item.MetadataPath = sidecar
			item.Metadata = string(data)
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ImagePath < items[j].ImagePath })

	s.log.Info("discovered pending items", logger.Int("count", len(items)))
	return items, nil
}
