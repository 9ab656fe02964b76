// Package archive relocates successfully published sources to archive
// storage and removes scratch render outputs.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

// Coordinator finalizes items after a publish attempt.
type Coordinator struct {
	archiveDir string
	log        logger.Logger
}

// NewCoordinator ensures the archive directory exists.
func NewCoordinator(archiveDir string, log logger.Logger) (*Coordinator, error) {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Coordinator{archiveDir: archiveDir, log: log}, nil
}

// Finalize archives the item when the publish succeeded: the source image
// and sidecar move to the archive directory and all rendered assets are
// deleted. Each file operation is attempted independently; a failure is
// logged and does not block the others. When the publish failed, nothing is
// touched so the next run retries the item from scratch.
//
// The returned error joins any individual file-operation failures; callers
// treat it as informational, never as a reason to reprocess.
func (c *Coordinator) Finalize(item domain.Item, assets []domain.Asset, outcome domain.PublishOutcome) error {
	if !outcome.Success {
		c.log.Info("publish failed, leaving item pending",
			logger.String("image", filepath.Base(item.ImagePath)),
		)
		return nil
	}

	var errs []error

	if err := c.moveToArchive(item.ImagePath); err != nil {
		errs = append(errs, err)
	}
	if item.MetadataPath != "" {
		if err := c.moveToArchive(item.MetadataPath); err != nil {
			errs = append(errs, err)
		}
	}

	for _, asset := range assets {
		if err := os.Remove(asset.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove scratch asset %s: %w", asset.Path, err))
		}
	}

	for _, err := range errs {
		c.log.Error("archival file operation failed", logger.Error(err))
	}
	return errors.Join(errs...)
}

// moveToArchive relocates one file, falling back to copy-and-remove when the
// archive lives on another filesystem.
func (c *Coordinator) moveToArchive(path string) error {
	dst := filepath.Join(c.archiveDir, filepath.Base(path))
	if err := os.Rename(path, dst); err == nil {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("archive %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	src.Close()

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove archived source %s: %w", path, err)
	}
	return nil
}
