package discovery

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"
)

// dedupFilter rejects images perceptually identical to ones seen before,
// using difference-hash Hamming distance. Hash failures degrade gracefully:
// an unhashable image is always accepted.
type dedupFilter struct {
	maxDistance int
	hashes      []*goimagehash.ImageHash
}

func newDedupFilter(maxDistance int) *dedupFilter {
	return &dedupFilter{maxDistance: maxDistance}
}

// indexArchive hashes every image already in the archive directory so fresh
// inputs can be compared against published history.
func (d *dedupFilter) indexArchive(ctx context.Context, archiveDir string) error {
	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if hash, err := hashFile(filepath.Join(archiveDir, entry.Name())); err == nil {
			d.hashes = append(d.hashes, hash)
		}
	}
	return nil
}

// isDuplicate reports whether the image at path matches a previously seen
// hash. Accepted images are added to the comparison set, so duplicates
// within one batch are also caught.
func (d *dedupFilter) isDuplicate(path string) bool {
	hash, err := hashFile(path)
	if err != nil {
		return false
	}

	for _, h := range d.hashes {
		if dist, err := hash.Distance(h); err == nil && dist < d.maxDistance {
			return true
		}
	}

	d.hashes = append(d.hashes, hash)
	return false
}

func hashFile(path string) (*goimagehash.ImageHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return goimagehash.DifferenceHash(img)
}
