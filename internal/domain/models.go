// Package domain defines the types shared across the pipeline stages.
package domain

import (
	"path/filepath"
	"strings"
)

// Stage is the lifecycle state of a pipeline item. Items have no persisted
// state: anything short of Archived is retried wholesale on the next run.
type Stage string

// Lifecycle stages, in processing order.
const (
	StageDiscovered       Stage = "discovered"
	StageModerated        Stage = "moderated"
	StageRendered         Stage = "rendered"
	StageContentGenerated Stage = "content_generated"
	StagePublished        Stage = "published"
	StageArchived         Stage = "archived"
)

// Item is the unit of work: one source image plus its optional sidecar
// generation-metadata text.
type Item struct {
	// ImagePath is the absolute path of the source image in the input directory.
	ImagePath string
	// MetadataPath is the sidecar text file sharing the image's base name,
	// empty when no sidecar exists.
	MetadataPath string
	// Metadata is the sidecar's content, loaded at discovery.
	Metadata string
}

// BaseName returns the image filename without directory or extension.
// Rendered asset and archive filenames all derive from it, so no two items
// ever touch the same scratch files.
func (it Item) BaseName() string {
	base := filepath.Base(it.ImagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Verdict is the aggregated moderation decision for one image.
type Verdict struct {
	// IsUnsafe is true when unsafe votes form a strict majority of samples.
	IsUnsafe bool
	// Severity is the mean unsafe probability across samples, in [0,1].
	Severity float64
	// SampleCount is the number of classifier samples that succeeded.
	SampleCount int
	// UnsafeVotes is the number of samples whose unsafe probability exceeded
	// the vote threshold.
	UnsafeVotes int
}

// AssetRole distinguishes the rendered variants of an image.
type AssetRole string

const (
	// RolePrimary is the watermarked, otherwise unmodified asset.
	RolePrimary AssetRole = "primary"
	// RoleModerated is the blurred and marked asset used as the public
	// feature image for unsafe content.
	RoleModerated AssetRole = "moderated"
)

// Asset is one rendered output file.
type Asset struct {
	Path string
	Role AssetRole
}

// Generation is the normalized output of exactly one generative backend.
type Generation struct {
	Title string
	Body  string
	// BackendUsed names the backend that produced this result; never a blend.
	BackendUsed string
	// FailedOver is true when the fallback backend produced the result.
	FailedOver bool
}

// PublishOutcome reports the result of one publish attempt.
type PublishOutcome struct {
	Success bool
	PostID  string
}
