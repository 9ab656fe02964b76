package domain

import "errors"

// Pipeline error taxonomy. All of these leave the item pending so the next
// run retries it from the moderation step; none is ever resolved into a
// default verdict or default content.
var (
	// ErrModerationUnavailable means every classifier sample in a round failed.
	ErrModerationUnavailable = errors.New("moderation unavailable")

	// ErrGenerationUnavailable means the primary backend and its fallback
	// both failed to produce content.
	ErrGenerationUnavailable = errors.New("content generation unavailable")

	// ErrUploadFailed means an asset upload failed; the publish attempt is
	// aborted before any post references a partial upload set.
	ErrUploadFailed = errors.New("asset upload failed")

	// ErrPublishRejected means the CMS answered the post submission with
	// anything other than its created status.
	ErrPublishRejected = errors.New("publish rejected")
)
