// Package agent generates post content (a body narrative and a short title)
// from an image and optional generation metadata, through interchangeable
// generative backends with primary/fallback ordering.
package agent

import "context"

// Draft is the raw two-part output of a single backend, before
// normalization.
type Draft struct {
	Title string
	Body  string
}

// Backend is an interchangeable generative text provider. Implementations
// must produce both a body narrative and a short title from the image and
// the optional metadata, and return a plain error on any transport, quota,
// or malformed-output condition.
type Backend interface {
	Name() string
	Generate(ctx context.Context, image []byte, metadata string) (Draft, error)
}

// Prompts shared by all backends. Style differences between publishing
// targets are configuration, not separate code paths.
const (
	storyPrompt = `Craft an engaging short story inspired by this image.

Create a narrative that captures the scene, characters, or emotions depicted.
Adopt a tone that is witty and fun.
Always keep your output to a maximum of 500 words.
Always output in HTML.

You may use the following data to help inspire your writing, as it pertains
to how the image was generated, but do not rely on it solely, use your
creativity:

%s`

	titlePrompt = `This is the story for the image: %s

Craft an engaging short social media title for the story and the image.
Always keep the title to less than 140 characters.
Only return the title you came up with and nothing else.
Aim to create a caption that will make viewers stop scrolling and want to
engage with the post.`
)
