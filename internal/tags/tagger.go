// Package tags derives post tags from sidecar generation metadata by
// matching a configured keyword dictionary.
package tags

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Tagger matches a keyword dictionary against free-form metadata text.
// Matching is case-insensitive. The zero-keyword Tagger matches nothing.
type Tagger struct {
	matcher  *ahocorasick.Matcher
	keywords []string
}

// NewTagger builds a Tagger from the configured keyword list.
func NewTagger(keywords []string) *Tagger {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &Tagger{
		matcher:  ahocorasick.NewStringMatcher(lowered),
		keywords: keywords,
	}
}

// Extract returns the keywords found in the metadata, in dictionary order,
// each at most once.
func (t *Tagger) Extract(metadata string) []string {
	if len(t.keywords) == 0 || metadata == "" {
		return nil
	}

	hits := t.matcher.Match([]byte(strings.ToLower(metadata)))
	if len(hits) == 0 {
		return nil
	}

	seen := make(map[int]bool, len(hits))
	for _, idx := range hits {
		seen[idx] = true
	}

	found := make([]string, 0, len(seen))
	for i, kw := range t.keywords {
		if seen[i] {
			found = append(found, kw)
		}
	}
	return found
}
