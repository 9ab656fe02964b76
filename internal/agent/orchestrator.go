package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

// Orchestrator drives a primary backend and transparently fails over to a
// secondary one. Exactly one successful backend's output is returned; drafts
// are never merged across backends.
type Orchestrator struct {
	primary     Backend
	fallback    Backend
	titleMaxLen int
	log         logger.Logger
}

// NewOrchestrator builds an orchestrator. When fallback is nil or is the
// same backend as primary, a primary failure is immediately fatal; there is
// no fallback chain beyond one hop.
func NewOrchestrator(primary, fallback Backend, titleMaxLen int, log logger.Logger) *Orchestrator {
	if fallback != nil && fallback.Name() == primary.Name() {
		fallback = nil
	}
	return &Orchestrator{
		primary:     primary,
		fallback:    fallback,
		titleMaxLen: titleMaxLen,
		log:         log,
	}
}

// Generate invokes the primary backend and, on any failure, logs it and
// invokes the fallback instead. If both fail it returns
// ErrGenerationUnavailable and no partial result.
func (o *Orchestrator) Generate(ctx context.Context, image []byte, metadata string) (domain.Generation, error) {
	draft, err := o.primary.Generate(ctx, image, metadata)
	if err == nil {
		return o.normalize(draft, o.primary.Name(), false), nil
	}

	if o.fallback == nil {
		return domain.Generation{}, fmt.Errorf("%w: %s failed: %w",
			domain.ErrGenerationUnavailable, o.primary.Name(), err)
	}

	o.log.Warn("primary backend failed, trying fallback",
		logger.String("primary", o.primary.Name()),
		logger.String("fallback", o.fallback.Name()),
		logger.Error(err),
	)

	draft, fallbackErr := o.fallback.Generate(ctx, image, metadata)
	if fallbackErr != nil {
		return domain.Generation{}, fmt.Errorf("%w: %s failed: %w; %s failed: %w",
			domain.ErrGenerationUnavailable,
			o.primary.Name(), err,
			o.fallback.Name(), fallbackErr)
	}
	return o.normalize(draft, o.fallback.Name(), true), nil
}

func (o *Orchestrator) normalize(draft Draft, backend string, failedOver bool) domain.Generation {
	return domain.Generation{
		Title:       NormalizeTitle(draft.Title, o.titleMaxLen),
		Body:        strings.TrimLeft(draft.Body, " \t\r\n"),
		BackendUsed: backend,
		FailedOver:  failedOver,
	}
}

// NormalizeTitle strips surrounding quote and backtick characters, trims
// whitespace, and truncates to at most maxLen characters. The operation is
// idempotent: applying it twice yields the same string as applying it once.
func NormalizeTitle(title string, maxLen int) string {
	cleaned := strings.NewReplacer(`"`, "", "`", "").Replace(title)
	cleaned = strings.TrimSpace(cleaned)
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return strings.TrimSpace(cleaned)
}
