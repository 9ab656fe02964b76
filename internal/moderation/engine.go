package moderation

import (
	"context"
	"fmt"
	"sync"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

// Classifier produces one probability sample for an image.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Sample, error)
}

// Engine converts noisy repeated classifier calls into a binary verdict plus
// a severity score. A single classifier call flaps near the decision
// boundary; majority voting over independent samples stabilizes the verdict
// while the continuous severity score lets rendering scale blur intensity.
type Engine struct {
	classifier  Classifier
	sampleCount int
	threshold   float64
	log         logger.Logger
}

// NewEngine validates the sampling parameters and returns an Engine.
// sampleCount must be >= 1 and threshold must be in (0,1).
func NewEngine(c Classifier, sampleCount int, threshold float64, log logger.Logger) (*Engine, error) {
	if sampleCount < 1 {
		return nil, fmt.Errorf("sample count must be >= 1, got %d", sampleCount)
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("vote threshold must be in (0,1), got %g", threshold)
	}
	return &Engine{
		classifier:  c,
		sampleCount: sampleCount,
		threshold:   threshold,
		log:         log,
	}, nil
}

// Evaluate runs the configured number of independent classifier samples
// concurrently and aggregates them. A sample counts as an unsafe vote when
// its unsafe probability exceeds the threshold; the verdict is unsafe iff
// unsafe votes form a strict majority of the successful samples (ties are
// safe). Severity is the mean unsafe probability, independent of the vote
// outcome, clamped to [0,1].
//
// Individual sample failures are dropped; only when every sample in the
// round fails does Evaluate return ErrModerationUnavailable, so the item is
// skipped rather than silently defaulted to either verdict.
func (e *Engine) Evaluate(ctx context.Context, image []byte) (domain.Verdict, error) {
	type result struct {
		sample Sample
		err    error
	}

	results := make(chan result, e.sampleCount)

	var wg sync.WaitGroup
	for i := 0; i < e.sampleCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sample, err := e.classifier.Classify(ctx, image)
			results <- result{sample: sample, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var (
		samples  int
		votes    int
		sum      float64
		lastErr  error
		failures int
	)
	for r := range results {
		if r.err != nil {
			failures++
			lastErr = r.err
			continue
		}
		samples++
		sum += r.sample.UnsafeProbability
		if r.sample.UnsafeProbability > e.threshold {
			votes++
		}
	}

	if samples == 0 {
		return domain.Verdict{}, fmt.Errorf("%w: all %d samples failed: %w",
			domain.ErrModerationUnavailable, e.sampleCount, lastErr)
	}
	if failures > 0 {
		e.log.Warn("some classifier samples failed",
			logger.Int("failed", failures),
			logger.Int("succeeded", samples),
		)
	}

	verdict := domain.Verdict{
		IsUnsafe:    votes > samples/2,
		Severity:    clamp01(sum / float64(samples)),
		SampleCount: samples,
		UnsafeVotes: votes,
	}

	e.log.Debug("moderation verdict",
		logger.Bool("is_unsafe", verdict.IsUnsafe),
		logger.Float64("severity", verdict.Severity),
		logger.Int("samples", verdict.SampleCount),
		logger.Int("unsafe_votes", verdict.UnsafeVotes),
	)
	return verdict, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
