package moderation

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

type classifierFunc func(ctx context.Context, image []byte) (Sample, error)

func (f classifierFunc) Classify(ctx context.Context, image []byte) (Sample, error) {
	return f(ctx, image)
}

// sequenceClassifier hands out a fixed set of samples, one per call, in an
// unspecified order. Aggregation is order-independent so tests only care
// about the multiset of samples.
func sequenceClassifier(t *testing.T, samples []Sample) Classifier {
	t.Helper()
	var next atomic.Int64
	return classifierFunc(func(context.Context, []byte) (Sample, error) {
		i := next.Add(1) - 1
		if int(i) >= len(samples) {
			t.Errorf("classifier called more than %d times", len(samples))
			return Sample{}, errors.New("too many calls")
		}
		return samples[i], nil
	})
}

func repeat(p float64, n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{SafeProbability: 1 - p, UnsafeProbability: p}
	}
	return samples
}

func TestEngineEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		samples      []Sample
		wantUnsafe   bool
		wantSeverity float64
		wantVotes    int
	}{
		{
			name:         "all safe",
			samples:      repeat(0.1, 10),
			wantUnsafe:   false,
			wantSeverity: 0.1,
			wantVotes:    0,
		},
		{
			name:         "strict majority unsafe",
			samples:      append(repeat(0.9, 7), repeat(0.2, 3)...),
			wantUnsafe:   true,
			wantSeverity: 0.69,
			wantVotes:    7,
		},
		{
			name:         "tie counts as safe",
			samples:      append(repeat(0.9, 5), repeat(0.1, 5)...),
			wantUnsafe:   false,
			wantSeverity: 0.5,
			wantVotes:    5,
		},
		{
			name:         "minority unsafe votes still shape severity",
			samples:      append(repeat(0.9, 3), repeat(0.1, 7)...),
			wantUnsafe:   false,
			wantSeverity: 0.34,
			wantVotes:    3,
		},
		{
			name:         "single sample majority reduces to its vote",
			samples:      repeat(0.8, 1),
			wantUnsafe:   true,
			wantSeverity: 0.8,
			wantVotes:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(sequenceClassifier(t, tt.samples), len(tt.samples), 0.5, logger.NewNop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			verdict, err := engine.Evaluate(context.Background(), []byte("img"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if verdict.IsUnsafe != tt.wantUnsafe {
				t.Errorf("IsUnsafe = %v, want %v", verdict.IsUnsafe, tt.wantUnsafe)
			}
			if math.Abs(verdict.Severity-tt.wantSeverity) > 1e-9 {
				t.Errorf("Severity = %g, want %g", verdict.Severity, tt.wantSeverity)
			}
			if verdict.UnsafeVotes != tt.wantVotes {
				t.Errorf("UnsafeVotes = %d, want %d", verdict.UnsafeVotes, tt.wantVotes)
			}
			if verdict.SampleCount != len(tt.samples) {
				t.Errorf("SampleCount = %d, want %d", verdict.SampleCount, len(tt.samples))
			}
		})
	}
}

func TestEngineEvaluate_AllSamplesFail(t *testing.T) {
	failing := classifierFunc(func(context.Context, []byte) (Sample, error) {
		return Sample{}, ErrUnavailable
	})

	engine, err := NewEngine(failing, 10, 0.5, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = engine.Evaluate(context.Background(), []byte("img"))
	if !errors.Is(err, domain.ErrModerationUnavailable) {
		t.Fatalf("expected ErrModerationUnavailable, got %v", err)
	}
}

func TestEngineEvaluate_PartialFailuresAggregateSurvivors(t *testing.T) {
	var calls atomic.Int64
	flaky := classifierFunc(func(context.Context, []byte) (Sample, error) {
		if calls.Add(1)%2 == 0 {
			return Sample{}, ErrUnavailable
		}
		return Sample{SafeProbability: 0.2, UnsafeProbability: 0.8}, nil
	})

	engine, err := NewEngine(flaky, 10, 0.5, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	verdict, err := engine.Evaluate(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.SampleCount != 5 {
		t.Errorf("SampleCount = %d, want 5", verdict.SampleCount)
	}
	if !verdict.IsUnsafe {
		t.Error("expected unsafe verdict from surviving samples")
	}
}

func TestNewEngine_Validation(t *testing.T) {
	ok := classifierFunc(func(context.Context, []byte) (Sample, error) {
		return Sample{}, nil
	})

	if _, err := NewEngine(ok, 0, 0.5, logger.NewNop()); err == nil {
		t.Error("expected error for sample count 0")
	}
	if _, err := NewEngine(ok, 5, 0, logger.NewNop()); err == nil {
		t.Error("expected error for threshold 0")
	}
	if _, err := NewEngine(ok, 5, 1, logger.NewNop()); err == nil {
		t.Error("expected error for threshold 1")
	}
}
