package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

type fakeDiscoverer struct {
	calls atomic.Int64
	items []domain.Item
	err   error
}

func (f *fakeDiscoverer) Discover(context.Context) ([]domain.Item, error) {
	f.calls.Add(1)
	return f.items, f.err
}

func newIdleProcessor() *Processor {
	return NewProcessor(Deps{
		Moderator: &fakeModerator{},
		Renderer:  &fakeRenderer{},
		Generator: &fakeGenerator{},
		Publisher: &fakePublisher{},
		Archiver:  &fakeArchiver{},
		Logger:    logger.NewNop(),
	}, Config{Concurrency: 1})
}

func TestPollerRunsImmediatelyAndOnTicks(t *testing.T) {
	discoverer := &fakeDiscoverer{}
	poller := NewPoller(discoverer, newIdleProcessor(), 10*time.Millisecond, logger.NewNop())

	poller.Start(context.Background())
	defer poller.Stop()

	deadline := time.After(2 * time.Second)
	for discoverer.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("discoverer called %d times, want >= 3", discoverer.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPollerStopIsIdempotentBeforeStart(t *testing.T) {
	poller := NewPoller(&fakeDiscoverer{}, newIdleProcessor(), time.Minute, logger.NewNop())
	poller.Stop()
}

func TestPollerStartTwiceRunsOneLoop(t *testing.T) {
	discoverer := &fakeDiscoverer{}
	poller := NewPoller(discoverer, newIdleProcessor(), time.Hour, logger.NewNop())

	ctx := context.Background()
	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()

	// Only the immediate first pass of the single loop ran.
	if got := discoverer.calls.Load(); got != 1 {
		t.Errorf("discoverer called %d times, want 1", got)
	}
}

func TestPollerSurvivesDiscoveryErrors(t *testing.T) {
	discoverer := &fakeDiscoverer{err: errors.New("input directory unreadable")}
	poller := NewPoller(discoverer, newIdleProcessor(), 10*time.Millisecond, logger.NewNop())

	poller.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	poller.Stop()

	if discoverer.calls.Load() < 2 {
		t.Errorf("poller should keep polling after an error, got %d calls", discoverer.calls.Load())
	}
}
