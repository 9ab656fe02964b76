package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
)

// Discoverer enumerates pending items.
type Discoverer interface {
	Discover(ctx context.Context) ([]domain.Item, error)
}

// Poller repeatedly discovers and processes pending items at a fixed
// interval. It is the watch-mode driver; run mode calls the processor once
// directly.
type Poller struct {
	discoverer Discoverer
	processor  *Processor
	interval   time.Duration
	log        logger.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
}

// NewPoller creates a Poller.
func NewPoller(d Discoverer, p *Processor, interval time.Duration, log logger.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Poller{
		discoverer: d,
		processor:  p,
		interval:   interval,
		log:        log,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the polling loop. The first pass runs immediately.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	p.log.Info("poller started", logger.Duration("interval", p.interval))
}

// Stop gracefully stops the poller, waiting for an in-flight pass to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()
	p.log.Info("poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.processOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.processOnce(ctx)
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) processOnce(ctx context.Context) {
	items, err := p.discoverer.Discover(ctx)
	if err != nil {
		p.log.Error("discovery failed", logger.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}
	p.processor.Process(ctx, items)
}
