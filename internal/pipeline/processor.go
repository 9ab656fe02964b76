// Package pipeline sequences the per-item state machine (moderate, render,
// generate, publish, archive) and drives batches of items through a bounded
// worker pool.
package pipeline

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/domain"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/ghost"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/logger"
	"github.com/BitsofJeremy/sd-image-processing-and-upload/internal/metrics"
)

// Moderator produces a verdict for one image.
type Moderator interface {
	Evaluate(ctx context.Context, image []byte) (domain.Verdict, error)
}

// Renderer produces the publish assets for one item.
type Renderer interface {
	Render(item domain.Item, verdict domain.Verdict) ([]domain.Asset, error)
}

// Generator produces normalized post content for one item.
type Generator interface {
	Generate(ctx context.Context, image []byte, metadata string) (domain.Generation, error)
}

// Publisher uploads assets and submits post documents to the CMS.
type Publisher interface {
	UploadImage(ctx context.Context, path string) (string, error)
	CreatePost(ctx context.Context, post ghost.Post) (string, error)
}

// Archiver finalizes an item after a publish attempt.
type Archiver interface {
	Finalize(item domain.Item, assets []domain.Asset, outcome domain.PublishOutcome) error
}

// Tagger derives extra post tags from generation metadata.
type Tagger interface {
	Extract(metadata string) []string
}

// Deps are the collaborators a Processor sequences.
type Deps struct {
	Moderator Moderator
	Renderer  Renderer
	Generator Generator
	Publisher Publisher
	Archiver  Archiver
	Tagger    Tagger
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Config holds the processor's policy knobs.
type Config struct {
	Concurrency int
	BaseTag     string
	UnsafeTag   string
	Visibility  string
	TagLine     string
}

// Summary reports the outcome of one batch.
type Summary struct {
	Total     int
	Published int
	Failed    int
}

// Processor runs the moderation-and-publish pipeline. Items are independent:
// each owns its files and API calls, so the pool runs them in parallel with
// no shared mutable state, capped by Concurrency to respect backend and CMS
// rate limits.
type Processor struct {
	deps   Deps
	cfg    Config
	log    logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewProcessor builds a Processor.
func NewProcessor(deps Deps, cfg Config) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		deps:   deps,
		cfg:    cfg,
		log:    log,
		tracer: otel.Tracer("pipeline"),
		now:    time.Now,
	}
}

// Process runs every item through the pipeline using a worker pool and
// returns a batch summary. A failed item is logged and left pending; it
// never aborts the batch.
func (p *Processor) Process(ctx context.Context, items []domain.Item) Summary {
	summary := Summary{Total: len(items)}
	if len(items) == 0 {
		return summary
	}

	p.log.Info("starting batch",
		logger.Int("items", len(items)),
		logger.Int("concurrency", p.cfg.Concurrency),
	)
	start := time.Now()

	jobs := make(chan domain.Item, len(items))
	results := make(chan error, len(items))

	workers := p.cfg.Concurrency
	if workers > len(items) {
		workers = len(items)
	}
	for i := 0; i < workers; i++ {
		go func() {
			for item := range jobs {
				results <- p.processItem(ctx, item)
			}
		}()
	}

	for _, item := range items {
		jobs <- item
	}
	close(jobs)

	for range items {
		if err := <-results; err != nil {
			summary.Failed++
		} else {
			summary.Published++
		}
	}

	p.log.Info("batch complete",
		logger.Int("total", summary.Total),
		logger.Int("published", summary.Published),
		logger.Int("failed", summary.Failed),
		logger.Duration("duration", time.Since(start)),
	)
	return summary
}

// processItem runs one item through every stage. Any stage failure leaves
// the item pending; the next run retries it from the moderation step, not
// from where it stopped.
func (p *Processor) processItem(ctx context.Context, item domain.Item) (err error) {
	itemName := filepath.Base(item.ImagePath)
	ctx, span := p.tracer.Start(ctx, "pipeline.item",
		trace.WithAttributes(attribute.String("image", itemName)))
	defer span.End()

	stage := domain.StageDiscovered
	log := p.log.With(logger.String("image", itemName))
	defer func() {
		if err != nil {
			log.Error("item left pending",
				logger.String("stage", string(stage)),
				logger.Error(err),
			)
			span.SetAttributes(attribute.String("stage", string(stage)))
			p.deps.Metrics.ItemsProcessed.WithLabelValues("failed").Inc()
		} else {
			p.deps.Metrics.ItemsProcessed.WithLabelValues("published").Inc()
		}
	}()

	image, err := os.ReadFile(item.ImagePath)
	if err != nil {
		return fmt.Errorf("read source image: %w", err)
	}

	verdict, err := p.deps.Moderator.Evaluate(ctx, image)
	if err != nil {
		return err
	}
	stage = domain.StageModerated
	span.SetAttributes(
		attribute.Bool("unsafe", verdict.IsUnsafe),
		attribute.Float64("severity", verdict.Severity),
	)
	p.deps.Metrics.Severity.Observe(verdict.Severity)
	if verdict.IsUnsafe {
		p.deps.Metrics.UnsafeVerdicts.Inc()
		log.Info("image flagged unsafe",
			logger.Float64("severity", verdict.Severity),
			logger.Int("unsafe_votes", verdict.UnsafeVotes),
			logger.Int("samples", verdict.SampleCount),
		)
	}

	// Rendering needs only the verdict and generation needs only the image,
	// so the two run concurrently and join before any upload.
	var (
		assets     []domain.Asset
		generation domain.Generation
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var renderErr error
		assets, renderErr = p.deps.Renderer.Render(item, verdict)
		if renderErr == nil {
			stage = domain.StageRendered
		}
		return renderErr
	})
	group.Go(func() error {
		var genErr error
		generation, genErr = p.deps.Generator.Generate(groupCtx, image, item.Metadata)
		return genErr
	})
	if err := group.Wait(); err != nil {
		return err
	}
	stage = domain.StageContentGenerated
	if generation.FailedOver {
		p.deps.Metrics.BackendFailover.Inc()
	}

	publishStart := time.Now()
	outcome, publishErr := p.publish(ctx, item, assets, generation, verdict)
	if publishErr == nil {
		stage = domain.StagePublished
		p.deps.Metrics.PublishDuration.Observe(time.Since(publishStart).Seconds())
	}

	if finalizeErr := p.deps.Archiver.Finalize(item, assets, outcome); finalizeErr != nil {
		// Already published; stray files are an acceptable residual cost,
		// re-publishing is not.
		p.deps.Metrics.ArchiveFailures.Inc()
	} else if outcome.Success {
		stage = domain.StageArchived
	}

	if publishErr != nil {
		return publishErr
	}
	log.Info("item published and archived",
		logger.String("post_id", outcome.PostID),
		logger.String("backend", generation.BackendUsed),
	)
	return nil
}

// publish uploads all assets, assembles the post document, and submits it.
// Any single upload failure aborts the attempt so a post never references a
// partial upload set.
func (p *Processor) publish(
	ctx context.Context,
	item domain.Item,
	assets []domain.Asset,
	generation domain.Generation,
	verdict domain.Verdict,
) (domain.PublishOutcome, error) {
	urls := make(map[domain.AssetRole]string, len(assets))
	for _, asset := range assets {
		url, err := p.deps.Publisher.UploadImage(ctx, asset.Path)
		if err != nil {
			return domain.PublishOutcome{}, err
		}
		urls[asset.Role] = url
	}

	featureImage := urls[domain.RolePrimary]
	if moderated, ok := urls[domain.RoleModerated]; ok {
		featureImage = moderated
	}

	postID, err := p.deps.Publisher.CreatePost(ctx, ghost.Post{
		Title:        generation.Title,
		Tags:         p.postTags(item, verdict),
		HTML:         p.postHTML(item, generation, verdict, urls),
		FeatureImage: featureImage,
		Status:       "published",
		Visibility:   p.cfg.Visibility,
		PublishedAt:  p.now().UTC(),
	})
	if err != nil {
		return domain.PublishOutcome{}, err
	}
	return domain.PublishOutcome{Success: true, PostID: postID}, nil
}

func (p *Processor) postTags(item domain.Item, verdict domain.Verdict) []string {
	tags := []string{p.cfg.BaseTag}
	if p.deps.Tagger != nil {
		tags = append(tags, p.deps.Tagger.Extract(item.Metadata)...)
	}
	if verdict.IsUnsafe {
		tags = append(tags, p.cfg.UnsafeTag)
	}
	return tags
}

// postHTML composes the post body: the generated article, then for unsafe
// items an inline link to the unblurred member-only asset, then the sidecar
// generation metadata, then the configured tag line.
func (p *Processor) postHTML(
	item domain.Item,
	generation domain.Generation,
	verdict domain.Verdict,
	urls map[domain.AssetRole]string,
) string {
	body := generation.Body + "<br/><br/>"

	if verdict.IsUnsafe {
		if primary, ok := urls[domain.RolePrimary]; ok {
			body += fmt.Sprintf("<img src=%q alt=\"Original image without moderation blur\" /><br/><br/>", primary)
		}
		body += "<p>This image was processed for content moderation.</p>"
	}

	if item.Metadata != "" {
		body += fmt.Sprintf("<p><code>%s</code></p><br/>", html.EscapeString(item.Metadata))
	}
	if p.cfg.TagLine != "" {
		body += fmt.Sprintf("<p>%s</p>", p.cfg.TagLine)
	}
	return body
}
