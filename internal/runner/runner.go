// Package runner orchestrates a scrape run: listing discovery, queue
// draining, extraction, and upsert.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/extract"
	"github.com/lotview/inventory-crawler/internal/quality"
	"github.com/lotview/inventory-crawler/internal/queue"
	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Fetcher is the provider chain surface the runner depends on.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts scrape.FetchOptions) (scrape.FetchResult, error)
}

// Options tunes a Runner.
type Options struct {
	// BatchSize bounds concurrent detail-page fetches within a source.
	BatchSize int
	// FetchTimeout bounds one detail-page fetch across the whole chain.
	FetchTimeout time.Duration
	// FirstLoadTimeout bounds the listing-page fetch, which may need to
	// sit out a challenge.
	FirstLoadTimeout time.Duration
	// EventTopic receives one event per stored record. Empty disables
	// publishing.
	EventTopic string
	// Delist decides whether a VIN missing from a completed pass is
	// removed. Nil removes unconditionally.
	Delist quality.DelistFunc
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 3
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.FirstLoadTimeout <= 0 {
		o.FirstLoadTimeout = 120 * time.Second
	}
	return o
}

// Runner executes scrape runs over the configured sources.
type Runner struct {
	sources  scrape.SourceConfig
	fetcher  Fetcher
	queue    *queue.Queue
	engine   *extract.Engine
	upserter *quality.Upserter
	archiver scrape.Archiver
	events   scrape.Publisher
	opts     Options
	logger   *zap.Logger
}

// New constructs a Runner. Archiver and publisher may be nil to disable
// those side channels.
func New(
	sources scrape.SourceConfig,
	fetcher Fetcher,
	q *queue.Queue,
	engine *extract.Engine,
	upserter *quality.Upserter,
	archiver scrape.Archiver,
	events scrape.Publisher,
	opts Options,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		sources:  sources,
		fetcher:  fetcher,
		queue:    q,
		engine:   engine,
		upserter: upserter,
		archiver: archiver,
		events:   events,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// RecordEvent is published for every stored record.
type RecordEvent struct {
	Action   scrape.UpsertAction `json:"action"`
	RecordID string              `json:"recordId"`
	VIN      string              `json:"vin,omitempty"`
	SourceID string              `json:"sourceId"`
	URL      string              `json:"url"`
	Score    int                 `json:"score"`
}

// RunScrape processes matching sources one at a time. Sources run
// sequentially to bound browser usage; detail pages within a source fetch
// concurrently in small batches. Per-item failures are recorded on the
// queue item and never abort the run.
func (r *Runner) RunScrape(ctx context.Context, sourceFilter string, opts scrape.RunOptions) (scrape.RunSummary, error) {
	start := time.Now()

	sources := r.matchSources(sourceFilter)
	if len(sources) == 0 {
		return scrape.RunSummary{}, fmt.Errorf("no active sources match %q", sourceFilter)
	}

	var summary scrape.RunSummary
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := r.runSource(ctx, source, opts, &summary); err != nil {
			return summary, err
		}
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	r.logger.Info("run finished",
		zap.Int("found", summary.Found),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int64("duration_ms", summary.DurationMs))
	return summary, nil
}

func (r *Runner) matchSources(filter string) []scrape.Source {
	all := r.sources.ActiveSources("")
	if filter == "" {
		return all
	}
	var matched []scrape.Source
	for _, s := range all {
		if s.ID == filter || strings.EqualFold(s.Name, filter) {
			matched = append(matched, s)
		}
	}
	return matched
}

func (r *Runner) runSource(ctx context.Context, source scrape.Source, opts scrape.RunOptions, summary *scrape.RunSummary) error {
	logger := r.logger.With(zap.String("source_id", source.ID), zap.String("source", source.Name))

	items, err := r.loadItems(ctx, source, opts, logger)
	if err != nil {
		return err
	}
	summary.Found += len(items)
	if len(items) == 0 || !opts.ScrapeDetailPages {
		return nil
	}
	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}

	seenVINs := make(map[string]bool)
	truncated := r.drain(ctx, source, items, summary, seenVINs, logger)

	// Reconciliation only makes sense after a full pass: a cancelled or
	// truncated run has not observed the whole inventory.
	if !truncated && ctx.Err() == nil && opts.MaxItems == 0 {
		removed, err := r.upserter.Reconcile(ctx, source.TenantID, seenVINs, r.opts.Delist)
		if err != nil {
			logger.Warn("reconciliation failed", zap.Error(err))
		} else if len(removed) > 0 {
			logger.Info("reconciled delisted vehicles", zap.Int("removed", len(removed)))
			for _, rec := range removed {
				r.publish(ctx, RecordEvent{
					Action:   scrape.ActionDelisted,
					RecordID: rec.ID,
					VIN:      rec.VIN,
					SourceID: source.ID,
					URL:      rec.SourceURL,
				}, logger)
			}
		}
	}
	return nil
}

// loadItems resumes the existing queue when asked and it is non-empty;
// otherwise it fetches the listing page and discovers fresh items.
func (r *Runner) loadItems(ctx context.Context, source scrape.Source, opts scrape.RunOptions, logger *zap.Logger) ([]scrape.QueueItem, error) {
	if opts.Resume {
		items, err := r.queue.Resume(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			logger.Info("resuming open queue", zap.Int("items", len(items)))
			return items, nil
		}
	}

	res, err := r.fetcher.Fetch(ctx, source.ListingURL, scrape.FetchOptions{
		Deadline:     r.opts.FirstLoadTimeout,
		ScrollToLoad: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch listing for %s: %w", source.Name, err)
	}
	r.archive(ctx, fmt.Sprintf("sources/%s/listing.html", source.ID), res.HTML, logger)

	return r.queue.Discover(ctx, source, res.HTML)
}

// drain processes queue items in fixed-size concurrent batches. Transient
// failures requeue the item and it is picked up by a later batch, so the
// retry budget is spent within the run. Cancellation stops dispatch but
// lets in-flight items finish.
func (r *Runner) drain(ctx context.Context, source scrape.Source, items []scrape.QueueItem, summary *scrape.RunSummary, seenVINs map[string]bool, logger *zap.Logger) (truncated bool) {
	pending := append([]scrape.QueueItem(nil), items...)

	var mu sync.Mutex
	for len(pending) > 0 {
		if ctx.Err() != nil {
			return true
		}
		n := r.opts.BatchSize
		if n > len(pending) {
			n = len(pending)
		}
		batch := pending[:n]
		pending = pending[n:]

		var wg sync.WaitGroup
		for _, item := range batch {
			wg.Add(1)
			go func(item scrape.QueueItem) {
				defer wg.Done()
				requeued, outcome := r.processItem(ctx, source, item, logger)

				mu.Lock()
				defer mu.Unlock()
				switch outcome.action {
				case scrape.ActionInserted:
					summary.Inserted++
				case scrape.ActionUpdated:
					summary.Updated++
				case scrape.ActionSkipped:
					summary.Skipped++
				default:
					if requeued != nil {
						pending = append(pending, *requeued)
					} else {
						summary.Failed++
					}
				}
				if outcome.vin != "" {
					seenVINs[outcome.vin] = true
				}
			}(item)
		}
		wg.Wait()
	}
	return false
}

type itemOutcome struct {
	action scrape.UpsertAction
	vin    string
}

// processItem runs one queue item through fetch, extract, and upsert. A
// returned non-nil item means the failure was transient and the item was
// requeued.
func (r *Runner) processItem(ctx context.Context, source scrape.Source, item scrape.QueueItem, logger *zap.Logger) (*scrape.QueueItem, itemOutcome) {
	item, err := r.queue.MarkProcessing(ctx, item)
	if err != nil {
		logger.Warn("item claim failed", zap.String("url", item.URL), zap.Error(err))
		return nil, itemOutcome{}
	}

	res, err := r.fetcher.Fetch(ctx, item.URL, scrape.FetchOptions{Deadline: r.opts.FetchTimeout})
	if err != nil {
		return r.failItem(ctx, item, err, logger)
	}
	r.archive(ctx, fmt.Sprintf("sources/%s/pages/%s.html", source.ID, item.ID), res.HTML, logger)

	candidate, err := r.engine.Extract(source, item.URL, res.HTML)
	if err != nil {
		return r.failItem(ctx, item, err, logger)
	}

	// New vehicles are out of scope for used-inventory ingestion; the item
	// still completes so it is not revisited.
	if candidate.Condition == scrape.ConditionNew {
		if err := r.queue.MarkCompleted(ctx, item, ""); err != nil {
			logger.Warn("complete transition failed", zap.String("url", item.URL), zap.Error(err))
		}
		return nil, itemOutcome{action: scrape.ActionSkipped}
	}

	result, err := r.upserter.Upsert(ctx, candidate)
	if err != nil {
		return r.failItem(ctx, item, err, logger)
	}
	if err := r.queue.MarkCompleted(ctx, item, result.RecordID); err != nil {
		logger.Warn("complete transition failed", zap.String("url", item.URL), zap.Error(err))
	}

	if result.Action != scrape.ActionSkipped {
		r.publish(ctx, RecordEvent{
			Action:   result.Action,
			RecordID: result.RecordID,
			VIN:      candidate.VIN.Or(""),
			SourceID: source.ID,
			URL:      item.URL,
			Score:    candidate.DataQualityScore,
		}, logger)
	}
	return nil, itemOutcome{action: result.Action, vin: candidate.VIN.Or("")}
}

func (r *Runner) failItem(ctx context.Context, item scrape.QueueItem, cause error, logger *zap.Logger) (*scrape.QueueItem, itemOutcome) {
	logger.Warn("item failed",
		zap.String("url", item.URL),
		zap.Int("retry_count", item.RetryCount),
		zap.Error(cause))

	updated, err := r.queue.MarkFailed(ctx, item, cause)
	if err != nil {
		logger.Error("failure transition failed", zap.String("url", item.URL), zap.Error(err))
		return nil, itemOutcome{}
	}
	if updated.Status == scrape.StatusPending {
		return &updated, itemOutcome{}
	}
	return nil, itemOutcome{}
}

func (r *Runner) archive(ctx context.Context, path, html string, logger *zap.Logger) {
	if r.archiver == nil {
		return
	}
	if _, err := r.archiver.Archive(ctx, path, "text/html; charset=utf-8", []byte(html)); err != nil {
		logger.Warn("archive failed", zap.String("path", path), zap.Error(err))
	}
}

func (r *Runner) publish(ctx context.Context, event RecordEvent, logger *zap.Logger) {
	if r.events == nil || r.opts.EventTopic == "" {
		return
	}
	if _, err := r.events.Publish(ctx, r.opts.EventTopic, event); err != nil {
		logger.Warn("event publish failed", zap.String("record_id", event.RecordID), zap.Error(err))
	}
}
