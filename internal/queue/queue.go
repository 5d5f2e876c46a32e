// Package queue implements the durable, resumable crawl queue.
package queue

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// detailURLPattern matches the path shape of a vehicle detail page (VDP)
// as opposed to listing, pagination, or asset links.
var detailURLPattern = regexp.MustCompile(`(?i)/(?:vehicles?|inventory|vdp|used-vehicles?|new-vehicles?)/[^/?#]+`)

// excludedPathFragments reject listing-adjacent links that share the
// inventory path prefix but are not detail pages.
var excludedPathFragments = []string{
	"/search", "/compare", "/page/", "?page=", "/filters",
}

// Queue coordinates discovery, resumption, and status transitions over a
// durable item store.
type Queue struct {
	store      scrape.QueueStore
	maxRetries int
	logger     *zap.Logger
}

// New constructs a Queue. maxRetries is the total attempt budget per item.
func New(store scrape.QueueStore, maxRetries int, logger *zap.Logger) *Queue {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Queue{
		store:      store,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Discover parses detail-page anchors out of a fetched listing page,
// de-duplicates them by normalized absolute URL, assigns sequential
// positions, and persists the batch. Persistence failure is fatal for the
// run: without a durable queue the resume guarantees break.
func (q *Queue) Discover(ctx context.Context, source scrape.Source, listingHTML string) ([]scrape.QueueItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	base, err := url.Parse(source.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	seen := make(map[string]bool)
	var items []scrape.QueueItem

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs := resolveHref(base, href)
		if abs == "" || !isDetailURL(abs) {
			return
		}
		normalized, nErr := scrape.NormalizeURL(abs)
		if nErr != nil || seen[normalized] {
			return
		}
		seen[normalized] = true
		items = append(items, scrape.QueueItem{
			ID:       uuid.NewString(),
			SourceID: source.ID,
			URL:      normalized,
			Title:    strings.TrimSpace(sel.Text()),
			Position: len(items),
			Status:   scrape.StatusPending,
		})
	})

	if len(items) == 0 {
		return nil, nil
	}
	if err := q.store.SaveItems(ctx, items); err != nil {
		return nil, fmt.Errorf("%w: save discovered items: %v", scrape.ErrQueuePersistence, err)
	}
	q.logger.Info("listing discovered",
		zap.String("source_id", source.ID), zap.Int("items", len(items)))
	return items, nil
}

// Resume returns the existing non-terminal items for a source, in position
// order, so an interrupted run continues instead of re-discovering.
func (q *Queue) Resume(ctx context.Context, sourceID string) ([]scrape.QueueItem, error) {
	items, err := q.store.ListOpen(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: list open items: %v", scrape.ErrQueuePersistence, err)
	}
	return items, nil
}

// MarkProcessing transitions a pending item to processing. An item already
// processing (in-flight when a prior run died) is returned unchanged.
func (q *Queue) MarkProcessing(ctx context.Context, item scrape.QueueItem) (scrape.QueueItem, error) {
	if item.Status == scrape.StatusProcessing {
		return item, nil
	}
	updated := item
	updated.Status = scrape.StatusProcessing
	if err := q.store.UpdateStatus(ctx, item.ID, scrape.StatusPending, scrape.StatusProcessing, updated); err != nil {
		return scrape.QueueItem{}, fmt.Errorf("mark processing: %w", err)
	}
	return updated, nil
}

// MarkCompleted finalizes a processed item with the stored record's ID.
func (q *Queue) MarkCompleted(ctx context.Context, item scrape.QueueItem, recordID string) error {
	updated := item
	updated.Status = scrape.StatusCompleted
	updated.RecordID = recordID
	updated.ErrorMessage = ""
	if err := q.store.UpdateStatus(ctx, item.ID, scrape.StatusProcessing, scrape.StatusCompleted, updated); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a visit failure. Transient failures requeue the item
// as pending until the attempt budget is spent; after that the item is
// failed terminally and never retried within the run.
func (q *Queue) MarkFailed(ctx context.Context, item scrape.QueueItem, cause error) (scrape.QueueItem, error) {
	updated := item
	updated.RetryCount = item.RetryCount + 1
	updated.ErrorMessage = cause.Error()

	if scrape.Retryable(cause) && updated.RetryCount < q.maxRetries {
		updated.Status = scrape.StatusPending
		if err := q.store.UpdateStatus(ctx, item.ID, scrape.StatusProcessing, scrape.StatusPending, updated); err != nil {
			return scrape.QueueItem{}, fmt.Errorf("requeue item: %w", err)
		}
		q.logger.Debug("item requeued",
			zap.String("item_id", item.ID), zap.Int("retry_count", updated.RetryCount))
		return updated, nil
	}

	updated.Status = scrape.StatusFailed
	if err := q.store.UpdateStatus(ctx, item.ID, scrape.StatusProcessing, scrape.StatusFailed, updated); err != nil {
		return scrape.QueueItem{}, fmt.Errorf("fail item: %w", err)
	}
	return updated, nil
}

func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Host != base.Host {
		return ""
	}
	return abs.String()
}

func isDetailURL(abs string) bool {
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	if !detailURLPattern.MatchString(path) {
		return false
	}
	full := path
	if u.RawQuery != "" {
		full += "?" + strings.ToLower(u.RawQuery)
	}
	for _, frag := range excludedPathFragments {
		if strings.Contains(full, frag) {
			return false
		}
	}
	// A detail slug has depth beyond the section prefix.
	return strings.Count(strings.Trim(path, "/"), "/") >= 1
}
