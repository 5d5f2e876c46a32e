package challenge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// PageReader re-reads the live document of an open browser tab while a
// challenge is being waited out.
type PageReader interface {
	HTML(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// Resolver polls a challenged browser tab until the interstitial clears,
// then persists the earned session artifact. Fallback API providers never
// poll; their challenged results are plain failures handled by the chain.
type Resolver struct {
	detector  *Detector
	sessions  scrape.SessionStore
	clock     scrape.Clock
	logger    *zap.Logger
	budget    time.Duration
	interval  time.Duration
	// contentSelector marks expected real-page content (known listing
	// anchors); its presence ends the wait even if a marker lingers in a
	// script tag.
	contentSelector string
}

// NewResolver constructs a Resolver with the standard 60s/1s polling
// schedule.
func NewResolver(detector *Detector, sessions scrape.SessionStore, clock scrape.Clock, logger *zap.Logger) *Resolver {
	return &Resolver{
		detector:        detector,
		sessions:        sessions,
		clock:           clock,
		logger:          logger,
		budget:          60 * time.Second,
		interval:        time.Second,
		contentSelector: "a[href*='/vehicles/'], a[href*='/inventory/'], .vehicle-card, .srp-vehicle",
	}
}

// WithBudget overrides the wall-clock polling budget.
func (r *Resolver) WithBudget(budget, interval time.Duration) *Resolver {
	r.budget = budget
	r.interval = interval
	return r
}

// Detector exposes the underlying detector for providers that only need
// classification.
func (r *Resolver) Detector() *Detector {
	return r.detector
}

// Await blocks until the challenge on the open tab clears or the budget is
// spent. On success it stores the session for the domain and returns the
// clean HTML. A still-challenged tab fails with ErrChallengeDetected so the
// chain advances.
func (r *Resolver) Await(ctx context.Context, domain string, page PageReader) (string, error) {
	scrape.TotalChallenges.Inc()
	deadline := r.clock.Now().Add(r.budget)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("challenge wait canceled: %w", ctx.Err())
		case <-ticker.C:
		}

		html, err := page.HTML(ctx)
		if err != nil {
			return "", fmt.Errorf("read challenged page: %w", err)
		}

		if !r.detector.Challenged(html) || r.hasExpectedContent(html) {
			if err := r.persistSession(ctx, domain, page); err != nil {
				r.logger.Warn("session persist failed after challenge pass",
					zap.String("domain", domain), zap.Error(err))
			} else {
				scrape.TotalChallengesSolved.Inc()
			}
			return html, nil
		}

		if !r.clock.Now().Before(deadline) {
			r.logger.Warn("challenge wait budget exhausted", zap.String("domain", domain))
			return "", scrape.ErrChallengeDetected
		}
	}
}

func (r *Resolver) hasExpectedContent(html string) bool {
	if r.contentSelector == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(r.contentSelector).Length() > 0
}

func (r *Resolver) persistSession(ctx context.Context, domain string, page PageReader) error {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	sess := scrape.Session{
		Domain:   domain,
		Cookies:  cookies,
		EarnedAt: r.clock.Now(),
	}
	if err := r.sessions.Put(ctx, sess); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	r.logger.Info("challenge session earned",
		zap.String("domain", domain), zap.Int("cookies", len(cookies)))
	return nil
}
