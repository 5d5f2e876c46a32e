package provider

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// ScrapingBeeName identifies the ScrapingBee fallback provider.
const ScrapingBeeName = "scrapingbee"

const scrapingBeeEndpoint = "https://app.scrapingbee.com/api/v1/"

// ScrapingBee fetches rendered HTML through the ScrapingBee API. It cannot
// wait a challenge out; a challenged result is a plain failure for the
// chain to handle.
type ScrapingBee struct {
	apiKey string
	client httpDoer
	logger *zap.Logger
}

// NewScrapingBee constructs the provider. An empty key leaves it
// unconfigured; the chain will skip it.
func NewScrapingBee(apiKey string, logger *zap.Logger) *ScrapingBee {
	return &ScrapingBee{
		apiKey: apiKey,
		client: newAPIClient(),
		logger: logger,
	}
}

// Name implements scrape.Provider.
func (s *ScrapingBee) Name() string { return ScrapingBeeName }

// Configured implements scrape.Provider.
func (s *ScrapingBee) Configured() bool { return s.apiKey != "" }

// Fetch implements scrape.Provider.
func (s *ScrapingBee) Fetch(ctx context.Context, rawURL string, opts scrape.FetchOptions) (scrape.FetchResult, error) {
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("url", rawURL)
	params.Set("render_js", "true")
	if opts.WaitSelector != "" {
		params.Set("wait_for", opts.WaitSelector)
	}
	if opts.ScrollToLoad {
		params.Set("js_scenario", `{"instructions":[{"scroll_y":10000},{"wait":500},{"scroll_y":10000}]}`)
	}
	if opts.Deadline > 0 {
		params.Set("timeout", strconv.FormatInt(opts.Deadline.Milliseconds(), 10))
	}

	start := time.Now()
	html, err := fetchAPI(ctx, s.client, scrapingBeeEndpoint+"?"+params.Encode())
	if err != nil {
		return scrape.FetchResult{}, err
	}
	s.logger.Debug("scrapingbee fetch complete", zap.String("url", rawURL))
	return scrape.FetchResult{
		URL:      rawURL,
		FinalURL: rawURL,
		HTML:     html,
		Provider: ScrapingBeeName,
		Duration: time.Since(start),
	}, nil
}
