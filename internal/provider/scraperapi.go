package provider

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// ScraperAPIName identifies the ScraperAPI fallback provider.
const ScraperAPIName = "scraperapi"

const scraperAPIEndpoint = "https://api.scraperapi.com/"

// ScraperAPI fetches rendered HTML through the ScraperAPI service, last of
// the rendering fallbacks.
type ScraperAPI struct {
	apiKey string
	client httpDoer
	logger *zap.Logger
}

// NewScraperAPI constructs the provider. An empty key leaves it
// unconfigured; the chain will skip it.
func NewScraperAPI(apiKey string, logger *zap.Logger) *ScraperAPI {
	return &ScraperAPI{
		apiKey: apiKey,
		client: newAPIClient(),
		logger: logger,
	}
}

// Name implements scrape.Provider.
func (s *ScraperAPI) Name() string { return ScraperAPIName }

// Configured implements scrape.Provider.
func (s *ScraperAPI) Configured() bool { return s.apiKey != "" }

// Fetch implements scrape.Provider.
func (s *ScraperAPI) Fetch(ctx context.Context, rawURL string, _ scrape.FetchOptions) (scrape.FetchResult, error) {
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("url", rawURL)
	params.Set("render", "true")

	start := time.Now()
	html, err := fetchAPI(ctx, s.client, scraperAPIEndpoint+"?"+params.Encode())
	if err != nil {
		return scrape.FetchResult{}, err
	}
	s.logger.Debug("scraperapi fetch complete", zap.String("url", rawURL))
	return scrape.FetchResult{
		URL:      rawURL,
		FinalURL: rawURL,
		HTML:     html,
		Provider: ScraperAPIName,
		Duration: time.Since(start),
	}, nil
}
