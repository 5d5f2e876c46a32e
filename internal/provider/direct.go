package provider

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/identity"
	"github.com/lotview/inventory-crawler/internal/scrape"
)

// DirectName identifies the plain-HTTP provider, the chain's last resort
// for sites that serve real content without a challenge.
const DirectName = "direct"

// Direct fetches over plain HTTP via colly, reusing any earned session
// cookies for the domain.
type Direct struct {
	enabled   bool
	collector *colly.Collector
	ident     *identity.Pool
	sessions  scrape.SessionStore
	logger    *zap.Logger
}

// NewDirect constructs the direct provider.
func NewDirect(
	enabled bool,
	userAgent string,
	ident *identity.Pool,
	sessions scrape.SessionStore,
	logger *zap.Logger,
) (*Direct, error) {
	if userAgent == "" {
		userAgent = ident.Next().UserAgent
	}
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(userAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	})
	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 4,
		Delay:       250 * time.Millisecond,
	}); err != nil {
		return nil, err
	}
	return &Direct{
		enabled:   enabled,
		collector: base,
		ident:     ident,
		sessions:  sessions,
		logger:    logger,
	}, nil
}

// Name implements scrape.Provider.
func (d *Direct) Name() string { return DirectName }

// Configured implements scrape.Provider.
func (d *Direct) Configured() bool { return d.enabled }

// Fetch implements scrape.Provider.
func (d *Direct) Fetch(ctx context.Context, rawURL string, _ scrape.FetchOptions) (scrape.FetchResult, error) {
	collector := d.collector.Clone()
	collector.SetRequestTimeout(remainingTimeout(ctx, 30*time.Second))

	if sess, err := d.sessions.Get(ctx, scrape.Domain(rawURL)); err == nil {
		if err := collector.SetCookies(rawURL, sess.Cookies); err != nil {
			d.logger.Debug("session cookie reuse failed", zap.String("url", rawURL), zap.Error(err))
		}
	}

	resultCh := make(chan directResult, 1)
	var once sync.Once
	send := func(res directResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		send(directResult{
			html:     string(r.Body),
			finalURL: r.Request.URL.String(),
		})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(directResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return scrape.FetchResult{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return scrape.FetchResult{}, err
		}
		if res.err != nil {
			return scrape.FetchResult{}, res.err
		}
		return scrape.FetchResult{
			URL:      rawURL,
			FinalURL: res.finalURL,
			HTML:     res.html,
			Provider: DirectName,
			Duration: time.Since(start),
		}, nil
	default:
		return scrape.FetchResult{}, errors.New("direct fetch produced no result")
	}
}

type directResult struct {
	html     string
	finalURL string
	err      error
}

func remainingTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return time.Millisecond
	}
	return remaining
}
