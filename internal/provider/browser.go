package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lotview/inventory-crawler/internal/challenge"
	"github.com/lotview/inventory-crawler/internal/identity"
	"github.com/lotview/inventory-crawler/internal/scrape"
)

// BrowserName identifies the controlled-browser provider in results.
const BrowserName = "browser"

// BrowserOptions configure the controlled browser provider.
type BrowserOptions struct {
	Enabled bool
	// MaxPagesPerBrowser bounds page visits before the browser handle is
	// recycled. Recycling captures earned cookies first so a passed
	// challenge survives the rotation.
	MaxPagesPerBrowser int
	NavTimeout         time.Duration
	DomainQPS          float64
	// AuthorityCookie marks the cookie that proves a challenge pass; only
	// cookie groups containing it are persisted on recycle.
	AuthorityCookie string
}

func (o BrowserOptions) withDefaults() BrowserOptions {
	if o.MaxPagesPerBrowser <= 0 {
		o.MaxPagesPerBrowser = 8
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 25 * time.Second
	}
	if o.AuthorityCookie == "" {
		o.AuthorityCookie = "cf_clearance"
	}
	return o
}

// Browser fetches pages with a controlled headless Chrome session. It is
// first in the chain because it is the only provider that can wait a
// challenge out and earn a session.
type Browser struct {
	opts     BrowserOptions
	ident    *identity.Pool
	sessions scrape.SessionStore
	resolver *challenge.Resolver
	logger   *zap.Logger

	limiters sync.Map

	mu            sync.RWMutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	uses          int
}

// NewBrowser constructs the browser provider. The underlying Chrome process
// starts lazily on the first fetch.
func NewBrowser(
	opts BrowserOptions,
	ident *identity.Pool,
	sessions scrape.SessionStore,
	resolver *challenge.Resolver,
	logger *zap.Logger,
) *Browser {
	return &Browser{
		opts:     opts.withDefaults(),
		ident:    ident,
		sessions: sessions,
		resolver: resolver,
		logger:   logger,
	}
}

// Name implements scrape.Provider.
func (b *Browser) Name() string { return BrowserName }

// Configured implements scrape.Provider.
func (b *Browser) Configured() bool { return b.opts.Enabled }

// Close tears down the browser and allocator.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *Browser) closeLocked() {
	if b.browserCancel != nil {
		b.browserCancel()
		b.browserCancel = nil
		b.browserCtx = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.uses = 0
}

// Fetch navigates with the controlled browser, restores any earned session
// for the domain, and waits out a challenge when one is served.
func (b *Browser) Fetch(ctx context.Context, rawURL string, opts scrape.FetchOptions) (scrape.FetchResult, error) {
	domain := scrape.Domain(rawURL)
	if err := b.waitDomainBudget(ctx, domain); err != nil {
		return scrape.FetchResult{}, err
	}

	browserCtx, release, err := b.acquire(ctx)
	if err != nil {
		return scrape.FetchResult{}, err
	}
	defer release()

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, b.navTimeout(opts))
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	start := time.Now()
	fp := b.ident.Next()

	html, finalURL, err := b.navigate(taskCtx, rawURL, domain, fp, opts)
	if err != nil {
		return scrape.FetchResult{}, fmt.Errorf("browser navigate: %w", err)
	}

	if b.resolver.Detector().Challenged(html) {
		html, err = b.resolver.Await(taskCtx, domain, tabReader{ctx: taskCtx})
		if err != nil {
			return scrape.FetchResult{}, err
		}
	}

	if opts.ScrollToLoad {
		if html, err = b.scrollAndReread(taskCtx); err != nil {
			return scrape.FetchResult{}, fmt.Errorf("scroll page: %w", err)
		}
	}

	return scrape.FetchResult{
		URL:      rawURL,
		FinalURL: finalURL,
		HTML:     html,
		Provider: BrowserName,
		Duration: time.Since(start),
	}, nil
}

// acquire returns a live browser context, recycling the handle when it has
// served its page budget. The read lock is held until release so a recycle
// cannot kill in-flight tabs.
func (b *Browser) acquire(ctx context.Context) (context.Context, func(), error) {
	b.mu.Lock()
	if b.browserCtx == nil || b.uses >= b.opts.MaxPagesPerBrowser {
		if err := b.recycleLocked(ctx); err != nil {
			b.mu.Unlock()
			return nil, nil, err
		}
	}
	b.uses++
	browserCtx := b.browserCtx
	b.mu.Unlock()

	b.mu.RLock()
	if b.browserCtx != browserCtx {
		// Recycled between unlock and rlock; rare, retry once.
		b.mu.RUnlock()
		return b.acquire(ctx)
	}
	return browserCtx, b.mu.RUnlock, nil
}

func (b *Browser) recycleLocked(ctx context.Context) error {
	if b.browserCtx != nil {
		b.preserveCookies(ctx)
		b.logger.Debug("recycling browser handle", zap.Int("uses", b.uses))
	}
	b.closeLocked()

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if proxy := b.ident.NextProxy(); proxy != "" {
		execOpts = append(execOpts, chromedp.ProxyServer(proxy))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser warmup: %w", err)
	}

	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.uses = 0
	return nil
}

// preserveCookies captures the dying browser's cookies and persists the
// per-domain groups that carry the authority cookie, so an earned
// challenge pass is not lost to the rotation.
func (b *Browser) preserveCookies(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	// Bound the CDP round trip too: a hung browser must not stall the
	// recycle while the provider mutex is held.
	captureCtx, cancel := context.WithTimeout(b.browserCtx, 5*time.Second)
	defer cancel()

	var raw []*network.Cookie
	err := chromedp.Run(captureCtx, chromedp.ActionFunc(func(c context.Context) error {
		var gErr error
		raw, gErr = storage.GetCookies().Do(c)
		return gErr
	}))
	if err != nil {
		b.logger.Warn("cookie capture on recycle failed", zap.Error(err))
		return
	}

	byDomain := make(map[string][]*http.Cookie)
	hasAuthority := make(map[string]bool)
	for _, c := range raw {
		domain := strings.TrimPrefix(c.Domain, ".")
		byDomain[domain] = append(byDomain[domain], &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
		if c.Name == b.opts.AuthorityCookie {
			hasAuthority[domain] = true
		}
	}
	for domain, cookies := range byDomain {
		if !hasAuthority[domain] {
			continue
		}
		sess := scrape.Session{Domain: domain, Cookies: cookies, EarnedAt: time.Now()}
		putCtx, putCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := b.sessions.Put(putCtx, sess)
		putCancel()
		if err != nil {
			b.logger.Warn("session preserve failed", zap.String("domain", domain), zap.Error(err))
		}
	}
}

func (b *Browser) navigate(
	ctx context.Context,
	rawURL, domain string,
	fp identity.Fingerprint,
	opts scrape.FetchOptions,
) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetUserAgentOverride(fp.UserAgent).WithAcceptLanguage(fp.Locale),
		emulation.SetDeviceMetricsOverride(int64(fp.ViewportWidth), int64(fp.ViewportHeight), 1, false),
		b.restoreSessionAction(domain),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
	}
	if opts.WaitSelector != "" {
		actions = append(actions, b.waitSelectorAction(opts.WaitSelector))
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", err
	}
	return html, finalURL, nil
}

// waitSelectorAction waits briefly for the target content selector. A
// challenged page never renders it, so the wait is bounded rather than
// failing the whole navigation.
func (b *Browser) waitSelectorAction(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := chromedp.WaitReady(selector, chromedp.ByQuery).Do(waitCtx); err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil
			}
			return err
		}
		return nil
	})
}

func (b *Browser) restoreSessionAction(domain string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		sess, err := b.sessions.Get(ctx, domain)
		if err != nil {
			// Missing or expired sessions just mean a cold start.
			return nil
		}
		for _, c := range sess.Cookies {
			cookieDomain := c.Domain
			if cookieDomain == "" {
				cookieDomain = domain
			}
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(cookieDomain).
				WithPath(defaultPath(c.Path))
			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("restore cookie %s: %w", c.Name, err)
			}
		}
		b.logger.Debug("session restored", zap.String("domain", domain), zap.Int("cookies", len(sess.Cookies)))
		return nil
	})
}

func (b *Browser) scrollAndReread(ctx context.Context) (string, error) {
	scroll := chromedp.ActionFunc(func(c context.Context) error {
		for i := 0; i < 5; i++ {
			if err := chromedp.Evaluate(`window.scrollBy(0, document.body.scrollHeight);`, nil).Do(c); err != nil {
				return err
			}
			select {
			case <-c.Done():
				return c.Err()
			case <-time.After(400 * time.Millisecond):
			}
		}
		return nil
	})

	var html string
	if err := chromedp.Run(ctx, scroll, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (b *Browser) waitDomainBudget(ctx context.Context, domain string) error {
	if b.opts.DomainQPS <= 0 {
		return nil
	}
	val, _ := b.limiters.LoadOrStore(domain, rate.NewLimiter(rate.Limit(b.opts.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait domain limiter: %w", err)
	}
	return nil
}

func (b *Browser) navTimeout(opts scrape.FetchOptions) time.Duration {
	if opts.Deadline > 0 {
		return opts.Deadline
	}
	return b.opts.NavTimeout
}

// tabReader lets the challenge resolver re-read a live tab while polling.
type tabReader struct {
	ctx context.Context
}

// HTML implements challenge.PageReader.
func (t tabReader) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var html string
	if err := chromedp.Run(t.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read tab html: %w", err)
	}
	return html, nil
}

// Cookies implements challenge.PageReader.
func (t tabReader) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw []*network.Cookie
	err := chromedp.Run(t.ctx, chromedp.ActionFunc(func(c context.Context) error {
		var gErr error
		raw, gErr = storage.GetCookies().Do(c)
		return gErr
	}))
	if err != nil {
		return nil, fmt.Errorf("read tab cookies: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cookies, nil
}

func defaultPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
