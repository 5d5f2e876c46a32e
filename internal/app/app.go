// Package app assembles the service from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/archive"
	"github.com/lotview/inventory-crawler/internal/challenge"
	"github.com/lotview/inventory-crawler/internal/config"
	"github.com/lotview/inventory-crawler/internal/extract"
	"github.com/lotview/inventory-crawler/internal/identity"
	"github.com/lotview/inventory-crawler/internal/logging"
	"github.com/lotview/inventory-crawler/internal/provider"
	"github.com/lotview/inventory-crawler/internal/publish"
	"github.com/lotview/inventory-crawler/internal/quality"
	"github.com/lotview/inventory-crawler/internal/queue"
	"github.com/lotview/inventory-crawler/internal/runner"
	"github.com/lotview/inventory-crawler/internal/scrape"
	"github.com/lotview/inventory-crawler/internal/session"
	"github.com/lotview/inventory-crawler/internal/store"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// App holds the assembled service and the handles it must release.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Runner *runner.Runner

	pool          *pgxpool.Pool
	browser       *provider.Browser
	storageClient *gcstorage.Client
	pubsubClient  *pubsub.Client
	publisher     *publish.PubSubPublisher
}

// New loads configuration and wires every subsystem. Unconfigured optional
// pieces (archive, publish, external providers) are simply absent.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}
	clock := systemClock{}

	sessionOpts := session.Options{
		TTL:             cfg.SessionTTL(),
		AuthorityCookie: cfg.Session.AuthorityCookie,
	}

	var (
		sessions scrape.SessionStore
		items    scrape.QueueStore
		vehicles scrape.VehicleStore
	)
	if cfg.DB.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.pool = pool
		sessions = session.NewPostgresStore(pool, sessionOpts, clock)
		items = queue.NewPostgresStore(pool)
		vehicles = store.NewPostgresStore(pool)
	} else {
		sessions = session.NewMemoryStore(sessionOpts, clock)
		items = queue.NewMemoryStore()
		vehicles = store.NewMemoryStore(clock)
	}

	detector := challenge.NewDetector(cfg.Session.ExtraChallengeMarkers)
	resolver := challenge.NewResolver(detector, sessions, clock, logger).
		WithBudget(time.Duration(cfg.Browser.ChallengeWaitSec)*time.Second, time.Second)

	ident := identity.NewPool(cfg.Browser.Proxies)
	a.browser = provider.NewBrowser(provider.BrowserOptions{
		Enabled:            cfg.Browser.Enabled,
		MaxPagesPerBrowser: cfg.Browser.MaxPagesPerBrowser,
		NavTimeout:         time.Duration(cfg.Browser.NavTimeoutSec) * time.Second,
		DomainQPS:          cfg.Browser.DomainQPS,
		AuthorityCookie:    cfg.Session.AuthorityCookie,
	}, ident, sessions, resolver, logger)

	direct, err := provider.NewDirect(cfg.Providers.DirectEnabled, cfg.Providers.DirectUserAgent, ident, sessions, logger)
	if err != nil {
		return nil, fmt.Errorf("init direct provider: %w", err)
	}

	chain := provider.NewChain(detector, logger,
		a.browser,
		provider.NewScrapingBee(cfg.Providers.ScrapingBeeKey, logger),
		provider.NewScraperAPI(cfg.Providers.ScraperAPIKey, logger),
		direct,
	)

	archiver, err := a.buildArchiver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	events, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.Runner = runner.New(
		cfg,
		chain,
		queue.New(items, cfg.Scraper.MaxRetries, logger),
		extract.NewEngine(time.Now().Year()),
		quality.NewUpserter(vehicles, logger),
		archiver,
		events,
		runner.Options{
			BatchSize:        cfg.Scraper.BatchSize,
			FetchTimeout:     cfg.FetchTimeout(),
			FirstLoadTimeout: cfg.FirstLoadTimeout(),
			EventTopic:       cfg.Publish.TopicName,
		},
		logger,
	)
	return a, nil
}

func (a *App) buildArchiver(ctx context.Context, cfg config.Config) (scrape.Archiver, error) {
	switch cfg.Archive.Provider {
	case "", "none":
		return nil, nil
	case "local":
		return archive.NewLocalStore(cfg.Archive.LocalDir)
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init storage client: %w", err)
		}
		a.storageClient = client
		return archive.NewGCSStore(client, cfg.Archive.GCSBucket)
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Archive.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (scrape.Publisher, error) {
	switch cfg.Publish.Provider {
	case "", "none":
		return nil, nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Publish.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		a.pubsubClient = client
		pub, err := publish.NewPubSubPublisher(client)
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown publish provider %q", cfg.Publish.Provider)
	}
}

// Close releases every external handle the App holds.
func (a *App) Close() {
	if a.browser != nil {
		a.browser.Close()
	}
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.Logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.Logger.Warn("storage client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.Logger.Sync()
}
