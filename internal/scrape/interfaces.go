package scrape

import (
	"context"
	"time"
)

// Provider retrieves rendered HTML for a URL. Implementations must honor
// ctx by hard-cancelling in-flight work.
type Provider interface {
	// Name identifies the provider in logs and results.
	Name() string
	// Configured reports whether the provider has what it needs to run.
	// Unconfigured providers are skipped by the chain, never errored.
	Configured() bool
	// Fetch retrieves the page. Returning ErrChallengeDetected advances
	// the chain to the next provider.
	Fetch(ctx context.Context, url string, opts FetchOptions) (FetchResult, error)
}

// SessionStore persists per-domain challenge-pass artifacts.
type SessionStore interface {
	// Get returns the valid session for a domain, or ErrNotFound /
	// ErrSessionExpired. Expired sessions are invalidated on read.
	Get(ctx context.Context, domain string) (Session, error)
	Put(ctx context.Context, session Session) error
	Delete(ctx context.Context, domain string) error
}

// QueueStore durably persists queue items keyed by (sourceID, url).
type QueueStore interface {
	SaveItems(ctx context.Context, items []QueueItem) error
	// ListOpen returns non-terminal items for a source in position order.
	ListOpen(ctx context.Context, sourceID string) ([]QueueItem, error)
	// UpdateStatus transitions an item from expected to next atomically.
	// It returns ErrNotFound when the item is not in the expected status.
	UpdateStatus(ctx context.Context, itemID string, expected, next ItemStatus, item QueueItem) error
}

// VehicleRecord is the stored form of a candidate, owned by the external
// inventory store.
type VehicleRecord struct {
	ID        string
	TenantID  string
	VIN       string
	SourceURL string
	Year      int
	Make      string
	Model     string
	Price     int
	Odometer  int
	Score     int
	UpdatedAt time.Time
}

// VehicleStore is the external inventory collaborator.
type VehicleStore interface {
	FindByVIN(ctx context.Context, tenantID, vin string) (VehicleRecord, error)
	FindBySourceURL(ctx context.Context, tenantID, sourceURL string) (VehicleRecord, error)
	Insert(ctx context.Context, candidate Candidate) (string, error)
	Update(ctx context.Context, id string, candidate Candidate) error
	ListByTenant(ctx context.Context, tenantID string) ([]VehicleRecord, error)
	Delete(ctx context.Context, id string) error
}

// SourceConfig supplies the active sources for a run.
type SourceConfig interface {
	ActiveSources(tenantID string) []Source
}

// Archiver stores raw fetched HTML for later re-extraction and debugging.
type Archiver interface {
	Archive(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Publisher emits inventory change events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
