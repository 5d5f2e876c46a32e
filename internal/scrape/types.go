package scrape

import (
	"net/http"
	"time"
)

// ItemStatus represents the lifecycle state of a crawl queue item.
type ItemStatus string

// Queue item status values persisted in the queue store.
const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s ItemStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Source identifies one dealership listing page to scrape. Sources are
// owned by configuration and read-only during a run.
type Source struct {
	ID         string `json:"id" mapstructure:"id"`
	TenantID   string `json:"tenant_id" mapstructure:"tenant_id"`
	Name       string `json:"name" mapstructure:"name"`
	Location   string `json:"location" mapstructure:"location"`
	ListingURL string `json:"listing_url" mapstructure:"listing_url"`
}

// QueueItem is one detail-page URL awaiting a visit. Items survive process
// restarts; a run that finds non-terminal items for a source resumes from
// them instead of re-discovering.
type QueueItem struct {
	ID           string     `json:"id"`
	SourceID     string     `json:"source_id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Position     int        `json:"position"`
	Status       ItemStatus `json:"status"`
	RetryCount   int        `json:"retry_count"`
	RecordID     string     `json:"record_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Session holds the per-domain artifacts earned by passing a challenge.
// One session per domain, shared by every queue item for that domain
// within its validity window.
type Session struct {
	Domain    string         `json:"domain"`
	Cookies   []*http.Cookie `json:"cookies"`
	EarnedAt  time.Time      `json:"earned_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the session is past its TTL at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// FetchOptions tune a single provider fetch.
type FetchOptions struct {
	// WaitSelector is a CSS selector the page must render before the fetch
	// is considered complete. Empty means wait for body only.
	WaitSelector string
	// ScrollToLoad scrolls the page to trigger lazily rendered content.
	ScrollToLoad bool
	// Deadline bounds the whole fetch including challenge waits.
	Deadline time.Duration
}

// FetchResult is the outcome of a successful provider fetch.
type FetchResult struct {
	URL      string
	FinalURL string
	HTML     string
	Provider string
	Duration time.Duration
}

// UpsertAction describes what an upsert did.
type UpsertAction string

// Upsert outcomes. ActionDelisted is produced by reconciliation, not by
// Upsert itself.
const (
	ActionInserted UpsertAction = "inserted"
	ActionUpdated  UpsertAction = "updated"
	ActionSkipped  UpsertAction = "skipped"
	ActionDelisted UpsertAction = "delisted"
)

// UpsertResult reports how a candidate was stored.
type UpsertResult struct {
	Action   UpsertAction `json:"action"`
	RecordID string       `json:"record_id,omitempty"`
}

// RunOptions control a single RunScrape invocation.
type RunOptions struct {
	ScrapeDetailPages bool
	MaxItems          int
	Resume            bool
}

// RunSummary reports partial-success counts for a completed run.
type RunSummary struct {
	Found      int   `json:"found"`
	Inserted   int   `json:"inserted"`
	Updated    int   `json:"updated"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}
