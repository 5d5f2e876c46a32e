package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

var testSource = scrape.Source{
	ID:         "src-1",
	TenantID:   "tenant-1",
	Name:       "Example Motors",
	ListingURL: "https://dealer.example.com/used-vehicles/",
}

const listingHTML = `<html><body>
	<a href="/used-vehicles/2021-honda-civic-x1">2021 Honda Civic</a>
	<a href="/used-vehicles/2020-toyota-rav4-x2">2020 Toyota RAV4</a>
	<a href="/used-vehicles/2021-honda-civic-x1#photos">2021 Honda Civic</a>
	<a href="https://other-site.example.net/used-vehicles/leaked">Off-site</a>
	<a href="/used-vehicles/search?make=Honda">Search</a>
	<a href="/about-us">About</a>
	<a href="javascript:void(0)">Menu</a>
</body></html>`

func TestDiscover(t *testing.T) {
	store := NewMemoryStore()
	q := New(store, 3, zap.NewNop())

	items, err := q.Discover(context.Background(), testSource, listingHTML)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "https://dealer.example.com/used-vehicles/2021-honda-civic-x1", items[0].URL)
	assert.Equal(t, "https://dealer.example.com/used-vehicles/2020-toyota-rav4-x2", items[1].URL)
	assert.Equal(t, 0, items[0].Position)
	assert.Equal(t, 1, items[1].Position)
	for _, item := range items {
		assert.Equal(t, scrape.StatusPending, item.Status)
		assert.Equal(t, "src-1", item.SourceID)
		assert.NotEmpty(t, item.ID)
	}
}

func TestDiscoverStartsFreshPass(t *testing.T) {
	store := NewMemoryStore()
	q := New(store, 3, zap.NewNop())
	ctx := context.Background()

	first, err := q.Discover(ctx, testSource, listingHTML)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Complete one item, then re-discover: the new pass resets the row so
	// the vehicle is revisited and its record refreshed.
	item, err := q.MarkProcessing(ctx, first[0])
	require.NoError(t, err)
	require.NoError(t, q.MarkCompleted(ctx, item, "rec-1"))

	second, err := q.Discover(ctx, testSource, listingHTML)
	require.NoError(t, err)
	require.Len(t, second, 2)

	open, err := q.Resume(ctx, testSource.ID)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, it := range open {
		assert.Equal(t, scrape.StatusPending, it.Status)
		assert.Empty(t, it.RecordID)
	}
}

func TestDiscoverEmptyListing(t *testing.T) {
	q := New(NewMemoryStore(), 3, zap.NewNop())
	items, err := q.Discover(context.Background(), testSource, `<html><body><p>No vehicles found</p></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, items)
}

type failingStore struct {
	scrape.QueueStore
}

func (failingStore) SaveItems(context.Context, []scrape.QueueItem) error {
	return errors.New("disk full")
}

func TestDiscoverPersistFailureIsFatal(t *testing.T) {
	q := New(failingStore{}, 3, zap.NewNop())
	_, err := q.Discover(context.Background(), testSource, listingHTML)
	assert.ErrorIs(t, err, scrape.ErrQueuePersistence)
}

func TestStatusTransitions(t *testing.T) {
	store := NewMemoryStore()
	q := New(store, 3, zap.NewNop())
	ctx := context.Background()

	items, err := q.Discover(ctx, testSource, listingHTML)
	require.NoError(t, err)
	item := items[0]

	item, err = q.MarkProcessing(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusProcessing, item.Status)

	require.NoError(t, q.MarkCompleted(ctx, item, "rec-42"))
	stored, ok := store.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, scrape.StatusCompleted, stored.Status)
	assert.Equal(t, "rec-42", stored.RecordID)

	// Terminal states never transition backward.
	_, err = q.MarkProcessing(ctx, stored)
	assert.Error(t, err)
}

func TestMarkFailedRetryBudget(t *testing.T) {
	store := NewMemoryStore()
	q := New(store, 3, zap.NewNop())
	ctx := context.Background()

	items, err := q.Discover(ctx, testSource, listingHTML)
	require.NoError(t, err)
	item := items[0]

	// Three consecutive transient failures exhaust the budget.
	for attempt := 1; attempt <= 3; attempt++ {
		item, err = q.MarkProcessing(ctx, item)
		require.NoError(t, err)
		item, err = q.MarkFailed(ctx, item, scrape.ErrFetchTimeout)
		require.NoError(t, err)
		if attempt < 3 {
			assert.Equal(t, scrape.StatusPending, item.Status, "attempt %d should requeue", attempt)
		}
	}
	assert.Equal(t, scrape.StatusFailed, item.Status)
	assert.Equal(t, 3, item.RetryCount)
}

func TestMarkFailedNonRetryableIsTerminal(t *testing.T) {
	store := NewMemoryStore()
	q := New(store, 3, zap.NewNop())
	ctx := context.Background()

	items, err := q.Discover(ctx, testSource, listingHTML)
	require.NoError(t, err)

	item, err := q.MarkProcessing(ctx, items[0])
	require.NoError(t, err)
	item, err = q.MarkFailed(ctx, item, scrape.ErrChallengeUnresolved)
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusFailed, item.Status)
	assert.Equal(t, 1, item.RetryCount)
}

func TestResumeOrdersByPosition(t *testing.T) {
	store := NewMemoryStore()
	q := New(store, 3, zap.NewNop())
	ctx := context.Background()

	items, err := q.Discover(ctx, testSource, listingHTML)
	require.NoError(t, err)

	// Complete the first item; resume returns only the second.
	item, err := q.MarkProcessing(ctx, items[0])
	require.NoError(t, err)
	require.NoError(t, q.MarkCompleted(ctx, item, "rec-1"))

	open, err := q.Resume(ctx, testSource.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, items[1].URL, open[0].URL)
}
