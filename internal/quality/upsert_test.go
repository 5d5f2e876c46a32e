package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
	"github.com/lotview/inventory-crawler/internal/store"
)

func testCandidate(vin string, price int) scrape.Candidate {
	return scrape.Candidate{
		TenantID:  "lakeside-honda",
		SourceURL: "https://www.lakesidehonda.ca/used/2003-honda-accord",
		Year:      scrape.NewField(2003, scrape.ConfidenceHigh, "structured"),
		Make:      scrape.NewField("Honda", scrape.ConfidenceHigh, "structured"),
		Model:     scrape.NewField("Accord", scrape.ConfidenceHigh, "structured"),
		VIN:       scrape.NewField(vin, scrape.ConfidenceHigh, "structured"),
		Price:     scrape.NewField(price, scrape.ConfidenceHigh, "structured"),
	}
}

func TestUpsertInsertsThenUpdatesByVIN(t *testing.T) {
	ctx := context.Background()
	vehicles := store.NewMemoryStore(nil)
	up := NewUpserter(vehicles, zap.NewNop())

	first, err := up.Upsert(ctx, testCandidate("1HGCM82633A004352", 24900))
	require.NoError(t, err)
	assert.Equal(t, scrape.ActionInserted, first.Action)

	second, err := up.Upsert(ctx, testCandidate("1HGCM82633A004352", 23500))
	require.NoError(t, err)
	assert.Equal(t, scrape.ActionUpdated, second.Action)
	assert.Equal(t, first.RecordID, second.RecordID)

	records, err := vehicles.ListByTenant(ctx, "lakeside-honda")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 23500, records[0].Price)
}

func TestUpsertVINLessMatchesOwnURLOnly(t *testing.T) {
	ctx := context.Background()
	vehicles := store.NewMemoryStore(nil)
	up := NewUpserter(vehicles, zap.NewNop())

	a := testCandidate("", 24900)
	a.SourceURL = "https://www.lakesidehonda.ca/used/accord-a"
	b := testCandidate("", 23500)
	b.SourceURL = "https://www.lakesidehonda.ca/used/accord-b"

	ra, err := up.Upsert(ctx, a)
	require.NoError(t, err)
	rb, err := up.Upsert(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, scrape.ActionInserted, ra.Action)
	assert.Equal(t, scrape.ActionInserted, rb.Action)
	assert.NotEqual(t, ra.RecordID, rb.RecordID)

	again, err := up.Upsert(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, scrape.ActionUpdated, again.Action)
	assert.Equal(t, ra.RecordID, again.RecordID)
}

func TestUpsertSkipsWithoutIdentity(t *testing.T) {
	ctx := context.Background()
	vehicles := store.NewMemoryStore(nil)
	up := NewUpserter(vehicles, zap.NewNop())

	c := testCandidate("1HGCM82633A004352", 24900)
	c.Model = scrape.NoField[string]()

	res, err := up.Upsert(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, scrape.ActionSkipped, res.Action)

	records, err := vehicles.ListByTenant(ctx, "lakeside-honda")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUpsertStampsQualityScore(t *testing.T) {
	ctx := context.Background()
	vehicles := store.NewMemoryStore(nil)
	up := NewUpserter(vehicles, zap.NewNop())

	_, err := up.Upsert(ctx, testCandidate("1HGCM82633A004352", 24900))
	require.NoError(t, err)

	rec, err := vehicles.FindByVIN(ctx, "lakeside-honda", "1HGCM82633A004352")
	require.NoError(t, err)
	assert.Equal(t, Score(testCandidate("1HGCM82633A004352", 24900)), rec.Score)
}

func TestReconcileRemovesUnseenVINs(t *testing.T) {
	ctx := context.Background()
	vehicles := store.NewMemoryStore(nil)
	up := NewUpserter(vehicles, zap.NewNop())

	seen := testCandidate("1HGCM82633A004352", 24900)
	gone := testCandidate("KM8J3CAL6MU123456", 31998)
	gone.SourceURL = "https://www.lakesidehonda.ca/used/tucson"
	vinless := testCandidate("", 19900)
	vinless.SourceURL = "https://www.lakesidehonda.ca/used/no-vin"

	for _, c := range []scrape.Candidate{seen, gone, vinless} {
		_, err := up.Upsert(ctx, c)
		require.NoError(t, err)
	}

	removed, err := up.Reconcile(ctx, "lakeside-honda",
		map[string]bool{"1HGCM82633A004352": true}, nil)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "KM8J3CAL6MU123456", removed[0].VIN)

	records, err := vehicles.ListByTenant(ctx, "lakeside-honda")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = vehicles.FindByVIN(ctx, "lakeside-honda", "KM8J3CAL6MU123456")
	assert.ErrorIs(t, err, scrape.ErrNotFound)
}

func TestReconcileHonorsDecideFunc(t *testing.T) {
	ctx := context.Background()
	vehicles := store.NewMemoryStore(nil)
	up := NewUpserter(vehicles, zap.NewNop())

	_, err := up.Upsert(ctx, testCandidate("KM8J3CAL6MU123456", 31998))
	require.NoError(t, err)

	var asked []string
	removed, err := up.Reconcile(ctx, "lakeside-honda", map[string]bool{},
		func(_ context.Context, rec scrape.VehicleRecord) bool {
			asked = append(asked, rec.VIN)
			return false
		})
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, []string{"KM8J3CAL6MU123456"}, asked)

	records, err := vehicles.ListByTenant(ctx, "lakeside-honda")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
