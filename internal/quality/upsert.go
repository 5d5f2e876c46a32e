package quality

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// DelistFunc decides what happens to a stored record whose VIN was not seen
// in a completed pass. Returning true removes the record.
type DelistFunc func(ctx context.Context, record scrape.VehicleRecord) bool

// Upserter writes scored candidates into the inventory store, matching by
// VIN within the tenant scope, or by source URL for VIN-less candidates.
type Upserter struct {
	vehicles scrape.VehicleStore
	logger   *zap.Logger
}

// NewUpserter constructs an Upserter.
func NewUpserter(vehicles scrape.VehicleStore, logger *zap.Logger) *Upserter {
	return &Upserter{vehicles: vehicles, logger: logger}
}

// Upsert scores the candidate and writes it. Candidates missing mandatory
// identity fields are skipped without writing.
func (u *Upserter) Upsert(ctx context.Context, c scrape.Candidate) (scrape.UpsertResult, error) {
	if !c.HasIdentity() {
		u.logger.Debug("skipping candidate without identity",
			zap.String("url", c.SourceURL))
		scrape.TotalUpserts.WithLabelValues(string(scrape.ActionSkipped)).Inc()
		return scrape.UpsertResult{Action: scrape.ActionSkipped}, nil
	}
	c.DataQualityScore = Score(c)

	existing, err := u.lookup(ctx, c)
	switch {
	case err == nil:
		if err := u.vehicles.Update(ctx, existing.ID, c); err != nil {
			return scrape.UpsertResult{}, fmt.Errorf("update vehicle %s: %w", existing.ID, err)
		}
		scrape.TotalUpserts.WithLabelValues(string(scrape.ActionUpdated)).Inc()
		return scrape.UpsertResult{Action: scrape.ActionUpdated, RecordID: existing.ID}, nil
	case errors.Is(err, scrape.ErrNotFound):
		id, err := u.vehicles.Insert(ctx, c)
		if err != nil {
			return scrape.UpsertResult{}, fmt.Errorf("insert vehicle: %w", err)
		}
		scrape.TotalUpserts.WithLabelValues(string(scrape.ActionInserted)).Inc()
		return scrape.UpsertResult{Action: scrape.ActionInserted, RecordID: id}, nil
	default:
		return scrape.UpsertResult{}, fmt.Errorf("lookup vehicle: %w", err)
	}
}

// lookup matches by VIN when present. A VIN-less candidate matches only on
// its own source URL so it can never merge with a different vehicle.
func (u *Upserter) lookup(ctx context.Context, c scrape.Candidate) (scrape.VehicleRecord, error) {
	if vin := c.VIN.Or(""); vin != "" {
		return u.vehicles.FindByVIN(ctx, c.TenantID, vin)
	}
	return u.vehicles.FindBySourceURL(ctx, c.TenantID, c.SourceURL)
}

// Reconcile removes records whose VIN was stored before but absent from the
// seen set of a fully completed pass, and returns the removed records so
// the caller can emit delist notifications. The delist decision belongs to
// the caller; a nil decide removes unconditionally.
func (u *Upserter) Reconcile(ctx context.Context, tenantID string, seenVINs map[string]bool, decide DelistFunc) ([]scrape.VehicleRecord, error) {
	records, err := u.vehicles.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles for tenant %s: %w", tenantID, err)
	}

	var removed []scrape.VehicleRecord
	for _, rec := range records {
		if rec.VIN == "" || seenVINs[rec.VIN] {
			continue
		}
		if decide != nil && !decide(ctx, rec) {
			continue
		}
		if err := u.vehicles.Delete(ctx, rec.ID); err != nil {
			return removed, fmt.Errorf("delete delisted vehicle %s: %w", rec.ID, err)
		}
		u.logger.Info("removed delisted vehicle",
			zap.String("vin", rec.VIN),
			zap.String("id", rec.ID))
		removed = append(removed, rec)
	}
	return removed, nil
}
