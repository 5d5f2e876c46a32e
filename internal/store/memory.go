// Package store holds vehicle inventory store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// MemoryStore is an in-memory VehicleStore for tests and single-shot runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]scrape.VehicleRecord
	clock   scrape.Clock
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewMemoryStore constructs an empty MemoryStore. A nil clock uses the wall
// clock.
func NewMemoryStore(clock scrape.Clock) *MemoryStore {
	if clock == nil {
		clock = realClock{}
	}
	return &MemoryStore{records: make(map[string]scrape.VehicleRecord), clock: clock}
}

func (s *MemoryStore) FindByVIN(_ context.Context, tenantID, vin string) (scrape.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.TenantID == tenantID && rec.VIN == vin {
			return rec, nil
		}
	}
	return scrape.VehicleRecord{}, scrape.ErrNotFound
}

func (s *MemoryStore) FindBySourceURL(_ context.Context, tenantID, sourceURL string) (scrape.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.TenantID == tenantID && rec.SourceURL == sourceURL {
			return rec, nil
		}
	}
	return scrape.VehicleRecord{}, scrape.ErrNotFound
}

func (s *MemoryStore) Insert(_ context.Context, c scrape.Candidate) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.records[id] = recordFromCandidate(id, c, s.clock.Now())
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, c scrape.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return scrape.ErrNotFound
	}
	s.records[id] = recordFromCandidate(id, c, s.clock.Now())
	return nil
}

func (s *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]scrape.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scrape.VehicleRecord
	for _, rec := range s.records {
		if rec.TenantID == tenantID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return scrape.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func recordFromCandidate(id string, c scrape.Candidate, now time.Time) scrape.VehicleRecord {
	return scrape.VehicleRecord{
		ID:        id,
		TenantID:  c.TenantID,
		VIN:       c.VIN.Or(""),
		SourceURL: c.SourceURL,
		Year:      c.Year.Or(0),
		Make:      c.Make.Or(""),
		Model:     c.Model.Or(""),
		Price:     c.Price.Or(0),
		Odometer:  c.Odometer.Or(0),
		Score:     c.DataQualityScore,
		UpdatedAt: now,
	}
}
