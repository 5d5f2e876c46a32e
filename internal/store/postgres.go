package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Querier is the pgx surface the store needs; *pgxpool.Pool and pgxmock
// both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists vehicle records in the vehicles table.
type PostgresStore struct {
	pool Querier
}

// NewPostgresStore creates a PostgresStore over an existing pool.
func NewPostgresStore(pool Querier) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `id, tenant_id, COALESCE(vin, ''), source_url, year, make, model, price, odometer, quality_score, updated_at`

func (s *PostgresStore) FindByVIN(ctx context.Context, tenantID, vin string) (scrape.VehicleRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM vehicles WHERE tenant_id = $1 AND vin = $2;`
	return s.findOne(ctx, query, tenantID, vin)
}

func (s *PostgresStore) FindBySourceURL(ctx context.Context, tenantID, sourceURL string) (scrape.VehicleRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM vehicles WHERE tenant_id = $1 AND source_url = $2;`
	return s.findOne(ctx, query, tenantID, sourceURL)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (scrape.VehicleRecord, error) {
	var rec scrape.VehicleRecord
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.VIN,
		&rec.SourceURL,
		&rec.Year,
		&rec.Make,
		&rec.Model,
		&rec.Price,
		&rec.Odometer,
		&rec.Score,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return scrape.VehicleRecord{}, scrape.ErrNotFound
	}
	if err != nil {
		return scrape.VehicleRecord{}, fmt.Errorf("find vehicle: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, c scrape.Candidate) (string, error) {
	query := `
		INSERT INTO vehicles (
			tenant_id, source_id, vin, source_url, year, make, model, trim,
			price, odometer, exterior_color, interior_color, drivetrain,
			fuel_type, transmission, body_type, images, badges, highlights,
			description, condition, quality_score, updated_at
		)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, NOW())
		RETURNING id;
	`
	var id string
	err := s.pool.QueryRow(ctx, query, candidateArgs(c)...).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert vehicle: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, c scrape.Candidate) error {
	query := `
		UPDATE vehicles SET
			tenant_id = $1, source_id = $2, vin = NULLIF($3, ''), source_url = $4,
			year = $5, make = $6, model = $7, trim = $8, price = $9,
			odometer = $10, exterior_color = $11, interior_color = $12,
			drivetrain = $13, fuel_type = $14, transmission = $15,
			body_type = $16, images = $17, badges = $18, highlights = $19,
			description = $20, condition = $21, quality_score = $22,
			updated_at = NOW()
		WHERE id = $23;
	`
	args := append(candidateArgs(c), id)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vehicle %s: %w", id, scrape.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]scrape.VehicleRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM vehicles WHERE tenant_id = $1 ORDER BY id;`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var records []scrape.VehicleRecord
	for rows.Next() {
		var rec scrape.VehicleRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.VIN,
			&rec.SourceURL,
			&rec.Year,
			&rec.Make,
			&rec.Model,
			&rec.Price,
			&rec.Odometer,
			&rec.Score,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicles: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vehicle %s: %w", id, scrape.ErrNotFound)
	}
	return nil
}

func candidateArgs(c scrape.Candidate) []any {
	return []any{
		c.TenantID, c.SourceID, c.VIN.Or(""), c.SourceURL,
		c.Year.Or(0), c.Make.Or(""), c.Model.Or(""), c.Trim.Or(""),
		c.Price.Or(0), c.Odometer.Or(0),
		c.ExteriorColor.Or(""), c.InteriorColor.Or(""), c.Drivetrain.Or(""),
		c.FuelType.Or(""), c.Transmission.Or(""), c.BodyType.Or(""),
		c.Images, c.Badges, c.Highlights,
		c.Description, string(c.Condition), c.DataQualityScore,
	}
}
