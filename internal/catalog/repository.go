package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads services and staff from Postgres.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a repository backed by a pgx pool or transaction.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("catalog: db required")
	}
	return &PostgresRepository{db: db}
}

// ListServices returns every service of a merchant ordered by name.
func (r *PostgresRepository) ListServices(ctx context.Context, merchantID string) ([]Service, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, merchant_id, name, duration_minutes, price_cents, active
		FROM services
		WHERE merchant_id = $1
		ORDER BY name ASC`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.MerchantID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Active); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListStaff returns every staff member of a merchant ordered by name.
func (r *PostgresRepository) ListStaff(ctx context.Context, merchantID string) ([]Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, merchant_id, name, COALESCE(specialization, ''), active
		FROM staff
		WHERE merchant_id = $1
		ORDER BY name ASC`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list staff: %w", err)
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		var s Staff
		if err := rows.Scan(&s.ID, &s.MerchantID, &s.Name, &s.Specialization, &s.Active); err != nil {
			return nil, fmt.Errorf("catalog: scan staff: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetService loads one service of a merchant.
func (r *PostgresRepository) GetService(ctx context.Context, merchantID, serviceID string) (*Service, error) {
	var s Service
	err := r.db.QueryRow(ctx, `
		SELECT id, merchant_id, name, duration_minutes, price_cents, active
		FROM services
		WHERE merchant_id = $1 AND id = $2`, merchantID, serviceID).
		Scan(&s.ID, &s.MerchantID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get service: %w", err)
	}
	return &s, nil
}

// UpsertService creates or replaces a service.
func (r *PostgresRepository) UpsertService(ctx context.Context, s Service) error {
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("catalog: service %s: duration must be positive", s.ID)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO services (id, merchant_id, name, duration_minutes, price_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			price_cents = EXCLUDED.price_cents,
			active = EXCLUDED.active,
			updated_at = now()`,
		s.ID, s.MerchantID, s.Name, s.DurationMinutes, s.PriceCents, s.Active)
	if err != nil {
		return fmt.Errorf("catalog: upsert service: %w", err)
	}
	return nil
}

// UpsertStaff creates or replaces a staff member.
func (r *PostgresRepository) UpsertStaff(ctx context.Context, s Staff) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO staff (id, merchant_id, name, specialization, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			specialization = EXCLUDED.specialization,
			active = EXCLUDED.active,
			updated_at = now()`,
		s.ID, s.MerchantID, s.Name, s.Specialization, s.Active)
	if err != nil {
		return fmt.Errorf("catalog: upsert staff: %w", err)
	}
	return nil
}
