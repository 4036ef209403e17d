package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
	"github.com/wolfman30/wa-booking-assistant/internal/events"
)

// DB is the pgx surface used by PostgresStore. *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps appointments in Postgres. The appointments table carries a
// GiST exclusion constraint over (resource_key, tstzrange(start_at, end_at)) for
// rows that are not cancelled.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("bookings: db required")
	}
	return &PostgresStore{db: db}
}

const appointmentColumns = `id, merchant_id, customer_phone, customer_name, service_id, staff_id,
	to_char(appt_date, 'YYYY-MM-DD'), start_at, end_at, status, notes, created_at`

// Insert serializes writers per resource and day with an advisory lock, re-reads
// active intervals, then inserts the row and its outbox event in one transaction.
func (s *PostgresStore) Insert(ctx context.Context, appt *Appointment) error {
	if appt == nil {
		return fmt.Errorf("%w: appointment required", ErrInvalid)
	}
	resourceKey := appt.ResourceKey()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin: %w", classifyPgError(err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey(resourceKey, appt.StartTime)); err != nil {
		return fmt.Errorf("bookings: lock resource: %w", classifyPgError(err))
	}

	var overlapping bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE resource_key = $1
				AND status <> 'cancelled'
				AND start_at < $3
				AND end_at > $2
		)`, resourceKey, appt.StartTime, appt.EndTime).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("bookings: re-read busy intervals: %w", classifyPgError(err))
	}
	if overlapping {
		return ErrOverlap
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, merchant_id, resource_key, customer_phone, customer_name, service_id, staff_id,
			 appt_date, start_at, end_at, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		appt.ID, appt.MerchantID, resourceKey, appt.CustomerPhone, appt.CustomerName, appt.ServiceID, appt.StaffID,
		appt.Date, appt.StartTime, appt.EndTime, string(appt.Status), appt.Notes, appt.CreatedAt)
	if err != nil {
		return fmt.Errorf("bookings: insert appointment: %w", classifyPgError(err))
	}

	var staffID string
	if appt.StaffID != nil {
		staffID = *appt.StaffID
	}
	if _, err := events.Append(ctx, tx, events.AppointmentCommittedV1{
		AppointmentID: appt.ID,
		MerchantID:    appt.MerchantID,
		ServiceID:     appt.ServiceID,
		StaffID:       staffID,
		ResourceKey:   resourceKey,
		CustomerPhone: appt.CustomerPhone,
		CustomerName:  appt.CustomerName,
		Date:          appt.Date,
		StartAt:       appt.StartTime,
		EndAt:         appt.EndTime,
		CommittedAt:   appt.CreatedAt,
	}); err != nil {
		return fmt.Errorf("bookings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bookings: commit: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, merchantID, id string) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE merchant_id = $1 AND id = $2`, merchantID, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: get appointment: %w", err)
	}
	return appt, nil
}

// Cancel releases the slot and records an outbox event. Cancelling twice is a no-op.
func (s *PostgresStore) Cancel(ctx context.Context, merchantID, id string) (*Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookings: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE merchant_id = $1 AND id = $2
		FOR UPDATE`, merchantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: load for cancel: %w", err)
	}
	if appt.Status == StatusCancelled {
		return appt, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancelled_at = now()
		WHERE merchant_id = $1 AND id = $2`, merchantID, id); err != nil {
		return nil, fmt.Errorf("bookings: cancel appointment: %w", err)
	}
	if _, err := events.Append(ctx, tx, events.AppointmentCancelledV1{
		AppointmentID: id,
		MerchantID:    merchantID,
		ResourceKey:   appt.ResourceKey(),
		CancelledAt:   time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("bookings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bookings: commit cancel: %w", err)
	}
	appt.Status = StatusCancelled
	return appt, nil
}

func (s *PostgresStore) ListBusy(ctx context.Context, resourceKey string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := s.db.Query(ctx, `
		SELECT start_at, end_at
		FROM appointments
		WHERE resource_key = $1
			AND status <> 'cancelled'
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at ASC`, resourceKey, from, to)
	if err != nil {
		return nil, fmt.Errorf("bookings: list busy: %w", err)
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("bookings: scan busy: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	var status string
	if err := row.Scan(
		&appt.ID,
		&appt.MerchantID,
		&appt.CustomerPhone,
		&appt.CustomerName,
		&appt.ServiceID,
		&appt.StaffID,
		&appt.Date,
		&appt.StartTime,
		&appt.EndTime,
		&status,
		&appt.Notes,
		&appt.CreatedAt,
	); err != nil {
		return nil, err
	}
	appt.Status = Status(status)
	return &appt, nil
}
