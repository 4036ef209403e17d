package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppointment() *Appointment {
	staff := "st-1"
	start := time.Date(2026, 10, 20, 10, 0, 0, 0, wib)
	return &Appointment{
		ID:            "appt-1",
		MerchantID:    "m1",
		CustomerPhone: "+628111",
		ServiceID:     "svc-cut",
		StaffID:       &staff,
		Date:          "2026-10-20",
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		Status:        StatusConfirmed,
		CreatedAt:     time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC),
	}
}

func TestPostgresStoreInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appt := newAppointment()
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("st-1:2026-10-20").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("st-1", appt.StartTime, appt.EndTime).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO appointments").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "merchant:m1", "appointment.committed.v1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	store := NewPostgresStore(mock)
	require.NoError(t, store.Insert(context.Background(), appt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsertRereadOverlap(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appt := newAppointment()
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	err = store.Insert(context.Background(), appt)
	assert.ErrorIs(t, err, ErrOverlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsertExclusionViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	err = store.Insert(context.Background(), newAppointment())
	assert.ErrorIs(t, err, ErrOverlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsertDuplicateID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"})
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	err = store.Insert(context.Background(), newAppointment())
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrOverlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsertSerializationFailureIsRetryable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	err = store.Insert(context.Background(), newAppointment())
	assert.ErrorIs(t, err, ErrRetryable)
	assert.NotErrorIs(t, err, ErrOverlap)
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM appointments").
		WithArgs("m1", "missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	store := NewPostgresStore(mock)
	_, err = store.Get(context.Background(), "m1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreListBusy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 10, 20, 9, 0, 0, 0, wib)
	to := time.Date(2026, 10, 20, 18, 0, 0, 0, wib)
	mock.ExpectQuery("SELECT start_at, end_at").
		WithArgs("st-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"start_at", "end_at"}).
			AddRow(from.Add(2*time.Hour), from.Add(3*time.Hour)).
			AddRow(from.Add(5*time.Hour), from.Add(6*time.Hour)))

	store := NewPostgresStore(mock)
	busy, err := store.ListBusy(context.Background(), "st-1", from, to)
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.True(t, busy[0].Start.Equal(from.Add(2*time.Hour)))
	assert.True(t, busy[1].End.Equal(from.Add(6*time.Hour)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCancelNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("m1", "missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	_, err = store.Cancel(context.Background(), "m1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
