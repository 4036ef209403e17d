package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/wa-booking-assistant/internal/dates"
	"github.com/wolfman30/wa-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 50 * time.Millisecond
)

// Customer identifies who the appointment is for.
type Customer struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// CommitRequest carries everything needed to reserve a slot.
type CommitRequest struct {
	MerchantID string
	ServiceID  string
	StaffID    string
	Date       time.Time
	Start      time.Time
	Duration   time.Duration
	Customer   Customer
	Notes      string

	// IdempotencyKey makes repeated commits of the same request return the
	// appointment stored by the first one instead of conflicting with it.
	IdempotencyKey string
}

// commitNamespace scopes appointment ids derived from idempotency keys.
var commitNamespace = uuid.MustParse("6f1d8c4e-2b7a-4f0e-9a53-0c1e5b7d2a91")

// appointmentID is random, or derived from the idempotency key when one is set.
func (r CommitRequest) appointmentID() string {
	key := strings.TrimSpace(r.IdempotencyKey)
	if key == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(commitNamespace, []byte(strings.TrimSpace(r.MerchantID)+"|"+key)).String()
}

func (r CommitRequest) validate() error {
	switch {
	case strings.TrimSpace(r.MerchantID) == "":
		return fmt.Errorf("%w: merchant id required", ErrInvalid)
	case strings.TrimSpace(r.ServiceID) == "":
		return fmt.Errorf("%w: service id required", ErrInvalid)
	case strings.TrimSpace(r.Customer.Phone) == "":
		return fmt.Errorf("%w: customer phone required", ErrInvalid)
	case r.Start.IsZero():
		return fmt.Errorf("%w: start time required", ErrInvalid)
	case r.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalid)
	}
	return nil
}

// CommitterOption configures a Committer.
type CommitterOption func(*Committer)

// WithMaxAttempts bounds how many times an overlapping insert is retried.
func WithMaxAttempts(n int) CommitterOption {
	return func(c *Committer) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*backoff.
func WithBackoff(d time.Duration) CommitterOption {
	return func(c *Committer) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

func WithMetrics(m *metrics.BookingMetrics) CommitterOption {
	return func(c *Committer) {
		c.metrics = m
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) CommitterOption {
	return func(c *Committer) {
		if now != nil {
			c.now = now
		}
	}
}

// Committer persists appointments through a Store and turns persistent overlaps into
// a ConflictError.
type Committer struct {
	store       Store
	logger      *logging.Logger
	metrics     *metrics.BookingMetrics
	tracer      trace.Tracer
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

func NewCommitter(store Store, logger *logging.Logger, opts ...CommitterOption) *Committer {
	if store == nil {
		panic("bookings: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Committer{
		store:       store,
		logger:      logger,
		tracer:      otel.Tracer("wabook.internal.bookings"),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Commit reserves [Start, Start+Duration) for the resource. It returns a *ConflictError
// when the slot stays taken after the bounded retries.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		c.metrics.ObserveCommit("invalid", 0)
		return nil, err
	}
	resourceKey := ResourceKey(req.MerchantID, req.StaffID)
	ctx, span := c.tracer.Start(ctx, "bookings.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("merchant_id", req.MerchantID),
		attribute.String("resource_key", resourceKey),
		attribute.String("start", req.Start.Format(time.RFC3339)),
	)

	date := req.Date
	if date.IsZero() {
		date = req.Start
	}

	id := req.appointmentID()
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if prior, err := c.replay(ctx, req, id); prior != nil || err != nil {
			if err != nil {
				c.metrics.ObserveCommit("error", attempt)
				span.RecordError(err)
				return nil, err
			}
			c.metrics.ObserveCommit("replayed", attempt)
			c.logger.Info("appointment commit replayed",
				"appointment_id", prior.ID,
				"merchant_id", prior.MerchantID,
				"resource_key", resourceKey,
			)
			return prior, nil
		}

		appt := c.newAppointment(req, id, date)
		err := c.store.Insert(ctx, appt)
		if err == nil {
			c.metrics.ObserveCommit("committed", attempt)
			c.logger.Info("appointment committed",
				"appointment_id", appt.ID,
				"merchant_id", appt.MerchantID,
				"resource_key", resourceKey,
				"start", appt.StartTime.Format(time.RFC3339),
				"attempts", attempt,
			)
			return appt, nil
		}
		if !errors.Is(err, ErrOverlap) && !errors.Is(err, ErrRetryable) && !errors.Is(err, ErrDuplicate) {
			c.metrics.ObserveCommit("error", attempt)
			span.RecordError(err)
			return nil, fmt.Errorf("bookings: commit: %w", err)
		}
		lastErr = err
		c.logger.Debug("appointment commit retry",
			"merchant_id", req.MerchantID,
			"resource_key", resourceKey,
			"attempt", attempt,
			"error", err,
		)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if attempt < c.maxAttempts {
			if err := c.wait(ctx, attempt); err != nil {
				c.metrics.ObserveCommit("error", attempt)
				return nil, fmt.Errorf("bookings: commit: %w", err)
			}
		}
	}

	if prior, err := c.replay(ctx, req, id); prior != nil {
		c.metrics.ObserveCommit("replayed", c.maxAttempts)
		return prior, nil
	} else if err != nil {
		c.metrics.ObserveCommit("error", c.maxAttempts)
		return nil, err
	}
	if errors.Is(lastErr, ErrRetryable) || errors.Is(lastErr, ErrDuplicate) {
		c.metrics.ObserveCommit("error", c.maxAttempts)
		span.RecordError(lastErr)
		return nil, fmt.Errorf("bookings: commit: %w", lastErr)
	}
	conflict := &ConflictError{
		MerchantID:  req.MerchantID,
		ResourceKey: resourceKey,
		Start:       req.Start,
		End:         req.Start.Add(req.Duration),
		Attempts:    c.maxAttempts,
	}
	c.metrics.ObserveCommit("conflict", c.maxAttempts)
	span.SetAttributes(attribute.Bool("conflict", true))
	c.logger.Warn("appointment slot conflict",
		"merchant_id", req.MerchantID,
		"resource_key", resourceKey,
		"start", req.Start.Format(time.RFC3339),
	)
	return nil, conflict
}

// replay returns the appointment an earlier commit with the same idempotency key
// stored. A key reused for a different slot is rejected.
func (c *Committer) replay(ctx context.Context, req CommitRequest, id string) (*Appointment, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, nil
	}
	prior, err := c.store.Get(ctx, strings.TrimSpace(req.MerchantID), id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: commit: look up %s: %w", id, err)
	}
	if !prior.Active() || !prior.StartTime.Equal(req.Start) || prior.ResourceKey() != ResourceKey(req.MerchantID, req.StaffID) {
		return nil, fmt.Errorf("%w: idempotency key %q already used for another booking", ErrInvalid, req.IdempotencyKey)
	}
	return prior, nil
}

func (c *Committer) newAppointment(req CommitRequest, id string, date time.Time) *Appointment {
	var staffID *string
	if s := strings.TrimSpace(req.StaffID); s != "" {
		staffID = &s
	}
	return &Appointment{
		ID:            id,
		MerchantID:    strings.TrimSpace(req.MerchantID),
		CustomerPhone: strings.TrimSpace(req.Customer.Phone),
		CustomerName:  strings.TrimSpace(req.Customer.Name),
		ServiceID:     strings.TrimSpace(req.ServiceID),
		StaffID:       staffID,
		Date:          dates.Format(date),
		StartTime:     req.Start,
		EndTime:       req.Start.Add(req.Duration),
		Status:        StatusConfirmed,
		Notes:         req.Notes,
		CreatedAt:     c.now().UTC(),
	}
}

func (c *Committer) wait(ctx context.Context, attempt int) error {
	if c.backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(attempt) * c.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Cancel frees the appointment's slot.
func (c *Committer) Cancel(ctx context.Context, merchantID, id string) (*Appointment, error) {
	appt, err := c.store.Cancel(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	c.logger.Info("appointment cancelled", "appointment_id", id, "merchant_id", merchantID)
	return appt, nil
}

func (c *Committer) Get(ctx context.Context, merchantID, id string) (*Appointment, error) {
	return c.store.Get(ctx, merchantID, id)
}
