package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Event is a versioned change to one appointment.
type Event interface {
	EventType() string
	Subject() Subject
}

// Subject names the appointment an event is about.
type Subject struct {
	MerchantID    string
	AppointmentID string
	ResourceKey   string
}

// Envelope is the JSON document stored in the outbox and delivered downstream.
// Consumers route on MerchantID and ResourceKey without decoding Payload.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	MerchantID    string          `json:"merchant_id"`
	AppointmentID string          `json:"appointment_id"`
	ResourceKey   string          `json:"resource_key,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Aggregate is the outbox partition of the envelope: all events of one merchant
// are delivered in insertion order.
func (e Envelope) Aggregate() string {
	return AggregateForMerchant(e.MerchantID)
}

// EnvelopeOption customizes the generated envelope.
type EnvelopeOption func(*Envelope)

func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

func WithOccurredAt(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.OccurredAt = ts.UTC()
		}
	}
}

var (
	errNilEvent       = errors.New("events: event required")
	errMissingSubject = errors.New("events: merchant and appointment id required")
	nowFunc           = time.Now
)

// AggregateForMerchant names the outbox aggregate of a merchant's bookings.
func AggregateForMerchant(merchantID string) string {
	return "merchant:" + strings.TrimSpace(merchantID)
}

func newEnvelope(evt Event, opts ...EnvelopeOption) (Envelope, error) {
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return Envelope{}, fmt.Errorf("events: event type missing")
	}
	subject := evt.Subject()
	if strings.TrimSpace(subject.MerchantID) == "" || strings.TrimSpace(subject.AppointmentID) == "" {
		return Envelope{}, fmt.Errorf("%w: %s", errMissingSubject, eventType)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	env := Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		MerchantID:    strings.TrimSpace(subject.MerchantID),
		AppointmentID: strings.TrimSpace(subject.AppointmentID),
		ResourceKey:   strings.TrimSpace(subject.ResourceKey),
		OccurredAt:    nowFunc().UTC(),
		Payload:       payload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

// Execer is satisfied by pgx pools and transactions.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Append writes evt to the outbox through exec, normally the transaction that
// changed the appointment, and returns the stored envelope.
func Append(ctx context.Context, exec Execer, evt Event, opts ...EnvelopeOption) (Envelope, error) {
	if exec == nil {
		return Envelope{}, fmt.Errorf("events: exec required")
	}
	env, err := newEnvelope(evt, opts...)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	if _, err := exec.Exec(ctx, `
		INSERT INTO outbox (id, aggregate, event_type, payload)
		VALUES ($1, $2, $3, $4)`, env.EventID, env.Aggregate(), env.EventType, data); err != nil {
		return Envelope{}, fmt.Errorf("events: append %s for %s: %w", env.EventType, env.AppointmentID, err)
	}
	return env, nil
}
