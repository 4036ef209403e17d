// Package dialogue runs the booking slot-filling conversation one turn at a time.
// Every turn starts from the persisted State, so any worker can take any turn.
package dialogue

import (
	"context"
	"errors"
	"time"
)

// Stage is the next thing the conversation is waiting for.
type Stage string

// Stages in precedence order.
const (
	StageAwaitService      Stage = "AWAIT_SERVICE"
	StageAwaitDate         Stage = "AWAIT_DATE"
	StageAwaitSlotChoice   Stage = "AWAIT_SLOT_CHOICE"
	StageAwaitConfirmation Stage = "AWAIT_CONFIRMATION"
	StageDone              Stage = "DONE"
)

var (
	// ErrStaleState means another turn saved the conversation since it was loaded.
	ErrStaleState = errors.New("dialogue: state was modified concurrently")
	// ErrStateNotFound is returned by Delete when nothing is stored.
	ErrStateNotFound = errors.New("dialogue: state not found")
)

// State is everything known about a booking conversation. It is the only source of
// truth between turns.
type State struct {
	ConversationID string    `json:"conversation_id" dynamodbav:"conversationId"`
	MerchantID     string    `json:"merchant_id" dynamodbav:"merchantId"`
	Stage          Stage     `json:"stage" dynamodbav:"stage"`
	ServiceID      string    `json:"service_id,omitempty" dynamodbav:"serviceId,omitempty"`
	Date           string    `json:"date,omitempty" dynamodbav:"date,omitempty"`
	Time           string    `json:"time,omitempty" dynamodbav:"time,omitempty"`
	StaffID        string    `json:"staff_id,omitempty" dynamodbav:"staffId,omitempty"`
	PreferredTime  string    `json:"preferred_time,omitempty" dynamodbav:"preferredTime,omitempty"`
	OfferedSlots   []string  `json:"offered_slots,omitempty" dynamodbav:"offeredSlots,omitempty"`
	AppointmentID  string    `json:"appointment_id,omitempty" dynamodbav:"appointmentId,omitempty"`
	Version        int64     `json:"version" dynamodbav:"version"`
	UpdatedAt      time.Time `json:"updated_at" dynamodbav:"updatedAt"`
}

// NewState starts a conversation waiting for a service.
func NewState(conversationID, merchantID string) *State {
	return &State{
		ConversationID: conversationID,
		MerchantID:     merchantID,
		Stage:          StageAwaitService,
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := *s
	if s.OfferedSlots != nil {
		cp.OfferedSlots = append([]string(nil), s.OfferedSlots...)
	}
	return &cp
}

// StateStore persists State keyed by conversation id.
//
// Load returns nil and no error when nothing is stored. Save writes only if the
// stored version still equals s.Version, then increments s.Version; otherwise it
// returns ErrStaleState.
type StateStore interface {
	Load(ctx context.Context, conversationID string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, conversationID string) error
}
