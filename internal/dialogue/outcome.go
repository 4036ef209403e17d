package dialogue

import (
	"github.com/wolfman30/wa-booking-assistant/internal/bookings"
	"github.com/wolfman30/wa-booking-assistant/internal/extraction"
)

// QuestionKind tells the presentation layer what to ask next.
type QuestionKind string

const (
	QuestionChooseService QuestionKind = "choose_service"
	QuestionProvideDate   QuestionKind = "provide_date"
	QuestionChooseSlot    QuestionKind = "choose_slot"
	QuestionConfirm       QuestionKind = "confirm"
	QuestionDone          QuestionKind = "done"
)

// Reasons attached to a question.
const (
	ReasonClosed         = bookings.ReasonClosed
	ReasonNoAvailability = bookings.ReasonNoAvailability
	ReasonUnresolvedDate = "unresolved_date"
	ReasonPastDate       = "past_date"
	ReasonNotUnderstood  = "not_understood"
	ReasonDeclined       = "declined"
	ReasonSlotTaken      = "slot_taken"
)

// Question is the structured prompt for the next message. It is never rendered text.
type Question struct {
	Kind    QuestionKind `json:"kind"`
	Options []string     `json:"options,omitempty"`
	Slots   []string     `json:"slots,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Date    string       `json:"date,omitempty"`
	Summary *Summary     `json:"summary,omitempty"`
}

// Summary describes the booking being confirmed or already made.
type Summary struct {
	ServiceID       string `json:"service_id"`
	ServiceName     string `json:"service_name"`
	StaffID         string `json:"staff_id,omitempty"`
	StaffName       string `json:"staff_name,omitempty"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	AppointmentID   string `json:"appointment_id,omitempty"`
}

// Ambiguity records a name that matched several catalog entries, or none.
type Ambiguity struct {
	Field      string   `json:"field"`
	Value      string   `json:"value"`
	Candidates []string `json:"candidates,omitempty"`
}

// Outcome is the result of one turn.
type Outcome struct {
	ConversationID string                `json:"conversation_id"`
	Stage          Stage                 `json:"stage"`
	Missing        string                `json:"missing,omitempty"`
	Question       Question              `json:"question"`
	Ambiguities    []Ambiguity           `json:"ambiguities,omitempty"`
	Appointment    *bookings.Appointment `json:"appointment,omitempty"`
	Conflict       bool                  `json:"conflict,omitempty"`
}

// Turn is one inbound customer message.
type Turn struct {
	ConversationID string                   `json:"conversation_id"`
	MerchantID     string                   `json:"merchant_id"`
	CustomerPhone  string                   `json:"customer_phone"`
	CustomerName   string                   `json:"customer_name,omitempty"`
	Message        string                   `json:"message"`
	MessageID      string                   `json:"message_id,omitempty"`
	History        []extraction.ChatMessage `json:"history,omitempty"`
}
