package events

import "time"

const (
	TypeAppointmentCommitted = "appointment.committed.v1"
	TypeAppointmentCancelled = "appointment.cancelled.v1"
)

// AppointmentCommittedV1 is emitted in the same transaction that stores a booking.
type AppointmentCommittedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	MerchantID    string    `json:"merchant_id"`
	ServiceID     string    `json:"service_id"`
	StaffID       string    `json:"staff_id,omitempty"`
	ResourceKey   string    `json:"resource_key"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name,omitempty"`
	Date          string    `json:"date"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	CommittedAt   time.Time `json:"committed_at"`
}

func (AppointmentCommittedV1) EventType() string { return TypeAppointmentCommitted }

func (e AppointmentCommittedV1) Subject() Subject {
	return Subject{MerchantID: e.MerchantID, AppointmentID: e.AppointmentID, ResourceKey: e.ResourceKey}
}

// AppointmentCancelledV1 is emitted when a booking releases its slot.
type AppointmentCancelledV1 struct {
	AppointmentID string    `json:"appointment_id"`
	MerchantID    string    `json:"merchant_id"`
	ResourceKey   string    `json:"resource_key"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

func (AppointmentCancelledV1) EventType() string { return TypeAppointmentCancelled }

func (e AppointmentCancelledV1) Subject() Subject {
	return Subject{MerchantID: e.MerchantID, AppointmentID: e.AppointmentID, ResourceKey: e.ResourceKey}
}
