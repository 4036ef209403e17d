// Package bookings commits appointments without double-allocating a resource.
package bookings

import (
	"strings"
	"time"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
	"github.com/wolfman30/wa-booking-assistant/internal/dates"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Appointment is a committed booking of one resource.
type Appointment struct {
	ID            string    `json:"id"`
	MerchantID    string    `json:"merchant_id"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name,omitempty"`
	ServiceID     string    `json:"service_id"`
	StaffID       *string   `json:"staff_id,omitempty"`
	Date          string    `json:"date"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        Status    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ResourceKey identifies the calendar that must not be double-booked.
func (a *Appointment) ResourceKey() string {
	var staffID string
	if a.StaffID != nil {
		staffID = *a.StaffID
	}
	return ResourceKey(a.MerchantID, staffID)
}

// Interval returns the half-open range the appointment occupies.
func (a *Appointment) Interval() availability.Interval {
	return availability.Interval{Start: a.StartTime, End: a.EndTime}
}

// Active reports whether the appointment still holds its slot.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// ResourceKey is the staff id when present, otherwise the merchant id.
func ResourceKey(merchantID, staffID string) string {
	if s := strings.TrimSpace(staffID); s != "" {
		return s
	}
	return strings.TrimSpace(merchantID)
}

// lockKey scopes commit serialization to one resource and one day.
func lockKey(resourceKey string, start time.Time) string {
	return resourceKey + ":" + dates.Format(start)
}
