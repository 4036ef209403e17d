// Package catalog provides merchant services, staff and booking profiles.
package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrServiceNotFound is returned when a service id is unknown to the merchant.
var ErrServiceNotFound = errors.New("catalog: service not found")

// Service is a bookable offering. Immutable during a booking flow.
type Service struct {
	ID              string `json:"id"`
	MerchantID      string `json:"merchant_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Active          bool   `json:"active"`
}

// Duration returns the service length.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Staff is a person who can perform services.
type Staff struct {
	ID             string `json:"id"`
	MerchantID     string `json:"merchant_id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
	Active         bool   `json:"active"`
}

// DayHours represents the opening hours for a single day.
// Nil means the merchant is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// WorkingHours maps day names to their hours.
type WorkingHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// ForDay returns the hours for the given weekday, nil when closed.
func (w *WorkingHours) ForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return w.Sunday
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return nil
	}
}

// Profile holds the booking settings of one merchant.
type Profile struct {
	MerchantID             string       `json:"merchant_id"`
	Name                   string       `json:"name"`
	Timezone               string       `json:"timezone"` // e.g., "Asia/Jakarta"
	WorkingHours           WorkingHours `json:"working_hours"`
	BufferMinutes          int          `json:"buffer_minutes"`
	SlotGranularityMinutes int          `json:"slot_granularity_minutes"`
	// CalendarIDs maps a resource id (staff id or merchant id) to a Google calendar id.
	CalendarIDs map[string]string `json:"calendar_ids,omitempty"`
}

// DefaultProfile returns a profile with Monday to Saturday 09:00-18:00 hours.
func DefaultProfile(merchantID string) *Profile {
	day := func() *DayHours { return &DayHours{Open: "09:00", Close: "18:00"} }
	return &Profile{
		MerchantID: merchantID,
		Timezone:   "Asia/Jakarta",
		WorkingHours: WorkingHours{
			Monday:    day(),
			Tuesday:   day(),
			Wednesday: day(),
			Thursday:  day(),
			Friday:    day(),
			Saturday:  day(),
		},
		SlotGranularityMinutes: 30,
	}
}

// Location resolves the profile timezone, falling back to UTC.
func (p *Profile) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Buffer returns the gap required around existing bookings.
func (p *Profile) Buffer() time.Duration {
	if p == nil || p.BufferMinutes < 0 {
		return 0
	}
	return time.Duration(p.BufferMinutes) * time.Minute
}

// Granularity returns the slot step, 30 minutes when unset.
func (p *Profile) Granularity() time.Duration {
	if p == nil || p.SlotGranularityMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.SlotGranularityMinutes) * time.Minute
}

// Catalog exposes the read side used by the booking dialogue.
type Catalog interface {
	ListServices(ctx context.Context, merchantID string) ([]Service, error)
	ListStaff(ctx context.Context, merchantID string) ([]Staff, error)
	Profile(ctx context.Context, merchantID string) (*Profile, error)
}

// FindService returns the active service with the given id.
func FindService(services []Service, id string) (Service, bool) {
	for _, s := range services {
		if s.ID == id && s.Active {
			return s, true
		}
	}
	return Service{}, false
}

// FindStaff returns the active staff member with the given id.
func FindStaff(staff []Staff, id string) (Staff, bool) {
	for _, s := range staff {
		if s.ID == id && s.Active {
			return s, true
		}
	}
	return Staff{}, false
}
