package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
	"github.com/wolfman30/wa-booking-assistant/internal/catalog"
	"github.com/wolfman30/wa-booking-assistant/internal/dates"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

// Handler exposes availability and appointment endpoints for a merchant.
type Handler struct {
	catalog   catalog.Catalog
	finder    *SlotFinder
	committer *Committer
	logger    *logging.Logger
	now       func() time.Time
}

func NewHandler(cat catalog.Catalog, finder *SlotFinder, committer *Committer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		catalog:   cat,
		finder:    finder,
		committer: committer,
		logger:    logger,
		now:       time.Now,
	}
}

// Routes mounts under /v1/merchants.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{merchantID}/availability", h.GetAvailability)
	r.Post("/{merchantID}/appointments", h.CreateAppointment)
	r.Get("/{merchantID}/appointments/{appointmentID}", h.GetAppointment)
	r.Post("/{merchantID}/appointments/{appointmentID}/cancel", h.CancelAppointment)
	return r
}

type availabilityResponse struct {
	Date   string   `json:"date"`
	Slots  []string `json:"slots"`
	Reason string   `json:"reason,omitempty"`
}

// GetAvailability lists free slot starts.
// GET /v1/merchants/{merchantID}/availability?service_id=&date=&staff_id=
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "service_id required")
		return
	}
	profile, service, ok := h.loadService(w, r, merchantID, serviceID)
	if !ok {
		return
	}
	now := h.now().In(profile.Location())
	day, err := dates.Parse(r.URL.Query().Get("date"), profile.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	result, err := h.finder.Find(r.Context(), SlotQuery{
		Profile: profile,
		Service: service,
		StaffID: r.URL.Query().Get("staff_id"),
		Date:    day,
		Now:     now,
	})
	if err != nil {
		h.writeFailure(w, merchantID, "availability", err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		Date:   result.Date,
		Slots:  availability.ClockLabels(result.Slots),
		Reason: result.Reason,
	})
}

// CreateAppointmentRequest is the body of a direct booking.
type CreateAppointmentRequest struct {
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CustomerPhone string `json:"customer_phone"`
	CustomerName  string `json:"customer_name,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// CreateAppointment commits a slot. The start must be one of the free slots
// GetAvailability would list for that day.
// POST /v1/merchants/{merchantID}/appointments
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile, service, ok := h.loadService(w, r, merchantID, req.ServiceID)
	if !ok {
		return
	}
	loc := profile.Location()
	day, err := dates.Parse(req.Date, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	clock, ok := dates.ParseClock(req.Time)
	if !ok {
		writeError(w, http.StatusBadRequest, "time must be HH:MM")
		return
	}
	start, _, err := availability.Window(day, clock, clock, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "time must be HH:MM")
		return
	}

	staffID := strings.TrimSpace(req.StaffID)
	if staffID != "" {
		staff, err := h.catalog.ListStaff(r.Context(), merchantID)
		if err != nil {
			h.logger.Error("failed to list staff", "merchant_id", merchantID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if _, ok := catalog.FindStaff(staff, staffID); !ok {
			writeError(w, http.StatusNotFound, "staff not found")
			return
		}
	}

	query := SlotQuery{
		Profile: profile,
		Service: service,
		StaffID: staffID,
		Date:    day,
		Now:     h.now().In(loc),
	}
	free, err := h.finder.Find(r.Context(), query)
	if err != nil {
		h.writeFailure(w, merchantID, "availability", err)
		return
	}
	if !containsStart(free.Slots, start) {
		switch {
		case free.Reason == ReasonClosed:
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "merchant is closed on that day", "reason": ReasonClosed})
		case !onGrid(query, start) || start.Before(query.Now):
			writeError(w, http.StatusUnprocessableEntity, "time is not a bookable slot")
		default:
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": "slot no longer available",
				"start": start,
				"end":   start.Add(service.Duration()),
			})
		}
		return
	}

	appt, err := h.committer.Commit(r.Context(), CommitRequest{
		MerchantID: merchantID,
		ServiceID:  service.ID,
		StaffID:    staffID,
		Date:       day,
		Start:      start,
		Duration:   service.Duration(),
		Customer:   Customer{Phone: req.CustomerPhone, Name: req.CustomerName},
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeFailure(w, merchantID, "commit", err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// GetAppointment returns one appointment.
// GET /v1/merchants/{merchantID}/appointments/{appointmentID}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	appt, err := h.committer.Get(r.Context(), merchantID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeFailure(w, merchantID, "get appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// CancelAppointment frees a slot.
// POST /v1/merchants/{merchantID}/appointments/{appointmentID}/cancel
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	appt, err := h.committer.Cancel(r.Context(), merchantID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeFailure(w, merchantID, "cancel appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) loadService(w http.ResponseWriter, r *http.Request, merchantID, serviceID string) (*catalog.Profile, catalog.Service, bool) {
	services, err := h.catalog.ListServices(r.Context(), merchantID)
	if err != nil {
		h.logger.Error("failed to list services", "merchant_id", merchantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, catalog.Service{}, false
	}
	service, ok := catalog.FindService(services, serviceID)
	if !ok {
		writeError(w, http.StatusNotFound, "service not found")
		return nil, catalog.Service{}, false
	}
	profile, err := h.catalog.Profile(r.Context(), merchantID)
	if err != nil {
		h.logger.Error("failed to load merchant profile", "merchant_id", merchantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, catalog.Service{}, false
	}
	return profile, service, true
}

func (h *Handler) writeFailure(w http.ResponseWriter, merchantID, action string, err error) {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "slot no longer available",
			"start":    conflict.Start,
			"end":      conflict.End,
			"attempts": conflict.Attempts,
		})
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCalendarUnavailable):
		h.logger.Warn("calendar unavailable", "merchant_id", merchantID, "action", action, "error", err)
		writeError(w, http.StatusServiceUnavailable, "calendar unavailable, retry later")
	default:
		h.logger.Error("booking request failed", "merchant_id", merchantID, "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
