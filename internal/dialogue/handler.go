package dialogue

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/wa-booking-assistant/internal/extraction"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

// Handler exposes the booking conversation over HTTP.
type Handler struct {
	engine    *Engine
	publisher *Publisher
	logger    *logging.Logger
}

// NewHandler builds the handler. publisher may be nil, which disables the async endpoint.
func NewHandler(engine *Engine, publisher *Publisher, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("dialogue: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, publisher: publisher, logger: logger}
}

// Routes mounts under /v1/conversations.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{conversationID}/turns", h.PostTurn)
	r.Post("/{conversationID}/messages", h.EnqueueMessage)
	r.Delete("/{conversationID}/booking", h.ResetConversation)
	return r
}

// TurnRequest is the body of a turn.
type TurnRequest struct {
	MerchantID    string                   `json:"merchant_id"`
	CustomerPhone string                   `json:"customer_phone"`
	CustomerName  string                   `json:"customer_name,omitempty"`
	Message       string                   `json:"message"`
	MessageID     string                   `json:"message_id,omitempty"`
	History       []extraction.ChatMessage `json:"history,omitempty"`
}

func (h *Handler) decodeTurn(w http.ResponseWriter, r *http.Request) (Turn, bool) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return Turn{}, false
	}
	turn := Turn{
		ConversationID: chi.URLParam(r, "conversationID"),
		MerchantID:     strings.TrimSpace(req.MerchantID),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
		CustomerName:   strings.TrimSpace(req.CustomerName),
		Message:        req.Message,
		MessageID:      strings.TrimSpace(req.MessageID),
		History:        req.History,
	}
	switch {
	case turn.MerchantID == "":
		writeError(w, http.StatusBadRequest, "merchant_id is required")
		return Turn{}, false
	case turn.CustomerPhone == "":
		writeError(w, http.StatusBadRequest, "customer_phone is required")
		return Turn{}, false
	}
	return turn, true
}

// PostTurn runs one turn synchronously and returns the Outcome.
// POST /v1/conversations/{conversationID}/turns
func (h *Handler) PostTurn(w http.ResponseWriter, r *http.Request) {
	turn, ok := h.decodeTurn(w, r)
	if !ok {
		return
	}
	outcome, err := h.engine.HandleTurn(r.Context(), turn)
	if err != nil {
		h.writeFailure(w, turn.ConversationID, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// EnqueueMessage queues a turn for the worker and returns its job id.
// POST /v1/conversations/{conversationID}/messages
func (h *Handler) EnqueueMessage(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		writeError(w, http.StatusNotImplemented, "async processing disabled")
		return
	}
	turn, ok := h.decodeTurn(w, r)
	if !ok {
		return
	}
	jobID, err := h.publisher.EnqueueTurn(r.Context(), turn)
	if err != nil {
		h.logger.Error("failed to enqueue turn", "error", err, "conversation_id", turn.ConversationID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// ResetConversation forgets the booking conversation.
// DELETE /v1/conversations/{conversationID}/booking
func (h *Handler) ResetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := h.engine.Reset(r.Context(), conversationID); err != nil {
		h.writeFailure(w, conversationID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeFailure(w http.ResponseWriter, conversationID string, err error) {
	switch {
	case errors.Is(err, ErrStateNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, ErrInvalidTurn):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrStaleState):
		writeError(w, http.StatusConflict, "conversation was updated concurrently, retry")
	case errors.Is(err, ErrCalendarUnavailable):
		h.logger.Warn("calendar unavailable", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "calendar unavailable, retry later")
	default:
		h.logger.Error("dialogue request failed", "conversation_id", conversationID, "error", err)
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
