// Package extraction asks a language model for booking fields in a free-text message.
// Results are advisory: callers validate names against the catalog and resolve dates
// themselves.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/wa-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 8 * time.Second

// Fields is the raw partial result. Any field may be empty.
type Fields struct {
	ServiceName string `json:"service_name,omitempty"`
	DateExpr    string `json:"date_expr,omitempty"`
	TimeExpr    string `json:"time_expr,omitempty"`
	StaffName   string `json:"staff_name,omitempty"`
}

// Empty reports whether nothing was extracted.
func (f *Fields) Empty() bool {
	return f == nil || (f.ServiceName == "" && f.DateExpr == "" && f.TimeExpr == "" && f.StaffName == "")
}

// CatalogHint lists the names the model may pick from.
type CatalogHint struct {
	Services []string `json:"services,omitempty"`
	Staff    []string `json:"staff,omitempty"`
}

// Request is one extraction call.
type Request struct {
	Message string
	History []ChatMessage
	Catalog CatalogHint
}

// Extractor returns nil when nothing could be extracted, including on failure.
type Extractor interface {
	Extract(ctx context.Context, req Request) *Fields
}

// Func adapts a function to Extractor.
type Func func(ctx context.Context, req Request) *Fields

func (f Func) Extract(ctx context.Context, req Request) *Fields {
	if f == nil {
		return nil
	}
	return f(ctx, req)
}

// Nop never extracts anything.
var Nop = Func(func(context.Context, Request) *Fields { return nil })

const systemPrompt = `You extract appointment booking details from a customer's chat message.
Messages may be in English or Indonesian. Reply with one JSON object and nothing else:
{"service_name": "", "date_expr": "", "time_expr": "", "staff_name": ""}
Rules:
- Copy the customer's own words for date_expr and time_expr (e.g. "besok", "next friday", "2pm", "jam 14").
- Never convert dates or times and never invent values. Leave a field empty when it is not mentioned.
- service_name and staff_name should be the closest name from the lists below when one is clearly meant.`

// maxHistory keeps the prompt short.
const maxHistory = 10

// Option configures an LLMExtractor.
type Option func(*LLMExtractor)

func WithTimeout(d time.Duration) Option {
	return func(e *LLMExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithModel(model string) Option {
	return func(e *LLMExtractor) {
		e.model = strings.TrimSpace(model)
	}
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(e *LLMExtractor) {
		e.metrics = m
	}
}

// LLMExtractor implements Extractor on top of an LLMClient.
type LLMExtractor struct {
	client  LLMClient
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	model   string
	timeout time.Duration
}

func NewLLMExtractor(client LLMClient, logger *logging.Logger, opts ...Option) *LLMExtractor {
	if client == nil {
		panic("extraction: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &LLMExtractor{client: client, logger: logger, timeout: DefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *LLMExtractor) Extract(ctx context.Context, req Request) *Fields {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.Complete(callCtx, e.buildRequest(req, message))
	latency := time.Since(start).Seconds()
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		e.metrics.ObserveExtraction(outcome, latency)
		e.logger.Warn("slot extraction failed", "outcome", outcome, "error", err)
		return nil
	}

	fields, err := ParseFields(resp.Text)
	if err != nil {
		e.metrics.ObserveExtraction("malformed", latency)
		e.logger.Warn("slot extraction returned malformed output", "error", err, "text_len", len(resp.Text))
		return nil
	}
	if fields.Empty() {
		e.metrics.ObserveExtraction("empty", latency)
		return nil
	}
	e.metrics.ObserveExtraction("ok", latency)
	return fields
}

func (e *LLMExtractor) buildRequest(req Request, message string) LLMRequest {
	system := []string{systemPrompt}
	var lists strings.Builder
	if len(req.Catalog.Services) > 0 {
		lists.WriteString("Services: " + strings.Join(req.Catalog.Services, ", ") + "\n")
	}
	if len(req.Catalog.Staff) > 0 {
		lists.WriteString("Staff: " + strings.Join(req.Catalog.Staff, ", ") + "\n")
	}
	if lists.Len() > 0 {
		system = append(system, strings.TrimSpace(lists.String()))
	}

	history := req.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		if msg.Role == ChatRoleSystem || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		messages = append(messages, msg)
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: message})

	return LLMRequest{
		Model:       e.model,
		System:      system,
		Messages:    messages,
		MaxTokens:   200,
		Temperature: 0,
	}
}

// ParseFields decodes the model reply, tolerating code fences and surrounding prose.
func ParseFields(raw string) (*Fields, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, errors.New("extraction: no JSON object in reply")
		}
		text = text[start : end+1]
	}

	var decoded struct {
		ServiceName *string `json:"service_name"`
		DateExpr    *string `json:"date_expr"`
		TimeExpr    *string `json:"time_expr"`
		StaffName   *string `json:"staff_name"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, err
	}
	return &Fields{
		ServiceName: clean(decoded.ServiceName),
		DateExpr:    clean(decoded.DateExpr),
		TimeExpr:    clean(decoded.TimeExpr),
		StaffName:   clean(decoded.StaffName),
	}, nil
}

func clean(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(*v)
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "unknown":
		return ""
	}
	return s
}
