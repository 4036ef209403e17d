package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
	"github.com/wolfman30/wa-booking-assistant/internal/bookings"
	"github.com/wolfman30/wa-booking-assistant/internal/catalog"
	"github.com/wolfman30/wa-booking-assistant/internal/dates"
	"github.com/wolfman30/wa-booking-assistant/internal/extraction"
	"github.com/wolfman30/wa-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

// DefaultMaxSlots caps how many slots are offered at once.
const DefaultMaxSlots = 6

var (
	// ErrCalendarUnavailable means slots could not be computed. The merged fields are
	// saved before it is returned.
	ErrCalendarUnavailable = errors.New("dialogue: calendar unavailable")
	// ErrInvalidTurn is returned for a turn without conversation or merchant id.
	ErrInvalidTurn = errors.New("dialogue: invalid turn")
)

// SlotFinder lists the free slots of one day.
type SlotFinder interface {
	Find(ctx context.Context, q bookings.SlotQuery) (*bookings.DaySlots, error)
}

// Committer reserves the chosen slot.
type Committer interface {
	Commit(ctx context.Context, req bookings.CommitRequest) (*bookings.Appointment, error)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithExtractor sets the free-text extractor. Without one only direct answers are understood.
func WithExtractor(x extraction.Extractor) EngineOption {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// WithClock injects the time source used for "today" and past-slot filtering.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithMaxSlots(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSlots = n
		}
	}
}

func WithMetrics(m *metrics.BookingMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine advances booking conversations. It keeps nothing between turns.
type Engine struct {
	states    StateStore
	catalog   catalog.Catalog
	finder    SlotFinder
	committer Committer
	extractor extraction.Extractor
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
	now       func() time.Time
	maxSlots  int
}

func NewEngine(states StateStore, cat catalog.Catalog, finder SlotFinder, committer Committer, logger *logging.Logger, opts ...EngineOption) *Engine {
	if states == nil || cat == nil || finder == nil || committer == nil {
		panic("dialogue: state store, catalog, slot finder and committer are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		states:    states,
		catalog:   cat,
		finder:    finder,
		committer: committer,
		extractor: extraction.Nop,
		logger:    logger,
		now:       time.Now,
		maxSlots:  DefaultMaxSlots,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// turn carries everything one HandleTurn call works with.
type turn struct {
	in       Turn
	log      *logging.Logger
	state    *State
	profile  *catalog.Profile
	services []catalog.Service
	staff    []catalog.Staff
	now      time.Time
	today    time.Time
	out      *Outcome
	reason   string
	// rejectedDate is the date that produced no slots this turn.
	rejectedDate     string
	preferredChanged bool
	// moreAfter is the last slot shown when the customer asked for other times.
	moreAfter string
}

// HandleTurn applies one customer message to the stored conversation and returns
// what to ask next.
func (e *Engine) HandleTurn(ctx context.Context, in Turn) (*Outcome, error) {
	if strings.TrimSpace(in.ConversationID) == "" || strings.TrimSpace(in.MerchantID) == "" {
		return nil, ErrInvalidTurn
	}

	state, err := e.states.Load(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("dialogue: load state: %w", err)
	}
	if state == nil {
		state = NewState(in.ConversationID, in.MerchantID)
	}
	if state.MerchantID != in.MerchantID {
		return nil, fmt.Errorf("%w: conversation %s belongs to another merchant", ErrInvalidTurn, in.ConversationID)
	}

	t, err := e.newTurn(ctx, in, state)
	if err != nil {
		return nil, err
	}

	if state.Stage == StageDone {
		return e.outcome(t), nil
	}
	prev := state.Stage

	fields := e.extractor.Extract(ctx, extraction.Request{
		Message: in.Message,
		History: in.History,
		Catalog: t.hint(),
	})
	e.merge(t, fields)
	e.directAnswer(t, prev)

	confirmed := e.stageInput(t, prev)
	forceSlots := false
	if confirmed {
		done, err := e.commit(ctx, t)
		if err != nil {
			return nil, err
		}
		if done {
			if err := e.save(ctx, t); err != nil {
				return nil, err
			}
			return e.outcome(t), nil
		}
		forceSlots = true
	}
	if prev == StageAwaitConfirmation && state.Time == "" {
		forceSlots = true
	}

	if err := e.advance(ctx, t, prev, forceSlots); err != nil {
		if errors.Is(err, ErrCalendarUnavailable) {
			if saveErr := e.save(ctx, t); saveErr != nil {
				t.log.Error("failed to save state after calendar failure", "error", saveErr)
			}
		}
		return nil, err
	}

	if err := e.save(ctx, t); err != nil {
		return nil, err
	}
	return e.outcome(t), nil
}

// Reset forgets a conversation so the next message starts over.
func (e *Engine) Reset(ctx context.Context, conversationID string) error {
	if err := e.states.Delete(ctx, conversationID); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return err
		}
		return fmt.Errorf("dialogue: reset: %w", err)
	}
	e.logger.Info("dialogue reset", "conversation_id", conversationID)
	return nil
}

func (e *Engine) newTurn(ctx context.Context, in Turn, state *State) (*turn, error) {
	profile, err := e.catalog.Profile(ctx, state.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("dialogue: load profile: %w", err)
	}
	if profile == nil {
		profile = catalog.DefaultProfile(state.MerchantID)
	}
	services, err := e.catalog.ListServices(ctx, state.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("dialogue: list services: %w", err)
	}
	staff, err := e.catalog.ListStaff(ctx, state.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("dialogue: list staff: %w", err)
	}

	now := e.now().In(profile.Location())
	return &turn{
		in:       in,
		log:      e.logger.ForConversation(state.MerchantID, state.ConversationID),
		state:    state,
		profile:  profile,
		services: activeServices(services),
		staff:    staff,
		now:      now,
		today:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		out:      &Outcome{ConversationID: state.ConversationID},
	}, nil
}

func activeServices(all []catalog.Service) []catalog.Service {
	out := make([]catalog.Service, 0, len(all))
	for _, s := range all {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

func (t *turn) hint() extraction.CatalogHint {
	var hint extraction.CatalogHint
	for _, s := range t.services {
		hint.Services = append(hint.Services, s.Name)
	}
	for _, s := range t.staff {
		if s.Active {
			hint.Staff = append(hint.Staff, s.Name)
		}
	}
	return hint
}

// merge fills fields that are still unset from the extractor output.
func (e *Engine) merge(t *turn, f *extraction.Fields) {
	if f.Empty() {
		return
	}
	s := t.state
	if s.ServiceID == "" && strings.TrimSpace(f.ServiceName) != "" {
		e.matchService(t, f.ServiceName, catalog.MatchService(t.services, f.ServiceName), true)
	}
	if s.StaffID == "" && strings.TrimSpace(f.StaffName) != "" {
		e.matchStaff(t, f.StaffName)
	}
	if s.Date == "" && strings.TrimSpace(f.DateExpr) != "" {
		e.resolveDate(t, f.DateExpr)
	}
	if s.Time == "" && strings.TrimSpace(f.TimeExpr) != "" {
		if clock, ok := dates.ParseClock(f.TimeExpr); ok {
			t.setPreferred(clock)
		}
	}
}

func (t *turn) setPreferred(clock string) {
	if t.state.PreferredTime != clock {
		t.state.PreferredTime = clock
		t.preferredChanged = true
	}
}

func (e *Engine) matchService(t *turn, name string, res catalog.MatchResult[catalog.Service], record bool) bool {
	if res.Match != nil {
		t.state.ServiceID = res.Match.ID
		return true
	}
	if record || res.Ambiguous() {
		names := make([]string, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			names = append(names, c.Name)
		}
		t.addAmbiguity(Ambiguity{Field: "service", Value: name, Candidates: names})
	}
	return false
}

func (e *Engine) matchStaff(t *turn, name string) {
	res := catalog.MatchStaff(t.staff, name)
	if res.Match != nil {
		t.state.StaffID = res.Match.ID
		return
	}
	names := make([]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		names = append(names, c.Name)
	}
	t.addAmbiguity(Ambiguity{Field: "staff", Value: name, Candidates: names})
}

func (t *turn) addAmbiguity(a Ambiguity) {
	for _, existing := range t.out.Ambiguities {
		if existing.Field == a.Field && existing.Value == a.Value {
			return
		}
	}
	t.out.Ambiguities = append(t.out.Ambiguities, a)
}

func (t *turn) hasAmbiguity(field string) bool {
	for _, a := range t.out.Ambiguities {
		if a.Field == field {
			return true
		}
	}
	return false
}

func (e *Engine) resolveDate(t *turn, expr string) bool {
	d, ok := dates.Resolve(expr, t.today)
	if !ok {
		t.reason = ReasonUnresolvedDate
		return false
	}
	if d.Before(t.today) {
		t.reason = ReasonPastDate
		return false
	}
	t.state.Date = dates.Format(d)
	t.reason = ""
	return true
}

// directAnswer reads the raw message as the answer to the question last asked.
func (e *Engine) directAnswer(t *turn, prev Stage) {
	msg := strings.TrimSpace(t.in.Message)
	if msg == "" {
		return
	}
	s := t.state
	switch prev {
	case StageAwaitService:
		if s.ServiceID != "" {
			return
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(cleanMessage(msg), "#")); err == nil {
			if n >= 1 && n <= len(t.services) {
				s.ServiceID = t.services[n-1].ID
			}
			return
		}
		if t.hasAmbiguity("service") {
			return
		}
		// Very short replies such as "hi" would match inside unrelated names.
		if reply := cleanMessage(msg); len([]rune(reply)) >= 3 {
			e.matchService(t, reply, catalog.MatchServiceInText(t.services, reply), false)
		}
	case StageAwaitDate:
		if s.Date == "" {
			e.resolveDate(t, cleanMessage(msg))
		}
	}
}

// stageInput handles the answer to a slot or confirmation question. It reports
// whether the customer confirmed.
func (e *Engine) stageInput(t *turn, prev Stage) bool {
	s := t.state
	switch prev {
	case StageAwaitSlotChoice:
		if s.Time != "" || s.ServiceID == "" || s.Date == "" {
			return false
		}
		if slot, ok := SelectSlot(t.in.Message, s.OfferedSlots); ok {
			s.Time = slot
			s.OfferedSlots = nil
			return false
		}
		if WantsMoreTimes(t.in.Message) && len(s.OfferedSlots) > 0 {
			t.moreAfter = s.OfferedSlots[len(s.OfferedSlots)-1]
			return false
		}
		if clock, ok := findClock(tokens(cleanMessage(t.in.Message))); ok {
			t.setPreferred(clock)
		}
		if !t.preferredChanged {
			t.reason = ReasonNotUnderstood
		}
	case StageAwaitConfirmation:
		if s.Time == "" {
			return false
		}
		switch {
		case IsAffirmative(t.in.Message):
			return true
		case IsNegative(t.in.Message):
			s.Time = ""
			s.PreferredTime = ""
			t.reason = ReasonDeclined
		default:
			t.reason = ReasonNotUnderstood
		}
	}
	return false
}

// commit reserves the chosen slot. It reports false when the slot was taken and
// new slots must be offered.
func (e *Engine) commit(ctx context.Context, t *turn) (bool, error) {
	s := t.state
	service, ok := catalog.FindService(t.services, s.ServiceID)
	if !ok {
		s.ServiceID, s.Time = "", ""
		return false, nil
	}
	day, err := dates.Parse(s.Date, t.profile.Location())
	if err != nil {
		return false, fmt.Errorf("dialogue: stored date %q: %w", s.Date, err)
	}
	minutes, err := dates.ClockMinutes(s.Time)
	if err != nil {
		return false, fmt.Errorf("dialogue: stored time %q: %w", s.Time, err)
	}
	start := day.Add(time.Duration(minutes) * time.Minute)

	appt, err := e.committer.Commit(ctx, bookings.CommitRequest{
		MerchantID:     s.MerchantID,
		ServiceID:      service.ID,
		StaffID:        s.StaffID,
		Date:           day,
		Start:          start,
		Duration:       service.Duration(),
		Customer:       bookings.Customer{Phone: t.in.CustomerPhone, Name: t.in.CustomerName},
		IdempotencyKey: commitKey(s),
	})
	switch {
	case err == nil:
		s.AppointmentID = appt.ID
		s.Stage = StageDone
		s.OfferedSlots = nil
		t.out.Appointment = appt
		t.log.Info("appointment booked", "appointment_id", appt.ID)
		return true, nil
	case bookings.IsConflict(err):
		t.log.Warn("slot taken at commit", "time", s.Time)
		t.out.Conflict = true
		t.reason = ReasonSlotTaken
		s.Time = ""
		s.PreferredTime = ""
		return false, nil
	default:
		return false, fmt.Errorf("dialogue: commit: %w", err)
	}
}

// commitKey is shared by every turn that loaded the same saved state. UpdatedAt
// separates a conversation restarted after Reset from its earlier life.
func commitKey(s *State) string {
	return s.ConversationID + ":" + strconv.FormatInt(s.Version, 10) + ":" + strconv.FormatInt(s.UpdatedAt.UnixNano(), 10)
}

// advance moves to the first missing field in precedence order.
func (e *Engine) advance(ctx context.Context, t *turn, prev Stage, forceSlots bool) error {
	s := t.state
	switch {
	case s.ServiceID == "":
		s.Stage = StageAwaitService
		s.OfferedSlots = nil
	case s.Date == "":
		s.Stage = StageAwaitDate
		s.OfferedSlots = nil
	case s.Time == "":
		if forceSlots || t.preferredChanged || t.moreAfter != "" || prev != StageAwaitSlotChoice || len(s.OfferedSlots) == 0 {
			return e.offerSlots(ctx, t)
		}
		s.Stage = StageAwaitSlotChoice
	default:
		s.Stage = StageAwaitConfirmation
		s.OfferedSlots = nil
	}
	return nil
}

func (e *Engine) offerSlots(ctx context.Context, t *turn) error {
	s := t.state
	service, ok := catalog.FindService(t.services, s.ServiceID)
	if !ok {
		s.ServiceID = ""
		s.Stage = StageAwaitService
		s.OfferedSlots = nil
		return nil
	}
	day, err := dates.Parse(s.Date, t.profile.Location())
	if err != nil {
		s.Date = ""
		s.Stage = StageAwaitDate
		s.OfferedSlots = nil
		return nil
	}

	s.Stage = StageAwaitSlotChoice
	s.OfferedSlots = nil
	res, err := e.finder.Find(ctx, bookings.SlotQuery{
		Profile: t.profile,
		Service: service,
		StaffID: s.StaffID,
		Date:    day,
		Now:     t.now,
	})
	if err != nil {
		t.log.Error("slot lookup failed", "error", err)
		return fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	}

	labels := availability.ClockLabels(res.Slots)
	if len(labels) == 0 {
		t.rejectedDate = s.Date
		t.reason = res.Reason
		if t.reason == "" {
			t.reason = ReasonNoAvailability
		}
		s.Date = ""
		s.Stage = StageAwaitDate
		return nil
	}

	if s.PreferredTime != "" {
		for _, label := range labels {
			if label == s.PreferredTime {
				s.Time = label
				s.Stage = StageAwaitConfirmation
				return nil
			}
		}
	}
	if t.moreAfter != "" {
		s.OfferedSlots = presentable(laterThan(labels, t.moreAfter), "", e.maxSlots)
		return nil
	}
	s.OfferedSlots = presentable(labels, s.PreferredTime, e.maxSlots)
	return nil
}

// presentable returns at most max labels, starting at the first one not before
// preferred. Labels are zero-padded HH:MM so string order is time order.
func presentable(labels []string, preferred string, max int) []string {
	start := 0
	if preferred != "" {
		for i, label := range labels {
			if label >= preferred {
				start = i
				break
			}
			start = i
		}
	}
	if len(labels)-start < max {
		start = len(labels) - max
		if start < 0 {
			start = 0
		}
	}
	end := start + max
	if end > len(labels) {
		end = len(labels)
	}
	return append([]string(nil), labels[start:end]...)
}

// laterThan returns the labels after last, or all of them when none are.
func laterThan(labels []string, last string) []string {
	for i, label := range labels {
		if label > last {
			return labels[i:]
		}
	}
	return labels
}

func (e *Engine) save(ctx context.Context, t *turn) error {
	if err := e.states.Save(ctx, t.state); err != nil {
		if errors.Is(err, ErrStaleState) {
			return err
		}
		return fmt.Errorf("dialogue: save state: %w", err)
	}
	e.metrics.ObserveTurn(string(t.state.Stage))
	return nil
}

func (e *Engine) outcome(t *turn) *Outcome {
	s := t.state
	out := t.out
	out.Stage = s.Stage
	switch s.Stage {
	case StageAwaitService:
		out.Missing = "service"
		options := make([]string, 0, len(t.services))
		for _, svc := range t.services {
			options = append(options, svc.Name)
		}
		out.Question = Question{Kind: QuestionChooseService, Options: options}
	case StageAwaitDate:
		out.Missing = "date"
		out.Question = Question{Kind: QuestionProvideDate, Reason: t.reason, Date: t.rejectedDate}
	case StageAwaitSlotChoice:
		out.Missing = "time"
		out.Question = Question{
			Kind:   QuestionChooseSlot,
			Slots:  append([]string(nil), s.OfferedSlots...),
			Reason: t.reason,
			Date:   s.Date,
		}
	case StageAwaitConfirmation:
		out.Missing = "confirmation"
		out.Question = Question{Kind: QuestionConfirm, Reason: t.reason, Date: s.Date, Summary: t.summary()}
	case StageDone:
		out.Question = Question{Kind: QuestionDone, Date: s.Date, Summary: t.summary()}
	}
	return out
}

func (t *turn) summary() *Summary {
	s := t.state
	sum := &Summary{
		ServiceID:     s.ServiceID,
		StaffID:       s.StaffID,
		Date:          s.Date,
		Time:          s.Time,
		AppointmentID: s.AppointmentID,
	}
	if svc, ok := catalog.FindService(t.services, s.ServiceID); ok {
		sum.ServiceName = svc.Name
		sum.DurationMinutes = svc.DurationMinutes
		sum.PriceCents = svc.PriceCents
	}
	if s.StaffID != "" {
		if st, ok := catalog.FindStaff(t.staff, s.StaffID); ok {
			sum.StaffName = st.Name
		}
	}
	return sum
}
