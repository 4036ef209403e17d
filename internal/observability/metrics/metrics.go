package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking dialogue and committer.
type BookingMetrics struct {
	dialogueTurns     *prometheus.CounterVec
	extractionTotal   *prometheus.CounterVec
	extractionLatency prometheus.Histogram
	commitsTotal      *prometheus.CounterVec
	commitAttempts    prometheus.Histogram
	availabilitySlots prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		dialogueTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wabook",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Dialogue turns by resulting stage",
		}, []string{"stage"}),
		extractionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wabook",
			Subsystem: "extraction",
			Name:      "total",
			Help:      "Slot extraction calls by outcome",
		}, []string{"outcome"}),
		extractionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wabook",
			Subsystem: "extraction",
			Name:      "latency_seconds",
			Help:      "Latency of slot extraction calls",
			Buckets:   prometheus.DefBuckets,
		}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wabook",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Booking commits by outcome",
		}, []string{"outcome"}),
		commitAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wabook",
			Subsystem: "booking",
			Name:      "commit_attempts",
			Help:      "Store attempts needed per booking commit",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		availabilitySlots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wabook",
			Subsystem: "availability",
			Name:      "slots",
			Help:      "Number of free slots computed for a day",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dialogueTurns, m.extractionTotal, m.extractionLatency, m.commitsTotal, m.commitAttempts, m.availabilitySlots)
	return m
}

func (m *BookingMetrics) ObserveTurn(stage string) {
	if m == nil {
		return
	}
	m.dialogueTurns.WithLabelValues(stage).Inc()
}

// ObserveExtraction records one extractor call. Outcome is "ok", "empty", "timeout" or "error".
func (m *BookingMetrics) ObserveExtraction(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.extractionTotal.WithLabelValues(outcome).Inc()
	m.extractionLatency.Observe(seconds)
}

// ObserveCommit records one commit. Outcome is "committed", "replayed", "conflict" or "error".
func (m *BookingMetrics) ObserveCommit(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
	m.commitAttempts.Observe(float64(attempts))
}

func (m *BookingMetrics) ObserveSlots(count int) {
	if m == nil {
		return
	}
	m.availabilitySlots.Observe(float64(count))
}
