package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveTurn("AWAIT_DATE")
	m.ObserveTurn("AWAIT_DATE")
	m.ObserveExtraction("timeout", 8)
	m.ObserveCommit("conflict", 3)
	m.ObserveSlots(12)

	if got := testutil.ToFloat64(m.dialogueTurns.WithLabelValues("AWAIT_DATE")); got != 2 {
		t.Fatalf("expected 2 turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.commitsTotal.WithLabelValues("conflict")); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var attempts *dto.Histogram
	for _, f := range families {
		if f.GetName() == "wabook_booking_commit_attempts" {
			attempts = f.GetMetric()[0].GetHistogram()
		}
	}
	if attempts == nil {
		t.Fatal("expected commit attempts histogram to be registered")
	}
	if attempts.GetSampleSum() != 3 {
		t.Fatalf("expected attempt sum 3, got %v", attempts.GetSampleSum())
	}
}

func TestBookingMetricsCommitSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveCommit("committed", 1)
	count, err := testutil.GatherAndCount(reg, "wabook_booking_commits_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one commits series, got %d", count)
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveTurn("DONE")
	m.ObserveExtraction("ok", 0.1)
	m.ObserveCommit("committed", 1)
	m.ObserveSlots(0)
}
