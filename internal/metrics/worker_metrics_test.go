package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.RecordPublish("sent")
	m.RecordPublish("sent")
	m.RecordPublish("failed")
	if got := testutil.ToFloat64(m.publishAttempts.WithLabelValues("sent")); got != 2 {
		t.Fatalf("expected 2 sent attempts, got %v", got)
	}

	m.SetBacklog(3, 90*time.Second)
	if got := testutil.ToFloat64(m.pending); got != 3 {
		t.Fatalf("expected pending 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.oldestAge); got != 90 {
		t.Fatalf("expected oldest age 90, got %v", got)
	}

	m.SetBacklog(0, -time.Second)
	if got := testutil.ToFloat64(m.oldestAge); got != 0 {
		t.Fatalf("negative age should be clamped, got %v", got)
	}

	// Повторная регистрация в том же реестре переиспользует коллекторы.
	again := NewOutboxMetrics(reg)
	if again.pending != m.pending {
		t.Fatal("expected registered gauge to be reused")
	}
}

func TestCleanupMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCleanupMetrics(reg)

	m.RecordDeleted(5)
	m.RecordDeleted(0)
	m.RecordRun("ok", 5)
	m.RecordRun("error", 0)

	if got := testutil.ToFloat64(m.deleted); got != 5 {
		t.Fatalf("expected 5 deleted, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastDeleted); got != 5 {
		t.Fatalf("error run must not reset last deleted, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 error run, got %v", got)
	}
}
