package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	h := New()

	h.ObserveRun("nginx", "ok", 120*time.Millisecond, 90, 10, 4096)
	h.ObserveRun("nginx", "ok", 80*time.Millisecond, 10, 0, 1024)
	h.ObserveRun("tomcat", "canceled", time.Second, 5, 1, 100)

	if got := testutil.ToFloat64(h.RunsTotal.WithLabelValues("nginx", "ok")); got != 2 {
		t.Errorf("expected 2 ok nginx runs, got %v", got)
	}
	if got := testutil.ToFloat64(h.LinesTotal.WithLabelValues("nginx", "parsed")); got != 100 {
		t.Errorf("expected 100 parsed lines, got %v", got)
	}
	if got := testutil.ToFloat64(h.LinesTotal.WithLabelValues("nginx", "dropped")); got != 10 {
		t.Errorf("expected 10 dropped lines, got %v", got)
	}
	if got := testutil.ToFloat64(h.BytesTotal.WithLabelValues("tomcat")); got != 100 {
		t.Errorf("expected 100 tomcat bytes, got %v", got)
	}
}

func TestIndependentHandlers(t *testing.T) {
	// Two handlers must not collide on registration.
	a, b := New(), New()
	a.ObserveRun("nginx", "ok", time.Millisecond, 1, 0, 1)
	if got := testutil.ToFloat64(b.RunsTotal.WithLabelValues("nginx", "ok")); got != 0 {
		t.Errorf("expected handlers to be independent, got %v", got)
	}
}

func TestNilHandlerIsNoop(t *testing.T) {
	var h *Handler
	h.ObserveRun("nginx", "ok", time.Millisecond, 1, 0, 1)
}
