package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDispatchCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewDispatch(reg)
	if err != nil {
		t.Fatalf("create metrics: %v", err)
	}

	m.Send(true)
	m.Send(true)
	m.Send(false)
	m.Claim("claimed")
	m.Outcome("pending")
	m.Swept("expired")
	m.Ranked(20 * time.Millisecond)

	expected := `
# HELP dispatch_notifications_total Driver offer notifications by result
# TYPE dispatch_notifications_total counter
dispatch_notifications_total{result="delivered"} 2
dispatch_notifications_total{result="failed"} 1
`
	if err := testutil.CollectAndCompare(m.sends, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if got := testutil.ToFloat64(m.claims.WithLabelValues("claimed")); got != 1 {
		t.Errorf("claims = %v, want 1", got)
	}
	if c := testutil.CollectAndCount(m.ranking); c == 0 {
		t.Error("ranking duration not recorded")
	}
}

func TestNewDispatchReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewDispatch(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewDispatch(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	first.Claim("expired")
	if got := testutil.ToFloat64(second.claims.WithLabelValues("expired")); got != 1 {
		t.Errorf("expected shared collector, got %v", got)
	}
}

func TestNilDispatchIsNoop(t *testing.T) {
	var m *Dispatch
	m.Outcome("pending")
	m.Send(true)
	m.Claim("claimed")
	m.Swept("expired")
	m.Ranked(time.Second)
}
