package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOperation("update_role", "ok")
	c.RecordOperation("update_role", "ok")
	c.RecordOperation("update_role", "bad_action")
	c.RecordRequestEvent("approved")
	c.RecordAuthEvent("login")
	c.RecordNotification("membership.role_changed", "stored")

	if got := testutil.ToFloat64(c.operations.WithLabelValues("update_role", "ok")); got != 2 {
		t.Errorf("expected 2 successful update_role, got %v", got)
	}
	if got := testutil.ToFloat64(c.operations.WithLabelValues("update_role", "bad_action")); got != 1 {
		t.Errorf("expected 1 bad_action update_role, got %v", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("approved")); got != 1 {
		t.Errorf("expected 1 approved request, got %v", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordOperation("x", "ok")
	c.RecordRequestEvent("x")
	c.RecordAuthEvent("x")
	c.RecordNotification("x", "y")
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthEvent("login")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `bookclub_auth_events_total{event="login"} 1`) {
		t.Fatalf("expected auth event in exposition, got %s", body)
	}
}
