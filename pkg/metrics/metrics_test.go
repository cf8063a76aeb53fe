package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	// register the package metrics
	_ "github.com/Sternrassler/econ-calendar-client/pkg/dedup"
	_ "github.com/Sternrassler/econ-calendar-client/pkg/ratelimit"
	_ "github.com/Sternrassler/econ-calendar-client/pkg/retrieval"
	_ "github.com/Sternrassler/econ-calendar-client/pkg/session"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range Names {
		if !strings.HasPrefix(name, "calendar_") {
			t.Errorf("metric %q lacks the calendar_ prefix", name)
		}
		if seen[name] {
			t.Errorf("metric %q listed twice", name)
		}
		seen[name] = true
	}
}

func TestHandler_ExposesUnlabelledMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)

	// vectors only appear once a label set was observed
	for _, name := range []string{
		"calendar_chunk_failures_total",
		"calendar_events_extracted_total",
		"calendar_retrieval_duration_seconds",
		"calendar_events_accepted_total",
		"calendar_events_duplicate_total",
		"calendar_rate_limit_waits_total",
		"calendar_session_cache_hits_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics output missing %s", name)
		}
	}
}
