package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p-n-ai/academy/internal/progress"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	return string(body)
}

func TestMiddleware_LabelsByPattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses/{courseID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for _, path := range []string{"/api/courses/a", "/api/courses/b", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	for _, want := range []string{
		`academy_http_requests_total{method="GET",route="GET /api/courses/{courseID}",status="404"} 2`,
		`academy_http_requests_total{method="GET",route="unmatched",status="404"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestObserver(t *testing.T) {
	m := New()
	var obs progress.Observer = m
	obs.MutationApplied(progress.EventUnitCompleted)
	obs.MutationApplied(progress.EventUnitCompleted)
	obs.PersistFailed(progress.EventUnitReset)

	out := scrape(t, m)
	for _, want := range []string{
		`academy_progress_mutations_total{op="unit_completed"} 2`,
		`academy_progress_persist_failures_total{op="unit_reset"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestHandler_ExposesGauge(t *testing.T) {
	m := New()
	m.Gauge("live_subscribers", "Open live feeds.", func() float64 { return 3 })

	if out := scrape(t, m); !strings.Contains(out, "academy_live_subscribers 3") {
		t.Errorf("metrics output missing gauge:\n%s", out)
	}
}

func TestStatusRecorder_Hijack(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rec.Hijack(); err == nil {
		t.Error("expected error from a writer that cannot hijack")
	}
}
