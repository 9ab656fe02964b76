package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ItemsProcessed.WithLabelValues("published").Inc()
	m.ItemsProcessed.WithLabelValues("failed").Add(2)
	m.UnsafeVerdicts.Inc()
	m.Severity.Observe(0.69)
	m.BackendFailover.Inc()
	m.PublishDuration.Observe(1.5)
	m.ArchiveFailures.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()

	for _, want := range []string{
		`pipeline_items_processed_total{result="published"} 1`,
		`pipeline_items_processed_total{result="failed"} 2`,
		"pipeline_unsafe_verdicts_total 1",
		"pipeline_moderation_severity_count 1",
		"pipeline_backend_failovers_total 1",
		"pipeline_publish_duration_seconds_count 1",
		"pipeline_archive_failures_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New()
	b := New()
	a.UnsafeVerdicts.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "pipeline_unsafe_verdicts_total 1") {
		t.Error("second registry should not see the first registry's counts")
	}
}
