package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.ObserveStage("harmonize", "ok", 2*time.Second)
	m.ObserveStage("harmonize", "ok", time.Second)
	m.ObserveHarmonize(10, 4, map[string]int{"mg->g": 3, "ug->g": 0})
	m.ObserveQualityCheck("range", false)
	m.IncQualityRejected()
	m.ObserveLoad(5, 20, 1)
	m.AddSkipped("consolidate", 2)

	if got := testutil.ToFloat64(m.stageRuns.WithLabelValues("harmonize", "ok")); got != 2 {
		t.Fatalf("stage runs: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.harmonized); got != 10 {
		t.Fatalf("harmonized: want=10 got=%v", got)
	}
	if got := testutil.ToFloat64(m.missingRule.WithLabelValues("mg->g")); got != 3 {
		t.Fatalf("missing rule: want=3 got=%v", got)
	}
	if got := testutil.ToFloat64(m.qualityChecks.WithLabelValues("range", "fail")); got != 1 {
		t.Fatalf("quality checks: want=1 got=%v", got)
	}
	if got := testutil.ToFloat64(m.factsLoaded); got != 20 {
		t.Fatalf("facts loaded: want=20 got=%v", got)
	}
	if got := testutil.ToFloat64(m.skippedLines.WithLabelValues("consolidate")); got != 2 {
		t.Fatalf("skipped: want=2 got=%v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStage("load", "error", time.Second)
	m.ObserveHarmonize(1, 1, nil)
	m.ObserveLoad(1, 1, 1)
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil handler status: want=%d got=%d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestMetricsHandlerExposition(t *testing.T) {
	m := New()
	m.ObserveAPI("GET", "/api/products/:code", "200", 10*time.Millisecond)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "nutrition_etl_api_requests_total") {
		t.Fatalf("exposition missing api counter: %s", rec.Body.String())
	}
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders(" a=1, b = 2 ,bad,c=")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("headers: want a=1 b=2 got=%v", h)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("empty headers: want nil")
	}
}

func TestSpanHelpersWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "stage")
	if ctx == nil {
		t.Fatalf("StartSpan returned nil context")
	}
	EndSpan(span, errors.New("boom"))
	if shutdown := InitOTel(context.Background(), nil, OtelConfig{}); shutdown == nil {
		t.Fatalf("InitOTel: shutdown must not be nil")
	}
}
