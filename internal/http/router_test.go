package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nutrition-etl/internal/data/repos"
	"github.com/yungbote/nutrition-etl/internal/data/repos/testutil"
	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	httpH "github.com/yungbote/nutrition-etl/internal/http/handlers"
	"github.com/yungbote/nutrition-etl/internal/http/response"
	"github.com/yungbote/nutrition-etl/internal/modules/quality"
	"github.com/yungbote/nutrition-etl/internal/observability"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
)

func newTestRouter(t *testing.T) (*gin.Engine, *repos.Set) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	r := NewRouter(RouterConfig{
		Log:            log,
		Metrics:        observability.New(),
		ProductHandler: httpH.NewProductHandler(set.Lookup, log),
		QualityHandler: httpH.NewQualityHandler(set.QualityReports, log),
		HealthHandler:  httpH.NewHealthHandler(db),
	})
	return r, set
}

func seedProduct(t *testing.T, set *repos.Set) {
	t.Helper()
	dbc := dbctx.Context{Ctx: context.Background()}
	if err := set.Products.UpsertByCode(dbc, []*nutrition.ProductDimension{{Code: "123", Name: "Oats"}}, 0); err != nil {
		t.Fatalf("UpsertByCode: %v", err)
	}
	names := []string{"sugars_100g", "energy_100g", "fat_100g"}
	if _, err := set.Nutrients.InsertMissing(dbc, names, ""); err != nil {
		t.Fatalf("InsertMissing: %v", err)
	}
	ids, err := set.Nutrients.NameIndex(dbc, names)
	if err != nil {
		t.Fatalf("NameIndex: %v", err)
	}
	var facts []*nutrition.FactRow
	for i, name := range names {
		facts = append(facts, &nutrition.FactRow{Code: "123", NutrientID: ids[name], ValuePer100g: float64(i + 1)})
	}
	if err := set.Facts.Upsert(dbc, facts, 0); err != nil {
		t.Fatalf("Facts.Upsert: %v", err)
	}
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, path, nil))
	return rec
}

func TestGetProduct(t *testing.T) {
	r, set := newTestRouter(t)
	seedProduct(t, set)

	rec := get(r, "/api/products/123?limit=2")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var out nutrition.ProductLookup
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Product.Name != "Oats" || len(out.Nutrients) != 2 {
		t.Fatalf("lookup: got=%+v", out)
	}
	if out.Nutrients[0].Name != "energy_100g" || out.Nutrients[1].Name != "fat_100g" {
		t.Fatalf("nutrient order: got=%+v", out.Nutrients)
	}
}

func TestGetProductErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := get(r, "/api/products/missing")
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("missing: want=404 got=%d", rec.Code)
	}
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Error.Code != response.CodeNotFound {
		t.Fatalf("envelope: got=%+v err=%v", env, err)
	}

	if rec := get(r, "/api/products/123?limit=abc"); rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad limit: want=400 got=%d", rec.Code)
	}
}

func TestQualityReports(t *testing.T) {
	r, set := newTestRouter(t)
	rep := &quality.Report{
		ReportID:  "dq_20240101T000000Z_abcdef12",
		RunID:     "run-1",
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Success:   true,
		Admitted:  true,
	}
	if _, err := quality.NewDBStore(set.QualityReports).Save(context.Background(), rep); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := get(r, "/api/quality/reports")
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), rep.ReportID) {
		t.Fatalf("list: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = get(r, "/api/quality/reports/"+rep.ReportID)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("get: want=200 got=%d", rec.Code)
	}
	var got quality.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got.RunID != "run-1" {
		t.Fatalf("report: got=%+v err=%v", got, err)
	}

	if rec := get(r, "/api/quality/reports/nope"); rec.Code != nethttp.StatusNotFound {
		t.Fatalf("missing report: want=404 got=%d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)
	if rec := get(r, "/healthcheck"); rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health: status=%d body=%q", rec.Code, rec.Body.String())
	}
	_ = get(r, "/api/products/missing")
	rec := get(r, "/metrics")
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), "nutrition_etl_api_requests_total") {
		t.Fatalf("metrics: status=%d", rec.Code)
	}
}
