package nutrition

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/nutrition-etl/internal/data/repos/testutil"
	types "github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
)

func TestProductRepoUpsertPreservesSource(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	sources := NewSourceRepo(db, testutil.Logger(t))
	src, err := sources.Ensure(dbc, types.SourceDimension{Name: "OpenFoodFacts", URL: "https://world.openfoodfacts.org/"})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if src == nil || src.SourceID == 0 {
		t.Fatalf("Ensure: expected assigned id, got %+v", src)
	}

	repo := NewProductRepo(db, testutil.Logger(t))
	sid := src.SourceID
	if err := repo.UpsertByCode(dbc, []*types.ProductDimension{
		{Code: "100", Name: "Oats", Brand: "Acme", SourceID: &sid},
	}, 10); err != nil {
		t.Fatalf("UpsertByCode: %v", err)
	}
	if err := repo.UpsertByCode(dbc, []*types.ProductDimension{
		{Code: "100", Name: "Rolled oats", Brand: "Acme", Category: "cereals"},
		{Code: "200", Name: "Milk"},
	}, 10); err != nil {
		t.Fatalf("UpsertByCode (second): %v", err)
	}

	got, err := repo.GetByCode(dbc, "100")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if got == nil || got.Name != "Rolled oats" || got.Category != "cereals" {
		t.Fatalf("GetByCode: attributes not overwritten: %+v", got)
	}
	if got.SourceID == nil || *got.SourceID != sid {
		t.Fatalf("GetByCode: source_id lost on null upsert: %+v", got.SourceID)
	}

	n, err := repo.Count(dbc)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("Count: expected 2, got %d", n)
	}

	missing, err := repo.GetByCode(dbc, "does-not-exist")
	if err != nil {
		t.Fatalf("GetByCode (missing): %v", err)
	}
	if missing != nil {
		t.Fatalf("GetByCode (missing): expected nil, got %+v", missing)
	}
}

func TestNutrientRepoIDsAreStable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	repo := NewNutrientRepo(db, testutil.Logger(t))
	inserted, err := repo.InsertMissing(dbc, []string{"energy_100g", "fat_100g", "fat_100g"}, "")
	if err != nil {
		t.Fatalf("InsertMissing: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("InsertMissing: expected 2 inserted, got %d", inserted)
	}
	first, err := repo.NameIndex(dbc, []string{"energy_100g", "fat_100g"})
	if err != nil {
		t.Fatalf("NameIndex: %v", err)
	}

	inserted, err = repo.InsertMissing(dbc, []string{"fat_100g", "sugars_100g"}, "")
	if err != nil {
		t.Fatalf("InsertMissing (second): %v", err)
	}
	if inserted != 1 {
		t.Fatalf("InsertMissing (second): expected 1 inserted, got %d", inserted)
	}
	second, err := repo.NameIndex(dbc, []string{"energy_100g", "fat_100g", "sugars_100g"})
	if err != nil {
		t.Fatalf("NameIndex (second): %v", err)
	}
	for name, id := range first {
		if second[name] != id {
			t.Fatalf("nutrient %s changed id: %d -> %d", name, id, second[name])
		}
	}
	if _, ok := second["sugars_100g"]; !ok {
		t.Fatalf("NameIndex: sugars_100g missing")
	}

	all, err := repo.GetAll(dbc)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	for _, row := range all {
		if row.Unit != types.DefaultNutrientUnit {
			t.Fatalf("GetAll: unexpected unit %q for %s", row.Unit, row.Name)
		}
	}
}

func TestFactRepoUpsertAndLookup(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	logg := testutil.Logger(t)

	if err := NewProductRepo(db, logg).UpsertByCode(dbc, []*types.ProductDimension{{Code: "300", Name: "Bread"}}, 0); err != nil {
		t.Fatalf("UpsertByCode: %v", err)
	}
	nutrients := NewNutrientRepo(db, logg)
	if _, err := nutrients.InsertMissing(dbc, []string{"sugars_100g", "energy_100g"}, ""); err != nil {
		t.Fatalf("InsertMissing: %v", err)
	}
	ids, err := nutrients.NameIndex(dbc, []string{"sugars_100g", "energy_100g"})
	if err != nil {
		t.Fatalf("NameIndex: %v", err)
	}

	facts := NewFactRepo(db, logg)
	rows := []*types.FactRow{
		{Code: "300", NutrientID: ids["sugars_100g"], ValuePer100g: 4},
		{Code: "300", NutrientID: ids["energy_100g"], ValuePer100g: 250},
	}
	if err := facts.Upsert(dbc, rows, 1); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := facts.Upsert(dbc, []*types.FactRow{{Code: "300", NutrientID: ids["sugars_100g"], ValuePer100g: 5}}, 1); err != nil {
		t.Fatalf("Upsert (overwrite): %v", err)
	}
	n, err := facts.Count(dbc)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("Count: expected 2, got %d", n)
	}

	lookup, err := NewLookupRepo(db, logg).Lookup(dbc, "300", 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if lookup == nil || lookup.Product.Name != "Bread" {
		t.Fatalf("Lookup: unexpected product: %+v", lookup)
	}
	if len(lookup.Nutrients) != 2 {
		t.Fatalf("Lookup: expected 2 nutrients, got %d", len(lookup.Nutrients))
	}
	if lookup.Nutrients[0].Name != "energy_100g" || lookup.Nutrients[1].Name != "sugars_100g" {
		t.Fatalf("Lookup: expected name order, got %+v", lookup.Nutrients)
	}
	if lookup.Nutrients[1].ValuePer100g != 5 {
		t.Fatalf("Lookup: expected overwritten value 5, got %v", lookup.Nutrients[1].ValuePer100g)
	}

	none, err := NewLookupRepo(db, logg).Lookup(dbc, "nope", 8)
	if err != nil {
		t.Fatalf("Lookup (missing): %v", err)
	}
	if none != nil {
		t.Fatalf("Lookup (missing): expected nil")
	}
}

func TestSourceRepoEnsureIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSourceRepo(db, testutil.Logger(t))

	a, err := repo.Ensure(dbc, types.SourceDimension{Name: "OpenFoodFacts", Version: "v1"})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	b, err := repo.Ensure(dbc, types.SourceDimension{Name: "OpenFoodFacts", Version: "v2"})
	if err != nil {
		t.Fatalf("Ensure (second): %v", err)
	}
	if a.SourceID != b.SourceID {
		t.Fatalf("Ensure: id changed %d -> %d", a.SourceID, b.SourceID)
	}
	if b.Version != "v2" {
		t.Fatalf("Ensure: expected version refresh, got %q", b.Version)
	}
	if _, err := repo.Ensure(dbc, types.SourceDimension{Name: "  "}); err == nil {
		t.Fatalf("Ensure: expected error for blank name")
	}
}

func TestQualityReportRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewQualityReportRepo(db, testutil.Logger(t))

	row := &types.QualityReportRow{
		ReportID:  "dq_20260101T000000Z_deadbeef",
		RunID:     "run-1",
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Success:   false,
		Admitted:  true,
		Payload:   datatypes.JSON([]byte(`{"success":false}`)),
	}
	if err := repo.Create(dbc, row); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(dbc, row.ReportID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.RunID != "run-1" || got.Success || !got.Admitted {
		t.Fatalf("GetByID: unexpected row %+v", got)
	}
	recent, err := repo.ListRecent(dbc, 5)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("ListRecent: expected 1, got %d", len(recent))
	}
}
