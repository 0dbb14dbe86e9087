package load

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/nutrition-etl/internal/data/repos"
	"github.com/yungbote/nutrition-etl/internal/data/repos/testutil"
	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/modules/harmonize"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
)

func f64(v float64) *float64 { return &v }

func record(code, name string, nutrients ...nutrition.NutrientValue) nutrition.HarmonizedRecord {
	return nutrition.HarmonizedRecord{
		Product:   nutrition.ProductAttributes{Code: code, Name: name},
		Nutrients: nutrients,
	}
}

func nv(name string, v float64) nutrition.NutrientValue {
	return nutrition.NutrientValue{Name: name, Value: f64(v)}
}

type storeState struct {
	products  int64
	nutrients int64
	facts     int64
}

func snapshot(t *testing.T, set *repos.Set) storeState {
	t.Helper()
	dbc := dbctx.Context{Ctx: context.Background()}
	var st storeState
	var err error
	if st.products, err = set.Products.Count(dbc); err != nil {
		t.Fatalf("count products: %v", err)
	}
	if st.nutrients, err = set.Nutrients.Count(dbc); err != nil {
		t.Fatalf("count nutrients: %v", err)
	}
	if st.facts, err = set.Facts.Count(dbc); err != nil {
		t.Fatalf("count facts: %v", err)
	}
	return st
}

func TestPivotDropsNulls(t *testing.T) {
	batch := []nutrition.HarmonizedRecord{
		record("1", "a", nv("fat_100g", 1), nutrition.NutrientValue{Name: "salt_100g"}, nv("sugars_100g", 2)),
		record("2", "b", nutrition.NutrientValue{Name: "fat_100g"}),
		record("", "no code", nv("fat_100g", 3)),
	}
	triples := Pivot(batch)
	if len(triples) != 2 {
		t.Fatalf("Pivot: want=2 triples got=%+v", triples)
	}
	if triples[0] != (Triple{Code: "1", Nutrient: "fat_100g", Value: 1}) ||
		triples[1] != (Triple{Code: "1", Nutrient: "sugars_100g", Value: 2}) {
		t.Fatalf("Pivot: unexpected %+v", triples)
	}
	names := NutrientNames(append(triples, Triple{Code: "9", Nutrient: "fat_100g", Value: 5}))
	if len(names) != 2 || names[0] != "fat_100g" || names[1] != "sugars_100g" {
		t.Fatalf("NutrientNames: unexpected %v", names)
	}
}

func TestLoadEndToEnd(t *testing.T) {
	cfg, err := harmonize.ParseConfig([]byte("unit_conversions: [{from: kJ, to: kcal, factor: 0.239}]\nnutrient_targets: {energy_100g: kcal}\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	flat, _, err := harmonize.ReadFlattened(strings.NewReader(`{"code":"123","energy_100g":418,"energy_100g_unit":"kJ"}`), 0)
	if err != nil {
		t.Fatalf("ReadFlattened: %v", err)
	}
	batch, _ := harmonize.NewHarmonizerFromConfig(cfg).HarmonizeAll(flat)

	db := testutil.DB(t)
	logg := testutil.Logger(t)
	res, err := NewLoader(db, logg).Load(context.Background(), batch, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Products != 1 || res.Facts != 1 || res.NutrientsInserted != 1 || res.DroppedFacts != 0 {
		t.Fatalf("Result: unexpected %+v", res)
	}

	set := repos.NewSet(db, logg)
	dbc := dbctx.Context{Ctx: context.Background()}
	product, err := set.Products.GetByCode(dbc, "123")
	if err != nil || product == nil {
		t.Fatalf("product 123 missing: %v", err)
	}
	ids, err := set.Nutrients.NameIndex(dbc, []string{"energy_100g"})
	if err != nil {
		t.Fatalf("NameIndex: %v", err)
	}
	facts, err := set.Facts.GetByCode(dbc, "123")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if len(facts) != 1 || facts[0].NutrientID != ids["energy_100g"] {
		t.Fatalf("facts: unexpected %+v", facts)
	}
	if math.Abs(facts[0].ValuePer100g-99.9) > 0.1 {
		t.Fatalf("energy: want~99.9 got=%v", facts[0].ValuePer100g)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	loader := NewLoader(db, logg)
	set := repos.NewSet(db, logg)
	batch := []nutrition.HarmonizedRecord{
		record("1", "Oats", nv("energy_100g", 370), nv("fat_100g", 7)),
		record("2", "Milk", nv("energy_100g", 64)),
	}
	src := &nutrition.SourceDimension{Name: "OpenFoodFacts", URL: "https://world.openfoodfacts.org/"}

	if _, err := loader.Load(context.Background(), batch, Options{Source: src}); err != nil {
		t.Fatalf("Load (first): %v", err)
	}
	first := snapshot(t, set)
	firstFacts, _ := set.Facts.GetByCode(dbctx.Context{Ctx: context.Background()}, "1")

	if _, err := loader.Load(context.Background(), batch, Options{Source: src}); err != nil {
		t.Fatalf("Load (second): %v", err)
	}
	second := snapshot(t, set)
	secondFacts, _ := set.Facts.GetByCode(dbctx.Context{Ctx: context.Background()}, "1")

	if first != second {
		t.Fatalf("row counts changed: first=%+v second=%+v", first, second)
	}
	if first != (storeState{products: 2, nutrients: 2, facts: 3}) {
		t.Fatalf("row counts: unexpected %+v", first)
	}
	if len(firstFacts) != len(secondFacts) {
		t.Fatalf("facts for 1 changed: %d -> %d", len(firstFacts), len(secondFacts))
	}
	for i := range firstFacts {
		if *firstFacts[i] != *secondFacts[i] {
			t.Fatalf("fact changed: %+v -> %+v", firstFacts[i], secondFacts[i])
		}
	}
}

func TestLoadOverlappingBatchesConvergeToLater(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	loader := NewLoader(db, logg)
	set := repos.NewSet(db, logg)
	dbc := dbctx.Context{Ctx: context.Background()}
	src := &nutrition.SourceDimension{Name: "OpenFoodFacts"}

	if _, err := loader.Load(context.Background(), []nutrition.HarmonizedRecord{
		record("1", "Old name", nv("fat_100g", 1)),
	}, Options{Source: src}); err != nil {
		t.Fatalf("Load (a): %v", err)
	}
	before, _ := set.Nutrients.NameIndex(dbc, []string{"fat_100g"})

	if _, err := loader.Load(context.Background(), []nutrition.HarmonizedRecord{
		record("1", "Stale in-batch", nv("fat_100g", 5)),
		record("1", "New name", nv("fat_100g", 2), nv("sugars_100g", 3)),
	}, Options{}); err != nil {
		t.Fatalf("Load (b): %v", err)
	}

	p, _ := set.Products.GetByCode(dbc, "1")
	if p == nil || p.Name != "New name" {
		t.Fatalf("product: want later name got=%+v", p)
	}
	if p.SourceID == nil {
		t.Fatalf("product: source_id cleared by a load without source")
	}
	after, _ := set.Nutrients.NameIndex(dbc, []string{"fat_100g", "sugars_100g"})
	if after["fat_100g"] != before["fat_100g"] {
		t.Fatalf("nutrient id reassigned: %d -> %d", before["fat_100g"], after["fat_100g"])
	}
	if _, ok := after["sugars_100g"]; !ok {
		t.Fatalf("sugars_100g not inserted")
	}
	facts, _ := set.Facts.GetByCode(dbc, "1")
	for _, f := range facts {
		if f.NutrientID == after["fat_100g"] && f.ValuePer100g != 2 {
			t.Fatalf("fat_100g: want=2 got=%v", f.ValuePer100g)
		}
	}
	if len(facts) != 2 {
		t.Fatalf("facts: want=2 got=%d", len(facts))
	}
}

func TestLoadSchemaError(t *testing.T) {
	svc := testutil.Open(t)
	_, err := NewLoader(svc.DB(), testutil.Logger(t)).Load(context.Background(),
		[]nutrition.HarmonizedRecord{record("1", "x", nv("fat_100g", 1))}, Options{})
	if !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("want ErrSchema got=%v", err)
	}
}

type cancelLocker struct {
	cancel   context.CancelFunc
	obtained int
	released int
}

type cancelLease struct{ l *cancelLocker }

func (l *cancelLocker) Obtain(_ context.Context, _ string) (Lease, error) {
	l.obtained++
	if l.cancel != nil {
		l.cancel()
	}
	return cancelLease{l: l}, nil
}

func (c cancelLease) Release(_ context.Context) error {
	c.l.released++
	return nil
}

func TestLoadCancelledLeavesNoPartialState(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	set := repos.NewSet(db, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	locker := &cancelLocker{cancel: cancel}
	_, err := NewLoader(db, logg).WithLocker(locker).Load(ctx,
		[]nutrition.HarmonizedRecord{record("1", "x", nv("fat_100g", 1))}, Options{})
	if !errors.Is(err, etlerr.ErrStore) {
		t.Fatalf("want ErrStore got=%v", err)
	}
	if locker.obtained != 1 || locker.released != 1 {
		t.Fatalf("lease: obtained=%d released=%d", locker.obtained, locker.released)
	}
	if st := snapshot(t, set); st != (storeState{}) {
		t.Fatalf("partial state visible: %+v", st)
	}
}

func TestLoadFactFailureRollsBackDimensions(t *testing.T) {
	db := testutil.DB(t)
	logg := testutil.Logger(t)
	set := repos.NewSet(db, logg)

	boom := errors.New("boom")
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_facts", func(tx *gorm.DB) {
		if tx.Statement.Table == nutrition.TableFact {
			_ = tx.AddError(boom)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	batch := []nutrition.HarmonizedRecord{
		record("1", "Oats", nv("energy_100g", 370), nv("fat_100g", 7)),
		record("2", "Milk", nv("energy_100g", 64)),
	}
	src := &nutrition.SourceDimension{Name: "OpenFoodFacts", URL: "https://world.openfoodfacts.org/"}
	_, err = NewLoader(db, logg).Load(context.Background(), batch, Options{Source: src})
	if !errors.Is(err, etlerr.ErrStore) {
		t.Fatalf("want ErrStore got=%v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("want cause boom got=%v", err)
	}
	if st := snapshot(t, set); st != (storeState{}) {
		t.Fatalf("dimension rows survived the failed fact write: %+v", st)
	}
}

func TestLoadEmptyBatch(t *testing.T) {
	db := testutil.DB(t)
	res, err := NewLoader(db, testutil.Logger(t)).Load(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res != (Result{}) {
		t.Fatalf("Result: want zero got=%+v", res)
	}
}
