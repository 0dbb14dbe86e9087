package harmonize

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
)

func f64(v float64) *float64 { return &v }

func mustHarmonizer(t *testing.T) *Harmonizer {
	t.Helper()
	cfg, err := ParseConfig([]byte(testDocument))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	return NewHarmonizerFromConfig(cfg)
}

func TestHarmonizeConvertsWithRule(t *testing.T) {
	h := mustHarmonizer(t)
	out := h.Harmonize(nutrition.FlattenedRecord{
		Product: nutrition.ProductAttributes{Code: "1"},
		Measurements: []nutrition.Measurement{
			{Name: "energy_100g", Value: f64(1000), Unit: "kJ"},
		},
	})
	v, ok := out.Nutrient("energy_100g")
	if !ok || v == nil {
		t.Fatalf("energy_100g missing")
	}
	if math.Abs(*v-239) > 1e-9 {
		t.Fatalf("energy_100g: want=239 got=%v", *v)
	}
}

func TestHarmonizeSameUnitAndUntaggedUnchanged(t *testing.T) {
	h := mustHarmonizer(t)
	out := h.Harmonize(nutrition.FlattenedRecord{
		Product: nutrition.ProductAttributes{Code: "1"},
		Measurements: []nutrition.Measurement{
			{Name: "energy_100g", Value: f64(120.5), Unit: "kcal"},
			{Name: "sugars_100g", Value: f64(4.2)},
		},
	})
	if v, _ := out.Nutrient("energy_100g"); v == nil || *v != 120.5 {
		t.Fatalf("energy_100g: want=120.5 got=%v", v)
	}
	if v, _ := out.Nutrient("sugars_100g"); v == nil || *v != 4.2 {
		t.Fatalf("sugars_100g: want=4.2 got=%v", v)
	}
}

func TestHarmonizeSameUnitIgnoresSelfRule(t *testing.T) {
	cfg, err := ParseConfig([]byte("unit_conversions: [{from: kcal, to: kcal, factor: 2}]\nnutrient_targets: {energy_100g: kcal}\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	out, st := NewHarmonizerFromConfig(cfg).HarmonizeAll([]nutrition.FlattenedRecord{{
		Product:      nutrition.ProductAttributes{Code: "1"},
		Measurements: []nutrition.Measurement{{Name: "energy_100g", Value: f64(250), Unit: "kcal"}},
	}})
	if v, _ := out[0].Nutrient("energy_100g"); v == nil || *v != 250 {
		t.Fatalf("energy_100g: want=250 got=%v", v)
	}
	if st.Converted != 0 {
		t.Fatalf("Converted: want=0 got=%d", st.Converted)
	}
}

func TestHarmonizeMissingRulePassesThrough(t *testing.T) {
	cfg, err := ParseConfig([]byte("unit_conversions: [{from: kJ, to: kcal, factor: 0.239}]\nnutrient_targets: {sugars_100g: g}\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	h := NewHarmonizerFromConfig(cfg)
	out, st := h.HarmonizeAll([]nutrition.FlattenedRecord{{
		Product:      nutrition.ProductAttributes{Code: "1"},
		Measurements: []nutrition.Measurement{{Name: "sugars_100g", Value: f64(500), Unit: "mg"}},
	}})
	if v, _ := out[0].Nutrient("sugars_100g"); v == nil || *v != 500 {
		t.Fatalf("sugars_100g: want=500 got=%v", v)
	}
	if st.MissingRule["mg->g"] != 1 || st.MissingRuleTotal() != 1 {
		t.Fatalf("MissingRule: want mg->g=1 got=%v", st.MissingRule)
	}
	if st.Converted != 0 {
		t.Fatalf("Converted: want=0 got=%d", st.Converted)
	}
}

func TestHarmonizeNullsAndNonCanonical(t *testing.T) {
	h := mustHarmonizer(t)
	out, st := h.HarmonizeAll([]nutrition.FlattenedRecord{{
		Product: nutrition.ProductAttributes{Code: "1"},
		Measurements: []nutrition.Measurement{
			{Name: "Fat-100g", Value: nil},
			{Name: "fat_100g", Value: f64(3)},
			{Name: "fat_100g", Value: f64(9)},
			{Name: "nova_group", Value: f64(4)},
			{Name: "salt_100g", Value: nil},
		},
	}})
	rec := out[0]
	if len(rec.Nutrients) != 2 {
		t.Fatalf("nutrients: want=2 got=%+v", rec.Nutrients)
	}
	if v, _ := rec.Nutrient("fat_100g"); v == nil || *v != 3 {
		t.Fatalf("fat_100g: want first non-null 3 got=%v", v)
	}
	if v, ok := rec.Nutrient("salt_100g"); !ok || v != nil {
		t.Fatalf("salt_100g: want present null got=%v ok=%v", v, ok)
	}
	if _, ok := rec.Nutrient("nova_group"); ok {
		t.Fatalf("nova_group should not be carried")
	}
	if st.Dropped != 1 {
		t.Fatalf("Dropped: want=1 got=%d", st.Dropped)
	}
}

func TestHarmonizeDoesNotAliasInput(t *testing.T) {
	h := mustHarmonizer(t)
	v := 10.0
	in := nutrition.FlattenedRecord{
		Product:      nutrition.ProductAttributes{Code: "1"},
		Measurements: []nutrition.Measurement{{Name: "fat_100g", Value: &v}},
	}
	out := h.Harmonize(in)
	*out.Nutrients[0].Value = 99
	if v != 10 {
		t.Fatalf("input mutated: got=%v", v)
	}
}

func TestHarmonizeJSONLEndToEnd(t *testing.T) {
	in := strings.Join([]string{
		`{"code":"3017620422003","product_name":"Spread","Energy-100g":418,"Energy-100g_unit":"kJ","sugars_100g":56.3}`,
		`{"product_name":"no code","energy_100g":1}`,
		`{broken`,
	}, "\n")
	recs, skipped, err := ReadFlattened(strings.NewReader(in), 0)
	if err != nil {
		t.Fatalf("ReadFlattened: %v", err)
	}
	if len(recs) != 1 || skipped != 2 {
		t.Fatalf("ReadFlattened: want 1 record 2 skipped got=%d,%d", len(recs), skipped)
	}

	out, _ := mustHarmonizer(t).HarmonizeAll(recs)
	var buf bytes.Buffer
	if err := WriteHarmonized(&buf, out); err != nil {
		t.Fatalf("WriteHarmonized: %v", err)
	}
	if strings.Contains(buf.String(), "_unit") {
		t.Fatalf("unit tags leaked into output: %s", buf.String())
	}

	back, skipped, err := ReadHarmonized(&buf, 0)
	if err != nil || skipped != 0 || len(back) != 1 {
		t.Fatalf("ReadHarmonized: n=%d skipped=%d err=%v", len(back), skipped, err)
	}
	v, ok := back[0].Nutrient("energy_100g")
	if !ok || v == nil {
		t.Fatalf("energy_100g missing after round trip")
	}
	if math.Abs(*v-99.9) > 0.1 {
		t.Fatalf("energy_100g: want~99.9 got=%v", *v)
	}
	if back[0].Product.Name != "Spread" {
		t.Fatalf("product_name: want=Spread got=%q", back[0].Product.Name)
	}
}

func TestReadFlattenedLimit(t *testing.T) {
	in := "{\"code\":\"1\"}\n{\"code\":\"2\"}\n{\"code\":\"3\"}\n"
	recs, _, err := ReadFlattened(strings.NewReader(in), 2)
	if err != nil {
		t.Fatalf("ReadFlattened: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("limit: want=2 got=%d", len(recs))
	}
}
