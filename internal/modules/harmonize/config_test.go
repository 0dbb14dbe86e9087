package harmonize

import (
	"errors"
	"testing"

	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
)

const testDocument = `
unit_conversions:
  - {from: kJ, to: kcal, factor: 0.239}
  - {from: mg, to: g, factor: 0.001}
  - {from: kJ, to: kcal, factor: "0.2390"}
nutrient_targets:
  energy_100g: kcal
  Sugars-100g: g
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testDocument))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if len(cfg.Rules) != 2 {
		t.Fatalf("rules: want=2 got=%d", len(cfg.Rules))
	}
	if cfg.Rules[0].From != "kJ" || cfg.Rules[0].To != "kcal" || cfg.Rules[0].Factor.String() != "0.239" {
		t.Fatalf("rule[0]: unexpected %+v", cfg.Rules[0])
	}
	names := cfg.TargetNames()
	if len(names) != 2 || names[0] != "energy_100g" || names[1] != "sugars_100g" {
		t.Fatalf("targets: want=[energy_100g sugars_100g] got=%v", names)
	}
}

func TestParseConfigErrors(t *testing.T) {
	cases := map[string]string{
		"empty":            ``,
		"missing rules":    "nutrient_targets: {energy_100g: kcal}\n",
		"missing targets":  "unit_conversions: []\n",
		"non-numeric":      "unit_conversions: [{from: kJ, to: kcal, factor: lots}]\nnutrient_targets: {energy_100g: kcal}\n",
		"zero factor":      "unit_conversions: [{from: kJ, to: kcal, factor: 0}]\nnutrient_targets: {energy_100g: kcal}\n",
		"missing factor":   "unit_conversions: [{from: kJ, to: kcal}]\nnutrient_targets: {energy_100g: kcal}\n",
		"empty from":       "unit_conversions: [{from: '', to: kcal, factor: 1}]\nnutrient_targets: {energy_100g: kcal}\n",
		"conflicting rule": "unit_conversions: [{from: kJ, to: kcal, factor: 0.239}, {from: kJ, to: kcal, factor: 0.24}]\nnutrient_targets: {energy_100g: kcal}\n",
		"empty target":     "unit_conversions: []\nnutrient_targets: {energy_100g: ''}\n",
		"not yaml":         "unit_conversions: [\n",
	}
	for name, doc := range cases {
		_, err := ParseConfig([]byte(doc))
		if !errors.Is(err, etlerr.ErrConfig) {
			t.Fatalf("%s: want ErrConfig got=%v", name, err)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Energy-100g":           "energy_100g",
		"  saturated--fat_100g": "saturated_fat_100g",
		"Vitamin C (mg)":        "vitamin_c_mg",
		"__x__":                 "x",
		"":                      "",
		"Énergie-kcal_100g":     "énergie_kcal_100g",
		"acide_gras_µg_100g":    "acide_gras_µg_100g",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q): want=%q got=%q", in, want, got)
		}
	}
}

func TestShippedMappingsDocument(t *testing.T) {
	cfg, err := LoadConfig("../../../configs/mappings.yaml")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Targets) != 9 {
		t.Fatalf("targets: want=9 got=%d", len(cfg.Targets))
	}
	h := NewHarmonizerFromConfig(cfg)
	if unit, ok := h.TargetUnit("saturated_fat_100g"); !ok || unit != "g" {
		t.Fatalf("saturated_fat_100g target: want=g got=%q ok=%v", unit, ok)
	}
	if unit, ok := h.TargetUnit("energy_100g"); !ok || unit != "kcal" {
		t.Fatalf("energy_100g target: want=kcal got=%q ok=%v", unit, ok)
	}
}
