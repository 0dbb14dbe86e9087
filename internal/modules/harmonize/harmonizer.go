package harmonize

import (
	"sort"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
)

// Stats summarizes one HarmonizeAll call.
type Stats struct {
	Records   int
	Converted int
	// MissingRule counts values left in their source unit because no direct rule
	// exists, keyed "from->to".
	MissingRule map[string]int
	// Dropped counts non-null fields that are not canonical nutrients.
	Dropped int
}

// MissingRuleTotal sums MissingRule.
func (s Stats) MissingRuleTotal() int {
	n := 0
	for _, c := range s.MissingRule {
		n += c
	}
	return n
}

// MissingRuleKeys returns the MissingRule keys in sorted order.
func (s Stats) MissingRuleKeys() []string {
	out := make([]string, 0, len(s.MissingRule))
	for k := range s.MissingRule {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Harmonizer rewrites every canonical nutrient of a record into its target unit.
// It holds no mutable state and is safe for concurrent use.
type Harmonizer struct {
	targets map[string]string
	rules   map[ruleKey]*apd.Decimal
}

func NewHarmonizer(targets []NutrientTarget, rules []ConversionRule) *Harmonizer {
	h := &Harmonizer{
		targets: make(map[string]string, len(targets)),
		rules:   make(map[ruleKey]*apd.Decimal, len(rules)),
	}
	for _, t := range targets {
		h.targets[NormalizeName(t.Nutrient)] = t.Unit
	}
	for _, r := range rules {
		h.rules[ruleKey{from: r.From, to: r.To}] = r.Factor
	}
	return h
}

func NewHarmonizerFromConfig(cfg *Config) *Harmonizer {
	return NewHarmonizer(cfg.Targets, cfg.Rules)
}

// TargetUnit returns the canonical unit of a normalized nutrient name.
func (h *Harmonizer) TargetUnit(name string) (string, bool) {
	u, ok := h.targets[name]
	return u, ok
}

// IsCanonical reports whether a normalized name is carried into harmonized output.
func (h *Harmonizer) IsCanonical(name string) bool {
	if _, ok := h.targets[name]; ok {
		return true
	}
	return strings.HasSuffix(name, nutrition.Per100gSuffix)
}

func (h *Harmonizer) Harmonize(rec nutrition.FlattenedRecord) nutrition.HarmonizedRecord {
	return h.harmonize(rec, nil)
}

func (h *Harmonizer) HarmonizeAll(recs []nutrition.FlattenedRecord) ([]nutrition.HarmonizedRecord, Stats) {
	st := Stats{MissingRule: map[string]int{}}
	out := make([]nutrition.HarmonizedRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, h.harmonize(rec, &st))
		st.Records++
	}
	return out, st
}

func (h *Harmonizer) harmonize(rec nutrition.FlattenedRecord, st *Stats) nutrition.HarmonizedRecord {
	out := nutrition.HarmonizedRecord{
		Product:   rec.Product,
		Nutrients: make([]nutrition.NutrientValue, 0, len(rec.Measurements)),
	}
	index := make(map[string]int, len(rec.Measurements))

	for _, m := range rec.Measurements {
		name := NormalizeName(m.Name)
		if name == "" {
			continue
		}
		if !h.IsCanonical(name) {
			if st != nil && m.Value != nil {
				st.Dropped++
			}
			continue
		}
		value := h.convert(name, m, st)
		if i, ok := index[name]; ok {
			if out.Nutrients[i].Value == nil && value != nil {
				out.Nutrients[i].Value = value
			}
			continue
		}
		index[name] = len(out.Nutrients)
		out.Nutrients = append(out.Nutrients, nutrition.NutrientValue{Name: name, Value: value})
	}
	return out
}

func (h *Harmonizer) convert(name string, m nutrition.Measurement, st *Stats) *float64 {
	if m.Value == nil {
		return nil
	}
	v := *m.Value
	target, ok := h.targets[name]
	if !ok {
		return &v
	}
	unit := strings.TrimSpace(m.Unit)
	if unit == "" || unit == target {
		return &v
	}
	key := ruleKey{from: unit, to: target}
	factor, ok := h.rules[key]
	if !ok {
		if st != nil {
			st.MissingRule[key.String()]++
		}
		return &v
	}
	converted, err := scale(v, factor)
	if err != nil {
		if st != nil {
			st.MissingRule[key.String()]++
		}
		return &v
	}
	if st != nil {
		st.Converted++
	}
	return &converted
}
