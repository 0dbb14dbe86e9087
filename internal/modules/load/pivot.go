package load

import "github.com/yungbote/nutrition-etl/internal/domain/nutrition"

// Triple is one long-format row before nutrient id resolution.
type Triple struct {
	Code     string
	Nutrient string
	Value    float64
}

// Pivot reshapes wide records into one triple per non-null nutrient value.
func Pivot(batch []nutrition.HarmonizedRecord) []Triple {
	out := make([]Triple, 0, len(batch)*4)
	for _, rec := range batch {
		if rec.Product.Code == "" {
			continue
		}
		for _, n := range rec.Nutrients {
			if n.Value == nil || n.Name == "" {
				continue
			}
			out = append(out, Triple{Code: rec.Product.Code, Nutrient: n.Name, Value: *n.Value})
		}
	}
	return out
}

// NutrientNames returns the distinct nutrient names of triples in first-seen order.
func NutrientNames(triples []Triple) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range triples {
		if !seen[t.Nutrient] {
			seen[t.Nutrient] = true
			out = append(out, t.Nutrient)
		}
	}
	return out
}

// productRows maps attributes onto dimension rows, one per code, the last
// occurrence in batch winning.
func productRows(batch []nutrition.HarmonizedRecord, sourceID *int64) []*nutrition.ProductDimension {
	index := map[string]int{}
	out := make([]*nutrition.ProductDimension, 0, len(batch))
	for _, rec := range batch {
		p := rec.Product
		if p.Code == "" {
			continue
		}
		row := &nutrition.ProductDimension{
			Code:            p.Code,
			Name:            p.Name,
			Brand:           p.Brand,
			Category:        p.Category,
			NutriscoreGrade: p.NutriscoreGrade,
			SourceID:        sourceID,
		}
		if i, ok := index[p.Code]; ok {
			out[i] = row
			continue
		}
		index[p.Code] = len(out)
		out = append(out, row)
	}
	return out
}

// factRows joins triples to nutrient ids. Unresolved triples are dropped and counted;
// duplicate keys keep the last value.
func factRows(triples []Triple, ids map[string]int64) ([]*nutrition.FactRow, int) {
	type key struct {
		code string
		id   int64
	}
	index := map[key]int{}
	out := make([]*nutrition.FactRow, 0, len(triples))
	dropped := 0
	for _, t := range triples {
		id, ok := ids[t.Nutrient]
		if !ok {
			dropped++
			continue
		}
		k := key{code: t.Code, id: id}
		row := &nutrition.FactRow{Code: t.Code, NutrientID: id, ValuePer100g: t.Value}
		if i, ok := index[k]; ok {
			out[i] = row
			continue
		}
		index[k] = len(out)
		out = append(out, row)
	}
	return out, dropped
}
