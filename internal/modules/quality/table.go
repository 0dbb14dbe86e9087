package quality

import (
	"sort"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
)

// Table is a harmonized batch viewed column-wise.
type Table struct {
	rows    []nutrition.HarmonizedRecord
	columns map[string]bool
}

// NewTable materializes batch. Its columns are the product attributes, every known
// nutrient and every nutrient present in at least one record.
func NewTable(batch []nutrition.HarmonizedRecord, knownNutrients []string) *Table {
	t := &Table{rows: batch, columns: map[string]bool{}}
	for _, k := range nutrition.AttributeKeys {
		t.columns[k] = true
	}
	for _, n := range knownNutrients {
		t.columns[n] = true
	}
	for _, rec := range batch {
		for _, n := range rec.Nutrients {
			t.columns[n.Name] = true
		}
	}
	return t
}

func (t *Table) RowCount() int { return len(t.rows) }

func (t *Table) HasColumn(name string) bool { return t.columns[name] }

func (t *Table) Columns() []string {
	out := make([]string, 0, len(t.columns))
	for c := range t.columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// NotNull counts rows with a value in column. Empty attribute strings count as null.
func (t *Table) NotNull(column string) int {
	n := 0
	for _, rec := range t.rows {
		if v, ok := rec.Product.Get(column); ok {
			if v != "" {
				n++
			}
			continue
		}
		if v, _ := rec.Nutrient(column); v != nil {
			n++
		}
	}
	return n
}

// OutsideRange counts non-null values strictly outside [low, high] and returns the
// non-null count alongside.
func (t *Table) OutsideRange(column string, low, high float64) (violations, nonNull int) {
	for _, rec := range t.rows {
		v, _ := rec.Nutrient(column)
		if v == nil {
			continue
		}
		nonNull++
		if *v < low || *v > high {
			violations++
		}
	}
	return violations, nonNull
}
