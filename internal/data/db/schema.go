package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
)

type tableSpec struct {
	model   any
	table   string
	columns []string
}

var starSchema = []tableSpec{
	{&nutrition.SourceDimension{}, nutrition.TableSource, []string{"source_id", "name", "version", "url", "extracted_at"}},
	{&nutrition.ProductDimension{}, nutrition.TableProduct, []string{"code", "name", "brand", "category", "nutriscore_grade", "source_id"}},
	{&nutrition.NutrientDimension{}, nutrition.TableNutrient, []string{"nutrient_id", "name", "unit"}},
	{&nutrition.FactRow{}, nutrition.TableFact, []string{"code", "nutrient_id", "value_per_100g"}},
}

// VerifySchema fails with a schema error listing every missing table or column.
func VerifySchema(db *gorm.DB) error {
	m := db.Migrator()
	var missing []string
	for _, want := range starSchema {
		if !m.HasTable(want.table) {
			missing = append(missing, want.table)
			continue
		}
		for _, col := range want.columns {
			if !m.HasColumn(want.model, col) {
				missing = append(missing, want.table+"."+col)
			}
		}
	}
	if len(missing) > 0 {
		return etlerr.Schema("verify star schema", fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return nil
}
