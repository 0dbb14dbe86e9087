package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Dimensions
		// =========================
		&nutrition.SourceDimension{},
		&nutrition.ProductDimension{},
		&nutrition.NutrientDimension{},

		// =========================
		// Facts
		// =========================
		&nutrition.FactRow{},

		// =========================
		// Audit
		// =========================
		&nutrition.QualityReportRow{},
	)
}

// EnsureStarSchemaConstraints adds the fact → dimension foreign keys. Postgres only;
// sqlite relies on the loader writing dimensions before facts in the same transaction.
func EnsureStarSchemaConstraints(db *gorm.DB) error {
	if db.Dialector.Name() != DialectPostgres {
		return nil
	}
	stmts := []struct {
		name string
		sql  string
	}{
		{"fk_fact_product_nutrient_nutrient", `
			DO $$ BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_fact_product_nutrient_nutrient') THEN
					ALTER TABLE fact_product_nutrient
					ADD CONSTRAINT fk_fact_product_nutrient_nutrient
					FOREIGN KEY (nutrient_id) REFERENCES dim_nutrient(nutrient_id);
				END IF;
			END $$;
		`},
		{"fk_fact_product_nutrient_product", `
			DO $$ BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_fact_product_nutrient_product') THEN
					ALTER TABLE fact_product_nutrient
					ADD CONSTRAINT fk_fact_product_nutrient_product
					FOREIGN KEY (code) REFERENCES dim_product(code);
				END IF;
			END $$;
		`},
		{"fk_dim_product_source", `
			DO $$ BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_dim_product_source') THEN
					ALTER TABLE dim_product
					ADD CONSTRAINT fk_dim_product_source
					FOREIGN KEY (source_id) REFERENCES dim_source(source_id);
				END IF;
			END $$;
		`},
	}
	for _, st := range stmts {
		if err := db.Exec(st.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", st.name, err)
		}
	}
	// Serves the dim_nutrient side of the fact join. The (code, nutrient_id)
	// primary key only covers lookups by product code.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_fact_product_nutrient_nutrient ON fact_product_nutrient(nutrient_id);`).Error; err != nil {
		return fmt.Errorf("create idx_fact_product_nutrient_nutrient: %w", err)
	}
	return nil
}

// Bootstrap creates or updates the dimensional schema.
func Bootstrap(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := EnsureStarSchemaConstraints(db); err != nil {
		return err
	}
	return nil
}
