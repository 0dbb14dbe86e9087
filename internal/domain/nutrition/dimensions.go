package nutrition

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TableSource        = "dim_source"
	TableProduct       = "dim_product"
	TableNutrient      = "dim_nutrient"
	TableFact          = "fact_product_nutrient"
	TableQualityReport = "quality_report"
)

type SourceDimension struct {
	SourceID    int64     `gorm:"column:source_id;primaryKey;autoIncrement" json:"source_id"`
	Name        string    `gorm:"column:name;not null;uniqueIndex:idx_dim_source_name" json:"name"`
	Version     string    `gorm:"column:version" json:"version,omitempty"`
	URL         string    `gorm:"column:url" json:"url,omitempty"`
	ExtractedAt time.Time `gorm:"column:extracted_at;not null" json:"extracted_at"`
}

func (SourceDimension) TableName() string { return TableSource }

// ProductDimension rows are upserted by Code and never deleted.
type ProductDimension struct {
	Code            string `gorm:"column:code;primaryKey" json:"code"`
	Name            string `gorm:"column:name" json:"name"`
	Brand           string `gorm:"column:brand" json:"brand"`
	Category        string `gorm:"column:category" json:"category"`
	NutriscoreGrade string `gorm:"column:nutriscore_grade" json:"nutriscore_grade"`
	SourceID        *int64 `gorm:"column:source_id;index" json:"source_id,omitempty"`
}

func (ProductDimension) TableName() string { return TableProduct }

// NutrientDimension ids are assigned on first sight of a name and never change.
type NutrientDimension struct {
	NutrientID int64  `gorm:"column:nutrient_id;primaryKey;autoIncrement" json:"nutrient_id"`
	Name       string `gorm:"column:name;not null;uniqueIndex:idx_dim_nutrient_name" json:"name"`
	Unit       string `gorm:"column:unit;not null" json:"unit"`
}

func (NutrientDimension) TableName() string { return TableNutrient }

type FactRow struct {
	Code         string  `gorm:"column:code;primaryKey" json:"code"`
	NutrientID   int64   `gorm:"column:nutrient_id;primaryKey;autoIncrement:false" json:"nutrient_id"`
	ValuePer100g float64 `gorm:"column:value_per_100g;not null" json:"value_per_100g"`
}

func (FactRow) TableName() string { return TableFact }

// QualityReportRow is the audit copy of a quality report kept in the store.
type QualityReportRow struct {
	ReportID  string         `gorm:"column:report_id;primaryKey" json:"report_id"`
	RunID     string         `gorm:"column:run_id;index" json:"run_id"`
	StartedAt time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	Success   bool           `gorm:"column:success;not null" json:"success"`
	Admitted  bool           `gorm:"column:admitted;not null" json:"admitted"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
}

func (QualityReportRow) TableName() string { return TableQualityReport }

// ProductNutrient is one row of a product lookup.
type ProductNutrient struct {
	Name         string  `gorm:"column:name" json:"name"`
	ValuePer100g float64 `gorm:"column:value_per_100g" json:"value_per_100g"`
}

type ProductLookup struct {
	Product   ProductDimension  `json:"product"`
	Nutrients []ProductNutrient `json:"nutrients"`
}
