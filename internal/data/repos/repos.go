package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/nutrition-etl/internal/data/repos/nutrition"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type ProductRepo = nutrition.ProductRepo
type NutrientRepo = nutrition.NutrientRepo
type FactRepo = nutrition.FactRepo
type SourceRepo = nutrition.SourceRepo
type LookupRepo = nutrition.LookupRepo
type QualityReportRepo = nutrition.QualityReportRepo

// Set groups every repo over one store handle.
type Set struct {
	Products       ProductRepo
	Nutrients      NutrientRepo
	Facts          FactRepo
	Sources        SourceRepo
	Lookup         LookupRepo
	QualityReports QualityReportRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) *Set {
	return &Set{
		Products:       NewProductRepo(db, baseLog),
		Nutrients:      NewNutrientRepo(db, baseLog),
		Facts:          NewFactRepo(db, baseLog),
		Sources:        NewSourceRepo(db, baseLog),
		Lookup:         NewLookupRepo(db, baseLog),
		QualityReports: NewQualityReportRepo(db, baseLog),
	}
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return nutrition.NewProductRepo(db, baseLog)
}
func NewNutrientRepo(db *gorm.DB, baseLog *logger.Logger) NutrientRepo {
	return nutrition.NewNutrientRepo(db, baseLog)
}
func NewFactRepo(db *gorm.DB, baseLog *logger.Logger) FactRepo {
	return nutrition.NewFactRepo(db, baseLog)
}
func NewSourceRepo(db *gorm.DB, baseLog *logger.Logger) SourceRepo {
	return nutrition.NewSourceRepo(db, baseLog)
}
func NewLookupRepo(db *gorm.DB, baseLog *logger.Logger) LookupRepo {
	return nutrition.NewLookupRepo(db, baseLog)
}
func NewQualityReportRepo(db *gorm.DB, baseLog *logger.Logger) QualityReportRepo {
	return nutrition.NewQualityReportRepo(db, baseLog)
}
