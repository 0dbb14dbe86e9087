package nutrition

import (
	"gorm.io/gorm"

	types "github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

const DefaultLookupNutrients = 8

type LookupRepo interface {
	// Lookup returns nil when the code has no product row.
	Lookup(dbc dbctx.Context, code string, topNutrients int) (*types.ProductLookup, error)
}

type lookupRepo struct {
	db       *gorm.DB
	log      *logger.Logger
	products ProductRepo
}

func NewLookupRepo(db *gorm.DB, baseLog *logger.Logger) LookupRepo {
	return &lookupRepo{
		db:       db,
		log:      baseLog.With("repo", "LookupRepo"),
		products: NewProductRepo(db, baseLog),
	}
}

func (r *lookupRepo) Lookup(dbc dbctx.Context, code string, topNutrients int) (*types.ProductLookup, error) {
	p, err := r.products.GetByCode(dbc, code)
	if err != nil || p == nil {
		return nil, err
	}
	if topNutrients <= 0 {
		topNutrients = DefaultLookupNutrients
	}
	nutrients := []types.ProductNutrient{}
	if err := dbc.Conn(r.db).
		Table(types.TableFact+" AS f").
		Select("n.name AS name, f.value_per_100g AS value_per_100g").
		Joins("JOIN "+types.TableNutrient+" n ON n.nutrient_id = f.nutrient_id").
		Where("f.code = ?", code).
		Order("n.name ASC").
		Limit(topNutrients).
		Scan(&nutrients).Error; err != nil {
		return nil, err
	}
	return &types.ProductLookup{Product: *p, Nutrients: nutrients}, nil
}
