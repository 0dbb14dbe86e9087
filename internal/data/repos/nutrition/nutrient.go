package nutrition

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type NutrientRepo interface {
	GetAll(dbc dbctx.Context) ([]*types.NutrientDimension, error)
	GetByNames(dbc dbctx.Context, names []string) ([]*types.NutrientDimension, error)
	// InsertMissing adds names that have no row yet and returns how many were inserted.
	InsertMissing(dbc dbctx.Context, names []string, unit string) (int64, error)
	NameIndex(dbc dbctx.Context, names []string) (map[string]int64, error)
	Count(dbc dbctx.Context) (int64, error)
}

type nutrientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNutrientRepo(db *gorm.DB, baseLog *logger.Logger) NutrientRepo {
	return &nutrientRepo{
		db:  db,
		log: baseLog.With("repo", "NutrientRepo"),
	}
}

func (r *nutrientRepo) GetAll(dbc dbctx.Context) ([]*types.NutrientDimension, error) {
	var out []*types.NutrientDimension
	if err := dbc.Conn(r.db).Order("nutrient_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *nutrientRepo) GetByNames(dbc dbctx.Context, names []string) ([]*types.NutrientDimension, error) {
	var out []*types.NutrientDimension
	if len(names) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("name IN ?", names).
		Order("nutrient_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *nutrientRepo) InsertMissing(dbc dbctx.Context, names []string, unit string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	if unit == "" {
		unit = types.DefaultNutrientUnit
	}
	existing, err := r.GetByNames(dbc, names)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, row := range existing {
		seen[row.Name] = true
	}
	rows := make([]*types.NutrientDimension, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		rows = append(rows, &types.NutrientDimension{Name: name, Unit: unit})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *nutrientRepo) NameIndex(dbc dbctx.Context, names []string) (map[string]int64, error) {
	rows, err := r.GetByNames(dbc, names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Name] = row.NutrientID
	}
	return out, nil
}

func (r *nutrientRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.Conn(r.db).Model(&types.NutrientDimension{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
