package nutrition

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type FactRepo interface {
	// Upsert writes rows keyed by (code, nutrient_id). Keys must be unique within rows.
	Upsert(dbc dbctx.Context, rows []*types.FactRow, batchSize int) error
	GetByCode(dbc dbctx.Context, code string) ([]*types.FactRow, error)
	Count(dbc dbctx.Context) (int64, error)
}

type factRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFactRepo(db *gorm.DB, baseLog *logger.Logger) FactRepo {
	return &factRepo{
		db:  db,
		log: baseLog.With("repo", "FactRepo"),
	}
}

func (r *factRepo) Upsert(dbc dbctx.Context, rows []*types.FactRow, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}, {Name: "nutrient_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value_per_100g"}),
		}).
		CreateInBatches(rows, normBatch(batchSize)).Error
}

func (r *factRepo) GetByCode(dbc dbctx.Context, code string) ([]*types.FactRow, error) {
	var out []*types.FactRow
	if code == "" {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("code = ?", code).
		Order("nutrient_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *factRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.Conn(r.db).Model(&types.FactRow{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
