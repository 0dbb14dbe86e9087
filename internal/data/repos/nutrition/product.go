package nutrition

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type ProductRepo interface {
	UpsertByCode(dbc dbctx.Context, rows []*types.ProductDimension, batchSize int) error
	GetByCodes(dbc dbctx.Context, codes []string) ([]*types.ProductDimension, error)
	GetByCode(dbc dbctx.Context, code string) (*types.ProductDimension, error)
	Count(dbc dbctx.Context) (int64, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{
		db:  db,
		log: baseLog.With("repo", "ProductRepo"),
	}
}

// UpsertByCode inserts new codes and overwrites every non-key attribute of existing
// ones. source_id is only replaced by a non-null value.
func (r *productRepo) UpsertByCode(dbc dbctx.Context, rows []*types.ProductDimension, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	t := dbc.Conn(r.db)

	updates := clause.AssignmentColumns([]string{
		"name",
		"brand",
		"category",
		"nutriscore_grade",
	})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "source_id"},
		Value:  gorm.Expr(preserveSourceExpr(t)),
	})

	return t.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: updates,
	}).CreateInBatches(rows, normBatch(batchSize)).Error
}

func preserveSourceExpr(t *gorm.DB) string {
	if t.Dialector.Name() == "sqlite" {
		return "COALESCE(excluded.source_id, source_id)"
	}
	return "COALESCE(excluded.source_id, " + types.TableProduct + ".source_id)"
}

func (r *productRepo) GetByCodes(dbc dbctx.Context, codes []string) ([]*types.ProductDimension, error) {
	var out []*types.ProductDimension
	if len(codes) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("code IN ?", codes).
		Order("code ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) GetByCode(dbc dbctx.Context, code string) (*types.ProductDimension, error) {
	if code == "" {
		return nil, nil
	}
	rows, err := r.GetByCodes(dbc, []string{code})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *productRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.Conn(r.db).Model(&types.ProductDimension{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func normBatch(n int) int {
	if n <= 0 {
		return 500
	}
	return n
}
