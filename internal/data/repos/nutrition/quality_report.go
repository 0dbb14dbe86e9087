package nutrition

import (
	"gorm.io/gorm"

	types "github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type QualityReportRepo interface {
	Create(dbc dbctx.Context, row *types.QualityReportRow) error
	GetByID(dbc dbctx.Context, reportID string) (*types.QualityReportRow, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.QualityReportRow, error)
}

type qualityReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQualityReportRepo(db *gorm.DB, baseLog *logger.Logger) QualityReportRepo {
	return &qualityReportRepo{
		db:  db,
		log: baseLog.With("repo", "QualityReportRepo"),
	}
}

func (r *qualityReportRepo) Create(dbc dbctx.Context, row *types.QualityReportRow) error {
	if row == nil || row.ReportID == "" {
		return nil
	}
	return dbc.Conn(r.db).Create(row).Error
}

func (r *qualityReportRepo) GetByID(dbc dbctx.Context, reportID string) (*types.QualityReportRow, error) {
	var out []*types.QualityReportRow
	if reportID == "" {
		return nil, nil
	}
	if err := dbc.Conn(r.db).Where("report_id = ?", reportID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *qualityReportRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.QualityReportRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*types.QualityReportRow
	if err := dbc.Conn(r.db).Order("started_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
