package nutrition

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type SourceRepo interface {
	// Ensure upserts the source by name and returns the stored row with its id.
	Ensure(dbc dbctx.Context, src types.SourceDimension) (*types.SourceDimension, error)
	GetByName(dbc dbctx.Context, name string) (*types.SourceDimension, error)
}

type sourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceRepo(db *gorm.DB, baseLog *logger.Logger) SourceRepo {
	return &sourceRepo{
		db:  db,
		log: baseLog.With("repo", "SourceRepo"),
	}
}

func (r *sourceRepo) Ensure(dbc dbctx.Context, src types.SourceDimension) (*types.SourceDimension, error) {
	src.Name = strings.TrimSpace(src.Name)
	if src.Name == "" {
		return nil, fmt.Errorf("source name required")
	}
	src.SourceID = 0
	if src.ExtractedAt.IsZero() {
		src.ExtractedAt = time.Now().UTC()
	}
	if err := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"version", "url", "extracted_at"}),
		}).
		Create(&src).Error; err != nil {
		return nil, err
	}
	// RETURNING is not reliable across drivers on the conflict path; read the row back.
	return r.GetByName(dbc, src.Name)
}

func (r *sourceRepo) GetByName(dbc dbctx.Context, name string) (*types.SourceDimension, error) {
	var out []*types.SourceDimension
	if err := dbc.Conn(r.db).Where("name = ?", name).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}
