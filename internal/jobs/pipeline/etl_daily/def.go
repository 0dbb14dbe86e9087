package etl_daily

import (
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/modules/extract"
	"github.com/yungbote/nutrition-etl/internal/modules/load"
	"github.com/yungbote/nutrition-etl/internal/modules/quality"
	"github.com/yungbote/nutrition-etl/internal/observability"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

const (
	JobType = "etl_nutrition_daily"

	StageExtract     = "extract"
	StageConsolidate = "consolidate"
	StageHarmonize   = "harmonize"
	StageGate        = "quality_gate"
	StageLoad        = "load"

	consolidatedFile = "tmp_products.jsonl"
	harmonizedFile   = "products_harmonized.jsonl"
)

type Config struct {
	DataDir      string
	MappingsPath string
	// RecordLimit <= 0 reads every consolidated record.
	RecordLimit int
	BatchSize   int
	FailFast    bool
	Extract     extract.Config
	Source      nutrition.SourceDimension
}

type Pipeline struct {
	cfg     Config
	db      *gorm.DB
	log     *logger.Logger
	reports quality.ReportStore
	locker  load.Locker
	metrics *observability.Metrics
	now     func() time.Time
}

// New wires the stages. locker and metrics may be nil.
func New(cfg Config, db *gorm.DB, baseLog *logger.Logger, reports quality.ReportStore, locker load.Locker, metrics *observability.Metrics) *Pipeline {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return &Pipeline{
		cfg:     cfg,
		db:      db,
		log:     baseLog.With("job", JobType),
		reports: reports,
		locker:  locker,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) Type() string { return JobType }

func (p *Pipeline) ConsolidatedPath() string {
	return filepath.Join(p.cfg.DataDir, "processed", consolidatedFile)
}

func (p *Pipeline) HarmonizedPath() string {
	return filepath.Join(p.cfg.DataDir, "processed", harmonizedFile)
}
