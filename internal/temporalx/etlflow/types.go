package etlflow

import (
	"time"

	"github.com/yungbote/nutrition-etl/internal/jobs/pipeline/etl_daily"
	"github.com/yungbote/nutrition-etl/internal/modules/consolidate"
	"github.com/yungbote/nutrition-etl/internal/modules/extract"
	"github.com/yungbote/nutrition-etl/internal/modules/load"
)

const (
	WorkflowName = etl_daily.JobType

	ActivityExtract     = "etl_extract"
	ActivityConsolidate = "etl_consolidate"
	ActivityHarmonize   = "etl_harmonize"
	ActivityGate        = "etl_quality_gate"
	ActivityLoad        = "etl_load"

	// Application error types that stop the workflow without retrying.
	ErrTypeConfig           = "ConfigError"
	ErrTypeValidationConfig = "ValidationConfigError"
	ErrTypeSchema           = "SchemaError"
	ErrTypeQualityRejected  = "QualityRejected"
)

type Input struct {
	RunID       string        `json:"run_id,omitempty"`
	SkipExtract bool          `json:"skip_extract,omitempty"`
	MaxAttempts int           `json:"max_attempts,omitempty"`
	RetryDelay  time.Duration `json:"retry_delay,omitempty"`
}

type GateInput struct {
	RunID           string `json:"run_id"`
	UpstreamSkipped int    `json:"upstream_skipped"`
}

type Result struct {
	RunID       string                    `json:"run_id"`
	Manifest    *extract.Manifest         `json:"manifest,omitempty"`
	Consolidate consolidate.Result        `json:"consolidate"`
	Harmonize   etl_daily.HarmonizeResult `json:"harmonize"`
	Gate        etl_daily.GateResult      `json:"gate"`
	Load        load.Result               `json:"load"`
}
