package etl_daily

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/nutrition-etl/internal/modules/consolidate"
	"github.com/yungbote/nutrition-etl/internal/modules/extract"
	"github.com/yungbote/nutrition-etl/internal/modules/load"
)

type RunInput struct {
	RunID       string `json:"run_id,omitempty"`
	SkipExtract bool   `json:"skip_extract,omitempty"`
}

type Summary struct {
	RunID       string             `json:"run_id"`
	Manifest    *extract.Manifest  `json:"manifest,omitempty"`
	Consolidate consolidate.Result `json:"consolidate"`
	Harmonize   HarmonizeResult    `json:"harmonize"`
	Gate        GateResult         `json:"gate"`
	Load        *load.Result       `json:"load,omitempty"`
}

// Run executes every stage in order and stops at the first failure. A blocked
// batch ends the run with ErrQualityRejected and nothing loaded.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (Summary, error) {
	sum := Summary{RunID: in.RunID}
	if sum.RunID == "" {
		sum.RunID = uuid.NewString()
	}
	p.log.Info("Pipeline run started", "run_id", sum.RunID, "skip_extract", in.SkipExtract)

	if !in.SkipExtract {
		m, err := p.Extract(ctx, sum.RunID)
		if err != nil {
			return sum, err
		}
		sum.Manifest = &m
	}

	var err error
	if sum.Consolidate, err = p.Consolidate(ctx, sum.RunID); err != nil {
		return sum, err
	}
	if sum.Harmonize, err = p.Harmonize(ctx, sum.RunID); err != nil {
		return sum, err
	}
	upstream := sum.Consolidate.SkippedPages + sum.Harmonize.Skipped
	if sum.Gate, err = p.Gate(ctx, sum.RunID, upstream); err != nil {
		return sum, err
	}
	res, err := p.Load(ctx, sum.RunID)
	if err != nil {
		return sum, err
	}
	sum.Load = &res

	p.log.Info("Pipeline run finished",
		"run_id", sum.RunID,
		"records", sum.Harmonize.Records,
		"report_id", sum.Gate.ReportID,
		"facts", res.Facts,
	)
	return sum, nil
}
