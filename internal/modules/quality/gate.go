package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

// Input is one batch handed to the gate.
type Input struct {
	RunID string
	Batch []nutrition.HarmonizedRecord
	// KnownNutrients are columns that exist even when no record carries them.
	KnownNutrients []string
	// SkippedInputLines counts upstream lines dropped before harmonization.
	SkippedInputLines int
}

type Gate struct {
	cfg   Config
	store ReportStore
	log   *logger.Logger
	now   func() time.Time
}

func NewGate(cfg Config, store ReportStore, log *logger.Logger) *Gate {
	return &Gate{
		cfg:   cfg,
		store: store,
		log:   log.With("service", "QualityGate"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate computes the report, persists it and returns the admit verdict. With
// fail-fast off the verdict is always true.
func (g *Gate) Evaluate(ctx context.Context, in Input) (*Report, bool, error) {
	if err := g.cfg.Validate(); err != nil {
		return nil, false, err
	}
	table := NewTable(in.Batch, in.KnownNutrients)
	if table.RowCount() > 0 {
		for _, col := range g.cfg.Columns() {
			if !table.HasColumn(col) {
				return nil, false, etlerr.ValidationConfigf("check references unknown column %q", col)
			}
		}
	}

	started := g.now()
	rep := &Report{
		ReportID:  NewReportID(started),
		RunID:     in.RunID,
		StartedAt: started,
		FailFast:  g.cfg.FailFast,
		Checks:    make([]CheckResult, 0, len(g.cfg.Completeness)+len(g.cfg.Ranges)),
	}
	for _, cc := range g.cfg.Completeness {
		rep.Checks = append(rep.Checks, completeness(table, cc))
	}
	for _, rc := range g.cfg.Ranges {
		rep.Checks = append(rep.Checks, valueRange(table, rc))
	}

	rep.Success = true
	for _, c := range rep.Checks {
		if c.Success {
			rep.Statistics.SuccessfulChecks++
		} else {
			rep.Statistics.UnsuccessfulChecks++
			rep.Success = false
		}
	}
	rep.Statistics.EvaluatedChecks = len(rep.Checks)
	rep.Statistics.RowCount = table.RowCount()
	rep.Statistics.SkippedInputLines = in.SkippedInputLines
	if n := rep.Statistics.EvaluatedChecks; n > 0 {
		rep.Statistics.SuccessPercent = 100 * float64(rep.Statistics.SuccessfulChecks) / float64(n)
	} else {
		rep.Statistics.SuccessPercent = 100
	}
	rep.Admitted = rep.Success || !g.cfg.FailFast
	rep.FinishedAt = g.now()

	location, err := g.store.Save(ctx, rep)
	if err != nil {
		return rep, false, fmt.Errorf("persist quality report %s: %w", rep.ReportID, err)
	}

	kv := []interface{}{
		"report_id", rep.ReportID,
		"location", location,
		"rows", rep.Statistics.RowCount,
		"failed_checks", rep.Statistics.UnsuccessfulChecks,
		"fail_fast", rep.FailFast,
		"admitted", rep.Admitted,
	}
	switch {
	case !rep.Admitted:
		g.log.Error("Quality gate rejected batch", kv...)
	case !rep.Success:
		g.log.Warn("Quality checks failed; batch admitted", kv...)
	default:
		g.log.Info("Quality checks passed", kv...)
	}
	return rep, rep.Admitted, nil
}

func completeness(t *Table, cc CompletenessCheck) CheckResult {
	res := CheckResult{
		Name:      CompletenessCheckName(cc.Column),
		Kind:      KindCompleteness,
		Column:    cc.Column,
		Threshold: cc.Min,
		Success:   true,
	}
	total := t.RowCount()
	res.ElementCount = total
	if total == 0 {
		return res
	}
	notNull := t.NotNull(cc.Column)
	ratio := float64(notNull) / float64(total)
	res.Statistic = &ratio
	res.UnexpectedCount = total - notNull
	if cc.Min != nil && ratio < *cc.Min {
		res.Success = false
	}
	return res
}

func valueRange(t *Table, rc RangeCheck) CheckResult {
	low, high := rc.Low, rc.High
	violations, nonNull := t.OutsideRange(rc.Nutrient, low, high)
	stat := float64(violations)
	return CheckResult{
		Name:            RangeCheckName(rc.Nutrient),
		Kind:            KindRange,
		Column:          rc.Nutrient,
		Statistic:       &stat,
		Low:             &low,
		High:            &high,
		ElementCount:    nonNull,
		UnexpectedCount: violations,
		Success:         violations == 0,
	}
}
