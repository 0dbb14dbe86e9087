package etl_daily

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/modules/consolidate"
	"github.com/yungbote/nutrition-etl/internal/modules/extract"
	"github.com/yungbote/nutrition-etl/internal/modules/harmonize"
	"github.com/yungbote/nutrition-etl/internal/modules/load"
	"github.com/yungbote/nutrition-etl/internal/modules/quality"
	"github.com/yungbote/nutrition-etl/internal/observability"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
)

type HarmonizeResult struct {
	Path        string         `json:"path"`
	Records     int            `json:"records"`
	Converted   int            `json:"converted"`
	MissingRule map[string]int `json:"missing_rule,omitempty"`
	Skipped     int            `json:"skipped"`
}

type GateResult struct {
	ReportID string `json:"report_id"`
	Success  bool   `json:"success"`
	Admitted bool   `json:"admitted"`
	Rows     int    `json:"rows"`
	Failed   int    `json:"failed_checks"`
}

// stage runs fn inside a span and records its outcome.
func (p *Pipeline) stage(ctx context.Context, name, runID string, fn func(ctx context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "etl."+name,
		attribute.String("etl.stage", name),
		attribute.String("etl.run_id", runID),
	)
	start := time.Now()
	err := fn(ctx)
	observability.EndSpan(span, err)

	status := "ok"
	switch {
	case errors.Is(err, etlerr.ErrQualityRejected):
		status = "rejected"
	case err != nil:
		status = "error"
	}
	p.metrics.ObserveStage(name, status, time.Since(start))
	if err != nil {
		p.log.Warn("Stage failed", "stage", name, "run_id", runID, "error", err)
	} else {
		p.log.Info("Stage finished", "stage", name, "run_id", runID, "duration", time.Since(start).String())
	}
	return err
}

func (p *Pipeline) Extract(ctx context.Context, runID string) (extract.Manifest, error) {
	var m extract.Manifest
	err := p.stage(ctx, StageExtract, runID, func(ctx context.Context) error {
		var err error
		m, err = extract.NewExtractor(p.cfg.Extract, p.log).Run(ctx, extract.RawDir(p.cfg.DataDir, p.now()))
		return err
	})
	return m, err
}

func (p *Pipeline) Consolidate(ctx context.Context, runID string) (consolidate.Result, error) {
	var res consolidate.Result
	err := p.stage(ctx, StageConsolidate, runID, func(ctx context.Context) error {
		src, err := consolidate.LatestSourceDir(p.cfg.DataDir)
		if err != nil {
			return err
		}
		res, err = consolidate.NewConsolidator(p.log).Run(ctx, src, p.ConsolidatedPath())
		p.metrics.AddSkipped(StageConsolidate, res.SkippedPages)
		return err
	})
	return res, err
}

// Harmonize rewrites the consolidated file into target units. Records without a
// code and malformed lines are counted in Skipped.
func (p *Pipeline) Harmonize(ctx context.Context, runID string) (HarmonizeResult, error) {
	res := HarmonizeResult{Path: p.HarmonizedPath()}
	err := p.stage(ctx, StageHarmonize, runID, func(ctx context.Context) error {
		cfg, err := harmonize.LoadConfig(p.cfg.MappingsPath)
		if err != nil {
			return err
		}
		recs, skipped, err := readFlattened(p.ConsolidatedPath(), p.cfg.RecordLimit)
		if err != nil {
			return err
		}
		res.Skipped = skipped
		p.metrics.AddSkipped(StageHarmonize, skipped)

		out, st := harmonize.NewHarmonizerFromConfig(cfg).HarmonizeAll(recs)
		res.Records = st.Records
		res.Converted = st.Converted
		res.MissingRule = st.MissingRule
		p.metrics.ObserveHarmonize(st.Records, st.Converted, st.MissingRule)
		if total := st.MissingRuleTotal(); total > 0 {
			p.log.Warn("Values passed through without a conversion rule",
				"values", total,
				"pairs", st.MissingRuleKeys(),
			)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeHarmonized(res.Path, out)
	})
	return res, err
}

// Gate evaluates the harmonized batch. A blocked batch returns ErrQualityRejected
// together with the result.
func (p *Pipeline) Gate(ctx context.Context, runID string, upstreamSkipped int) (GateResult, error) {
	var res GateResult
	err := p.stage(ctx, StageGate, runID, func(ctx context.Context) error {
		data, err := os.ReadFile(p.cfg.MappingsPath)
		if err != nil {
			return etlerr.Config("read conversion document", err)
		}
		hcfg, err := harmonize.ParseConfig(data)
		if err != nil {
			return err
		}
		qcfg, err := quality.ParseConfig(data, hcfg.TargetNames())
		if err != nil {
			return err
		}
		qcfg.FailFast = p.cfg.FailFast

		batch, skipped, err := readHarmonized(p.HarmonizedPath(), 0)
		if err != nil {
			return err
		}
		rep, admitted, err := quality.NewGate(qcfg, p.reports, p.log).Evaluate(ctx, quality.Input{
			RunID:             runID,
			Batch:             batch,
			KnownNutrients:    hcfg.TargetNames(),
			SkippedInputLines: upstreamSkipped + skipped,
		})
		if err != nil {
			return err
		}
		for _, c := range rep.Checks {
			p.metrics.ObserveQualityCheck(c.Kind, c.Success)
		}
		res = GateResult{
			ReportID: rep.ReportID,
			Success:  rep.Success,
			Admitted: admitted,
			Rows:     rep.Statistics.RowCount,
			Failed:   rep.Statistics.UnsuccessfulChecks,
		}
		if !admitted {
			p.metrics.IncQualityRejected()
			return fmt.Errorf("%w: report %s", etlerr.ErrQualityRejected, rep.ReportID)
		}
		return nil
	})
	return res, err
}

func (p *Pipeline) Load(ctx context.Context, runID string) (load.Result, error) {
	var res load.Result
	err := p.stage(ctx, StageLoad, runID, func(ctx context.Context) error {
		batch, _, err := readHarmonized(p.HarmonizedPath(), 0)
		if err != nil {
			return err
		}
		loader := load.NewLoader(p.db, p.log)
		if p.locker != nil {
			loader.WithLocker(p.locker)
		}
		src := p.cfg.Source
		var opts load.Options
		opts.BatchSize = p.cfg.BatchSize
		if src.Name != "" {
			src.ExtractedAt = p.now()
			opts.Source = &src
		}
		res, err = loader.Load(ctx, batch, opts)
		if err != nil {
			return err
		}
		p.metrics.ObserveLoad(res.Products, res.Facts, res.DroppedFacts)
		return nil
	})
	return res, err
}

func readFlattened(path string, limit int) ([]nutrition.FlattenedRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open consolidated input: %w", err)
	}
	defer f.Close()
	return harmonize.ReadFlattened(f, limit)
}

func readHarmonized(path string, limit int) ([]nutrition.HarmonizedRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open harmonized input: %w", err)
	}
	defer f.Close()
	return harmonize.ReadHarmonized(f, limit)
}

func writeHarmonized(path string, recs []nutrition.HarmonizedRecord) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := harmonize.WriteHarmonized(f, recs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
