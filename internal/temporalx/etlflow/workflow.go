package etlflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/nutrition-etl/internal/modules/extract"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 60 * time.Second
)

// RetryPolicy retries a stage up to maxAttempts with a fixed delay. Fatal error types
// are never retried.
func RetryPolicy(maxAttempts int, delay time.Duration) *temporal.RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return &temporal.RetryPolicy{
		InitialInterval:    delay,
		BackoffCoefficient: 1.0,
		MaximumInterval:    delay,
		MaximumAttempts:    int32(maxAttempts),
		NonRetryableErrorTypes: []string{
			ErrTypeConfig,
			ErrTypeValidationConfig,
			ErrTypeSchema,
			ErrTypeQualityRejected,
		},
	}
}

// Workflow runs extract, consolidate, harmonize, quality gate and load in order.
func Workflow(ctx workflow.Context, in Input) (Result, error) {
	res := Result{RunID: in.RunID}
	if res.RunID == "" {
		res.RunID = workflow.GetInfo(ctx).WorkflowExecution.RunID
	}
	log := workflow.GetLogger(ctx)

	retry := RetryPolicy(in.MaxAttempts, in.RetryDelay)
	extractCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 4 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         retry,
	})
	stageCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         retry,
	})

	if !in.SkipExtract {
		var m extract.Manifest
		if err := workflow.ExecuteActivity(extractCtx, ActivityExtract, res.RunID).Get(ctx, &m); err != nil {
			return res, err
		}
		res.Manifest = &m
	}
	if err := workflow.ExecuteActivity(stageCtx, ActivityConsolidate, res.RunID).Get(ctx, &res.Consolidate); err != nil {
		return res, err
	}
	if err := workflow.ExecuteActivity(stageCtx, ActivityHarmonize, res.RunID).Get(ctx, &res.Harmonize); err != nil {
		return res, err
	}
	gateIn := GateInput{
		RunID:           res.RunID,
		UpstreamSkipped: res.Consolidate.SkippedPages + res.Harmonize.Skipped,
	}
	if err := workflow.ExecuteActivity(stageCtx, ActivityGate, gateIn).Get(ctx, &res.Gate); err != nil {
		return res, err
	}
	if err := workflow.ExecuteActivity(stageCtx, ActivityLoad, res.RunID).Get(ctx, &res.Load); err != nil {
		return res, err
	}
	log.Info("ETL run finished", "run_id", res.RunID, "report_id", res.Gate.ReportID, "facts", res.Load.Facts)
	return res, nil
}
