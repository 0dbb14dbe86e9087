package etlflow

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/nutrition-etl/internal/jobs/pipeline/etl_daily"
	"github.com/yungbote/nutrition-etl/internal/modules/consolidate"
	"github.com/yungbote/nutrition-etl/internal/modules/extract"
	"github.com/yungbote/nutrition-etl/internal/modules/load"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

type Activities struct {
	Log      *logger.Logger
	Pipeline *etl_daily.Pipeline
}

func (a *Activities) Extract(ctx context.Context, runID string) (extract.Manifest, error) {
	defer a.startHeartbeat(ctx)()
	m, err := a.Pipeline.Extract(ctx, runID)
	return m, activityError(err)
}

func (a *Activities) Consolidate(ctx context.Context, runID string) (consolidate.Result, error) {
	defer a.startHeartbeat(ctx)()
	res, err := a.Pipeline.Consolidate(ctx, runID)
	return res, activityError(err)
}

func (a *Activities) Harmonize(ctx context.Context, runID string) (etl_daily.HarmonizeResult, error) {
	defer a.startHeartbeat(ctx)()
	res, err := a.Pipeline.Harmonize(ctx, runID)
	return res, activityError(err)
}

func (a *Activities) Gate(ctx context.Context, in GateInput) (etl_daily.GateResult, error) {
	defer a.startHeartbeat(ctx)()
	res, err := a.Pipeline.Gate(ctx, in.RunID, in.UpstreamSkipped)
	return res, activityError(err)
}

func (a *Activities) Load(ctx context.Context, runID string) (load.Result, error) {
	defer a.startHeartbeat(ctx)()
	res, err := a.Pipeline.Load(ctx, runID)
	return res, activityError(err)
}

// activityError marks fatal failures non-retryable. Store and I/O errors stay
// retryable; harmonize and load are idempotent.
func activityError(err error) error {
	if err == nil {
		return nil
	}
	var errType string
	switch {
	case errors.Is(err, etlerr.ErrQualityRejected):
		errType = ErrTypeQualityRejected
	case errors.Is(err, etlerr.ErrValidationConfig):
		errType = ErrTypeValidationConfig
	case errors.Is(err, etlerr.ErrConfig):
		errType = ErrTypeConfig
	case errors.Is(err, etlerr.ErrSchema):
		errType = ErrTypeSchema
	default:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		hb := time.NewTicker(10 * time.Second)
		defer hb.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-hb.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
