package temporalworker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/nutrition-etl/internal/jobs/pipeline/etl_daily"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
	"github.com/yungbote/nutrition-etl/internal/temporalx"
	"github.com/yungbote/nutrition-etl/internal/temporalx/etlflow"
)

type Runner struct {
	log *logger.Logger

	tc       temporalsdkclient.Client
	cfg      temporalx.Config
	pipeline *etl_daily.Pipeline
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, pipeline *etl_daily.Pipeline) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("temporal worker missing pipeline")
	}
	return &Runner{
		log:      log.With("service", "TemporalWorker"),
		tc:       tc,
		cfg:      cfg.WithDefaults(),
		pipeline: pipeline,
	}, nil
}

// Start polls the task queue until ctx is done. Start failures are retried for up to a minute.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	cfg := r.cfg
	r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	if cfg.AutoRegisterNamespace {
		if err := temporalx.EnsureNamespace(ctx, cfg, r.log); err != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", cfg.Namespace, "error", err)
		}
	}

	deadline := time.Now().Add(time.Minute)
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		if temporalx.IsNamespaceNotFound(startErr) && cfg.AutoRegisterNamespace {
			_ = temporalx.EnsureNamespace(ctx, cfg, r.log)
		}
		if time.Now().After(deadline) {
			if temporalx.IsNamespaceNotFound(startErr) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		time.Sleep(temporalx.ClampBackoff(250*time.Millisecond, 5*time.Second, attempt))
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})

	acts := &etlflow.Activities{Log: r.log, Pipeline: r.pipeline}
	w.RegisterWorkflowWithOptions(etlflow.Workflow, workflow.RegisterOptions{Name: etlflow.WorkflowName})
	w.RegisterActivityWithOptions(acts.Extract, activity.RegisterOptions{Name: etlflow.ActivityExtract})
	w.RegisterActivityWithOptions(acts.Consolidate, activity.RegisterOptions{Name: etlflow.ActivityConsolidate})
	w.RegisterActivityWithOptions(acts.Harmonize, activity.RegisterOptions{Name: etlflow.ActivityHarmonize})
	w.RegisterActivityWithOptions(acts.Gate, activity.RegisterOptions{Name: etlflow.ActivityGate})
	w.RegisterActivityWithOptions(acts.Load, activity.RegisterOptions{Name: etlflow.ActivityLoad})
	return w
}
