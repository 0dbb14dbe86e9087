package app

import (
	"context"
	"fmt"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	storedb "github.com/yungbote/nutrition-etl/internal/data/db"
	"github.com/yungbote/nutrition-etl/internal/data/repos"
	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/jobs/pipeline/etl_daily"
	"github.com/yungbote/nutrition-etl/internal/modules/load"
	"github.com/yungbote/nutrition-etl/internal/modules/quality"
	"github.com/yungbote/nutrition-etl/internal/observability"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	"github.com/yungbote/nutrition-etl/internal/platform/envutil"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
	"github.com/yungbote/nutrition-etl/internal/platform/redislock"
	"github.com/yungbote/nutrition-etl/internal/temporalx"
	"github.com/yungbote/nutrition-etl/internal/temporalx/etlflow"
	"github.com/yungbote/nutrition-etl/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Store    *storedb.Service
	DB       *gorm.DB
	Repos    *repos.Set
	Metrics  *observability.Metrics
	Reports  quality.ReportStore
	Pipeline *etl_daily.Pipeline

	temporal     temporalsdkclient.Client
	closers      []func()
	otelShutdown func(context.Context) error
}

// New builds a logger and config from the environment, then wires everything.
func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return NewWithConfig(ctx, log, cfg)
}

// NewWithConfig opens the store and wires the pipeline. The Temporal client is
// dialed on first use.
func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)
	a.Metrics = observability.Init()

	store, err := storedb.Open(cfg.DBURL, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.Store = store
	a.DB = store.DB()
	a.closers = append(a.closers, func() { _ = store.Close() })

	if cfg.AutoMigrate {
		if err := storedb.Bootstrap(a.DB); err != nil {
			a.Close()
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	log.Info("Wiring repos...")
	a.Repos = repos.NewSet(a.DB, log)

	reports, closeReports, err := resolveReportStore(ctx, log, cfg, a.DB)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Reports = reports
	a.closers = append(a.closers, closeReports)

	var locker load.Locker
	if cfg.LockRedisAddr != "" {
		l, err := redislock.New(ctx, log, redislock.Config{Addr: cfg.LockRedisAddr, TTL: cfg.LockTTL, Wait: cfg.LockWait})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init load lock: %w", err)
		}
		locker = l
		a.closers = append(a.closers, func() { _ = l.Close() })
	}

	a.Pipeline = etl_daily.New(cfg.Pipeline, a.DB, log, reports, locker, a.Metrics)
	return a, nil
}

// Migrate creates or updates the dimensional schema.
func (a *App) Migrate() error {
	a.Log.Info("Bootstrapping schema", "dialect", a.Store.Dialect())
	return storedb.Bootstrap(a.DB)
}

// RunOnce runs every stage in-process.
func (a *App) RunOnce(ctx context.Context, in etl_daily.RunInput) (etl_daily.Summary, error) {
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	return a.Pipeline.Run(ctx, in)
}

// Lookup returns nil when the product is unknown.
func (a *App) Lookup(ctx context.Context, code string, topNutrients int) (*nutrition.ProductLookup, error) {
	return a.Repos.Lookup.Lookup(dbctx.Context{Ctx: ctx}, code, topNutrients)
}

// Serve runs the lookup API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB, 15*time.Second)
	return a.wireServer().Run(ctx, a.Cfg.HTTPAddr)
}

// RunWorker polls the Temporal task queue until ctx is done.
func (a *App) RunWorker(ctx context.Context) error {
	tc, err := a.TemporalClient()
	if err != nil {
		return err
	}
	runner, err := temporalworker.NewRunner(a.Log, tc, a.Cfg.Temporal, a.Pipeline)
	if err != nil {
		return err
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB, 15*time.Second)
	if err := runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Trigger starts the daily workflow, or its cron series when ETL_CRON is set.
func (a *App) Trigger(ctx context.Context, in etl_daily.RunInput) (string, string, error) {
	tc, err := a.TemporalClient()
	if err != nil {
		return "", "", err
	}
	return etlflow.Start(ctx, tc, etlflow.StartOptions{
		TaskQueue:    a.Cfg.Temporal.TaskQueue,
		CronSchedule: a.Cfg.Temporal.CronSchedule,
	}, etlflow.Input{
		RunID:       in.RunID,
		SkipExtract: in.SkipExtract,
		MaxAttempts: a.Cfg.Temporal.RetryMaxAttempts,
		RetryDelay:  a.Cfg.Temporal.RetryDelay,
	})
}

func (a *App) TemporalClient() (temporalsdkclient.Client, error) {
	if a.temporal != nil {
		return a.temporal, nil
	}
	if !a.Cfg.Temporal.Enabled() {
		return nil, fmt.Errorf("TEMPORAL_ADDRESS is not set")
	}
	tc, err := temporalx.NewClient(a.Log, a.Cfg.Temporal)
	if err != nil {
		return nil, fmt.Errorf("init temporal client: %w", err)
	}
	a.temporal = tc
	a.closers = append(a.closers, tc.Close)
	return tc, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
