package app

import (
	"strings"
	"time"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/jobs/pipeline/etl_daily"
	"github.com/yungbote/nutrition-etl/internal/modules/extract"
	"github.com/yungbote/nutrition-etl/internal/observability"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/envutil"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
	"github.com/yungbote/nutrition-etl/internal/temporalx"
)

const (
	DefaultDBURL = "postgres://postgres:@localhost:5432/food?sslmode=disable"

	ReportStoreFile = "file"
	ReportStoreGCS  = "gcs"
	ReportStoreDB   = "db"
)

type Config struct {
	LogMode     string
	DBURL       string
	AutoMigrate bool

	Pipeline etl_daily.Config

	ReportStore     string
	ReportDir       string
	ReportGCSBucket string
	ReportGCSPrefix string
	ReportGCSMode   string
	EmulatorHost    string
	GCPCredentials  string

	LockRedisAddr string
	LockTTL       time.Duration
	LockWait      time.Duration

	Temporal temporalx.Config

	HTTPAddr    string
	CORSOrigins []string
	MetricsAddr string
	Otel        observability.OtelConfig
}

// LoadConfig reads the environment once. Every other package receives its
// settings from the returned Config.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		DBURL:       envutil.String("DB_URL", DefaultDBURL),
		AutoMigrate: envutil.Bool("DB_AUTO_MIGRATE", true),
		Pipeline: etl_daily.Config{
			DataDir:      envutil.String("DATA_DIR", "data"),
			MappingsPath: envutil.String("MAPPINGS_PATH", "configs/mappings.yaml"),
			RecordLimit:  envutil.Int("RECORD_LIMIT", 0),
			BatchSize:    envutil.Int("BATCH_SIZE", 500),
			FailFast:     envutil.Bool("DQ_FAIL_FAST", false),
			Extract: extract.Config{
				BaseURL:   envutil.String("OFF_BASE_URL", extract.DefaultBaseURL),
				Fields:    envutil.String("OFF_FIELDS", extract.DefaultFields),
				PageSize:  envutil.Int("OFF_PAGE_SIZE", extract.DefaultPageSize),
				MaxPages:  envutil.Int("OFF_MAX_PAGES", 0),
				PageDelay: envutil.Millis("OFF_PAGE_DELAY_MS", 400),
				Timeout:   envutil.Seconds("OFF_TIMEOUT_SECONDS", 60),
				Retries:   envutil.Int("OFF_RETRIES", 3),
			},
			Source: nutrition.SourceDimension{
				Name:    envutil.String("SOURCE_NAME", "OpenFoodFacts"),
				URL:     envutil.String("SOURCE_URL", "https://world.openfoodfacts.org/"),
				Version: envutil.String("SOURCE_VERSION", ""),
			},
		},
		ReportStore:     strings.ToLower(envutil.String("REPORT_STORE", ReportStoreFile)),
		ReportDir:       envutil.String("REPORT_DIR", "data/quality"),
		ReportGCSBucket: envutil.String("REPORT_GCS_BUCKET", ""),
		ReportGCSPrefix: envutil.String("REPORT_GCS_PREFIX", "quality"),
		ReportGCSMode:   envutil.String("REPORT_GCS_MODE", ""),
		EmulatorHost:    envutil.String("STORAGE_EMULATOR_HOST", ""),
		GCPCredentials: envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON",
			envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "")),
		LockRedisAddr: envutil.String("LOAD_LOCK_REDIS_ADDR", ""),
		LockTTL:       envutil.Seconds("LOAD_LOCK_TTL_SECONDS", 600),
		LockWait:      envutil.Seconds("LOAD_LOCK_WAIT_SECONDS", 0),
		Temporal: temporalx.Config{
			Address:                envutil.String("TEMPORAL_ADDRESS", ""),
			Namespace:              envutil.String("TEMPORAL_NAMESPACE", "nutrition"),
			TaskQueue:              envutil.String("TEMPORAL_TASK_QUEUE", "nutrition-etl"),
			ClientCertPath:         envutil.String("TEMPORAL_TLS_CERT", ""),
			ClientKeyPath:          envutil.String("TEMPORAL_TLS_KEY", ""),
			ClientCAPath:           envutil.String("TEMPORAL_TLS_CA", ""),
			DialTimeout:            envutil.Seconds("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5),
			DialMaxWait:            envutil.Seconds("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 60),
			AutoRegisterNamespace:  envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", true),
			NamespaceRetentionDays: envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7),
			WorkerConcurrency:      envutil.Int("TEMPORAL_WORKER_CONCURRENCY", 2),
			CronSchedule:           envutil.String("ETL_CRON", ""),
			RetryMaxAttempts:       envutil.Int("ETL_RETRY_MAX_ATTEMPTS", 3),
			RetryDelay:             envutil.Seconds("ETL_RETRY_DELAY_SECONDS", 60),
		}.WithDefaults(),
		HTTPAddr:    envutil.String("HTTP_ADDR", ":8080"),
		CORSOrigins: splitList(envutil.String("CORS_ORIGINS", "")),
		MetricsAddr: envutil.String("METRICS_ADDR", ""),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "nutrition-etl"),
			Environment: envutil.String("OTEL_ENVIRONMENT", envutil.String("LOG_MODE", "development")),
			Version:     envutil.String("OTEL_SERVICE_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLE_RATIO", 1),
		},
	}
	if cfg.Pipeline.Source.Version == "" {
		cfg.Pipeline.Source.Version = time.Now().UTC().Format("20060102")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if log != nil {
		log.Info("Configuration loaded",
			"db_url", cfg.DBURL,
			"data_dir", cfg.Pipeline.DataDir,
			"mappings_path", cfg.Pipeline.MappingsPath,
			"fail_fast", cfg.Pipeline.FailFast,
			"batch_size", cfg.Pipeline.BatchSize,
			"record_limit", cfg.Pipeline.RecordLimit,
			"report_store", cfg.ReportStore,
			"load_lock", cfg.LockRedisAddr != "",
			"temporal", cfg.Temporal.Enabled(),
		)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.ReportStore {
	case ReportStoreFile, ReportStoreDB:
	case ReportStoreGCS:
		if strings.TrimSpace(c.ReportGCSBucket) == "" {
			return etlerr.Configf("REPORT_STORE=gcs requires REPORT_GCS_BUCKET")
		}
	default:
		return etlerr.Configf("unsupported REPORT_STORE %q", c.ReportStore)
	}
	if c.Pipeline.BatchSize <= 0 {
		return etlerr.Configf("BATCH_SIZE must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.RecordLimit < 0 {
		return etlerr.Configf("RECORD_LIMIT must not be negative, got %d", c.Pipeline.RecordLimit)
	}
	if strings.TrimSpace(c.Pipeline.Source.Name) == "" {
		return etlerr.Configf("SOURCE_NAME must not be empty")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
