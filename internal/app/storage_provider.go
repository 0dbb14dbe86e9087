package app

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/nutrition-etl/internal/data/repos"
	"github.com/yungbote/nutrition-etl/internal/modules/quality"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/gcp"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

var newBucketService = gcp.NewBucketService

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket       StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "report storage bootstrap failed"
	}
	return fmt.Sprintf(
		"report storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Every code except connect_failed is a settings problem that retrying cannot fix.
func (e *StorageProviderBootstrapError) configProblem() bool {
	return e != nil && e.Code != StorageProviderBootstrapErrorConnectFailed
}

// resolveReportStore picks where quality reports are persisted. The returned
// closer releases the bucket client and is never nil.
func resolveReportStore(ctx context.Context, log *logger.Logger, cfg Config, db *gorm.DB) (quality.ReportStore, func(), error) {
	noop := func() {}
	switch cfg.ReportStore {
	case ReportStoreFile, "":
		log.Info("Selecting report store", "store", ReportStoreFile, "dir", cfg.ReportDir)
		return quality.NewFileStore(cfg.ReportDir), noop, nil
	case ReportStoreDB:
		log.Info("Selecting report store", "store", ReportStoreDB)
		return quality.NewDBStore(repos.NewQualityReportRepo(db, log)), noop, nil
	case ReportStoreGCS:
		bucket, err := resolveBucketService(ctx, log, cfg)
		if err != nil {
			var bootstrapErr *StorageProviderBootstrapError
			if errors.As(err, &bootstrapErr) && bootstrapErr.configProblem() {
				return nil, noop, etlerr.Config("report store", err)
			}
			return nil, noop, err
		}
		return quality.NewGCSStore(bucket, cfg.ReportGCSPrefix), func() { _ = bucket.Close() }, nil
	default:
		return nil, noop, etlerr.Configf("unsupported REPORT_STORE %q", cfg.ReportStore)
	}
}

func resolveBucketService(ctx context.Context, log *logger.Logger, cfg Config) (gcp.BucketService, error) {
	storageCfg, err := gcp.ResolveObjectStorageConfig(cfg.ReportGCSMode, cfg.EmulatorHost, cfg.ReportGCSBucket, cfg.GCPCredentials)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		log.Error(
			"Report storage provider selection failed",
			"mode", storageCfg.Mode,
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}

	log.Info(
		"Selecting report storage provider",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"compatibility_fallback", storageCfg.CompatibilityFallback,
		"emulator_host", storageCfg.EmulatorHost,
		"bucket", storageCfg.Bucket,
	)

	bucket, err := newBucketService(ctx, log, storageCfg)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		log.Error(
			"Report storage provider bootstrap failed",
			"mode", storageCfg.Mode,
			"mode_source", storageCfg.ModeSource(),
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return bucket, nil
}

func classifyStorageProviderBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) error {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			code = StorageProviderBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingBucket:
			code = StorageProviderBootstrapErrorMissingBucket
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
