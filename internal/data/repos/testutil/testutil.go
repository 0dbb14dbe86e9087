package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	storedb "github.com/yungbote/nutrition-etl/internal/data/db"
	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a freshly bootstrapped store private to tb. TEST_POSTGRES_DSN switches the
// backing store to postgres; otherwise a sqlite file under tb.TempDir is used.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	svc := Open(tb)
	if err := storedb.Bootstrap(svc.DB()); err != nil {
		tb.Fatalf("bootstrap test db: %v", err)
	}
	if svc.Dialect() == storedb.DialectPostgres {
		truncate(tb, svc.DB())
	}
	return svc.DB()
}

// truncate empties a shared postgres store so every test starts from zero rows.
func truncate(tb testing.TB, db *gorm.DB) {
	tb.Helper()
	stmt := "TRUNCATE " + strings.Join([]string{
		nutrition.TableFact,
		nutrition.TableProduct,
		nutrition.TableNutrient,
		nutrition.TableSource,
		nutrition.TableQualityReport,
	}, ", ") + " RESTART IDENTITY CASCADE"
	if err := db.Exec(stmt).Error; err != nil {
		tb.Fatalf("truncate test db: %v", err)
	}
}

// Open returns an un-migrated store.
func Open(tb testing.TB) *storedb.Service {
	tb.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		dsn = "sqlite://" + filepath.Join(tb.TempDir(), "etl.db")
	}
	svc, err := storedb.Open(dsn, Logger(tb))
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	tb.Cleanup(func() { _ = svc.Close() })
	return svc
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
