package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

type Service struct {
	db      *gorm.DB
	log     *logger.Logger
	dialect string
}

// Open connects to the dimensional store. postgres:// and postgresql:// URLs use the
// pgx driver; sqlite://<path>, file: URIs and :memory: use sqlite.
func Open(dsn string, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "StoreService")

	dialect, target, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var gdb *gorm.DB
	switch dialect {
	case DialectSQLite:
		gdb, err = gorm.Open(sqlite.Open(target), cfg)
	default:
		pgCfg, perr := pgx.ParseConfig(target)
		if perr != nil {
			return nil, etlerr.Config("parse database url", perr)
		}
		gdb, err = gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDB(*pgCfg)}), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// One connection: in-memory databases are per-connection and sqlite has a single writer anyway.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	serviceLog.Info("Connected to dimensional store", "dialect", dialect, "db_url", dsn)
	return &Service{db: gdb, log: serviceLog, dialect: dialect}, nil
}

// ParseDSN returns the dialect and the driver-specific connection string.
func ParseDSN(dsn string) (string, string, error) {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)
	switch {
	case dsn == "":
		return "", "", fmt.Errorf("empty database url")
	case strings.HasPrefix(lower, "sqlite://"):
		path := dsn[len("sqlite://"):]
		if path == "" {
			return "", "", fmt.Errorf("sqlite url without path")
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(lower, "file:"), lower == ":memory:":
		return DialectSQLite, dsn, nil
	case strings.HasPrefix(lower, "postgresql+"):
		// SQLAlchemy style driver suffix, e.g. postgresql+psycopg://
		if i := strings.Index(dsn, "://"); i > 0 {
			return DialectPostgres, "postgresql" + dsn[i:], nil
		}
		return "", "", fmt.Errorf("unsupported database url")
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, dsn, nil
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname="):
		return DialectPostgres, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database url scheme")
	}
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Dialect() string { return s.dialect }

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
