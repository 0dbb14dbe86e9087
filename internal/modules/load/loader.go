package load

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	storedb "github.com/yungbote/nutrition-etl/internal/data/db"
	"github.com/yungbote/nutrition-etl/internal/data/repos"
	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/dbctx"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

const lockKey = "nutrition-etl:load"

// Locker grants the exclusive writer lease around a load transaction.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

type Options struct {
	// BatchSize bounds rows per insert statement. The transaction still spans the
	// whole batch.
	BatchSize int
	// Source, when set, is upserted by name and attributed to every product.
	Source *nutrition.SourceDimension
}

type Result struct {
	Products          int   `json:"products"`
	NutrientsInserted int64 `json:"nutrients_inserted"`
	Triples           int   `json:"triples"`
	Facts             int   `json:"facts"`
	DroppedFacts      int   `json:"dropped_facts"`
	SourceID          int64 `json:"source_id,omitempty"`
}

type Loader struct {
	db     *gorm.DB
	repos  *repos.Set
	locker Locker
	log    *logger.Logger
}

func NewLoader(db *gorm.DB, baseLog *logger.Logger) *Loader {
	return &Loader{
		db:    db,
		repos: repos.NewSet(db, baseLog),
		log:   baseLog.With("service", "StarSchemaLoader"),
	}
}

// WithLocker makes Load hold an exclusive lease for the duration of its transaction.
func (l *Loader) WithLocker(locker Locker) *Loader {
	l.locker = locker
	return l
}

// Load writes batch into the dimensional store in a single transaction. Loading the
// same batch twice leaves the store unchanged.
func (l *Loader) Load(ctx context.Context, batch []nutrition.HarmonizedRecord, opts Options) (Result, error) {
	var res Result
	if err := storedb.VerifySchema(l.db.WithContext(ctx)); err != nil {
		return res, err
	}

	products := productRows(batch, nil)
	triples := Pivot(batch)
	res.Triples = len(triples)
	if len(products) == 0 {
		l.log.Info("Empty batch; nothing to load")
		return res, nil
	}

	if l.locker != nil {
		lease, err := l.locker.Obtain(ctx, lockKey)
		if err != nil {
			return res, etlerr.Store("obtain writer lease", err)
		}
		defer func() {
			if err := lease.Release(context.Background()); err != nil {
				l.log.Warn("Failed to release writer lease", "error", err)
			}
		}()
	}

	start := time.Now()
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		if opts.Source != nil {
			src, err := l.repos.Sources.Ensure(dbc, *opts.Source)
			if err != nil {
				return fmt.Errorf("ensure source: %w", err)
			}
			res.SourceID = src.SourceID
			for _, p := range products {
				p.SourceID = &src.SourceID
			}
		}

		if err := l.repos.Products.UpsertByCode(dbc, products, opts.BatchSize); err != nil {
			return fmt.Errorf("upsert products: %w", err)
		}
		res.Products = len(products)

		names := NutrientNames(triples)
		inserted, err := l.repos.Nutrients.InsertMissing(dbc, names, nutrition.DefaultNutrientUnit)
		if err != nil {
			return fmt.Errorf("insert nutrients: %w", err)
		}
		res.NutrientsInserted = inserted
		ids, err := l.repos.Nutrients.NameIndex(dbc, names)
		if err != nil {
			return fmt.Errorf("resolve nutrients: %w", err)
		}

		facts, dropped := factRows(triples, ids)
		res.DroppedFacts = dropped
		if err := l.repos.Facts.Upsert(dbc, facts, opts.BatchSize); err != nil {
			return fmt.Errorf("upsert facts: %w", err)
		}
		res.Facts = len(facts)

		return ctx.Err()
	})
	if err != nil {
		l.log.Error("Load rolled back", "error", err, "products", len(products), "triples", len(triples))
		return Result{Triples: len(triples)}, etlerr.Store("load batch", err)
	}
	if res.DroppedFacts > 0 {
		l.log.Warn("Dropped facts with unresolved nutrient ids", "dropped", res.DroppedFacts)
	}
	l.log.Info("Batch loaded",
		"products", res.Products,
		"nutrients_inserted", res.NutrientsInserted,
		"facts", res.Facts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
