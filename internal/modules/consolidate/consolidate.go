package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/modules/extract"
	"github.com/yungbote/nutrition-etl/internal/modules/harmonize"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/pkg/jsonl"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

const pageGlob = "off_p*.json"

// macroColumns are copied from nutriments as grams per 100g.
var macroColumns = []string{
	"fat_100g",
	"saturated-fat_100g",
	"carbohydrates_100g",
	"sugars_100g",
	"fiber_100g",
	"proteins_100g",
	"salt_100g",
	"sodium_100g",
}

type Result struct {
	Path         string `json:"path"`
	Pages        int    `json:"pages"`
	SkippedPages int    `json:"skipped_pages"`
	Records      int    `json:"records"`
	// WithoutCode counts products dropped for a missing code.
	WithoutCode int `json:"without_code"`
}

type Consolidator struct {
	log *logger.Logger
}

func NewConsolidator(baseLog *logger.Logger) *Consolidator {
	return &Consolidator{log: baseLog.With("service", "Consolidator")}
}

// LatestSourceDir returns <dataDir>/raw/<latest day>/openfoodfacts.
func LatestSourceDir(dataDir string) (string, error) {
	root := filepath.Join(dataDir, "raw")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no raw directory under %s", etlerr.ErrNotFound, root)
		}
		return "", err
	}
	var days []string
	for _, e := range entries {
		if e.IsDir() {
			days = append(days, e.Name())
		}
	}
	if len(days) == 0 {
		return "", fmt.Errorf("%w: no dated directory under %s", etlerr.ErrNotFound, root)
	}
	sort.Strings(days)
	dir := filepath.Join(root, days[len(days)-1], extract.SourceDirName)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%w: %s", etlerr.ErrNotFound, dir)
	}
	return dir, nil
}

// Run flattens every page file of srcDir into outPath. Malformed pages are skipped and counted.
func (c *Consolidator) Run(ctx context.Context, srcDir, outPath string) (Result, error) {
	res := Result{Path: outPath}
	pages, err := filepath.Glob(filepath.Join(srcDir, pageGlob))
	if err != nil {
		return res, err
	}
	sort.Strings(pages)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return res, err
	}
	tmp := outPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return res, err
	}
	defer os.Remove(tmp)

	w := jsonl.NewWriter(f)
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			f.Close()
			return res, err
		}
		products, err := readPage(page)
		if err != nil {
			res.SkippedPages++
			c.log.Warn("Skipping malformed page", "page", filepath.Base(page), "error", err)
			continue
		}
		res.Pages++
		for _, p := range products {
			rec, ok := Flatten(p)
			if !ok {
				res.WithoutCode++
				continue
			}
			if err := w.Write(harmonize.EncodeFlattened(rec)); err != nil {
				f.Close()
				return res, err
			}
			res.Records++
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return res, err
	}
	if err := f.Close(); err != nil {
		return res, err
	}
	if err := os.Rename(tmp, outPath); err != nil {
		return res, err
	}
	c.log.Info("Consolidation finished",
		"records", res.Records,
		"pages", res.Pages,
		"skipped_pages", res.SkippedPages,
		"without_code", res.WithoutCode,
		"path", outPath,
	)
	return res, nil
}

func readPage(path string) ([]map[string]any, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var products []map[string]any
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Flatten maps one raw catalog product. Energy prefers kcal over kJ; macros are tagged g.
func Flatten(p map[string]any) (nutrition.FlattenedRecord, bool) {
	var rec nutrition.FlattenedRecord
	rec.Product = nutrition.ProductAttributes{
		Code:            stringField(p[nutrition.KeyCode]),
		Name:            stringField(p[nutrition.KeyProductName]),
		Brand:           stringField(p[nutrition.KeyBrands]),
		Category:        stringField(p[nutrition.KeyCategories]),
		NutriscoreGrade: stringField(p[nutrition.KeyNutriscoreGrade]),
		IngredientsText: stringField(p[nutrition.KeyIngredientsText]),
	}
	if rec.Product.Code == "" {
		return rec, false
	}

	nutr, _ := p["nutriments"].(map[string]any)
	if kcal, ok := number(nutr["energy-kcal_100g"]); ok {
		rec.Measurements = append(rec.Measurements, nutrition.Measurement{Name: "energy_100g", Value: kcal, Unit: "kcal"})
	} else if kj, ok := number(nutr["energy-kj_100g"]); ok {
		rec.Measurements = append(rec.Measurements, nutrition.Measurement{Name: "energy_100g", Value: kj, Unit: "kJ"})
	}
	for _, col := range macroColumns {
		if v, ok := number(nutr[col]); ok {
			rec.Measurements = append(rec.Measurements, nutrition.Measurement{Name: col, Value: v, Unit: "g"})
		}
	}
	return rec, true
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func number(v any) (*float64, bool) {
	switch t := v.(type) {
	case float64:
		return &t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, false
		}
		return &f, true
	default:
		return nil, false
	}
}
