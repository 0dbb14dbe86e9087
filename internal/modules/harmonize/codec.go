package harmonize

import (
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	"github.com/yungbote/nutrition-etl/internal/pkg/jsonl"
)

// ReadFlattened decodes line-delimited flattened records. Malformed lines and records
// without a code are skipped; the second return value counts them. limit <= 0 reads all.
func ReadFlattened(r io.Reader, limit int) ([]nutrition.FlattenedRecord, int, error) {
	jr := jsonl.NewReader(r)
	var out []nutrition.FlattenedRecord
	for limit <= 0 || len(out) < limit {
		obj, err := jr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, jr.Skipped(), err
		}
		rec, ok := DecodeFlattened(obj)
		if !ok {
			jr.Skip()
			continue
		}
		out = append(out, rec)
	}
	return out, jr.Skipped(), nil
}

// DecodeFlattened maps one JSON object onto a FlattenedRecord. Keys ending in
// "_unit" tag the unit of the measurement they prefix. Measurements are ordered by key.
func DecodeFlattened(obj map[string]any) (nutrition.FlattenedRecord, bool) {
	var rec nutrition.FlattenedRecord
	rec.Product = decodeAttributes(obj)
	if rec.Product.Code == "" {
		return rec, false
	}

	units := map[string]string{}
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if nutrition.IsAttributeKey(k) {
			continue
		}
		if base, ok := strings.CutSuffix(k, nutrition.UnitSuffix); ok && base != "" {
			if s, ok := v.(string); ok {
				units[base] = s
			}
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value, ok := numeric(obj[k])
		if !ok {
			continue
		}
		rec.Measurements = append(rec.Measurements, nutrition.Measurement{
			Name:  k,
			Value: value,
			Unit:  units[k],
		})
	}
	return rec, true
}

// EncodeFlattened is the inverse of DecodeFlattened.
func EncodeFlattened(rec nutrition.FlattenedRecord) map[string]any {
	obj := encodeAttributes(rec.Product)
	for _, m := range rec.Measurements {
		if m.Value == nil {
			obj[m.Name] = nil
		} else {
			obj[m.Name] = *m.Value
		}
		if m.Unit != "" {
			obj[m.Name+nutrition.UnitSuffix] = m.Unit
		}
	}
	return obj
}

func WriteFlattened(w io.Writer, recs []nutrition.FlattenedRecord) error {
	jw := jsonl.NewWriter(w)
	for _, rec := range recs {
		if err := jw.Write(EncodeFlattened(rec)); err != nil {
			return err
		}
	}
	return jw.Flush()
}

// EncodeHarmonized writes attributes and nutrient values; units are implicit.
func EncodeHarmonized(rec nutrition.HarmonizedRecord) map[string]any {
	obj := encodeAttributes(rec.Product)
	for _, n := range rec.Nutrients {
		if n.Value == nil {
			obj[n.Name] = nil
		} else {
			obj[n.Name] = *n.Value
		}
	}
	return obj
}

func WriteHarmonized(w io.Writer, recs []nutrition.HarmonizedRecord) error {
	jw := jsonl.NewWriter(w)
	for _, rec := range recs {
		if err := jw.Write(EncodeHarmonized(rec)); err != nil {
			return err
		}
	}
	return jw.Flush()
}

// ReadHarmonized decodes output of WriteHarmonized. Nutrients are ordered by name.
func ReadHarmonized(r io.Reader, limit int) ([]nutrition.HarmonizedRecord, int, error) {
	jr := jsonl.NewReader(r)
	var out []nutrition.HarmonizedRecord
	for limit <= 0 || len(out) < limit {
		obj, err := jr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, jr.Skipped(), err
		}
		rec := nutrition.HarmonizedRecord{Product: decodeAttributes(obj)}
		if rec.Product.Code == "" {
			jr.Skip()
			continue
		}
		names := make([]string, 0, len(obj))
		for k := range obj {
			if !nutrition.IsAttributeKey(k) {
				names = append(names, k)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			value, ok := numeric(obj[name])
			if !ok {
				continue
			}
			rec.Nutrients = append(rec.Nutrients, nutrition.NutrientValue{Name: name, Value: value})
		}
		out = append(out, rec)
	}
	return out, jr.Skipped(), nil
}

func decodeAttributes(obj map[string]any) nutrition.ProductAttributes {
	return nutrition.ProductAttributes{
		Code:            text(obj[nutrition.KeyCode]),
		Name:            text(obj[nutrition.KeyProductName]),
		Brand:           text(obj[nutrition.KeyBrands]),
		Category:        text(obj[nutrition.KeyCategories]),
		NutriscoreGrade: text(obj[nutrition.KeyNutriscoreGrade]),
		IngredientsText: text(obj[nutrition.KeyIngredientsText]),
	}
}

func encodeAttributes(p nutrition.ProductAttributes) map[string]any {
	obj := make(map[string]any, len(nutrition.AttributeKeys)+8)
	for _, k := range nutrition.AttributeKeys {
		v, _ := p.Get(k)
		if v == "" && k != nutrition.KeyCode {
			obj[k] = nil
			continue
		}
		obj[k] = v
	}
	return obj
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// numeric accepts JSON numbers, numeric strings and null. Anything else is not a
// measurement.
func numeric(v any) (*float64, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case float64:
		return &t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return &f, true
	default:
		return nil, false
	}
}
