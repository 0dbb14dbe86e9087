package quality

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/nutrition-etl/internal/domain/nutrition"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
)

// DefaultMinCompleteness is the reference minimum ratio for key columns.
const DefaultMinCompleteness = 0.9

type CompletenessCheck struct {
	Column string `yaml:"column"`
	// Min nil records the ratio without judging it.
	Min *float64 `yaml:"min"`
}

type RangeCheck struct {
	Nutrient string  `yaml:"nutrient"`
	Low      float64 `yaml:"low"`
	High     float64 `yaml:"high"`
}

type Config struct {
	Completeness []CompletenessCheck `yaml:"completeness"`
	Ranges       []RangeCheck        `yaml:"ranges"`
	FailFast     bool                `yaml:"-"`
}

func DefaultConfig() Config {
	key := func(col string) CompletenessCheck {
		m := DefaultMinCompleteness
		return CompletenessCheck{Column: col, Min: &m}
	}
	macro := func(name string) RangeCheck { return RangeCheck{Nutrient: name, Low: 0, High: 100} }
	return Config{
		Completeness: []CompletenessCheck{
			key("code"),
			key("product_name"),
			key("energy_100g"),
		},
		Ranges: []RangeCheck{
			{Nutrient: "energy_100g", Low: 0, High: 900},
			macro("fat_100g"),
			macro("saturated_fat_100g"),
			macro("carbohydrates_100g"),
			macro("sugars_100g"),
			macro("fiber_100g"),
			macro("proteins_100g"),
			macro("salt_100g"),
			{Nutrient: "sodium_100g", Low: 0, High: 40},
		},
	}
}

// Columns returns every column referenced by a check, in check order.
func (c Config) Columns() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(c.Completeness)+len(c.Ranges))
	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	for _, cc := range c.Completeness {
		add(cc.Column)
	}
	for _, rc := range c.Ranges {
		add(rc.Nutrient)
	}
	return out
}

func (c Config) Validate() error {
	for i, cc := range c.Completeness {
		if strings.TrimSpace(cc.Column) == "" {
			return etlerr.ValidationConfigf("completeness[%d]: column is required", i)
		}
		if cc.Min != nil && (*cc.Min < 0 || *cc.Min > 1) {
			return etlerr.ValidationConfigf("completeness[%d]: min %v outside [0, 1]", i, *cc.Min)
		}
	}
	for i, rc := range c.Ranges {
		if strings.TrimSpace(rc.Nutrient) == "" {
			return etlerr.ValidationConfigf("ranges[%d]: nutrient is required", i)
		}
		if rc.Low > rc.High {
			return etlerr.ValidationConfigf("ranges[%d]: low %v above high %v", i, rc.Low, rc.High)
		}
	}
	return nil
}

type document struct {
	Quality *Config `yaml:"quality"`
}

// DefaultConfigFor is DefaultConfig without the nutrient checks that name
// nutrients outside knownNutrients. Product attribute checks are kept.
func DefaultConfigFor(knownNutrients []string) Config {
	known := map[string]bool{}
	for _, k := range nutrition.AttributeKeys {
		known[k] = true
	}
	for _, n := range knownNutrients {
		known[n] = true
	}
	def := DefaultConfig()
	cfg := Config{}
	for _, cc := range def.Completeness {
		if known[cc.Column] {
			cfg.Completeness = append(cfg.Completeness, cc)
		}
	}
	for _, rc := range def.Ranges {
		if known[rc.Nutrient] {
			cfg.Ranges = append(cfg.Ranges, rc)
		}
	}
	return cfg
}

// ParseConfig reads the optional "quality" section of the conversion document.
// Without one, DefaultConfigFor(knownNutrients) applies.
func ParseConfig(data []byte, knownNutrients []string) (Config, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, etlerr.ValidationConfig("decode quality section", err)
	}
	if doc.Quality == nil {
		return DefaultConfigFor(knownNutrients), nil
	}
	cfg := *doc.Quality
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
