package harmonize

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"gopkg.in/yaml.v3"

	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
)

// ConversionRule is one direct edge: value_in_to = value_in_from * Factor.
type ConversionRule struct {
	From   string
	To     string
	Factor *apd.Decimal
}

func NewRule(from, to, factor string) (ConversionRule, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return ConversionRule{}, etlerr.Configf("conversion rule %q->%q: from and to are required", from, to)
	}
	d, err := parseFactor(factor)
	if err != nil {
		return ConversionRule{}, etlerr.Configf("conversion rule %s->%s: %v", from, to, err)
	}
	return ConversionRule{From: from, To: to, Factor: d}, nil
}

type NutrientTarget struct {
	Nutrient string
	Unit     string
}

// Config is the validated conversion document. Targets are sorted by nutrient name.
type Config struct {
	Rules   []ConversionRule
	Targets []NutrientTarget
}

// TargetNames returns the canonical names of every target nutrient.
func (c *Config) TargetNames() []string {
	out := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		out = append(out, t.Nutrient)
	}
	return out
}

type rawRule struct {
	From   string    `yaml:"from"`
	To     string    `yaml:"to"`
	Factor yaml.Node `yaml:"factor"`
}

type rawDocument struct {
	UnitConversions []rawRule         `yaml:"unit_conversions"`
	NutrientTargets map[string]string `yaml:"nutrient_targets"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, etlerr.Config("read conversion document", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates the conversion document. Every failure is a
// config error; nothing is defaulted.
func ParseConfig(data []byte) (*Config, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, etlerr.Configf("conversion document is empty")
	}
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, etlerr.Config("decode conversion document", err)
	}
	if doc.UnitConversions == nil {
		return nil, etlerr.Configf("unit_conversions is missing")
	}
	if doc.NutrientTargets == nil {
		return nil, etlerr.Configf("nutrient_targets is missing")
	}

	cfg := &Config{}
	seen := map[ruleKey]*apd.Decimal{}
	for i, rr := range doc.UnitConversions {
		if rr.Factor.Kind == 0 {
			return nil, etlerr.Configf("unit_conversions[%d]: factor is missing", i)
		}
		if rr.Factor.Kind != yaml.ScalarNode {
			return nil, etlerr.Configf("unit_conversions[%d]: factor must be a scalar", i)
		}
		rule, err := NewRule(rr.From, rr.To, rr.Factor.Value)
		if err != nil {
			return nil, fmt.Errorf("unit_conversions[%d]: %w", i, err)
		}
		key := ruleKey{from: rule.From, to: rule.To}
		if prev, ok := seen[key]; ok {
			if prev.Cmp(rule.Factor) != 0 {
				return nil, etlerr.Configf("unit_conversions[%d]: %s->%s declared with factors %s and %s",
					i, rule.From, rule.To, prev.String(), rule.Factor.String())
			}
			continue
		}
		seen[key] = rule.Factor
		cfg.Rules = append(cfg.Rules, rule)
	}

	names := make([]string, 0, len(doc.NutrientTargets))
	for name := range doc.NutrientTargets {
		names = append(names, name)
	}
	sort.Strings(names)
	units := map[string]string{}
	for _, raw := range names {
		name := NormalizeName(raw)
		unit := strings.TrimSpace(doc.NutrientTargets[raw])
		if name == "" {
			return nil, etlerr.Configf("nutrient_targets: empty nutrient name %q", raw)
		}
		if unit == "" {
			return nil, etlerr.Configf("nutrient_targets[%s]: target unit is empty", raw)
		}
		if prev, ok := units[name]; ok {
			if prev != unit {
				return nil, etlerr.Configf("nutrient_targets: %s maps to both %s and %s", name, prev, unit)
			}
			continue
		}
		units[name] = unit
		cfg.Targets = append(cfg.Targets, NutrientTarget{Nutrient: name, Unit: unit})
	}
	sort.Slice(cfg.Targets, func(i, j int) bool { return cfg.Targets[i].Nutrient < cfg.Targets[j].Nutrient })
	return cfg, nil
}

func parseFactor(s string) (*apd.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("factor is empty")
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("factor %q is not numeric", s)
	}
	if d.Form != apd.Finite {
		return nil, fmt.Errorf("factor %q is not finite", s)
	}
	if d.IsZero() || d.Negative {
		return nil, fmt.Errorf("factor %q must be positive", s)
	}
	return d, nil
}
