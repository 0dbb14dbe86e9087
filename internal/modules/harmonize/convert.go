package harmonize

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

type ruleKey struct {
	from string
	to   string
}

func (k ruleKey) String() string { return k.from + "->" + k.to }

var decimalCtx = apd.BaseContext.WithPrecision(34)

// scale multiplies v by factor in decimal arithmetic and rounds back to float64.
func scale(v float64, factor *apd.Decimal) (float64, error) {
	var x apd.Decimal
	if _, err := x.SetFloat64(v); err != nil {
		return v, fmt.Errorf("value %v: %w", v, err)
	}
	var out apd.Decimal
	if _, err := decimalCtx.Mul(&out, &x, factor); err != nil {
		return v, fmt.Errorf("multiply %v by %s: %w", v, factor.String(), err)
	}
	f, err := out.Float64()
	if err != nil {
		return v, fmt.Errorf("convert %s: %w", out.String(), err)
	}
	return f, nil
}
