package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Deviation compares one asset class's actual weight to its target, in
// absolute and relative terms. Abs keeps its sign: positive is overweight.
type Deviation struct {
	AssetClass string
	Actual     decimal.Decimal
	Target     decimal.Decimal
	Abs        decimal.Decimal // actual - target
	Rel        decimal.Decimal // (actual - target) / target
}

// Overweight reports whether the class holds more than its target.
func (d Deviation) Overweight() bool { return d.Abs.IsPositive() }

// Deviations computes per-class deviations for one valuation track. Every
// class in the target policy appears, holdings or not: a class with zero
// holdings is maximally underweight, which is exactly what the rebalance
// rules need to see. Output is sorted by class name for stable reports.
func Deviations(weights map[string]decimal.Decimal, targets map[string]float64) []Deviation {
	out := make([]Deviation, 0, len(targets))
	for class, target := range targets {
		t := decimal.NewFromFloat(target)
		actual := weights[class]
		abs := actual.Sub(t)
		rel := decimal.Zero
		if t.IsPositive() {
			rel = abs.Div(t)
		}
		out = append(out, Deviation{
			AssetClass: class,
			Actual:     actual,
			Target:     t,
			Abs:        abs,
			Rel:        rel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetClass < out[j].AssetClass })
	return out
}
