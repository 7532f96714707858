package clean

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/quarrydata/quarry/internal/table"
)

// sortedKeys keeps rule evaluation order deterministic across runs.
func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// Rules declares the quality thresholds evaluated against a cleaned dataset.
// Thresholds are fractions in [0, 1].
type Rules struct {
	Completeness map[string]float64      `yaml:"completeness"`
	Uniqueness   map[string]float64      `yaml:"uniqueness"`
	Validity     map[string]ValidityRule `yaml:"validity"`
}

// ValidityRule is a per-column validity constraint. Exactly one of NotFuture
// or the Min/Max range is expected to be set.
type ValidityRule struct {
	NotFuture bool     `yaml:"not_future"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
}

// Check is one evaluated quality check. Checks are advisory: a failing check
// never blocks the pipeline.
type Check struct {
	Name      string
	Value     float64 // observed percentage
	Threshold float64 // required percentage
	Pass      bool
	Details   string
}

// DropCounts records rows removed during a cleaning pass, by cause.
type DropCounts struct {
	Duplicates  int
	FutureDates int
	Missing     int
	OutOfBounds int
	Invalid     int
	InvalidRefs int
}

func (d DropCounts) total() int {
	return d.Duplicates + d.FutureDates + d.Missing + d.OutOfBounds + d.Invalid + d.InvalidRefs
}

// Report summarizes one cleaning pass over one dataset.
type Report struct {
	Dataset string
	RowsIn  int
	RowsOut int
	Dropped DropCounts
	Checks  []Check
}

// Pass reports whether every evaluated check passed.
func (r Report) Pass() bool {
	for _, c := range r.Checks {
		if !c.Pass {
			return false
		}
	}
	return true
}

// evaluate runs the quality rules against a cleaned table. Rules that
// reference unknown columns are skipped.
func evaluate(t *table.Table, rules Rules, reference time.Time) []Check {
	var checks []Check
	n := t.Len()
	pct := func(passing int) float64 {
		if n == 0 {
			return 100
		}
		return float64(passing) / float64(n) * 100
	}

	for _, col := range sortedKeys(rules.Completeness) {
		threshold := rules.Completeness[col]
		c, ok := t.Column(col)
		if !ok {
			continue
		}
		value := pct(n - c.NullCount())
		checks = append(checks, Check{
			Name:      col + "_completeness",
			Value:     value,
			Threshold: threshold * 100,
			Pass:      value >= threshold*100,
		})
	}

	for _, col := range sortedKeys(rules.Uniqueness) {
		threshold := rules.Uniqueness[col]
		c, ok := t.Column(col)
		if !ok {
			continue
		}
		distinct := distinctCount(c)
		value := pct(distinct)
		checks = append(checks, Check{
			Name:      col + "_uniqueness",
			Value:     value,
			Threshold: threshold * 100,
			Pass:      value >= threshold*100,
		})
	}

	for _, col := range sortedKeys(rules.Validity) {
		rule := rules.Validity[col]
		c, ok := t.Column(col)
		if !ok {
			continue
		}
		switch {
		case rule.NotFuture:
			future := 0
			values, valid := c.Times()
			for i, ts := range values {
				if valid[i] && ts.After(reference) {
					future++
				}
			}
			value := pct(n - future)
			checks = append(checks, Check{
				Name:      col + "_validity",
				Value:     value,
				Threshold: 100,
				Pass:      future == 0,
				Details:   fmt.Sprintf("%d future dates", future),
			})
		case rule.Min != nil && rule.Max != nil:
			invalid := 0
			values, valid := c.Float64s()
			for i, v := range values {
				if valid[i] && (v < *rule.Min || v > *rule.Max) {
					invalid++
				}
			}
			value := pct(n - invalid)
			checks = append(checks, Check{
				Name:      col + "_validity",
				Value:     value,
				Threshold: 100,
				Pass:      invalid == 0,
				Details:   fmt.Sprintf("%d values outside [%g, %g]", invalid, *rule.Min, *rule.Max),
			})
		}
	}
	return checks
}

func distinctCount(c *table.Column) int {
	seen := make(map[any]struct{})
	for i := range c.Len() {
		if v := c.Value(i); v != nil {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// CustomerRules returns the quality thresholds for the customers dataset.
func CustomerRules() *Rules {
	return &Rules{
		Completeness: map[string]float64{"name": 0.95, "email": 0.95, "country": 0.90},
		Uniqueness:   map[string]float64{"customer_id": 1.0, "email": 0.99},
		Validity:     map[string]ValidityRule{"signup_date": {NotFuture: true}},
	}
}

// PurchaseRules returns the quality thresholds for the purchases dataset.
func PurchaseRules() *Rules {
	minAmount, maxAmount := 0.0, 10000.0
	return &Rules{
		Completeness: map[string]float64{"amount": 1.0, "purchase_date": 1.0},
		Validity: map[string]ValidityRule{
			"amount":        {Min: &minAmount, Max: &maxAmount},
			"purchase_date": {NotFuture: true},
		},
	}
}
