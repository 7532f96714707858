// Package metrics implements the gold-layer aggregators: a family of
// independent, stateless transformations from the fact table to named metric
// tables. Each aggregator is pure and safe to run in parallel with the
// others; they share only read-only input.
package metrics

import (
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"

	"github.com/quarrydata/quarry/internal/table"
	"github.com/quarrydata/quarry/internal/warehouse"
)

// Output categories, matching the sink's directory layout.
const (
	CategoryDimension = "dimensions"
	CategoryFact      = "facts"
	CategoryKPI       = "kpis"
	CategoryAnalytics = "analytics"
	CategoryML        = "ml"
)

// Input is the read-only input shared by every aggregator. Reference is the
// injected "now" used by all recency-dependent metrics; it must be pinned for
// reproducible runs.
type Input struct {
	Facts     []warehouse.FactRow
	Customers []warehouse.Customer
	Reference time.Time
}

// Output is one named metric table.
type Output struct {
	Name     string
	Category string
	Table    *table.Table
}

// Aggregator is one stateless metric family.
type Aggregator interface {
	Name() string
	Tables(Input) []Output
}

// Registry returns all aggregators in the fixed catalog.
func Registry() []Aggregator {
	return []Aggregator{
		Temporal{},
		Geographic{},
		RFM{},
		CLV{},
		Retention{},
		Products{},
		Cohorts{},
		Seasonality{},
		Distributions{},
		Concentration{},
		GlobalKPIs{},
		Growth{},
	}
}

// keyHash hashes a composite group-by key. Grouping on the hash avoids
// building throwaway concatenated strings per row.
func keyHash(parts ...string) uint64 {
	var d xxhash.Digest
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0x1f})
	}
	return d.Sum64()
}

// revenueAcc accumulates the standard rollup measures for one group.
type revenueAcc struct {
	total     float64
	min       float64
	max       float64
	count     int
	customers map[int64]struct{}
	products  map[string]struct{}
	firstDate time.Time
	lastDate  time.Time
}

func newRevenueAcc() *revenueAcc {
	return &revenueAcc{
		customers: make(map[int64]struct{}),
		products:  make(map[string]struct{}),
	}
}

func (a *revenueAcc) add(f warehouse.FactRow) {
	if a.count == 0 {
		a.min, a.max = f.Amount, f.Amount
		a.firstDate, a.lastDate = f.At, f.At
	}
	if f.Amount < a.min {
		a.min = f.Amount
	}
	if f.Amount > a.max {
		a.max = f.Amount
	}
	if f.At.Before(a.firstDate) {
		a.firstDate = f.At
	}
	if f.At.After(a.lastDate) {
		a.lastDate = f.At
	}
	a.total += f.Amount
	a.count++
	a.customers[f.CustomerID] = struct{}{}
	a.products[f.Product] = struct{}{}
}

func (a *revenueAcc) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.total / float64(a.count)
}

// groupFacts groups fact rows by a string key, returning the sorted keys and
// the accumulator per key.
func groupFacts(facts []warehouse.FactRow, key func(warehouse.FactRow) string) ([]string, map[string]*revenueAcc) {
	groups := make(map[string]*revenueAcc)
	for _, f := range facts {
		k := key(f)
		acc, ok := groups[k]
		if !ok {
			acc = newRevenueAcc()
			groups[k] = acc
		}
		acc.add(f)
	}
	keys := lo.Keys(groups)
	sort.Strings(keys)
	return keys, groups
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func int64Key(id int64) string {
	return strconv.FormatInt(id, 10)
}
