package metrics

import (
	"sort"

	"github.com/quarrydata/quarry/internal/table"
	"github.com/quarrydata/quarry/internal/warehouse"
)

// Geographic rolls revenue up by country, sorted by revenue descending.
// Purchases without a resolvable customer roll up under "UNKNOWN".
type Geographic struct{}

func (Geographic) Name() string { return "geographic" }

func (Geographic) Tables(in Input) []Output {
	keys, groups := groupFacts(in.Facts, func(f warehouse.FactRow) string {
		if !f.HasCustomer || f.Country == "" {
			return "UNKNOWN"
		}
		return f.Country
	})
	grandTotal := 0.0
	for _, a := range groups {
		grandTotal += a.total
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return groups[keys[i]].total > groups[keys[j]].total
	})

	n := len(keys)
	totals := make([]float64, n)
	means := make([]float64, n)
	mins := make([]float64, n)
	maxs := make([]float64, n)
	counts := make([]int64, n)
	customers := make([]int64, n)
	products := make([]int64, n)
	perCustomer := make([]float64, n)
	share := make([]float64, n)
	for i, k := range keys {
		a := groups[k]
		totals[i] = a.total
		means[i] = a.mean()
		mins[i] = a.min
		maxs[i] = a.max
		counts[i] = int64(a.count)
		customers[i] = int64(len(a.customers))
		products[i] = int64(len(a.products))
		if len(a.customers) > 0 {
			perCustomer[i] = a.total / float64(len(a.customers))
		}
		if grandTotal > 0 {
			share[i] = a.total / grandTotal * 100
		}
	}
	t := table.New(
		table.NewStringColumn("country", keys, nil),
		table.NewFloat64Column("revenue_total", totals, nil),
		table.NewFloat64Column("revenue_mean", means, nil),
		table.NewFloat64Column("revenue_min", mins, nil),
		table.NewFloat64Column("revenue_max", maxs, nil),
		table.NewInt64Column("purchase_count", counts, nil),
		table.NewInt64Column("distinct_customers", customers, nil),
		table.NewInt64Column("distinct_products", products, nil),
		table.NewFloat64Column("revenue_per_customer", perCustomer, nil),
		table.NewFloat64Column("revenue_share_pct", share, nil),
	)
	return []Output{{Name: "fact_revenue_country", Category: CategoryFact, Table: t}}
}
