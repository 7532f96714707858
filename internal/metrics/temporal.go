package metrics

import (
	"time"

	"github.com/quarrydata/quarry/internal/table"
	"github.com/quarrydata/quarry/internal/warehouse"
)

// Temporal produces the daily, weekly, monthly and hourly revenue rollups.
// The monthly rollup carries month-over-month growth, which requires the rows
// to be sorted by month key before the delta is computed.
type Temporal struct{}

func (Temporal) Name() string { return "temporal" }

func (Temporal) Tables(in Input) []Output {
	return []Output{
		{Name: "fact_revenue_daily", Category: CategoryFact, Table: dailyRollup(in.Facts)},
		{Name: "fact_revenue_weekly", Category: CategoryFact, Table: weeklyRollup(in.Facts)},
		{Name: "fact_revenue_monthly", Category: CategoryFact, Table: monthlyRollup(in.Facts)},
		{Name: "fact_revenue_hourly", Category: CategoryFact, Table: hourlyRollup(in.Facts)},
	}
}

func dailyRollup(facts []warehouse.FactRow) *table.Table {
	keys, groups := groupFacts(facts, func(f warehouse.FactRow) string {
		return f.At.Format("2006-01-02")
	})
	n := len(keys)
	dates := make([]time.Time, n)
	totals := make([]float64, n)
	means := make([]float64, n)
	mins := make([]float64, n)
	maxs := make([]float64, n)
	counts := make([]int64, n)
	customers := make([]int64, n)
	products := make([]int64, n)
	for i, k := range keys {
		a := groups[k]
		day, _ := time.Parse("2006-01-02", k)
		dates[i] = day
		totals[i] = a.total
		means[i] = a.mean()
		mins[i] = a.min
		maxs[i] = a.max
		counts[i] = int64(a.count)
		customers[i] = int64(len(a.customers))
		products[i] = int64(len(a.products))
	}
	return table.New(
		table.NewTimeColumn("date", dates, nil),
		table.NewFloat64Column("revenue_total", totals, nil),
		table.NewFloat64Column("revenue_mean", means, nil),
		table.NewFloat64Column("revenue_min", mins, nil),
		table.NewFloat64Column("revenue_max", maxs, nil),
		table.NewInt64Column("purchase_count", counts, nil),
		table.NewInt64Column("distinct_customers", customers, nil),
		table.NewInt64Column("distinct_products", products, nil),
		table.NewFloat64Column("basket_mean", means, nil),
	)
}

func weeklyRollup(facts []warehouse.FactRow) *table.Table {
	keys, groups := groupFacts(facts, func(f warehouse.FactRow) string { return f.WeekKey })
	n := len(keys)
	totals := make([]float64, n)
	means := make([]float64, n)
	counts := make([]int64, n)
	customers := make([]int64, n)
	products := make([]int64, n)
	starts := make([]time.Time, n)
	ends := make([]time.Time, n)
	for i, k := range keys {
		a := groups[k]
		totals[i] = a.total
		means[i] = a.mean()
		counts[i] = int64(a.count)
		customers[i] = int64(len(a.customers))
		products[i] = int64(len(a.products))
		starts[i] = a.firstDate
		ends[i] = a.lastDate
	}
	return table.New(
		table.NewStringColumn("week_key", keys, nil),
		table.NewFloat64Column("revenue_total", totals, nil),
		table.NewFloat64Column("revenue_mean", means, nil),
		table.NewInt64Column("purchase_count", counts, nil),
		table.NewInt64Column("distinct_customers", customers, nil),
		table.NewInt64Column("distinct_products", products, nil),
		table.NewTimeColumn("first_purchase", starts, nil),
		table.NewTimeColumn("last_purchase", ends, nil),
	)
}

func monthlyRollup(facts []warehouse.FactRow) *table.Table {
	keys, groups := groupFacts(facts, func(f warehouse.FactRow) string { return f.MonthKey })
	n := len(keys)
	totals := make([]float64, n)
	means := make([]float64, n)
	counts := make([]int64, n)
	customers := make([]int64, n)
	products := make([]int64, n)
	starts := make([]time.Time, n)
	ends := make([]time.Time, n)
	growth := make([]float64, n)
	for i, k := range keys {
		a := groups[k]
		totals[i] = a.total
		means[i] = a.mean()
		counts[i] = int64(a.count)
		customers[i] = int64(len(a.customers))
		products[i] = int64(len(a.products))
		starts[i] = a.firstDate
		ends[i] = a.lastDate
	}
	// Keys are sorted chronologically ("2006-01" sorts lexically), so the
	// previous row is the previous month with data. First period is 0.
	for i := 1; i < n; i++ {
		if totals[i-1] != 0 {
			growth[i] = (totals[i] - totals[i-1]) / totals[i-1] * 100
		}
	}
	return table.New(
		table.NewStringColumn("month_key", keys, nil),
		table.NewFloat64Column("revenue_total", totals, nil),
		table.NewFloat64Column("revenue_mean", means, nil),
		table.NewInt64Column("purchase_count", counts, nil),
		table.NewInt64Column("distinct_customers", customers, nil),
		table.NewInt64Column("distinct_products", products, nil),
		table.NewTimeColumn("first_purchase", starts, nil),
		table.NewTimeColumn("last_purchase", ends, nil),
		table.NewFloat64Column("growth_mom_pct", growth, nil),
	)
}

func hourlyRollup(facts []warehouse.FactRow) *table.Table {
	groups := make(map[int]*revenueAcc)
	for _, f := range facts {
		a, ok := groups[f.Hour]
		if !ok {
			a = newRevenueAcc()
			groups[f.Hour] = a
		}
		a.add(f)
	}
	var hours []int64
	var totals, means []float64
	var counts, customers []int64
	for h := range 24 {
		a, ok := groups[h]
		if !ok {
			continue
		}
		hours = append(hours, int64(h))
		totals = append(totals, a.total)
		means = append(means, a.mean())
		counts = append(counts, int64(a.count))
		customers = append(customers, int64(len(a.customers)))
	}
	return table.New(
		table.NewInt64Column("hour", hours, nil),
		table.NewFloat64Column("revenue_total", totals, nil),
		table.NewFloat64Column("revenue_mean", means, nil),
		table.NewInt64Column("purchase_count", counts, nil),
		table.NewInt64Column("distinct_customers", customers, nil),
	)
}
