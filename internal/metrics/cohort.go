package metrics

import (
	"sort"

	"github.com/quarrydata/quarry/internal/table"
)

// Cohorts groups revenue by signup cohort and cohort age in months. Fact rows
// without a matched customer carry no signup date and are excluded; purchases
// recorded before the signup month stay, with a negative age.
type Cohorts struct{}

func (Cohorts) Name() string { return "cohorts" }

// cohortAge is the whole-month distance from the signup month to the purchase
// month, ignoring the day of month.
func cohortAge(signupYear, signupMonth, year, month int) int {
	return (year-signupYear)*12 + (month - signupMonth)
}

func (Cohorts) Tables(in Input) []Output {
	type cell struct {
		cohort    string
		age       int
		revenue   float64
		orders    int
		customers map[int64]struct{}
	}
	cells := make(map[uint64]*cell)
	cohortSizes := make(map[string]map[int64]struct{})
	for _, f := range in.Facts {
		if !f.HasCustomer || f.SignupAt.IsZero() {
			continue
		}
		cohort := f.SignupAt.Format("2006-01")
		age := cohortAge(f.SignupAt.Year(), int(f.SignupAt.Month()), f.At.Year(), int(f.At.Month()))
		h := keyHash(cohort, f.MonthKey)
		c, ok := cells[h]
		if !ok {
			c = &cell{cohort: cohort, age: age, customers: make(map[int64]struct{})}
			cells[h] = c
		}
		c.revenue += f.Amount
		c.orders++
		c.customers[f.CustomerID] = struct{}{}

		size, ok := cohortSizes[cohort]
		if !ok {
			size = make(map[int64]struct{})
			cohortSizes[cohort] = size
		}
		size[f.CustomerID] = struct{}{}
	}

	ordered := make([]*cell, 0, len(cells))
	for _, c := range cells {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].cohort != ordered[j].cohort {
			return ordered[i].cohort < ordered[j].cohort
		}
		return ordered[i].age < ordered[j].age
	})

	n := len(ordered)
	cohortsCol := make([]string, n)
	ages := make([]int64, n)
	revenues := make([]float64, n)
	orders := make([]int64, n)
	activeCustomers := make([]int64, n)
	retention := make([]float64, n)
	for i, c := range ordered {
		cohortsCol[i] = c.cohort
		ages[i] = int64(c.age)
		revenues[i] = c.revenue
		orders[i] = int64(c.orders)
		activeCustomers[i] = int64(len(c.customers))
		if size := len(cohortSizes[c.cohort]); size > 0 {
			retention[i] = float64(len(c.customers)) / float64(size) * 100
		}
	}
	revenueTable := table.New(
		table.NewStringColumn("cohort_month", cohortsCol, nil),
		table.NewInt64Column("cohort_age_months", ages, nil),
		table.NewFloat64Column("revenue_total", revenues, nil),
		table.NewInt64Column("order_count", orders, nil),
		table.NewInt64Column("active_customers", activeCustomers, nil),
	)
	retentionTable := table.New(
		table.NewStringColumn("cohort_month", cohortsCol, nil),
		table.NewInt64Column("cohort_age_months", ages, nil),
		table.NewInt64Column("active_customers", activeCustomers, nil),
		table.NewFloat64Column("retention_pct", retention, nil),
	)

	// One row per cohort: size and lifetime value.
	cohortKeys := make([]string, 0, len(cohortSizes))
	for k := range cohortSizes {
		cohortKeys = append(cohortKeys, k)
	}
	sort.Strings(cohortKeys)
	totalRevenue := make(map[string]float64)
	totalOrders := make(map[string]int)
	maxAge := make(map[string]int)
	for _, c := range ordered {
		totalRevenue[c.cohort] += c.revenue
		totalOrders[c.cohort] += c.orders
		if c.age > maxAge[c.cohort] {
			maxAge[c.cohort] = c.age
		}
	}
	tNames := make([]string, len(cohortKeys))
	tSizes := make([]int64, len(cohortKeys))
	tRevenues := make([]float64, len(cohortKeys))
	tOrders := make([]int64, len(cohortKeys))
	tPerCustomer := make([]float64, len(cohortKeys))
	tSpans := make([]int64, len(cohortKeys))
	for i, k := range cohortKeys {
		size := len(cohortSizes[k])
		tNames[i] = k
		tSizes[i] = int64(size)
		tRevenues[i] = totalRevenue[k]
		tOrders[i] = int64(totalOrders[k])
		if size > 0 {
			tPerCustomer[i] = totalRevenue[k] / float64(size)
		}
		tSpans[i] = int64(maxAge[k])
	}
	totals := table.New(
		table.NewStringColumn("cohort_month", tNames, nil),
		table.NewInt64Column("cohort_size", tSizes, nil),
		table.NewFloat64Column("revenue_total", tRevenues, nil),
		table.NewInt64Column("order_count", tOrders, nil),
		table.NewFloat64Column("revenue_per_customer", tPerCustomer, nil),
		table.NewInt64Column("active_months_span", tSpans, nil),
	)

	return []Output{
		{Name: "analytics_cohort_revenue", Category: CategoryAnalytics, Table: revenueTable},
		{Name: "analytics_cohort_totals", Category: CategoryAnalytics, Table: totals},
		{Name: "analytics_cohort_retention", Category: CategoryAnalytics, Table: retentionTable},
	}
}
