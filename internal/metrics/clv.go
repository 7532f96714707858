package metrics

import (
	"sort"
	"time"

	"github.com/quarrydata/quarry/internal/table"
)

// CLV computes per-customer lifetime value and a 12-month linear projection,
// plus a per-country rollup.
type CLV struct{}

func (CLV) Name() string { return "clv" }

func (CLV) Tables(in Input) []Output {
	type clvRow struct {
		customerID  int64
		total       float64
		orders      int
		products    map[string]struct{}
		first, last time.Time
		country     string
		hasCustomer bool
	}

	perCustomer := make(map[int64]*clvRow)
	for _, f := range in.Facts {
		row, ok := perCustomer[f.CustomerID]
		if !ok {
			row = &clvRow{
				customerID:  f.CustomerID,
				products:    make(map[string]struct{}),
				first:       f.At,
				last:        f.At,
				country:     f.Country,
				hasCustomer: f.HasCustomer,
			}
			perCustomer[f.CustomerID] = row
		}
		if f.At.Before(row.first) {
			row.first = f.At
		}
		if f.At.After(row.last) {
			row.last = f.At
		}
		row.total += f.Amount
		row.orders++
		row.products[f.Product] = struct{}{}
	}

	rows := make([]*clvRow, 0, len(perCustomer))
	for _, row := range perCustomer {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].customerID < rows[j].customerID })

	n := len(rows)
	ids := make([]int64, n)
	totals := make([]float64, n)
	aovs := make([]float64, n)
	orders := make([]int64, n)
	productCounts := make([]int64, n)
	lifespans := make([]int64, n)
	frequencies := make([]float64, n)
	projections := make([]float64, n)
	countries := make([]string, n)
	hasCountry := make([]bool, n)
	for i, row := range rows {
		ids[i] = row.customerID
		totals[i] = row.total
		aov := row.total / float64(row.orders)
		aovs[i] = aov
		orders[i] = int64(row.orders)
		productCounts[i] = int64(len(row.products))
		lifespan := daysBetween(row.first, row.last)
		if lifespan < 0 {
			lifespan = 0
		}
		lifespans[i] = int64(lifespan)
		// Guard the denominator: sub-month lifespans count as one month so a
		// single busy day does not explode the projection.
		months := float64(lifespan) / 30
		if months < 1 {
			months = 1
		}
		frequency := float64(row.orders) / months
		frequencies[i] = frequency
		projections[i] = frequency * aov * 12
		countries[i] = row.country
		hasCountry[i] = row.hasCustomer
	}
	detail := table.New(
		table.NewInt64Column("customer_id", ids, nil),
		table.NewFloat64Column("clv_total", totals, nil),
		table.NewFloat64Column("order_value_mean", aovs, nil),
		table.NewInt64Column("order_count", orders, nil),
		table.NewInt64Column("distinct_products", productCounts, nil),
		table.NewInt64Column("lifespan_days", lifespans, nil),
		table.NewFloat64Column("monthly_frequency", frequencies, nil),
		table.NewFloat64Column("clv_projected_12m", projections, nil),
		table.NewStringColumn("country", countries, hasCountry),
	)

	// Rollup by country; customers without a dimension row fall under UNKNOWN.
	type countryAcc struct {
		customers  int
		total      float64
		projected  float64
		orders     float64
		orderValue float64
	}
	byCountry := make(map[string]*countryAcc)
	for i := range rows {
		country := countries[i]
		if !hasCountry[i] || country == "" {
			country = "UNKNOWN"
		}
		a, ok := byCountry[country]
		if !ok {
			a = &countryAcc{}
			byCountry[country] = a
		}
		a.customers++
		a.total += totals[i]
		a.projected += projections[i]
		a.orders += float64(orders[i])
		a.orderValue += aovs[i]
	}
	countryKeys := make([]string, 0, len(byCountry))
	for k := range byCountry {
		countryKeys = append(countryKeys, k)
	}
	sort.Strings(countryKeys)
	m := len(countryKeys)
	cMeans := make([]float64, m)
	cTotals := make([]float64, m)
	cCustomers := make([]int64, m)
	cProjected := make([]float64, m)
	cOrders := make([]float64, m)
	cOrderValue := make([]float64, m)
	for i, k := range countryKeys {
		a := byCountry[k]
		cMeans[i] = a.total / float64(a.customers)
		cTotals[i] = a.total
		cCustomers[i] = int64(a.customers)
		cProjected[i] = a.projected / float64(a.customers)
		cOrders[i] = a.orders / float64(a.customers)
		cOrderValue[i] = a.orderValue / float64(a.customers)
	}
	byCountryTable := table.New(
		table.NewStringColumn("country", countryKeys, nil),
		table.NewFloat64Column("clv_mean", cMeans, nil),
		table.NewFloat64Column("clv_total", cTotals, nil),
		table.NewInt64Column("customer_count", cCustomers, nil),
		table.NewFloat64Column("clv_projected_mean", cProjected, nil),
		table.NewFloat64Column("order_count_mean", cOrders, nil),
		table.NewFloat64Column("order_value_mean", cOrderValue, nil),
	)

	return []Output{
		{Name: "kpi_clv_detail", Category: CategoryKPI, Table: detail},
		{Name: "kpi_clv_country", Category: CategoryKPI, Table: byCountryTable},
	}
}
