package metrics

import (
	"time"

	"github.com/quarrydata/quarry/internal/table"
)

// GlobalKPIs is the single-row business dashboard: totals, averages, and the
// reference-time-relative activity windows. The windowed counts depend on the
// injected reference time; pin it for reproducible runs.
type GlobalKPIs struct{}

func (GlobalKPIs) Name() string { return "global_kpis" }

func (GlobalKPIs) Tables(in Input) []Output {
	var revenue float64
	customers := make(map[int64]struct{})
	products := make(map[string]struct{})
	var first, last time.Time
	active30 := make(map[int64]struct{})
	active90 := make(map[int64]struct{})
	for _, f := range in.Facts {
		revenue += f.Amount
		customers[f.CustomerID] = struct{}{}
		products[f.Product] = struct{}{}
		if first.IsZero() || f.At.Before(first) {
			first = f.At
		}
		if f.At.After(last) {
			last = f.At
		}
		age := daysBetween(f.At, in.Reference)
		if age <= 30 {
			active30[f.CustomerID] = struct{}{}
		}
		if age <= 90 {
			active90[f.CustomerID] = struct{}{}
		}
	}
	orderCount := len(in.Facts)
	var orderMean, revenuePerCustomer, ordersPerCustomer float64
	if orderCount > 0 {
		orderMean = revenue / float64(orderCount)
	}
	if len(customers) > 0 {
		revenuePerCustomer = revenue / float64(len(customers))
		ordersPerCustomer = float64(orderCount) / float64(len(customers))
	}

	newCustomers30 := 0
	for _, c := range in.Customers {
		if age := daysBetween(c.SignupAt, in.Reference); age >= 0 && age <= 30 {
			newCustomers30++
		}
	}

	var spanDays int64
	if orderCount > 0 {
		spanDays = int64(daysBetween(first, last))
	}

	global := table.New(
		table.NewFloat64Column("revenue_total", []float64{revenue}, nil),
		table.NewInt64Column("order_count", []int64{int64(orderCount)}, nil),
		table.NewFloat64Column("order_value_mean", []float64{orderMean}, nil),
		table.NewInt64Column("customer_count", []int64{int64(len(customers))}, nil),
		table.NewInt64Column("product_count", []int64{int64(len(products))}, nil),
		table.NewFloat64Column("revenue_per_customer", []float64{revenuePerCustomer}, nil),
		table.NewFloat64Column("orders_per_customer", []float64{ordersPerCustomer}, nil),
		table.NewInt64Column("active_customers_30d", []int64{int64(len(active30))}, nil),
		table.NewInt64Column("active_customers_90d", []int64{int64(len(active90))}, nil),
		table.NewInt64Column("new_customers_30d", []int64{int64(newCustomers30)}, nil),
		table.NewInt64Column("activity_span_days", []int64{spanDays}, nil),
		table.NewTimeColumn("reference_time", []time.Time{in.Reference}, nil),
	)

	return []Output{
		{Name: "kpi_global", Category: CategoryKPI, Table: global},
	}
}
