package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/quarrydata/quarry/internal/table"
)

// Retention computes per-customer inactivity, status banding, and the global
// retention/churn/recurrence rates plus fixed-horizon retention.
type Retention struct{}

func (Retention) Name() string { return "retention" }

// Customer status bands by days since last purchase. Bounds are inclusive on
// the lower side: exactly 30 days is still Active.
const (
	StatusActive   = "Active"
	StatusAtRisk   = "At Risk"
	StatusInactive = "Inactive"
	StatusChurned  = "Churned"
)

// StatusOf bands an inactivity duration in days.
func StatusOf(inactiveDays int) string {
	switch {
	case inactiveDays <= 30:
		return StatusActive
	case inactiveDays <= 90:
		return StatusAtRisk
	case inactiveDays <= 180:
		return StatusInactive
	default:
		return StatusChurned
	}
}

// retentionHorizons are the fixed windows for horizon retention rates.
var retentionHorizons = []int{30, 60, 90, 180, 365}

func (Retention) Tables(in Input) []Output {
	type custRow struct {
		customerID int64
		last       time.Time
		orders     int
	}
	perCustomer := make(map[int64]*custRow)
	for _, f := range in.Facts {
		row, ok := perCustomer[f.CustomerID]
		if !ok {
			row = &custRow{customerID: f.CustomerID, last: f.At}
			perCustomer[f.CustomerID] = row
		}
		if f.At.After(row.last) {
			row.last = f.At
		}
		row.orders++
	}
	rows := make([]*custRow, 0, len(perCustomer))
	for _, row := range perCustomer {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].customerID < rows[j].customerID })

	n := len(rows)
	ids := make([]int64, n)
	lastPurchases := make([]time.Time, n)
	inactiveDays := make([]int64, n)
	orderCounts := make([]int64, n)
	statuses := make([]string, n)
	recurring := make([]bool, n)
	for i, row := range rows {
		ids[i] = row.customerID
		lastPurchases[i] = row.last
		inactive := daysBetween(row.last, in.Reference)
		inactiveDays[i] = int64(inactive)
		orderCounts[i] = int64(row.orders)
		statuses[i] = StatusOf(inactive)
		recurring[i] = row.orders > 1
	}
	detail := table.New(
		table.NewInt64Column("customer_id", ids, nil),
		table.NewTimeColumn("last_purchase", lastPurchases, nil),
		table.NewInt64Column("inactive_days", inactiveDays, nil),
		table.NewInt64Column("order_count", orderCounts, nil),
		table.NewStringColumn("status", statuses, nil),
		table.NewBoolColumn("is_recurring", recurring, nil),
	)

	// Per-status summary.
	type statusAcc struct {
		customers int
		inactive  float64
		orders    float64
	}
	byStatus := make(map[string]*statusAcc)
	for i := range rows {
		a, ok := byStatus[statuses[i]]
		if !ok {
			a = &statusAcc{}
			byStatus[statuses[i]] = a
		}
		a.customers++
		a.inactive += float64(inactiveDays[i])
		a.orders += float64(orderCounts[i])
	}
	statusKeys := make([]string, 0, len(byStatus))
	for k := range byStatus {
		statusKeys = append(statusKeys, k)
	}
	sort.Strings(statusKeys)
	sNames := make([]string, len(statusKeys))
	sCustomers := make([]int64, len(statusKeys))
	sInactive := make([]float64, len(statusKeys))
	sOrders := make([]float64, len(statusKeys))
	for i, k := range statusKeys {
		a := byStatus[k]
		sNames[i] = k
		sCustomers[i] = int64(a.customers)
		sInactive[i] = a.inactive / float64(a.customers)
		sOrders[i] = a.orders / float64(a.customers)
	}
	summary := table.New(
		table.NewStringColumn("status", sNames, nil),
		table.NewInt64Column("customer_count", sCustomers, nil),
		table.NewFloat64Column("inactive_days_mean", sInactive, nil),
		table.NewFloat64Column("order_count_mean", sOrders, nil),
	)

	// Global rates plus fixed-horizon retention, all over the customer
	// population with at least one purchase.
	active, recurrent, churned := 0, 0, 0
	for i := range rows {
		switch statuses[i] {
		case StatusActive:
			active++
		case StatusChurned:
			churned++
		}
		if recurring[i] {
			recurrent++
		}
	}
	rate := func(count int) float64 {
		if n == 0 {
			return 0
		}
		return float64(count) / float64(n) * 100
	}
	globalCols := []*table.Column{
		table.NewInt64Column("total_customers", []int64{int64(n)}, nil),
		table.NewInt64Column("active_customers", []int64{int64(active)}, nil),
		table.NewInt64Column("recurring_customers", []int64{int64(recurrent)}, nil),
		table.NewInt64Column("churned_customers", []int64{int64(churned)}, nil),
		table.NewFloat64Column("retention_rate_30d", []float64{rate(active)}, nil),
		table.NewFloat64Column("recurrence_rate", []float64{rate(recurrent)}, nil),
		table.NewFloat64Column("churn_rate", []float64{rate(churned)}, nil),
	}
	for _, horizon := range retentionHorizons {
		retained := 0
		for i := range rows {
			if inactiveDays[i] <= int64(horizon) {
				retained++
			}
		}
		globalCols = append(globalCols, table.NewFloat64Column(
			fmt.Sprintf("retention_%dd", horizon), []float64{rate(retained)}, nil))
	}
	global := table.New(globalCols...)

	return []Output{
		{Name: "kpi_retention_detail", Category: CategoryKPI, Table: detail},
		{Name: "kpi_retention_summary", Category: CategoryKPI, Table: summary},
		{Name: "kpi_retention_global", Category: CategoryKPI, Table: global},
	}
}
