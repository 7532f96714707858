package metrics

import (
	"sort"

	"github.com/quarrydata/quarry/internal/common"
	"github.com/quarrydata/quarry/internal/table"
	"github.com/quarrydata/quarry/internal/warehouse"
)

// Products computes the per-product rollup, the top-10 leaderboards, and
// per-customer basket diversity.
type Products struct{}

func (Products) Name() string { return "products" }

const topProductCount = 10

const (
	customerTypeMono  = "Mono-Product"
	customerTypeMulti = "Multi-Product"
)

// diversityAcc accumulates the per-type means for the diversity summary.
type diversityAcc struct {
	customers int
	distinct  float64
	ratio     float64
	revenue   float64
}

func (Products) Tables(in Input) []Output {
	keys, groups := groupFacts(in.Facts, func(f warehouse.FactRow) string { return f.Product })

	var grandTotal float64
	for _, acc := range groups {
		grandTotal += acc.total
	}

	n := len(keys)
	names := make([]string, n)
	totals := make([]float64, n)
	counts := make([]int64, n)
	means := make([]float64, n)
	mins := make([]float64, n)
	maxs := make([]float64, n)
	buyers := make([]int64, n)
	shares := make([]float64, n)
	for i, k := range keys {
		acc := groups[k]
		names[i] = k
		totals[i] = acc.total
		counts[i] = int64(acc.count)
		means[i] = acc.mean()
		mins[i] = acc.min
		maxs[i] = acc.max
		buyers[i] = int64(len(acc.customers))
		if grandTotal > 0 {
			shares[i] = acc.total / grandTotal * 100
		}
	}
	rollup := table.New(
		table.NewStringColumn("product", names, nil),
		table.NewFloat64Column("revenue_total", totals, nil),
		table.NewInt64Column("order_count", counts, nil),
		table.NewFloat64Column("order_value_mean", means, nil),
		table.NewFloat64Column("order_value_min", mins, nil),
		table.NewFloat64Column("order_value_max", maxs, nil),
		table.NewInt64Column("distinct_customers", buyers, nil),
		table.NewFloat64Column("revenue_share_pct", shares, nil),
	)

	topRevenue := leaderboard(keys, groups, topProductCount, func(a, b *revenueAcc) bool {
		return a.total > b.total
	})
	topVolume := leaderboard(keys, groups, topProductCount, func(a, b *revenueAcc) bool {
		return a.count > b.count
	})

	// Basket diversity: distinct products per customer, classified mono- vs
	// multi-product.
	type divRow struct {
		customerID int64
		products   map[string]struct{}
		orders     int
		revenue    float64
	}
	perCustomer := make(map[int64]*divRow)
	for _, f := range in.Facts {
		row, ok := perCustomer[f.CustomerID]
		if !ok {
			row = &divRow{customerID: f.CustomerID, products: make(map[string]struct{})}
			perCustomer[f.CustomerID] = row
		}
		row.products[f.Product] = struct{}{}
		row.orders++
		row.revenue += f.Amount
	}
	divRows := make([]*divRow, 0, len(perCustomer))
	for _, row := range perCustomer {
		divRows = append(divRows, row)
	}
	sort.Slice(divRows, func(i, j int) bool { return divRows[i].customerID < divRows[j].customerID })

	custIDs := make([]int64, len(divRows))
	distinct := make([]int64, len(divRows))
	orderCounts := make([]int64, len(divRows))
	revenues := make([]float64, len(divRows))
	ratios := make([]float64, len(divRows))
	types := make([]string, len(divRows))
	typeAcc := make(map[string]*diversityAcc, 2)
	for i, row := range divRows {
		custIDs[i] = row.customerID
		distinct[i] = int64(len(row.products))
		orderCounts[i] = int64(row.orders)
		revenues[i] = row.revenue
		ratios[i] = float64(len(row.products)) / float64(row.orders)
		types[i] = customerTypeMono
		if len(row.products) > 1 {
			types[i] = customerTypeMulti
		}
		acc, ok := typeAcc[types[i]]
		if !ok {
			acc = &diversityAcc{}
			typeAcc[types[i]] = acc
		}
		acc.customers++
		acc.distinct += float64(len(row.products))
		acc.ratio += ratios[i]
		acc.revenue += row.revenue
	}
	diversity := table.New(
		table.NewInt64Column("customer_id", custIDs, nil),
		table.NewInt64Column("distinct_products", distinct, nil),
		table.NewInt64Column("order_count", orderCounts, nil),
		table.NewFloat64Column("revenue_total", revenues, nil),
		table.NewFloat64Column("diversity_ratio", ratios, nil),
		table.NewStringColumn("customer_type", types, nil),
	)

	typeNames := make([]string, 0, len(typeAcc))
	for name := range typeAcc {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)
	typeCounts := make([]int64, len(typeNames))
	typeDistinct := make([]float64, len(typeNames))
	typeRatios := make([]float64, len(typeNames))
	typeRevenues := make([]float64, len(typeNames))
	typeShares := make([]float64, len(typeNames))
	for i, name := range typeNames {
		acc := typeAcc[name]
		nt := float64(acc.customers)
		typeCounts[i] = int64(acc.customers)
		typeDistinct[i] = acc.distinct / nt
		typeRatios[i] = acc.ratio / nt
		typeRevenues[i] = acc.revenue / nt
		typeShares[i] = nt / float64(len(divRows)) * 100
	}
	diversitySummary := table.New(
		table.NewStringColumn("customer_type", typeNames, nil),
		table.NewInt64Column("customer_count", typeCounts, nil),
		table.NewFloat64Column("customer_share_pct", typeShares, nil),
		table.NewFloat64Column("distinct_products_mean", typeDistinct, nil),
		table.NewFloat64Column("diversity_ratio_mean", typeRatios, nil),
		table.NewFloat64Column("revenue_mean", typeRevenues, nil),
	)

	return []Output{
		{Name: "kpi_products", Category: CategoryKPI, Table: rollup},
		{Name: "kpi_top_products_revenue", Category: CategoryKPI, Table: topRevenue},
		{Name: "kpi_top_products_volume", Category: CategoryKPI, Table: topVolume},
		{Name: "kpi_basket_diversity", Category: CategoryKPI, Table: diversity},
		{Name: "kpi_diversity_summary", Category: CategoryKPI, Table: diversitySummary},
	}
}

// leaderboard ranks the grouped products with the provided ordering and keeps
// the first limit entries. Ties break on the product name so ordering is
// stable across runs.
func leaderboard(keys []string, groups map[string]*revenueAcc, limit int, less func(a, b *revenueAcc) bool) *table.Table {
	ranked := make([]string, len(keys))
	copy(ranked, keys)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := groups[ranked[i]], groups[ranked[j]]
		if less(a, b) != less(b, a) {
			return less(a, b)
		}
		return ranked[i] < ranked[j]
	})
	ranked = ranked[:common.Min(limit, len(ranked))]
	n := len(ranked)
	ranks := make([]int64, n)
	names := make([]string, n)
	totals := make([]float64, n)
	counts := make([]int64, n)
	for i, k := range ranked {
		acc := groups[k]
		ranks[i] = int64(i + 1)
		names[i] = k
		totals[i] = acc.total
		counts[i] = int64(acc.count)
	}
	return table.New(
		table.NewInt64Column("rank", ranks, nil),
		table.NewStringColumn("product", names, nil),
		table.NewFloat64Column("revenue_total", totals, nil),
		table.NewInt64Column("order_count", counts, nil),
	)
}
