package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/quarrydata/quarry/internal/table"
)

// Distributions computes descriptive statistics of order amounts, per-customer
// revenue, and per-product revenue: central tendency, spread, quantiles and
// deciles, shape, and 1.5×IQR outlier incidence.
type Distributions struct{}

func (Distributions) Name() string { return "distributions" }

// distOutlierIQRMult is the classic Tukey fence. The generic cleaner uses a
// wider 3× fence; this one only counts, it never drops.
const distOutlierIQRMult = 1.5

func (Distributions) Tables(in Input) []Output {
	amounts := make([]float64, len(in.Facts))
	byCustomer := make(map[int64]float64)
	byProduct := make(map[string]float64)
	for i, f := range in.Facts {
		amounts[i] = f.Amount
		byCustomer[f.CustomerID] += f.Amount
		byProduct[f.Product] += f.Amount
	}
	customerTotals := make([]float64, 0, len(byCustomer))
	for _, v := range byCustomer {
		customerTotals = append(customerTotals, v)
	}
	productTotals := make([]float64, 0, len(byProduct))
	for _, v := range byProduct {
		productTotals = append(productTotals, v)
	}

	return []Output{
		{Name: "analytics_distribution_summary", Category: CategoryAnalytics, Table: describe("order_amount", amounts)},
		{Name: "analytics_distribution_customers", Category: CategoryAnalytics, Table: describe("customer_revenue", customerTotals)},
		{Name: "analytics_distribution_products", Category: CategoryAnalytics, Table: describe("product_revenue", productTotals)},
	}
}

// describe produces a single-row descriptive table for one value set.
func describe(subject string, values []float64) *table.Table {
	n := len(values)
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	q := func(p float64) float64 {
		if n == 0 {
			return 0
		}
		return stat.Quantile(p, stat.LinInterp, sorted, nil)
	}
	var mean, std, skew, kurt, min, max float64
	if n > 0 {
		mean = stat.Mean(sorted, nil)
		min, max = sorted[0], sorted[n-1]
	}
	if n > 1 {
		std = stat.StdDev(sorted, nil)
	}
	if n > 2 {
		skew = stat.Skew(sorted, nil)
	}
	if n > 3 {
		// Gonum reports excess kurtosis (normal = 0).
		kurt = stat.ExKurtosis(sorted, nil)
	}

	q1, q3 := q(0.25), q(0.75)
	iqr := q3 - q1
	lowFence := q1 - distOutlierIQRMult*iqr
	highFence := q3 + distOutlierIQRMult*iqr
	outliers := 0
	for _, v := range sorted {
		if v < lowFence || v > highFence {
			outliers++
		}
	}
	var outlierPct float64
	if n > 0 {
		outlierPct = float64(outliers) / float64(n) * 100
	}

	cols := []*table.Column{
		table.NewStringColumn("subject", []string{subject}, nil),
		table.NewInt64Column("count", []int64{int64(n)}, nil),
		table.NewFloat64Column("mean", []float64{mean}, nil),
		table.NewFloat64Column("median", []float64{q(0.5)}, nil),
		table.NewFloat64Column("std", []float64{std}, nil),
		table.NewFloat64Column("min", []float64{min}, nil),
		table.NewFloat64Column("max", []float64{max}, nil),
		table.NewFloat64Column("p25", []float64{q1}, nil),
		table.NewFloat64Column("p75", []float64{q3}, nil),
		table.NewFloat64Column("p90", []float64{q(0.90)}, nil),
		table.NewFloat64Column("p95", []float64{q(0.95)}, nil),
		table.NewFloat64Column("p99", []float64{q(0.99)}, nil),
	}
	for _, d := range []struct {
		name string
		p    float64
	}{
		{"decile_1", 0.1}, {"decile_2", 0.2}, {"decile_3", 0.3},
		{"decile_4", 0.4}, {"decile_5", 0.5}, {"decile_6", 0.6},
		{"decile_7", 0.7}, {"decile_8", 0.8}, {"decile_9", 0.9},
	} {
		cols = append(cols, table.NewFloat64Column(d.name, []float64{q(d.p)}, nil))
	}
	cols = append(cols,
		table.NewFloat64Column("skewness", []float64{skew}, nil),
		table.NewFloat64Column("kurtosis", []float64{kurt}, nil),
		table.NewInt64Column("outlier_count", []int64{int64(outliers)}, nil),
		table.NewFloat64Column("outlier_pct", []float64{outlierPct}, nil),
	)
	return table.New(cols...)
}
