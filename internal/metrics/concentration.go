package metrics

import (
	"math"
	"sort"

	"github.com/quarrydata/quarry/internal/table"
)

// Concentration measures revenue inequality across customers, countries, and
// products: cumulative share curves, Pareto-80 fractions, top-decile shares,
// and the Gini coefficient.
type Concentration struct{}

func (Concentration) Name() string { return "concentration" }

// Gini computes the Gini coefficient over non-negative values. A uniform
// distribution yields ~0; one entity holding everything yields (n-1)/n.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum, rankSum float64
	for i, v := range sorted {
		sum += v
		rankSum += float64(i+1) * v
	}
	if sum == 0 {
		return 0
	}
	return 2*rankSum/(float64(n)*sum) - float64(n+1)/float64(n)
}

// pareto80 returns the smallest fraction of entities (revenue-descending)
// whose cumulative revenue reaches 80% of the total.
func pareto80(descending []float64, total float64) float64 {
	if len(descending) == 0 || total == 0 {
		return 0
	}
	var cum float64
	for i, v := range descending {
		cum += v
		if cum >= 0.8*total {
			return float64(i+1) / float64(len(descending))
		}
	}
	return 1
}

// topShare returns the share of total revenue held by the top fraction of
// entities. The entity count rounds up, not down: the top 10% of 5 entities
// is one entity, never zero.
func topShare(descending []float64, total, fraction float64) float64 {
	if len(descending) == 0 || total == 0 {
		return 0
	}
	k := int(math.Ceil(fraction * float64(len(descending))))
	var sum float64
	for _, v := range descending[:k] {
		sum += v
	}
	return sum / total * 100
}

func (Concentration) Tables(in Input) []Output {
	byCustomer := make(map[string]float64)
	byCountry := make(map[string]float64)
	byProduct := make(map[string]float64)
	for _, f := range in.Facts {
		byCustomer[int64Key(f.CustomerID)] += f.Amount
		country := f.Country
		if !f.HasCustomer || country == "" {
			country = "UNKNOWN"
		}
		byCountry[country] += f.Amount
		byProduct[f.Product] += f.Amount
	}

	customers, custStats := concentrationCurve("customer_id", byCustomer)
	countries, countryStats := concentrationCurve("country", byCountry)
	products, productStats := concentrationCurve("product", byProduct)

	summary := table.New(
		table.NewStringColumn("subject", []string{"customers", "countries", "products"}, nil),
		table.NewInt64Column("entity_count", []int64{custStats.n, countryStats.n, productStats.n}, nil),
		table.NewFloat64Column("gini", []float64{custStats.gini, countryStats.gini, productStats.gini}, nil),
		table.NewFloat64Column("pareto_80_fraction", []float64{custStats.pareto, countryStats.pareto, productStats.pareto}, nil),
		table.NewFloat64Column("top_10pct_share", []float64{custStats.top10, countryStats.top10, productStats.top10}, nil),
		table.NewFloat64Column("top_20pct_share", []float64{custStats.top20, countryStats.top20, productStats.top20}, nil),
	)

	return []Output{
		{Name: "analytics_concentration_summary", Category: CategoryAnalytics, Table: summary},
		{Name: "analytics_concentration_customers", Category: CategoryAnalytics, Table: customers},
		{Name: "analytics_concentration_countries", Category: CategoryAnalytics, Table: countries},
		{Name: "analytics_concentration_products", Category: CategoryAnalytics, Table: products},
	}
}

type concentrationStats struct {
	n      int64
	gini   float64
	pareto float64
	top10  float64
	top20  float64
}

// concentrationCurve builds the per-entity cumulative share table (revenue
// descending, name ascending on ties) and the scalar inequality measures.
func concentrationCurve(keyName string, totals map[string]float64) (*table.Table, concentrationStats) {
	type entity struct {
		key   string
		value float64
	}
	entities := make([]entity, 0, len(totals))
	var total float64
	for k, v := range totals {
		entities = append(entities, entity{k, v})
		total += v
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].value != entities[j].value {
			return entities[i].value > entities[j].value
		}
		return entities[i].key < entities[j].key
	})

	n := len(entities)
	keys := make([]string, n)
	ranks := make([]int64, n)
	values := make([]float64, n)
	shares := make([]float64, n)
	cumShares := make([]float64, n)
	descending := make([]float64, n)
	var cum float64
	for i, e := range entities {
		keys[i] = e.key
		ranks[i] = int64(i + 1)
		values[i] = e.value
		descending[i] = e.value
		cum += e.value
		if total > 0 {
			shares[i] = e.value / total * 100
			cumShares[i] = cum / total * 100
		}
	}
	curve := table.New(
		table.NewInt64Column("rank", ranks, nil),
		table.NewStringColumn(keyName, keys, nil),
		table.NewFloat64Column("revenue_total", values, nil),
		table.NewFloat64Column("revenue_share_pct", shares, nil),
		table.NewFloat64Column("cumulative_share_pct", cumShares, nil),
	)
	stats := concentrationStats{
		n:      int64(n),
		gini:   Gini(values),
		pareto: pareto80(descending, total),
		top10:  topShare(descending, total, 0.10),
		top20:  topShare(descending, total, 0.20),
	}
	return curve, stats
}
