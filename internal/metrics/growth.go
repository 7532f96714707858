package metrics

import (
	"fmt"
	"math"

	"github.com/quarrydata/quarry/internal/table"
	"github.com/quarrydata/quarry/internal/warehouse"
)

// Growth computes month-over-month and year-over-year revenue growth plus the
// annualized rate over the whole observed span.
type Growth struct{}

func (Growth) Name() string { return "growth" }

// growthPct is (cur-prev)/prev as a percentage, 0 when there is no prior
// value to compare against.
func growthPct(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// annualizedRate is (last/first)^(12/months) - 1, 0 when the first period is
// zero or negative or the span is under a month.
func annualizedRate(first, last float64, months int) float64 {
	if first <= 0 || months < 1 {
		return 0
	}
	return math.Pow(last/first, 12/float64(months)) - 1
}

func (Growth) Tables(in Input) []Output {
	months, groups := groupFacts(in.Facts, func(f warehouse.FactRow) string { return f.MonthKey })

	totals := make(map[string]float64, len(months))
	for _, m := range months {
		totals[m] = groups[m].total
	}

	n := len(months)
	keys := make([]string, n)
	revenues := make([]float64, n)
	momPcts := make([]float64, n)
	yoyPcts := make([]float64, n)
	yoyValid := make([]bool, n)
	for i, m := range months {
		keys[i] = m
		revenues[i] = totals[m]
		if i > 0 {
			momPcts[i] = growthPct(totals[m], totals[months[i-1]])
		}
		if prev, ok := totals[sameMonthPriorYear(m)]; ok {
			yoyPcts[i] = growthPct(totals[m], prev)
			yoyValid[i] = true
		}
	}
	monthly := table.New(
		table.NewStringColumn("month", keys, nil),
		table.NewFloat64Column("revenue_total", revenues, nil),
		table.NewFloat64Column("mom_growth_pct", momPcts, nil),
		table.NewFloat64Column("yoy_growth_pct", yoyPcts, yoyValid),
	)

	var meanMoM, annualized, best, worst float64
	bestMonth, worstMonth := "", ""
	if n > 1 {
		var sum float64
		for i := 1; i < n; i++ {
			sum += momPcts[i]
		}
		meanMoM = sum / float64(n-1)
		annualized = annualizedRate(revenues[0], revenues[n-1], n) * 100
		best, worst = momPcts[1], momPcts[1]
		bestMonth, worstMonth = keys[1], keys[1]
		for i := 2; i < n; i++ {
			if momPcts[i] > best {
				best, bestMonth = momPcts[i], keys[i]
			}
			if momPcts[i] < worst {
				worst, worstMonth = momPcts[i], keys[i]
			}
		}
	}
	summary := table.New(
		table.NewInt64Column("month_count", []int64{int64(n)}, nil),
		table.NewFloat64Column("mom_growth_mean_pct", []float64{meanMoM}, nil),
		table.NewFloat64Column("annualized_growth_pct", []float64{annualized}, nil),
		table.NewFloat64Column("best_month_growth_pct", []float64{best}, nil),
		table.NewStringColumn("best_month", []string{bestMonth}, nil),
		table.NewFloat64Column("worst_month_growth_pct", []float64{worst}, nil),
		table.NewStringColumn("worst_month", []string{worstMonth}, nil),
	)

	return []Output{
		{Name: "kpi_growth_monthly", Category: CategoryKPI, Table: monthly},
		{Name: "kpi_growth_summary", Category: CategoryKPI, Table: summary},
	}
}

// sameMonthPriorYear maps "2024-03" to "2023-03".
func sameMonthPriorYear(monthKey string) string {
	var year, month int
	if _, err := fmt.Sscanf(monthKey, "%d-%d", &year, &month); err != nil {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", year-1, month)
}
