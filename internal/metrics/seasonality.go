package metrics

import (
	"sort"
	"time"

	"github.com/quarrydata/quarry/internal/table"
	"github.com/quarrydata/quarry/internal/warehouse"
)

// Seasonality profiles revenue by weekday, hour of day, calendar month, and
// the weekend/weekday split.
type Seasonality struct{}

func (Seasonality) Name() string { return "seasonality" }

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (Seasonality) Tables(in Input) []Output {
	var grandTotal float64
	for _, f := range in.Facts {
		grandTotal += f.Amount
	}
	share := func(total float64) float64 {
		if grandTotal == 0 {
			return 0
		}
		return total / grandTotal * 100
	}

	// Weekday profile, Monday first.
	var wdTotals [7]float64
	var wdCounts [7]int
	for _, f := range in.Facts {
		if f.WeekdayNum < 0 || f.WeekdayNum > 6 {
			continue
		}
		wdTotals[f.WeekdayNum] += f.Amount
		wdCounts[f.WeekdayNum]++
	}
	wdNames := make([]string, 0, 7)
	wdNums := make([]int64, 0, 7)
	wdRevenues := make([]float64, 0, 7)
	wdOrders := make([]int64, 0, 7)
	wdMeans := make([]float64, 0, 7)
	wdShares := make([]float64, 0, 7)
	for i := 0; i < 7; i++ {
		if wdCounts[i] == 0 {
			continue
		}
		wdNames = append(wdNames, weekdayNames[i])
		wdNums = append(wdNums, int64(i))
		wdRevenues = append(wdRevenues, wdTotals[i])
		wdOrders = append(wdOrders, int64(wdCounts[i]))
		wdMeans = append(wdMeans, wdTotals[i]/float64(wdCounts[i]))
		wdShares = append(wdShares, share(wdTotals[i]))
	}
	weekday := table.New(
		table.NewStringColumn("weekday", wdNames, nil),
		table.NewInt64Column("weekday_num", wdNums, nil),
		table.NewFloat64Column("revenue_total", wdRevenues, nil),
		table.NewInt64Column("order_count", wdOrders, nil),
		table.NewFloat64Column("order_value_mean", wdMeans, nil),
		table.NewFloat64Column("revenue_share_pct", wdShares, nil),
	)

	// Hour-of-day profile.
	var hrTotals [24]float64
	var hrCounts [24]int
	for _, f := range in.Facts {
		hrTotals[f.Hour] += f.Amount
		hrCounts[f.Hour]++
	}
	hrHours := make([]int64, 0, 24)
	hrRevenues := make([]float64, 0, 24)
	hrOrders := make([]int64, 0, 24)
	hrMeans := make([]float64, 0, 24)
	hrShares := make([]float64, 0, 24)
	for i := 0; i < 24; i++ {
		if hrCounts[i] == 0 {
			continue
		}
		hrHours = append(hrHours, int64(i))
		hrRevenues = append(hrRevenues, hrTotals[i])
		hrOrders = append(hrOrders, int64(hrCounts[i]))
		hrMeans = append(hrMeans, hrTotals[i]/float64(hrCounts[i]))
		hrShares = append(hrShares, share(hrTotals[i]))
	}
	hour := table.New(
		table.NewInt64Column("hour", hrHours, nil),
		table.NewFloat64Column("revenue_total", hrRevenues, nil),
		table.NewInt64Column("order_count", hrOrders, nil),
		table.NewFloat64Column("order_value_mean", hrMeans, nil),
		table.NewFloat64Column("revenue_share_pct", hrShares, nil),
	)

	// Calendar-month profile (January..December across all years).
	var moTotals [13]float64
	var moCounts [13]int
	for _, f := range in.Facts {
		if f.Month < 1 || f.Month > 12 {
			continue
		}
		moTotals[f.Month] += f.Amount
		moCounts[f.Month]++
	}
	moNums := make([]int64, 0, 12)
	moNames := make([]string, 0, 12)
	moRevenues := make([]float64, 0, 12)
	moOrders := make([]int64, 0, 12)
	moMeans := make([]float64, 0, 12)
	moShares := make([]float64, 0, 12)
	for i := 1; i <= 12; i++ {
		if moCounts[i] == 0 {
			continue
		}
		moNums = append(moNums, int64(i))
		moNames = append(moNames, time.Month(i).String())
		moRevenues = append(moRevenues, moTotals[i])
		moOrders = append(moOrders, int64(moCounts[i]))
		moMeans = append(moMeans, moTotals[i]/float64(moCounts[i]))
		moShares = append(moShares, share(moTotals[i]))
	}
	month := table.New(
		table.NewInt64Column("month", moNums, nil),
		table.NewStringColumn("month_name", moNames, nil),
		table.NewFloat64Column("revenue_total", moRevenues, nil),
		table.NewInt64Column("order_count", moOrders, nil),
		table.NewFloat64Column("order_value_mean", moMeans, nil),
		table.NewFloat64Column("revenue_share_pct", moShares, nil),
	)

	weekend := weekendSplit(in.Facts, share)

	return []Output{
		{Name: "analytics_seasonality_weekday", Category: CategoryAnalytics, Table: weekday},
		{Name: "analytics_seasonality_hour", Category: CategoryAnalytics, Table: hour},
		{Name: "analytics_seasonality_month", Category: CategoryAnalytics, Table: month},
		{Name: "analytics_seasonality_weekend", Category: CategoryAnalytics, Table: weekend},
	}
}

func weekendSplit(facts []warehouse.FactRow, share func(float64) float64) *table.Table {
	type acc struct {
		total float64
		count int
	}
	groups := map[string]*acc{"Weekday": {}, "Weekend": {}}
	for _, f := range facts {
		k := "Weekday"
		if f.Weekend {
			k = "Weekend"
		}
		groups[k].total += f.Amount
		groups[k].count++
	}
	keys := []string{"Weekday", "Weekend"}
	sort.Strings(keys)
	names := make([]string, 0, 2)
	revenues := make([]float64, 0, 2)
	orders := make([]int64, 0, 2)
	means := make([]float64, 0, 2)
	shares := make([]float64, 0, 2)
	for _, k := range keys {
		a := groups[k]
		if a.count == 0 {
			continue
		}
		names = append(names, k)
		revenues = append(revenues, a.total)
		orders = append(orders, int64(a.count))
		means = append(means, a.total/float64(a.count))
		shares = append(shares, share(a.total))
	}
	return table.New(
		table.NewStringColumn("day_type", names, nil),
		table.NewFloat64Column("revenue_total", revenues, nil),
		table.NewInt64Column("order_count", orders, nil),
		table.NewFloat64Column("order_value_mean", means, nil),
		table.NewFloat64Column("revenue_share_pct", shares, nil),
	)
}
