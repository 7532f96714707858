package enrich

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/quarrydata/quarry/internal/table"
)

const (
	quantileLabelMin = 11 // distinct values needed for the 5-bucket label
	topCategories    = 10
	ratioEpsilon     = 1e-9
)

var quantileLabels = [5]string{"Very Low", "Low", "Medium", "High", "Very High"}

// ExtractFeatures derives generic features from every column: temporal parts
// from timestamps, z-scores and quantile labels from numerics, frequencies
// and long-tail collapse from categoricals, occurrence counts from id-named
// columns, and a guarded ratio of the first two numeric columns.
func ExtractFeatures(t *table.Table) *table.Table {
	if t == nil || t.Len() == 0 {
		return t
	}
	var added []*table.Column
	var numericNames []string
	firstTime := true
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		switch col.Kind() {
		case table.Time:
			added = append(added, timeFeatures(name, col, !firstTime)...)
			firstTime = false
		case table.Float64, table.Int64:
			numericNames = append(numericNames, name)
			added = append(added, numericFeatures(name, col)...)
		case table.String:
			added = append(added, categoricalFeatures(name, col)...)
		}
		if strings.Contains(strings.ToLower(name), "id") {
			added = append(added, occurrenceCount(name, col))
		}
	}
	if len(numericNames) >= 2 {
		added = append(added, ratioFeature(t, numericNames[0], numericNames[1]))
	}
	if len(added) == 0 {
		return t
	}
	return t.WithColumns(added...)
}

func timeFeatures(name string, col *table.Column, withDaysSince bool) []*table.Column {
	times, valid := col.Times()
	n := len(times)
	years := make([]int64, n)
	months := make([]int64, n)
	days := make([]int64, n)
	weekdays := make([]int64, n)
	weekends := make([]bool, n)
	for i, at := range times {
		if valid != nil && !valid[i] {
			continue
		}
		years[i] = int64(at.Year())
		months[i] = int64(at.Month())
		days[i] = int64(at.Day())
		wd := (int(at.Weekday()) + 6) % 7 // Monday=0
		weekdays[i] = int64(wd)
		weekends[i] = wd >= 5
	}
	cols := []*table.Column{
		table.NewInt64Column(name+"_year", years, valid),
		table.NewInt64Column(name+"_month", months, valid),
		table.NewInt64Column(name+"_day", days, valid),
		table.NewInt64Column(name+"_weekday", weekdays, valid),
		table.NewBoolColumn(name+"_is_weekend", weekends, valid),
	}
	if withDaysSince {
		var latest time.Time
		for i, at := range times {
			if (valid == nil || valid[i]) && at.After(latest) {
				latest = at
			}
		}
		since := make([]int64, n)
		for i, at := range times {
			if valid == nil || valid[i] {
				since[i] = int64(latest.Sub(at).Hours() / 24)
			}
		}
		cols = append(cols, table.NewInt64Column(name+"_days_since", since, valid))
	}
	return cols
}

func numericFeatures(name string, col *table.Column) []*table.Column {
	values, valid := floatValues(col)
	n := len(values)

	var sum float64
	var count int
	for i, v := range values {
		if valid == nil || valid[i] {
			sum += v
			count++
		}
	}
	var mean float64
	if count > 0 {
		mean = sum / float64(count)
	}
	var varSum float64
	for i, v := range values {
		if valid == nil || valid[i] {
			d := v - mean
			varSum += d * d
		}
	}
	var std float64
	if count > 1 {
		std = math.Sqrt(varSum / float64(count))
	}
	zscores := make([]float64, n)
	for i, v := range values {
		if (valid == nil || valid[i]) && std > 0 {
			zscores[i] = (v - mean) / std
		}
	}
	cols := []*table.Column{table.NewFloat64Column(name+"_zscore", zscores, valid)}

	distinct := lo.Uniq(values)
	if len(distinct) >= quantileLabelMin {
		cols = append(cols, quantileLabelColumn(name, values, valid))
	}
	return cols
}

func quantileLabelColumn(name string, values []float64, valid []bool) *table.Column {
	sorted := make([]float64, 0, len(values))
	for i, v := range values {
		if valid == nil || valid[i] {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)
	edges := make([]float64, 4)
	for i := range edges {
		p := float64(i+1) / 5
		idx := int(p * float64(len(sorted)-1))
		edges[i] = sorted[idx]
	}
	labels := make([]string, len(values))
	for i, v := range values {
		if valid != nil && !valid[i] {
			continue
		}
		bucket := 0
		for bucket < 4 && v > edges[bucket] {
			bucket++
		}
		labels[i] = quantileLabels[bucket]
	}
	return table.NewStringColumn(name+"_quantile", labels, valid)
}

func categoricalFeatures(name string, col *table.Column) []*table.Column {
	values, valid := col.Strings()
	freq := make(map[string]int64)
	for i, v := range values {
		if valid == nil || valid[i] {
			freq[v]++
		}
	}
	counts := make([]int64, len(values))
	for i, v := range values {
		if valid == nil || valid[i] {
			counts[i] = freq[v]
		}
	}
	cols := []*table.Column{table.NewInt64Column(name+"_freq", counts, valid)}

	if len(freq) > topCategories {
		type catCount struct {
			cat   string
			count int64
		}
		ranked := make([]catCount, 0, len(freq))
		for c, n := range freq {
			ranked = append(ranked, catCount{c, n})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].count != ranked[j].count {
				return ranked[i].count > ranked[j].count
			}
			return ranked[i].cat < ranked[j].cat
		})
		top := make(map[string]struct{}, topCategories)
		for _, rc := range ranked[:topCategories] {
			top[rc.cat] = struct{}{}
		}
		collapsed := make([]string, len(values))
		for i, v := range values {
			if valid != nil && !valid[i] {
				continue
			}
			if _, ok := top[v]; ok {
				collapsed[i] = v
			} else {
				collapsed[i] = "Other"
			}
		}
		cols = append(cols, table.NewStringColumn(name+"_top", collapsed, valid))
	}
	return cols
}

func occurrenceCount(name string, col *table.Column) *table.Column {
	n := col.Len()
	freq := make(map[any]int64)
	for i := 0; i < n; i++ {
		if !col.IsNull(i) {
			freq[col.Value(i)]++
		}
	}
	counts := make([]int64, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if !col.IsNull(i) {
			counts[i] = freq[col.Value(i)]
			valid[i] = true
		}
	}
	return table.NewInt64Column(name+"_occurrences", counts, valid)
}

func ratioFeature(t *table.Table, numName, denName string) *table.Column {
	numCol, _ := t.Column(numName)
	denCol, _ := t.Column(denName)
	nums, numValid := floatValues(numCol)
	dens, denValid := floatValues(denCol)
	ratios := make([]float64, len(nums))
	for i := range nums {
		if (numValid != nil && !numValid[i]) || (denValid != nil && !denValid[i]) {
			continue
		}
		ratios[i] = nums[i] / (dens[i] + ratioEpsilon)
	}
	return table.NewFloat64Column(numName+"_per_"+denName, ratios, nil)
}

func floatValues(col *table.Column) ([]float64, []bool) {
	switch col.Kind() {
	case table.Float64:
		return col.Float64s()
	case table.Int64:
		ints, valid := col.Int64s()
		values := make([]float64, len(ints))
		for i, v := range ints {
			values[i] = float64(v)
		}
		return values, valid
	default:
		return nil, nil
	}
}
