// Package enrich applies the generic ML enrichment pass to any table: feature
// extraction, anomaly detection, clustering, and composite scoring, in that
// fixed order. Every step degrades to a pass-through when its preconditions
// fail; enrichment never errors on small or all-categorical input.
package enrich

import (
	"math"

	"go.uber.org/zap"

	"github.com/quarrydata/quarry/internal/parallel"
	"github.com/quarrydata/quarry/internal/table"
)

// DefaultContamination is the fraction of rows flagged anomalous.
const DefaultContamination = 0.10

// Options tunes the enrichment pass. The zero value is usable.
type Options struct {
	// Contamination is the anomaly fraction; defaults to DefaultContamination.
	Contamination float64
	// Clusters overrides the automatic k = clamp(round(sqrt(n/2)), 2, 10).
	Clusters int
	// Seed pins the random source so runs are reproducible.
	Seed int64
	// Pool runs chunked scoring in parallel when set.
	Pool   *parallel.Pool
	Logger *zap.SugaredLogger
}

func (o Options) contamination() float64 {
	if o.Contamination <= 0 || o.Contamination >= 1 {
		return DefaultContamination
	}
	return o.Contamination
}

func (o Options) logger() *zap.SugaredLogger {
	if o.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return o.Logger
}

// Enrich runs the full pass and returns a new table with the derived columns
// appended. The input table is not modified.
func Enrich(t *table.Table, opts Options) *table.Table {
	if t == nil || t.Len() == 0 {
		return t
	}
	log := opts.logger()

	out := ExtractFeatures(t)
	log.Debugw("features extracted", "columns_in", t.Width(), "columns_out", out.Width())

	out = Anomalies(out, opts)
	out = Clusters(out, opts)
	out = Score(out, opts)
	return out
}

// numericMatrix extracts the numeric columns of t into a dense row-major
// matrix, substituting the column mean for missing values. The returned names
// preserve table order.
func numericMatrix(t *table.Table) (names []string, data [][]float64) {
	type numericCol struct {
		name   string
		values []float64
	}
	var cols []numericCol
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		var values []float64
		var valid []bool
		switch col.Kind() {
		case table.Float64:
			values, valid = col.Float64s()
		case table.Int64:
			ints, v := col.Int64s()
			values = make([]float64, len(ints))
			for i, x := range ints {
				values[i] = float64(x)
			}
			valid = v
		default:
			continue
		}
		fillMissing(values, valid)
		cols = append(cols, numericCol{name, values})
	}
	if len(cols) == 0 {
		return nil, nil
	}
	n := t.Len()
	data = make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = c.values[i]
		}
		data[i] = row
	}
	names = make([]string, len(cols))
	for j, c := range cols {
		names[j] = c.name
	}
	return names, data
}

// fillMissing replaces invalid entries with the mean of valid ones, in place.
func fillMissing(values []float64, valid []bool) {
	if valid == nil {
		return
	}
	var sum float64
	var count int
	for i, v := range values {
		if valid[i] {
			sum += v
			count++
		}
	}
	var mean float64
	if count > 0 {
		mean = sum / float64(count)
	}
	for i := range values {
		if !valid[i] {
			values[i] = mean
		}
	}
}

// standardize z-scores each column of the row-major matrix in place.
// Zero-variance columns are zeroed.
func standardize(data [][]float64) {
	if len(data) == 0 {
		return
	}
	nCols := len(data[0])
	n := float64(len(data))
	for j := 0; j < nCols; j++ {
		var sum float64
		for i := range data {
			sum += data[i][j]
		}
		mean := sum / n
		var varSum float64
		for i := range data {
			d := data[i][j] - mean
			varSum += d * d
		}
		std := 0.0
		if varSum > 0 {
			std = math.Sqrt(varSum / n)
		}
		for i := range data {
			if std == 0 {
				data[i][j] = 0
			} else {
				data[i][j] = (data[i][j] - mean) / std
			}
		}
	}
}
