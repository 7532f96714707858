package clean

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	qerrors "github.com/quarrydata/quarry/internal/errors"
	"github.com/quarrydata/quarry/internal/table"
)

// Options carries the run-scoped inputs of a cleaning pass.
type Options struct {
	// Reference is the pipeline "now". Timestamps strictly after it are
	// treated as corrupt and their rows dropped. Injected, never wall clock.
	Reference time.Time
	// ValidKeys holds the foreign keys of the already-cleaned parent dataset
	// when the schema declares a ForeignKey column.
	ValidKeys map[int64]struct{}
	// Rules are evaluated against the cleaned output to produce the report
	// checks. Nil means no threshold checks.
	Rules *Rules
	// Logger receives warnings about coercion failures and dropped rows.
	Logger *zap.SugaredLogger
}

func (o Options) logger() *zap.SugaredLogger {
	if o.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return o.Logger
}

// Clean normalizes a raw table against a declared schema and returns the
// cleaned table plus its quality report. An empty or nil input yields an
// empty, well-typed output and a zero-row report; cleaning never fails.
func Clean(raw *table.Table, schema Schema, opts Options) (*table.Table, Report) {
	log := opts.logger()
	report := Report{Dataset: schema.Name}
	if raw == nil || raw.Len() == 0 || raw.Width() == 0 {
		return emptyOutput(schema), report
	}
	report.RowsIn = raw.Len()
	n := raw.Len()

	// 1. Type coercion. Schema columns absent from the input are a
	// configuration defect: warn and skip the column.
	cols := make([]colData, 0, len(schema.Order))
	for _, name := range schema.Order {
		spec := schema.Columns[name]
		src, ok := raw.Column(name)
		if !ok {
			log.Warnw("schema column missing from input, skipped",
				"dataset", schema.Name, "error", qerrors.NewColumnNotFoundError("Clean", name))
			continue
		}
		cd := coerce(src, spec.Kind)
		if failed := coercionFailures(src, cd); failed > 0 {
			log.Warnw("values failed type coercion", "dataset", schema.Name, "column", name, "count", failed)
		}
		cols = append(cols, cd)
	}
	if len(cols) == 0 {
		return emptyOutput(schema), report
	}

	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	// 2. Deduplicate on the primary key, first occurrence wins, then on each
	// declared unique field.
	dedupe := func(field string) {
		cd, ok := findCol(cols, field)
		if !ok {
			return
		}
		seen := make(map[string]struct{}, n)
		for i := range n {
			if !keep[i] {
				continue
			}
			k, valid := cd.key(i)
			if !valid {
				continue
			}
			if _, dup := seen[k]; dup {
				keep[i] = false
				report.Dropped.Duplicates++
				continue
			}
			seen[k] = struct{}{}
		}
	}
	if schema.PrimaryKey != "" {
		dedupe(schema.PrimaryKey)
	}
	for _, field := range schema.Unique {
		dedupe(field)
	}

	// 3. Temporal validity: future-dated rows are corrupt.
	for _, cd := range cols {
		if cd.kind != table.Time {
			continue
		}
		for i := range n {
			if keep[i] && cd.valid[i] && cd.times[i].After(opts.Reference) {
				keep[i] = false
				report.Dropped.FutureDates++
			}
		}
	}

	// 4. Missing-value policies. Fills mutate the working copy; DropRow marks
	// the row. Unspecified columns default to DropRow via the zero value.
	for ci := range cols {
		spec := schema.Columns[cols[ci].name]
		applyMissingPolicy(&cols[ci], spec, keep, &report)
	}

	// 5. Domain bounds on numeric columns.
	for _, cd := range cols {
		spec := schema.Columns[cd.name]
		if spec.Bounds == nil {
			continue
		}
		if cd.kind != table.Float64 && cd.kind != table.Int64 {
			continue
		}
		for i := range n {
			if !keep[i] || !cd.valid[i] {
				continue
			}
			var v float64
			if cd.kind == table.Int64 {
				v = float64(cd.ints[i])
			} else {
				v = cd.floats[i]
			}
			if v <= spec.Bounds.Min || v > spec.Bounds.Max {
				keep[i] = false
				report.Dropped.OutOfBounds++
			}
		}
	}

	// 6. Substring validation (e.g. email must contain "@").
	for field, substr := range schema.Contains {
		cd, ok := findCol(cols, field)
		if !ok || cd.kind != table.String {
			continue
		}
		for i := range n {
			if keep[i] && cd.valid[i] && !strings.Contains(cd.strs[i], substr) {
				keep[i] = false
				report.Dropped.Invalid++
			}
		}
	}

	// 7. Referential integrity against the parent dataset.
	if schema.ForeignKey != "" && opts.ValidKeys != nil {
		if cd, ok := findCol(cols, schema.ForeignKey); ok && cd.kind == table.Int64 {
			for i := range n {
				if !keep[i] {
					continue
				}
				if !cd.valid[i] {
					continue // already handled by the missing policy
				}
				if _, valid := opts.ValidKeys[cd.ints[i]]; !valid {
					keep[i] = false
					report.Dropped.InvalidRefs++
				}
			}
		}
	}

	if d := report.Dropped; d.total() > 0 {
		log.Infow("rows dropped during cleaning", "dataset", schema.Name,
			"duplicates", d.Duplicates, "future_dates", d.FutureDates,
			"missing", d.Missing, "out_of_bounds", d.OutOfBounds,
			"invalid", d.Invalid, "invalid_refs", d.InvalidRefs)
	}

	built := make([]*table.Column, len(cols))
	for i, cd := range cols {
		built[i] = cd.build()
	}
	cleaned := table.New(built...).Filter(keep)
	report.RowsOut = cleaned.Len()
	if opts.Rules != nil {
		report.Checks = evaluate(cleaned, *opts.Rules, opts.Reference)
	}
	return cleaned, report
}

// applyMissingPolicy resolves missing values in one column according to its
// declared policy.
func applyMissingPolicy(cd *colData, spec ColumnSpec, keep []bool, report *Report) {
	n := len(cd.valid)
	switch spec.Policy {
	case DropRow:
		for i := range n {
			if keep[i] && !cd.valid[i] {
				keep[i] = false
				report.Dropped.Missing++
			}
		}
	case FillConstant:
		for i := range n {
			if cd.valid[i] {
				continue
			}
			switch cd.kind {
			case table.String:
				if s, ok := spec.Fill.(string); ok {
					cd.strs[i] = s
					cd.valid[i] = true
				}
			case table.Int64:
				if v, ok := asInt64(spec.Fill); ok {
					cd.ints[i] = v
					cd.valid[i] = true
				}
			case table.Float64:
				if v, ok := asFloat64(spec.Fill); ok {
					cd.floats[i] = v
					cd.valid[i] = true
				}
			case table.Bool:
				if v, ok := spec.Fill.(bool); ok {
					cd.bools[i] = v
					cd.valid[i] = true
				}
			}
		}
	case FillStatistic:
		fillStatistic(cd)
	case ForwardFill:
		forwardFill(cd)
	}
}

// fillStatistic fills numeric columns with the mean of the valid values and
// categorical columns with the most frequent value.
func fillStatistic(cd *colData) {
	switch cd.kind {
	case table.Float64, table.Int64:
		sum, cnt := 0.0, 0
		for i, ok := range cd.valid {
			if !ok {
				continue
			}
			if cd.kind == table.Float64 {
				sum += cd.floats[i]
			} else {
				sum += float64(cd.ints[i])
			}
			cnt++
		}
		if cnt == 0 {
			return
		}
		mean := sum / float64(cnt)
		for i, ok := range cd.valid {
			if ok {
				continue
			}
			if cd.kind == table.Float64 {
				cd.floats[i] = mean
			} else {
				cd.ints[i] = int64(mean)
			}
			cd.valid[i] = true
		}
	case table.String:
		mode, ok := mostFrequent(cd)
		if !ok {
			mode = "UNKNOWN"
		}
		for i, valid := range cd.valid {
			if !valid {
				cd.strs[i] = mode
				cd.valid[i] = true
			}
		}
	}
}

// mostFrequent returns the modal value of a string column. Ties break on the
// lexicographically smaller value so the fill is deterministic.
func mostFrequent(cd *colData) (string, bool) {
	counts := make(map[string]int)
	for i, ok := range cd.valid {
		if ok {
			counts[cd.strs[i]]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestCount := "", -1
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best, true
}

func forwardFill(cd *colData) {
	lastValid := -1
	for i, ok := range cd.valid {
		if ok {
			lastValid = i
			continue
		}
		if lastValid < 0 {
			continue
		}
		switch cd.kind {
		case table.String:
			cd.strs[i] = cd.strs[lastValid]
		case table.Int64:
			cd.ints[i] = cd.ints[lastValid]
		case table.Float64:
			cd.floats[i] = cd.floats[lastValid]
		case table.Bool:
			cd.bools[i] = cd.bools[lastValid]
		case table.Time:
			cd.times[i] = cd.times[lastValid]
		}
		cd.valid[i] = true
	}
}

// coercionFailures counts values that were present in the source but did not
// survive coercion.
func coercionFailures(src *table.Column, cd colData) int {
	failed := 0
	for i := range src.Len() {
		if !src.IsNull(i) && !cd.valid[i] {
			failed++
		}
	}
	return failed
}

func findCol(cols []colData, name string) (*colData, bool) {
	for i := range cols {
		if cols[i].name == name {
			return &cols[i], true
		}
	}
	return nil, false
}

// emptyOutput builds a zero-row table with the schema's column types.
func emptyOutput(schema Schema) *table.Table {
	cols := make([]*table.Column, 0, len(schema.Order))
	for _, name := range schema.Order {
		cols = append(cols, colData{name: name, kind: schema.Columns[name].Kind}.build())
	}
	return table.New(cols...)
}

// ExtractKeys collects the valid int64 keys of a cleaned column, typically the
// parent primary key handed to a dependent dataset's cleaning pass.
func ExtractKeys(t *table.Table, column string) map[int64]struct{} {
	keys := make(map[int64]struct{})
	col, ok := t.Column(column)
	if !ok {
		return keys
	}
	values, valid := col.Int64s()
	for i, v := range values {
		if valid[i] {
			keys[v] = struct{}{}
		}
	}
	return keys
}
