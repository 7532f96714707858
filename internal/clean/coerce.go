package clean

import (
	"strconv"
	"strings"
	"time"

	"github.com/quarrydata/quarry/internal/table"
)

// colData is the mutable working copy of one column during a cleaning pass.
// Exactly one value slice is populated, matching kind.
type colData struct {
	name   string
	kind   table.Kind
	strs   []string
	ints   []int64
	floats []float64
	bools  []bool
	times  []time.Time
	valid  []bool
}

// dateLayouts are tried in order when parsing timestamps from strings.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	// Accept integral floats like "42.0".
	if f, ok := parseFloat(s); ok && f == float64(int64(f)) {
		return int64(f), true
	}
	return 0, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}

// coerce converts a raw column to the target kind. Failed conversions become
// missing values; coerce itself never fails.
func coerce(col *table.Column, kind table.Kind) colData {
	n := col.Len()
	out := colData{name: col.Name(), kind: kind, valid: make([]bool, n)}
	switch kind {
	case table.String:
		out.strs = make([]string, n)
	case table.Int64:
		out.ints = make([]int64, n)
	case table.Float64:
		out.floats = make([]float64, n)
	case table.Bool:
		out.bools = make([]bool, n)
	case table.Time:
		out.times = make([]time.Time, n)
	}

	for i := range n {
		v := col.Value(i)
		if v == nil {
			continue
		}
		switch kind {
		case table.String:
			out.strs[i], out.valid[i] = asString(v)
		case table.Int64:
			out.ints[i], out.valid[i] = asInt64(v)
		case table.Float64:
			out.floats[i], out.valid[i] = asFloat64(v)
		case table.Bool:
			out.bools[i], out.valid[i] = asBool(v)
		case table.Time:
			out.times[i], out.valid[i] = asTime(v)
		}
	}
	return out
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return "", false
		}
		return s, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.Format(time.RFC3339), true
	}
	return "", false
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	case string:
		return parseInt(x)
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		return parseFloat(x)
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		return parseBool(x)
	case int64:
		return x != 0, true
	}
	return false, false
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case string:
		return parseTime(x)
	}
	return time.Time{}, false
}

// build converts the working copy back into an immutable column.
func (c colData) build() *table.Column {
	switch c.kind {
	case table.Int64:
		return table.NewInt64Column(c.name, c.ints, c.valid)
	case table.Float64:
		return table.NewFloat64Column(c.name, c.floats, c.valid)
	case table.Bool:
		return table.NewBoolColumn(c.name, c.bools, c.valid)
	case table.Time:
		return table.NewTimeColumn(c.name, c.times, c.valid)
	default:
		return table.NewStringColumn(c.name, c.strs, c.valid)
	}
}

// key returns a stable string form of the value at i, used for dedupe and
// most-frequent statistics. Missing values key to the empty string.
func (c colData) key(i int) (string, bool) {
	if !c.valid[i] {
		return "", false
	}
	switch c.kind {
	case table.Int64:
		return strconv.FormatInt(c.ints[i], 10), true
	case table.Float64:
		return strconv.FormatFloat(c.floats[i], 'g', -1, 64), true
	case table.Bool:
		return strconv.FormatBool(c.bools[i]), true
	case table.Time:
		return c.times[i].Format(time.RFC3339Nano), true
	default:
		return c.strs[i], true
	}
}
