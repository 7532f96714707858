package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// scoreEdges returns the four interior cut points that split values into five
// score bands. Quantile edges are preferred; when duplicate edges make the
// quantile cut degenerate, equal-width edges over [min, max] are used
// instead.
func scoreEdges(values []float64) [4]float64 {
	var edges [4]float64
	if len(values) == 0 {
		return edges
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	for i, q := range []float64{0.2, 0.4, 0.6, 0.8} {
		edges[i] = stat.Quantile(q, stat.LinInterp, sorted, nil)
	}
	if edges[0] < edges[1] && edges[1] < edges[2] && edges[2] < edges[3] {
		return edges
	}

	lo, hi := sorted[0], sorted[len(sorted)-1]
	width := (hi - lo) / 5
	for i := range edges {
		edges[i] = lo + float64(i+1)*width
	}
	return edges
}

// bandOf places a value into its 1-5 band given the interior edges. Values on
// an edge fall into the lower band.
func bandOf(v float64, edges [4]float64) int {
	band := 1
	for _, e := range edges {
		if v > e {
			band++
		}
	}
	return band
}
