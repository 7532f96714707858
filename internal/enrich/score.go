package enrich

import (
	"github.com/quarrydata/quarry/internal/table"
)

const maxScoreColumns = 5

// Score appends ml_score: the row mean of up to the first five min-max
// normalized numeric columns, rescaled to [0, 100]. Zero-variance columns
// carry no signal and are skipped.
func Score(t *table.Table, opts Options) *table.Table {
	if t == nil || t.Len() == 0 {
		return t
	}
	n := t.Len()
	_, data := numericMatrix(t)
	if len(data) == 0 {
		return t.WithColumns(table.NewFloat64Column("ml_score", make([]float64, n), nil))
	}
	nCols := len(data[0])
	if nCols > maxScoreColumns {
		nCols = maxScoreColumns
	}

	scores := make([]float64, n)
	counted := 0
	for j := 0; j < nCols; j++ {
		lo, hi := data[0][j], data[0][j]
		for i := range data {
			if data[i][j] < lo {
				lo = data[i][j]
			}
			if data[i][j] > hi {
				hi = data[i][j]
			}
		}
		if hi == lo {
			continue
		}
		counted++
		for i := range data {
			scores[i] += (data[i][j] - lo) / (hi - lo)
		}
	}
	if counted > 0 {
		for i := range scores {
			scores[i] = scores[i] / float64(counted) * 100
		}
	}
	return t.WithColumns(table.NewFloat64Column("ml_score", scores, nil))
}
