// Package storage holds the pipeline's I/O collaborators: the bronze CSV
// source and the gold Parquet sink. Both work through afero so tests run
// against an in-memory filesystem.
package storage

import (
	"encoding/csv"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/quarrydata/quarry/internal/table"
)

// CSVSource reads raw datasets from <dir>/<dataset>.csv. Every column is
// loaded as a string; typing is the cleaner's job.
type CSVSource struct {
	fs  afero.Fs
	dir string
}

// NewCSVSource creates a source rooted at dir.
func NewCSVSource(fs afero.Fs, dir string) *CSVSource {
	return &CSVSource{fs: fs, dir: dir}
}

// Read loads one dataset. A missing file is an error; an empty file yields a
// zero-column table.
func (s *CSVSource) Read(dataset string) (*table.Table, error) {
	path := filepath.Join(s.dir, dataset+".csv")
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return table.New(), nil
	}

	header := rows[0]
	cols := make([][]string, len(header))
	valid := make([][]bool, len(header))
	for _, row := range rows[1:] {
		for i := range header {
			v, ok := "", false
			if i < len(row) {
				v = row[i]
				ok = row[i] != ""
			}
			cols[i] = append(cols[i], v)
			valid[i] = append(valid[i], ok)
		}
	}
	out := make([]*table.Column, len(header))
	for i, name := range header {
		out[i] = table.NewStringColumn(name, cols[i], valid[i])
	}
	return table.New(out...), nil
}
