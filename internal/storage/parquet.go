package storage

import (
	"fmt"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/spf13/afero"

	qerrors "github.com/quarrydata/quarry/internal/errors"
	"github.com/quarrydata/quarry/internal/table"
)

// ParquetSink persists output tables as <dir>/<category>/<name>.parquet with
// snappy compression. Writes are full overwrites.
type ParquetSink struct {
	fs  afero.Fs
	dir string
}

// NewParquetSink creates a sink rooted at dir.
func NewParquetSink(fs afero.Fs, dir string) *ParquetSink {
	return &ParquetSink{fs: fs, dir: dir}
}

// Write persists one table under its category directory, replacing any
// previous version.
func (s *ParquetSink) Write(category, name string, t *table.Table) error {
	if name == "" {
		return qerrors.NewInvalidInputError("WriteTable", "empty table name")
	}
	if t == nil {
		return qerrors.NewInvalidInputError("WriteTable", "nil table")
	}
	dir := filepath.Join(s.dir, category)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return qerrors.NewInternalError("WriteTable", fmt.Errorf("creating %s: %w", dir, err))
	}
	path := filepath.Join(dir, name+".parquet")
	f, err := s.fs.Create(path)
	if err != nil {
		return qerrors.NewInternalError("WriteTable", fmt.Errorf("creating %s: %w", path, err))
	}
	defer f.Close()

	rec := buildRecord(t)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(memory.NewGoAllocator()))
	w, err := pqarrow.NewFileWriter(rec.Schema(), f, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating parquet writer for %s: %w", path, err)
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// buildRecord assembles an Arrow record from the table's columns.
func buildRecord(t *table.Table) arrow.Record {
	names := t.Columns()
	fields := make([]arrow.Field, 0, len(names))
	arrays := make([]arrow.Array, 0, len(names))
	for _, name := range names {
		col, _ := t.Column(name)
		arr := col.Array()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}
	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrays, int64(t.Len()))
	for _, arr := range arrays {
		arr.Release()
	}
	return rec
}
