// Package quarry transforms raw transactional records through a three-tier
// pipeline: raw landing, cleaned and validated, and business-metric tables,
// plus a generic ML enrichment pass. This package is the public API; the
// stages live under internal/.
package quarry

import (
	"context"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/quarrydata/quarry/internal/clean"
	"github.com/quarrydata/quarry/internal/config"
	"github.com/quarrydata/quarry/internal/enrich"
	"github.com/quarrydata/quarry/internal/pipeline"
	"github.com/quarrydata/quarry/internal/storage"
	"github.com/quarrydata/quarry/internal/table"
)

// Config is the run configuration.
type Config = config.Config

// Source supplies raw tables by dataset name.
type Source = pipeline.Source

// Sink persists named output tables under a category.
type Sink = pipeline.Sink

// Table is the null-aware columnar table shared by all stages.
type Table = table.Table

// QualityReport is the per-dataset cleaning report.
type QualityReport = clean.Report

// RunReport summarizes one pipeline run.
type RunReport = pipeline.RunReport

// NewConfig returns the default configuration.
func NewConfig() Config { return config.New() }

// LoadConfig loads configuration from a JSON or YAML file.
func LoadConfig(path string) (Config, error) { return config.LoadFromFile(path) }

// NewCSVSource reads raw datasets from <dir>/<dataset>.csv.
func NewCSVSource(fs afero.Fs, dir string) Source { return storage.NewCSVSource(fs, dir) }

// NewParquetSink writes output tables to <dir>/<category>/<name>.parquet.
func NewParquetSink(fs afero.Fs, dir string) Sink { return storage.NewParquetSink(fs, dir) }

// Pipeline runs the full transform: clean, dimensional model, aggregators,
// enrichment.
type Pipeline struct {
	runner *pipeline.Runner
}

// New creates a pipeline. A nil logger disables logging; a zero reference
// means wall clock at Run time (pin it for reproducible output).
func New(source Source, sink Sink, cfg Config, logger *zap.SugaredLogger, reference time.Time) *Pipeline {
	return &Pipeline{runner: &pipeline.Runner{
		Source:    source,
		Sink:      sink,
		Config:    cfg.WithDefaults(),
		Logger:    logger,
		Reference: reference,
	}}
}

// Run executes the pipeline.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	return p.runner.Run(ctx)
}

// Enrich applies the generic ML pass (features, anomalies, clusters, score)
// to any table, outside of a full pipeline run.
func Enrich(t *Table, cfg Config) *Table {
	return enrich.Enrich(t, enrich.Options{
		Contamination: cfg.Contamination,
		Clusters:      cfg.Clusters,
		Seed:          cfg.Seed,
	})
}
