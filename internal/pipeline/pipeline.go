// Package pipeline orchestrates a full run: silver (clean + quality gate)
// then gold (dimensions, facts, metric aggregators, ML enrichment), handing
// every output table to the sink. A run degrades instead of halting: a failed
// aggregator drops only its own tables.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/quarrydata/quarry/internal/clean"
	"github.com/quarrydata/quarry/internal/config"
	"github.com/quarrydata/quarry/internal/enrich"
	"github.com/quarrydata/quarry/internal/metrics"
	"github.com/quarrydata/quarry/internal/parallel"
	"github.com/quarrydata/quarry/internal/table"
	"github.com/quarrydata/quarry/internal/warehouse"
)

// Source supplies raw tables by dataset name.
type Source interface {
	Read(dataset string) (*table.Table, error)
}

// Sink persists named output tables under a category. Writes are full
// overwrites.
type Sink interface {
	Write(category, name string, t *table.Table) error
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Quality holds the per-dataset cleaning reports in processing order.
	Quality []clean.Report

	// RowCounts maps stage names to output row counts.
	RowCounts map[string]int

	TablesWritten int
	Failures      int
}

// Runner wires the collaborators for a run.
type Runner struct {
	Source Source
	Sink   Sink
	Config config.Config
	Logger *zap.SugaredLogger

	// Reference is the pinned "now". Zero means wall clock at Run time.
	Reference time.Time
}

func (r *Runner) logger() *zap.SugaredLogger {
	if r.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return r.Logger
}

// Run executes the full pipeline and returns its report. The returned error
// is non-nil only for unusable inputs or a cancelled context; data defects
// degrade to smaller output.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		RowCounts: map[string]int{},
	}
	reference := r.Reference
	if reference.IsZero() {
		reference = time.Now()
	}
	reference = r.Config.ReferenceTime(reference)

	log := r.logger().With("run_id", report.RunID)
	log.Infow("run started", "reference", reference)

	customers, purchases, err := r.silver(ctx, reference, report, log)
	if err != nil {
		return report, err
	}
	if err := r.gold(ctx, reference, customers, purchases, report, log); err != nil {
		return report, err
	}

	report.FinishedAt = time.Now()
	log.Infow("run finished",
		"tables_written", report.TablesWritten,
		"failures", report.Failures,
		"elapsed", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// silver cleans the raw datasets in referential order: customers first so
// their keys gate the purchase foreign keys.
func (r *Runner) silver(ctx context.Context, reference time.Time, report *RunReport, log *zap.SugaredLogger) ([]warehouse.Customer, []warehouse.Purchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	rawCustomers, err := r.Source.Read("customers")
	if err != nil {
		return nil, nil, fmt.Errorf("reading customers: %w", err)
	}
	cleanCustomers, custReport := r.cleanDataset(rawCustomers, "customers",
		clean.CustomerSchema(), clean.CustomerRules(), clean.Options{Reference: reference, Logger: log})
	report.Quality = append(report.Quality, custReport)
	report.RowCounts["customers_clean"] = cleanCustomers.Len()
	logQuality(log, custReport)

	rawPurchases, err := r.Source.Read("purchases")
	if err != nil {
		return nil, nil, fmt.Errorf("reading purchases: %w", err)
	}
	validKeys := clean.ExtractKeys(cleanCustomers, "customer_id")
	cleanPurchases, purReport := r.cleanDataset(rawPurchases, "purchases",
		clean.PurchaseSchema(), clean.PurchaseRules(),
		clean.Options{Reference: reference, ValidKeys: validKeys, Logger: log})
	report.Quality = append(report.Quality, purReport)
	report.RowCounts["purchases_clean"] = cleanPurchases.Len()
	logQuality(log, purReport)

	customers := warehouse.DecodeCustomers(cleanCustomers)
	purchases := warehouse.DecodePurchases(cleanPurchases)
	return customers, purchases, nil
}

// cleanDataset applies the schema cleaner, or the generic heuristic cleaner
// when the config says so.
func (r *Runner) cleanDataset(raw *table.Table, name string, schema clean.Schema, rules *clean.Rules, opts clean.Options) (*table.Table, clean.Report) {
	if r.Config.Datasets[name] == "generic" {
		return clean.CleanGeneric(raw, name, clean.DefaultClassifier(), opts)
	}
	opts.Rules = rules
	return clean.Clean(raw, schema, opts)
}

// gold builds the dimensional model, fans the aggregators out over a bounded
// pool, and runs enrichment. Each output table is atomic: it is written in
// full or not at all.
func (r *Runner) gold(ctx context.Context, reference time.Time, customers []warehouse.Customer, purchases []warehouse.Purchase, report *RunReport, log *zap.SugaredLogger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	facts := warehouse.BuildFacts(purchases, customers)
	report.RowCounts["facts"] = len(facts)

	var mu sync.Mutex
	write := func(category, name string, t *table.Table) {
		mu.Lock()
		defer mu.Unlock()
		if err := r.Sink.Write(category, name, t); err != nil {
			log.Errorw("table write failed", "table", name, "error", err)
			report.Failures++
			return
		}
		report.TablesWritten++
	}

	write(metrics.CategoryDimension, "dim_customers", warehouse.CustomerDim(customers))
	write(metrics.CategoryDimension, "dim_products", warehouse.ProductDim(purchases))
	if start, end, ok := factSpan(facts); ok {
		write(metrics.CategoryDimension, "dim_calendar", warehouse.Calendar(start, end))
	}
	write(metrics.CategoryFact, "fact_purchases", warehouse.FactTable(facts))

	input := metrics.Input{Facts: facts, Customers: customers, Reference: reference}
	p := pool.New().WithMaxGoroutines(r.Config.WithDefaults().Workers)
	for _, agg := range metrics.Registry() {
		agg := agg
		p.Go(func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorw("aggregator failed", "aggregator", agg.Name(), "panic", rec)
					mu.Lock()
					report.Failures++
					mu.Unlock()
				}
			}()
			outputs := agg.Tables(input)
			for _, out := range outputs {
				write(out.Category, out.Name, out.Table)
			}
		})
	}
	p.Wait()

	if !r.Config.SkipEnrichment {
		r.enrich(customers, facts, write, log)
	}
	return nil
}

// enrich runs the generic ML pass over the cleaned entity tables.
func (r *Runner) enrich(customers []warehouse.Customer, facts []warehouse.FactRow, write func(string, string, *table.Table), log *zap.SugaredLogger) {
	workers := r.Config.WithDefaults().Workers
	mlPool := parallel.NewPool(workers)
	defer mlPool.Close()
	opts := enrich.Options{
		Contamination: r.Config.Contamination,
		Clusters:      r.Config.Clusters,
		Seed:          r.Config.Seed,
		Pool:          mlPool,
		Logger:        log,
	}
	write(metrics.CategoryML, "customers_enriched", enrich.Enrich(warehouse.CustomerDim(customers), opts))
	write(metrics.CategoryML, "purchases_enriched", enrich.Enrich(warehouse.FactTable(facts), opts))
}

func logQuality(log *zap.SugaredLogger, rep clean.Report) {
	fields := []any{
		"dataset", rep.Dataset,
		"rows_in", rep.RowsIn,
		"rows_out", rep.RowsOut,
		"pass", rep.Pass(),
	}
	if rep.Pass() {
		log.Infow("quality gate", fields...)
	} else {
		log.Warnw("quality gate failed", fields...)
	}
}

// factSpan returns the first and last purchase timestamps.
func factSpan(facts []warehouse.FactRow) (time.Time, time.Time, bool) {
	if len(facts) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end := facts[0].At, facts[0].At
	for _, f := range facts[1:] {
		if f.At.Before(start) {
			start = f.At
		}
		if f.At.After(end) {
			end = f.At
		}
	}
	return start, end, true
}
