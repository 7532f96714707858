package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/quarrydata/quarry"
	"github.com/quarrydata/quarry/internal/config"
	"github.com/quarrydata/quarry/internal/version"
)

func customUsage() {
	fmt.Fprintf(os.Stderr, "quarry analytics pipeline (version %s)\n\n", version.Version)
	fmt.Fprintf(os.Stderr, "Usage: quarry [options]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprintf(os.Stderr, "  --input DIR\n\t\tDirectory holding the raw <dataset>.csv files (default: ./data)\n")
	fmt.Fprintf(os.Stderr, "  --output DIR\n\t\tDirectory for the Parquet output tables (default: ./out)\n")
	fmt.Fprintf(os.Stderr, "  --config FILE\n\t\tJSON or YAML run configuration\n")
	fmt.Fprintf(os.Stderr, "  --reference TIME\n\t\tPinned reference time, RFC 3339 (default: now)\n")
	fmt.Fprintf(os.Stderr, "  --skip-enrichment\n\t\tDisable the ML enrichment pass\n")
	fmt.Fprintf(os.Stderr, "  --verbose\n\t\tEnable debug logging\n")
	fmt.Fprintf(os.Stderr, "  -v, --version\n\t\tPrint version information and exit\n")
	fmt.Fprintf(os.Stderr, "  -h, --help\n\t\tShow this help message and exit\n")
}

func main() {
	versionFlag := flag.Bool("v", false, "Print version and exit")
	flag.BoolVar(versionFlag, "version", false, "Print version and exit") // alias
	inputFlag := flag.String("input", "./data", "Raw CSV input directory")
	outputFlag := flag.String("output", "./out", "Parquet output directory")
	configFlag := flag.String("config", "", "Run configuration file (JSON or YAML)")
	referenceFlag := flag.String("reference", "", "Pinned reference time, RFC 3339")
	skipEnrichFlag := flag.Bool("skip-enrichment", false, "Disable the ML enrichment pass")
	verboseFlag := flag.Bool("verbose", false, "Enable debug logging")

	//nolint:reassign // Standard Go pattern for customizing flag usage message
	flag.Usage = customUsage
	flag.Parse()

	if *versionFlag {
		fmt.Print(version.Info().String())
		return
	}

	cfg := config.LoadFromEnv()
	if *configFlag != "" {
		loaded, err := config.LoadFromFile(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "quarry: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *referenceFlag != "" {
		cfg.Reference = *referenceFlag
	}
	if *skipEnrichFlag {
		cfg.SkipEnrichment = true
	}
	if *verboseFlag {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "quarry: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quarry: building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	fs := afero.NewOsFs()
	p := quarry.New(
		quarry.NewCSVSource(fs, *inputFlag),
		quarry.NewParquetSink(fs, *outputFlag),
		cfg,
		sugar,
		time.Now(),
	)

	report, err := p.Run(context.Background())
	if err != nil {
		sugar.Errorw("run failed", "error", err)
		os.Exit(1)
	}
	if report.Failures > 0 {
		sugar.Warnw("run finished with failures",
			"tables_written", report.TablesWritten, "failures", report.Failures)
		os.Exit(2)
	}
	sugar.Infow("run complete",
		"run_id", report.RunID, "tables_written", report.TablesWritten)
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
