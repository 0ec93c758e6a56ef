// Command kwh-check verifies that a processed kWh dataset carries the original
// per-postcode weekly kWh through to its kWh(t-0) column for a deterministic
// sample of rows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"kwhcheck/internal/blob"
	"kwhcheck/internal/check"
	"kwhcheck/internal/config"
	"kwhcheck/internal/logging"
	"kwhcheck/internal/observability"
	"kwhcheck/internal/source"
	"kwhcheck/internal/table"
	"kwhcheck/internal/verify"
)

var exitFunc = os.Exit

// errUsage marks configuration problems, which exit with status 2.
var errUsage = errors.New("usage")

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kwh-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML config (optional)")
	fs.String("original", source.DefaultOriginal, "original dataset reference (file, object key or table)")
	fs.String("processed", source.DefaultProcessed, "processed dataset reference (file, object key or table)")
	fs.String("source", string(source.KindBlob), "fixture source: blob|sqlite|postgres")
	fs.String("dsn", "", "database file or connection string for sql sources")
	fs.Int("sample-size", verify.DefaultSampleSize, "processed rows to sample")
	fs.Uint64("seed", verify.DefaultSeed, "sampling seed")
	fs.Int("head", 5, "rows of each sorted table to print")
	fs.String("metrics-textfile", "", "write Prometheus metrics to this file")
	fs.Bool("report", false, "publish the JSON run report to the blob store")
	fs.String("log-level", "info", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = applyFlags(fs, &cfg)
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Consistency check failed: %v\n", err)
		return 2
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger, closeLog := logging.New(stderr, logging.Options{Level: level, SeqURL: cfg.Log.SeqURL})
	defer closeLog()

	if err := run(context.Background(), cfg, logger, stdout); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "Consistency check failed: %v\n", err); writeErr != nil {
			return 1
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	if _, writeErr := fmt.Fprintln(stdout, "Consistency check passed."); writeErr != nil {
		return 1
	}
	return 0
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(fs *flag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "original":
			cfg.Original = v
		case "processed":
			cfg.Processed = v
		case "source":
			cfg.Source.Kind = v
		case "dsn":
			cfg.Source.DSN = v
		case "sample-size":
			cfg.Check.SampleSize, err = strconv.Atoi(v)
		case "seed":
			cfg.Check.Seed, err = strconv.ParseUint(v, 10, 64)
		case "head":
			cfg.Check.Head, err = strconv.Atoi(v)
		case "metrics-textfile":
			cfg.Metrics.Textfile = v
		case "report":
			cfg.Report.Enabled, err = strconv.ParseBool(v)
		case "log-level":
			cfg.Log.Level = v
		}
	})
	return err
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer) error {
	kind, _ := source.ParseKind(cfg.Source.Kind)
	var store blob.Store
	if kind == source.KindBlob || cfg.Report.Enabled {
		s, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return fmt.Errorf("%w: open blob store: %v", errUsage, err)
		}
		store = s
	}
	loader, err := source.Open(ctx, cfg.Source, store)
	if err != nil {
		return fmt.Errorf("open %s source: %w", kind, err)
	}
	defer func() { _ = loader.Close() }()

	metrics := observability.NewMetrics()
	runner := &check.Runner{
		Loader:       loader,
		Options:      cfg.VerifyOptions(),
		Logger:       logger,
		Metrics:      metrics,
		ReportPrefix: cfg.Report.Prefix,
	}
	if cfg.Report.Enabled {
		runner.Reports = store
	}

	out, runErr := runner.Run(ctx, cfg.Original, cfg.Processed)
	printSummary(stdout, runner.Options.KeyColumn, out.Report, cfg.Check.Head)
	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
		}
	}
	return runErr
}

// printSummary writes the distinct-key diagnostics and the heads of both
// sorted tables, as far as the run got.
func printSummary(w io.Writer, keyColumn string, r verify.Report, head int) {
	if r.OriginalRows == 0 && r.ProcessedRows == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "Distinct %s in original: %d\n", keyColumn, r.OriginalKeys)
	_, _ = fmt.Fprintf(w, "Distinct %s in processed: %d\n", keyColumn, r.ProcessedKeys)
	if r.SampleRows == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "Distinct %s in sampled processed: %d\n", keyColumn, r.SampleKeys)
	_, _ = fmt.Fprintf(w, "Distinct %s in filtered original: %d\n", keyColumn, r.MatchedKeys)
	printHead(w, "Sorted processed sample", r.Sample, head)
	printHead(w, "Sorted filtered original", r.Matched, head)
}

func printHead(w io.Writer, title string, t *table.Table, n int) {
	if t == nil || n == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "%s (first %d of %d rows):\n", title, min(n, t.Len()), t.Len())
	_ = t.Head(n).EncodeCSV(w)
}
