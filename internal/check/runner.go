// Package check wires loading, verification, metrics and report publishing
// into a single run.
package check

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"kwhcheck/internal/blob"
	"kwhcheck/internal/logging"
	"kwhcheck/internal/observability"
	"kwhcheck/internal/source"
	"kwhcheck/internal/table"
	"kwhcheck/internal/verify"
)

const reportTimeLayout = "20060102T150405.000000000Z"

// Runner executes one consistency check.
type Runner struct {
	Loader  source.Loader
	Options verify.Options
	Logger  *slog.Logger
	// Metrics may be nil.
	Metrics *observability.Metrics
	// Reports receives the JSON run report; nil disables publishing.
	Reports      blob.Store
	ReportPrefix string
	Now          func() time.Time
}

// Outcome is what a run produced, whether or not it passed.
type Outcome struct {
	Report    verify.Report
	ReportKey string
}

// Document is the JSON report published after each run.
type Document struct {
	Original   string        `json:"original"`
	Processed  string        `json:"processed"`
	SampleSize int           `json:"sample_size"`
	Seed       uint64        `json:"seed"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Passed     bool          `json:"passed"`
	Kind       string        `json:"failure_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Report     verify.Report `json:"report"`
}

// Run loads both datasets and verifies them. The error is the check failure,
// if any; publishing problems are logged and never change the outcome.
func (r *Runner) Run(ctx context.Context, originalRef, processedRef string) (Outcome, error) {
	if r.Loader == nil {
		return Outcome{}, errors.New("check: loader is required")
	}
	log := logging.OrDiscard(r.Logger)
	now := r.now()
	started := now()
	opts := r.Options
	if opts.Progress == nil {
		opts.Progress = func(done, total int) {
			log.Debug("verifying rows", "done", done, "total", total)
		}
	}

	report, err := r.run(ctx, log, opts, originalRef, processedRef)
	finished := now()
	out := Outcome{Report: report}

	kind := verify.Kind(err)
	r.Metrics.ObserveResult(kind, report.RowsVerified, finished)
	if err != nil {
		log.Error("consistency check failed", "kind", kind, "error", err)
	} else {
		log.Info("consistency check passed", "rows_verified", report.RowsVerified)
	}

	if r.Reports != nil {
		doc := Document{
			Original:   originalRef,
			Processed:  processedRef,
			SampleSize: r.Options.SampleSize,
			Seed:       r.Options.Seed,
			StartedAt:  started.UTC(),
			FinishedAt: finished.UTC(),
			Passed:     err == nil,
			Kind:       kind,
			Report:     report,
		}
		if err != nil {
			doc.Error = err.Error()
		}
		key, pubErr := r.publish(ctx, doc)
		if pubErr != nil {
			log.Warn("publish report", "error", pubErr)
		} else {
			out.ReportKey = key
			log.Info("report published", "key", key, "driver", r.Reports.Driver())
		}
	}
	return out, err
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, opts verify.Options, originalRef, processedRef string) (verify.Report, error) {
	keyCol := opts.KeyColumn
	if keyCol == "" {
		keyCol = verify.DefaultKeyColumn
	}
	targetCol := opts.TargetColumn
	if targetCol == "" {
		targetCol = verify.DefaultTargetColumn
	}
	sortCols := opts.SortColumns
	if sortCols == nil {
		sortCols = verify.DefaultSortColumns
	}

	original, err := r.load(ctx, log, "original", originalRef, append([]string{keyCol, targetCol}, sortCols...))
	if err != nil {
		return verify.Report{}, err
	}
	processed, err := r.load(ctx, log, "processed", processedRef, append([]string{keyCol, opts.ProcessedTargetColumn()}, sortCols...))
	if err != nil {
		return verify.Report{}, err
	}

	start := time.Now()
	report, err := verify.Verify(original, processed, opts)
	r.Metrics.ObserveStage("verify", err == nil, time.Since(start))
	r.Metrics.ObserveTables(map[string]observability.TableSizes{
		"original":  {Rows: report.OriginalRows, Keys: report.OriginalKeys},
		"processed": {Rows: report.ProcessedRows, Keys: report.ProcessedKeys},
		"sample":    {Rows: report.SampleRows, Keys: report.SampleKeys},
		"matched":   {Rows: report.MatchedRows, Keys: report.MatchedKeys},
	})
	log.Info("distinct keys before filtering",
		"column", keyCol, "original", report.OriginalKeys, "processed", report.ProcessedKeys)
	if report.SampleRows > 0 {
		log.Info("distinct keys after filtering",
			"column", keyCol, "matched", report.MatchedKeys, "sample", report.SampleKeys,
			"matched_rows", report.MatchedRows, "sample_rows", report.SampleRows)
	}
	return report, err
}

func (r *Runner) load(ctx context.Context, log *slog.Logger, dataset, ref string, required []string) (*table.Table, error) {
	start := time.Now()
	t, err := r.Loader.Load(ctx, dataset, ref, required...)
	r.Metrics.ObserveStage("load_"+dataset, err == nil, time.Since(start))
	if err != nil {
		var fe *verify.FixtureError
		if !errors.As(err, &fe) {
			err = &verify.FixtureError{Dataset: dataset, Ref: ref, Err: err}
		}
		return nil, err
	}
	log.Info("dataset loaded", "dataset", dataset, "ref", ref, "rows", t.Len(), "columns", len(t.Columns))
	return t, nil
}

func (r *Runner) publish(ctx context.Context, doc Document) (string, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := path.Join(r.ReportPrefix, doc.FinishedAt.Format(reportTimeLayout)+".json")
	if _, err := r.Reports.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"passed": fmt.Sprint(doc.Passed)},
	}); err != nil {
		return "", err
	}
	return key, nil
}

func (r *Runner) now() func() time.Time {
	if r.Now != nil {
		return r.Now
	}
	return time.Now
}
