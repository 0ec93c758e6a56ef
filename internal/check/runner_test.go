package check

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"kwhcheck/internal/blob"
	"kwhcheck/internal/observability"
	"kwhcheck/internal/source"
	"kwhcheck/internal/table"
	"kwhcheck/internal/verify"
)

// fixtures writes n original rows and n processed rows; delta is added to
// every processed kWh(t-0) value.
func fixtures(t *testing.T, store blob.Store, n int, delta int) {
	t.Helper()
	var orig, proc strings.Builder
	orig.WriteString("PC6,Date,PC6_WeekIndex,kWh\n")
	proc.WriteString("PC6,Date,PC6_WeekIndex,kWh(t-0),kWh(t-1)\n")
	for i := 0; i < n; i++ {
		pc6 := fmt.Sprintf("%04dAA", 1000+i)
		fmt.Fprintf(&orig, "%s,2020-01-06,%s_1,%d\n", pc6, pc6, i)
		fmt.Fprintf(&proc, "%s,2020-01-06,%s_1,%d,\n", pc6, pc6, i+delta)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "original.csv", strings.NewReader(orig.String()), blob.PutOptions{}); err != nil {
		t.Fatalf("put original: %v", err)
	}
	if _, err := store.Put(ctx, "processed.csv", strings.NewReader(proc.String()), blob.PutOptions{}); err != nil {
		t.Fatalf("put processed: %v", err)
	}
}

func newRunner(t *testing.T, fixtureStore, reports blob.Store) (*Runner, *bytes.Buffer) {
	t.Helper()
	opts := verify.DefaultOptions()
	opts.SampleSize = 10
	var logs bytes.Buffer
	return &Runner{
		Loader:       &source.BlobLoader{Store: fixtureStore},
		Options:      opts,
		Logger:       slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Metrics:      observability.NewMetrics(),
		Reports:      reports,
		ReportPrefix: "reports",
		Now:          func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}, &logs
}

func readDocument(t *testing.T, store blob.Store, key string) Document {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get report %s: %v", key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	return doc
}

func TestRunPasses(t *testing.T) {
	store := blob.NewMemory()
	reports := blob.NewMemory()
	fixtures(t, store, 20, 0)
	r, logs := newRunner(t, store, reports)

	out, err := r.Run(context.Background(), "original.csv", "processed.csv")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Report.RowsVerified != 10 || out.Report.OriginalKeys != 20 || out.Report.MatchedRows != 10 {
		t.Fatalf("unexpected report %+v", out.Report)
	}
	if out.ReportKey != "reports/20240102T030405.000000000Z.json" {
		t.Fatalf("unexpected report key %s", out.ReportKey)
	}
	doc := readDocument(t, reports, out.ReportKey)
	if !doc.Passed || doc.Kind != "" || doc.SampleSize != 10 || doc.Report.RowsVerified != 10 {
		t.Fatalf("unexpected document %+v", doc)
	}
	for _, want := range []string{"dataset loaded", "distinct keys before filtering", "distinct keys after filtering", "verifying rows", "consistency check passed"} {
		if !strings.Contains(logs.String(), want) {
			t.Fatalf("log missing %q:\n%s", want, logs.String())
		}
	}
}

func TestRunValueMismatch(t *testing.T) {
	store := blob.NewMemory()
	reports := blob.NewMemory()
	fixtures(t, store, 20, 1)
	r, _ := newRunner(t, store, reports)

	out, err := r.Run(context.Background(), "original.csv", "processed.csv")
	var mismatch *verify.ValueMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected value mismatch, got %v", err)
	}
	doc := readDocument(t, reports, out.ReportKey)
	if doc.Passed || doc.Kind != "value_mismatch" || !strings.Contains(doc.Error, mismatch.Key) {
		t.Fatalf("unexpected document %+v", doc)
	}
	if n, err := testutil.GatherAndCount(r.Metrics.Registry(), "kwhcheck_failures_total"); err != nil || n != 1 {
		t.Fatalf("expected one failure series, got %d (%v)", n, err)
	}
}

func TestRunMissingFixture(t *testing.T) {
	store := blob.NewMemory()
	fixtures(t, store, 20, 0)
	r, _ := newRunner(t, store, nil)

	out, err := r.Run(context.Background(), "original.csv", "absent.csv")
	var fe *verify.FixtureError
	if !errors.As(err, &fe) || fe.Dataset != "processed" {
		t.Fatalf("expected processed fixture error, got %v", err)
	}
	if out.ReportKey != "" {
		t.Fatalf("reports disabled, got key %s", out.ReportKey)
	}
}

type plainLoader struct{ err error }

func (l plainLoader) Load(context.Context, string, string, ...string) (*table.Table, error) {
	return nil, l.err
}

func (plainLoader) Close() error { return nil }

func TestRunWrapsLoaderErrors(t *testing.T) {
	boom := errors.New("boom")
	r := &Runner{Loader: plainLoader{err: boom}, Options: verify.DefaultOptions()}
	_, err := r.Run(context.Background(), "a", "b")
	var fe *verify.FixtureError
	if !errors.As(err, &fe) || fe.Dataset != "original" || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fixture error, got %v", err)
	}
	if _, err := (&Runner{}).Run(context.Background(), "a", "b"); err == nil {
		t.Fatalf("expected error without loader")
	}
}

func TestRunPublishConflictKeepsOutcome(t *testing.T) {
	store := blob.NewMemory()
	reports := blob.NewMemory()
	fixtures(t, store, 20, 0)
	r, logs := newRunner(t, store, reports)
	if _, err := r.Run(context.Background(), "original.csv", "processed.csv"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	out, err := r.Run(context.Background(), "original.csv", "processed.csv")
	if err != nil {
		t.Fatalf("second run should still pass: %v", err)
	}
	if out.ReportKey != "" || !strings.Contains(logs.String(), "publish report") {
		t.Fatalf("expected publish warning, key=%q logs=%s", out.ReportKey, logs.String())
	}
	expected := `
# HELP kwhcheck_checks_total Consistency checks run, by result.
# TYPE kwhcheck_checks_total counter
kwhcheck_checks_total{result="passed"} 2
`
	if err := testutil.GatherAndCompare(r.Metrics.Registry(), strings.NewReader(expected), "kwhcheck_checks_total"); err != nil {
		t.Fatalf("unexpected checks_total: %v", err)
	}
}
