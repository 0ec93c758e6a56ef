package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveResult(t *testing.T) {
	m := NewMetrics()
	at := time.Unix(1700000000, 0)
	m.ObserveResult("", 5000, at)
	m.ObserveResult("invariant_c", 0, at)
	m.ObserveResult("invariant_c", 0, at)

	if got := testutil.ToFloat64(m.checks.WithLabelValues(ResultPassed)); got != 1 {
		t.Fatalf("expected 1 passed check, got %v", got)
	}
	if got := testutil.ToFloat64(m.checks.WithLabelValues(ResultFailed)); got != 2 {
		t.Fatalf("expected 2 failed checks, got %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("invariant_c")); got != 2 {
		t.Fatalf("expected 2 invariant_c failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.rowsVerified); got != 0 {
		t.Fatalf("rows verified should reflect the last run, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastRun); got != 1700000000 {
		t.Fatalf("unexpected last run %v", got)
	}
}

func TestObserveTablesAndStages(t *testing.T) {
	m := NewMetrics()
	m.ObserveTables(map[string]TableSizes{
		"original": {Rows: 8000, Keys: 7990},
		"sample":   {Rows: 5000, Keys: 5000},
	})
	if got := testutil.ToFloat64(m.distinctKeys.WithLabelValues("original")); got != 7990 {
		t.Fatalf("unexpected distinct keys %v", got)
	}
	if got := testutil.ToFloat64(m.rows.WithLabelValues("sample")); got != 5000 {
		t.Fatalf("unexpected sample rows %v", got)
	}
	m.ObserveStage("load_original", true, 20*time.Millisecond)
	m.ObserveStage("verify", false, time.Second)
	m.ObserveStage("", true, time.Second)
	if n := testutil.CollectAndCount(m.stages); n != 2 {
		t.Fatalf("expected 2 stage series, got %d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("verify", true, time.Second)
	m.ObserveTables(map[string]TableSizes{"original": {Rows: 1}})
	m.ObserveResult("fixture", 0, time.Now())
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveResult("value_mismatch", 12, time.Unix(1700000000, 0))
	path := filepath.Join(t.TempDir(), "kwhcheck.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`kwhcheck_checks_total{result="failed"} 1`,
		`kwhcheck_failures_total{kind="value_mismatch"} 1`,
		`kwhcheck_rows_verified 12`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("textfile missing %q:\n%s", want, out)
		}
	}
}
