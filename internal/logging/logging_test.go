package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn := New(&buf, Options{Level: slog.LevelInfo})
	defer closeFn()
	logger.Debug("hidden")
	logger.Info("loaded dataset", "dataset", "original", "rows", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered: %s", out)
	}
	if !strings.Contains(out, "loaded dataset") || !strings.Contains(out, "rows=3") {
		t.Fatalf("unexpected output: %s", out)
	}
}

type recordingHandler struct {
	level   slog.Level
	records *[]string
	attrs   []slog.Attr
}

func (h recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h recordingHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	for _, a := range h.attrs {
		msg += " " + a.String()
	}
	*h.records = append(*h.records, msg)
	return nil
}

func (h recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return h
}

func (h recordingHandler) WithGroup(string) slog.Handler { return h }

func TestMultiHandlerFansOut(t *testing.T) {
	var debugRecs, warnRecs []string
	m := &multiHandler{handlers: []slog.Handler{
		recordingHandler{level: slog.LevelDebug, records: &debugRecs},
		recordingHandler{level: slog.LevelWarn, records: &warnRecs},
	}}
	logger := slog.New(m).With("check", "kwh")
	logger.Info("info")
	logger.Warn("warn")
	if len(debugRecs) != 2 || len(warnRecs) != 1 {
		t.Fatalf("unexpected fan out: %v %v", debugRecs, warnRecs)
	}
	if warnRecs[0] != "warn check=kwh" {
		t.Fatalf("attrs not propagated: %q", warnRecs[0])
	}
	if m.Enabled(context.Background(), slog.LevelDebug-1) {
		t.Fatalf("no handler accepts level below debug")
	}
	if _, ok := m.WithGroup("g").(*multiHandler); !ok {
		t.Fatalf("WithGroup should keep the multi handler")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatalf("expected discard logger")
	}
	if OrDiscard(nil).Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("discard logger should not be enabled")
	}
	l := slog.Default()
	if OrDiscard(l) != l {
		t.Fatalf("expected passthrough")
	}
}
