package source

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // register the pure-Go sqlite driver

	"kwhcheck/internal/table"
	"kwhcheck/internal/verify"
)

const (
	// DriverSQLite is the database/sql name registered by modernc.org/sqlite.
	DriverSQLite = "sqlite"
	// DriverPostgres is the database/sql name registered by pgx.
	DriverPostgres = "pgx"

	dateLayout = "2006-01-02"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// SQLLoader reads whole tables from a snapshot database. The reference is the table name.
type SQLLoader struct {
	driver string
	db     *sql.DB
}

// OpenSQL connects to dsn with the named driver and pings it.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLLoader, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s source requires a dsn", driver)
	}
	openMu.Lock()
	db, err := sqlOpen(driver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &SQLLoader{driver: driver, db: db}, nil
}

// Load selects every row of the named table in storage order.
func (l *SQLLoader) Load(ctx context.Context, dataset, ref string, required ...string) (*table.Table, error) {
	t, err := l.load(ctx, dataset, ref)
	if err == nil {
		err = t.Require(required...)
	}
	if err != nil {
		return nil, &verify.FixtureError{Dataset: dataset, Ref: ref, Err: err}
	}
	return t, nil
}

func (l *SQLLoader) load(ctx context.Context, dataset, ref string) (*table.Table, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(ref))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ref, err)
	}
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := table.New(dataset, cols...)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", ref, err)
		}
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[c] = cell(vals[i])
		}
		t.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return t, nil
}

// Close releases the database handle.
func (l *SQLLoader) Close() error { return l.db.Close() }

// cell renders a scanned value the way it would appear in the CSV export.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(dateLayout)
	}
	return fmt.Sprint(v)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
