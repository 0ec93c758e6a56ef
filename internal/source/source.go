// Package source loads the original and processed datasets into tables.
// Fixtures are CSV objects in a blob store (a local directory by default) or
// tables in a SQLite/Postgres snapshot database.
package source

import (
	"context"
	"fmt"

	"kwhcheck/internal/blob"
	"kwhcheck/internal/table"
)

// Kind selects where fixtures are read from.
type Kind string

const (
	KindBlob     Kind = "blob"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

const (
	// DefaultOriginal is the reference original dataset file.
	DefaultOriginal = "final_data_SE_cleaned.csv"
	// DefaultProcessed is the reference processed dataset file.
	DefaultProcessed = "final_data_SE_cleaned_processed.csv"
)

// Loader reads a dataset by reference. Failures are reported as *verify.FixtureError.
type Loader interface {
	Load(ctx context.Context, dataset, ref string, required ...string) (*table.Table, error)
	Close() error
}

// Config selects the loader.
type Config struct {
	Kind string `yaml:"kind"` // blob|sqlite|postgres (default blob)
	DSN  string `yaml:"dsn"`  // database file or connection string for sql kinds
}

// ParseKind validates a configured kind; empty means blob.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindBlob:
		return KindBlob, nil
	case KindSQLite, KindPostgres:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown source kind %q", s)
}

// Open builds the loader described by cfg. store is only used by the blob kind.
func Open(ctx context.Context, cfg Config, store blob.Store) (Loader, error) {
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if kind != KindBlob {
		driver := DriverSQLite
		if kind == KindPostgres {
			driver = DriverPostgres
		}
		l, err := OpenSQL(ctx, driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	if store == nil {
		return nil, fmt.Errorf("blob source requires a store")
	}
	return &BlobLoader{Store: store}, nil
}
