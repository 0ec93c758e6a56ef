package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kwhcheck/internal/blob"
	"kwhcheck/internal/table"
	"kwhcheck/internal/verify"
)

// BlobLoader decodes CSV objects from a blob store.
// When the store is filesystem backed, absolute paths and relative paths that
// leave the store root are read from their own directory.
type BlobLoader struct {
	Store blob.Store
}

// Load reads ref as CSV and checks the required columns.
func (l *BlobLoader) Load(ctx context.Context, dataset, ref string, required ...string) (*table.Table, error) {
	store, key, err := l.resolve(ref)
	if err != nil {
		return nil, &verify.FixtureError{Dataset: dataset, Ref: ref, Err: err}
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, &verify.FixtureError{Dataset: dataset, Ref: ref, Err: err}
	}
	defer func() { _ = rc.Close() }()
	t, err := table.DecodeCSV(dataset, rc, required...)
	if err != nil {
		return nil, &verify.FixtureError{Dataset: dataset, Ref: ref, Err: err}
	}
	return t, nil
}

func (l *BlobLoader) resolve(ref string) (blob.Store, string, error) {
	if l.Store == nil {
		return nil, "", fmt.Errorf("no blob store configured")
	}
	if l.Store.Driver() != blob.DriverFilesystem || !leavesRoot(ref) {
		return l.Store, ref, nil
	}
	p := ref
	if !filepath.IsAbs(p) {
		if rooted, ok := l.Store.(interface{ Root() string }); ok {
			p = filepath.Join(rooted.Root(), p)
		}
	}
	p, err := filepath.Abs(p)
	if err != nil {
		return nil, "", err
	}
	dir := filepath.Dir(p)
	if _, err := os.Stat(dir); err != nil {
		return nil, "", err
	}
	store, err := blob.NewFilesystem(dir)
	if err != nil {
		return nil, "", err
	}
	return store, filepath.Base(p), nil
}

// leavesRoot reports whether ref cannot be addressed as a key under a store root.
func leavesRoot(ref string) bool {
	if filepath.IsAbs(ref) {
		return true
	}
	clean := filepath.Clean(ref)
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// Close is a no-op; the store outlives the loader.
func (l *BlobLoader) Close() error { return nil }
