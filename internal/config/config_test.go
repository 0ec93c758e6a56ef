package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kwhcheck.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Check.SampleSize != 5000 || cfg.Check.Seed != 1 {
		t.Fatalf("unexpected check defaults %+v", cfg.Check)
	}
	if cfg.Original != "final_data_SE_cleaned.csv" || cfg.Processed != "final_data_SE_cleaned_processed.csv" {
		t.Fatalf("unexpected fixture defaults %s %s", cfg.Original, cfg.Processed)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	opts := cfg.VerifyOptions()
	if opts.KeyColumn != "PC6_WeekIndex" || opts.ProcessedTargetColumn() != "kWh(t-0)" {
		t.Fatalf("unexpected verify options %+v", opts)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeYAML(t, `
check:
  sample_size: 100
  seed: 7
original: data/original.csv
source:
  kind: sqlite
  dsn: snapshot.db
blob:
  driver: s3
  s3:
    bucket: from-file
    region: eu-west-1
log:
  level: debug
`)
	t.Setenv("KWHCHECK_CHECK_SAMPLE_SIZE", "250")
	t.Setenv("KWHCHECK_BLOB_S3_BUCKET", "from-env")
	t.Setenv("KWHCHECK_REPORT_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Check.SampleSize != 250 {
		t.Fatalf("env should override file, got %d", cfg.Check.SampleSize)
	}
	if cfg.Check.Seed != 7 || cfg.Original != "data/original.csv" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Processed != "final_data_SE_cleaned_processed.csv" {
		t.Fatalf("default processed lost: %s", cfg.Processed)
	}
	if cfg.Blob.S3.Bucket != "from-env" || cfg.Blob.S3.Region != "eu-west-1" {
		t.Fatalf("unexpected s3 config %+v", cfg.Blob.S3)
	}
	if !cfg.Report.Enabled || cfg.Log.Level != "debug" || cfg.Source.Kind != "sqlite" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read file") {
		t.Fatalf("expected read error, got %v", err)
	}
	if _, err := Load(writeYAML(t, "check: [")); err == nil || !strings.Contains(err.Error(), "decode yaml") {
		t.Fatalf("expected decode error, got %v", err)
	}
	t.Setenv("KWHCHECK_CHECK_SEED", "-1")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "KWHCHECK_CHECK_SEED") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"sample size", func(c *Config) { c.Check.SampleSize = 0 }, "sample_size"},
		{"head", func(c *Config) { c.Check.Head = -1 }, "check.head"},
		{"refs", func(c *Config) { c.Processed = "" }, "references"},
		{"source kind", func(c *Config) { c.Source.Kind = "parquet" }, "source kind"},
		{"dsn", func(c *Config) { c.Source.Kind = "postgres" }, "source.dsn"},
		{"driver", func(c *Config) { c.Blob.Driver = "ftp" }, "blob driver"},
		{"bucket", func(c *Config) { c.Blob.Driver = "s3" }, "bucket"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"": "INFO", "debug": "DEBUG", "WARN": "WARN", "error": "ERROR"} {
		level, err := ParseLevel(in)
		if err != nil || level.String() != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, level, err)
		}
	}
}
