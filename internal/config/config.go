// Package config loads the check configuration from an optional YAML file and
// KWHCHECK_* environment overrides. Nested fields map to underscore-joined
// keys derived from their yaml names, e.g. KWHCHECK_CHECK_SAMPLE_SIZE or
// KWHCHECK_BLOB_S3_BUCKET.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"kwhcheck/internal/blob"
	"kwhcheck/internal/source"
	"kwhcheck/internal/verify"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KWHCHECK"

// Config is the full check configuration.
type Config struct {
	Check     Check         `yaml:"check"`
	Original  string        `yaml:"original"`
	Processed string        `yaml:"processed"`
	Source    source.Config `yaml:"source"`
	Blob      blob.Config   `yaml:"blob"`
	Log       Log           `yaml:"log"`
	Metrics   Metrics       `yaml:"metrics"`
	Report    Report        `yaml:"report"`
}

// Check holds the verifier parameters.
type Check struct {
	SampleSize   int    `yaml:"sample_size"`
	Seed         uint64 `yaml:"seed"`
	KeyColumn    string `yaml:"key_column"`
	TargetColumn string `yaml:"target_column"`
	Head         int    `yaml:"head"` // rows of each sorted table printed for inspection
}

// Log configures the console and Seq sinks.
type Log struct {
	Level  string `yaml:"level"`
	SeqURL string `yaml:"seq_url"`
}

type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Report controls publishing the JSON run report to the blob store.
type Report struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Check: Check{
			SampleSize:   verify.DefaultSampleSize,
			Seed:         verify.DefaultSeed,
			KeyColumn:    verify.DefaultKeyColumn,
			TargetColumn: verify.DefaultTargetColumn,
			Head:         5,
		},
		Original:  source.DefaultOriginal,
		Processed: source.DefaultProcessed,
		Source:    source.Config{Kind: string(source.KindBlob)},
		Blob:      blob.Config{Driver: string(blob.DriverFilesystem), FSRoot: "."},
		Log:       Log{Level: "info"},
		Report:    Report{Prefix: "reports"},
	}
}

// Load starts from Default, applies the YAML file at path (optional) and then
// the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := populateFromEnv(reflect.ValueOf(&cfg).Elem(), EnvPrefix); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the check cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Check.SampleSize <= 0 {
		errs = append(errs, fmt.Errorf("check.sample_size must be positive, got %d", c.Check.SampleSize))
	}
	if c.Check.Head < 0 {
		errs = append(errs, fmt.Errorf("check.head must not be negative, got %d", c.Check.Head))
	}
	if c.Original == "" || c.Processed == "" {
		errs = append(errs, errors.New("original and processed references are required"))
	}
	kind, err := source.ParseKind(c.Source.Kind)
	if err != nil {
		errs = append(errs, err)
	}
	if kind == source.KindSQLite || kind == source.KindPostgres {
		if c.Source.DSN == "" {
			errs = append(errs, fmt.Errorf("source.dsn is required for %s", kind))
		}
	}
	switch blob.Driver(c.Blob.Driver) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// VerifyOptions maps the check section onto verifier options.
func (c Config) VerifyOptions() verify.Options {
	opts := verify.DefaultOptions()
	opts.SampleSize = c.Check.SampleSize
	opts.Seed = c.Check.Seed
	if c.Check.KeyColumn != "" {
		opts.KeyColumn = c.Check.KeyColumn
	}
	if c.Check.TargetColumn != "" {
		opts.TargetColumn = c.Check.TargetColumn
	}
	return opts
}

// ParseLevel accepts debug, info, warn and error (case-insensitive); empty is info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func loadFromFile(path string, target *Config) error {
	data, err := os.ReadFile(path) // #nosec G304: operator-supplied config path
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func populateFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldVal := v.Field(i)
		fieldType := t.Field(i)
		if !fieldVal.CanSet() {
			continue
		}
		name := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = fieldType.Name
		}
		envKey := normalizeKey(prefix, name)
		if fieldVal.Kind() == reflect.Struct {
			if err := populateFromEnv(fieldVal, envKey); err != nil {
				return err
			}
			continue
		}
		if val, ok := os.LookupEnv(envKey); ok {
			if err := assign(fieldVal, val); err != nil {
				return fmt.Errorf("config: parse %s: %w", envKey, err)
			}
		}
	}
	return nil
}

func normalizeKey(prefix, key string) string {
	key = strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}

func assign(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(parsed)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(parsed)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type().String())
	}
	return nil
}
