// Package config resolves huematch settings from defaults, an optional .env
// file and HUEMATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jmylchreest/huematch/internal/colour"
	"github.com/jmylchreest/huematch/internal/logging"
	"github.com/jmylchreest/huematch/internal/recommend"
)

// Environment variable names.
const (
	EnvPrefix         = "HUEMATCH_"
	EnvEnvironment    = "HUEMATCH_ENV"
	EnvAddr           = "HUEMATCH_ADDR"
	EnvPort           = "PORT"
	EnvCatalog        = "HUEMATCH_CATALOG"
	EnvCatalogTable   = "HUEMATCH_CATALOG_TABLE"
	EnvTop            = "HUEMATCH_TOP"
	EnvColours        = "HUEMATCH_COLOURS"
	EnvQuality        = "HUEMATCH_QUALITY"
	EnvMaxDimension   = "HUEMATCH_MAX_DIMENSION"
	EnvAlgorithm      = "HUEMATCH_ALGORITHM"
	EnvMetric         = "HUEMATCH_METRIC"
	EnvMaxUploadBytes = "HUEMATCH_MAX_UPLOAD_BYTES"
	EnvWatch          = "HUEMATCH_WATCH"
	EnvLogLevel       = "HUEMATCH_LOG_LEVEL"
	EnvLogJSON        = "HUEMATCH_LOG_JSON"
)

const (
	// DefaultAddr is the HTTP listen address.
	DefaultAddr = ":8080"

	// DefaultCatalog is the catalog file used when none is configured.
	DefaultCatalog = "data/catalog.csv"

	// DefaultMaxUploadBytes bounds uploaded images.
	DefaultMaxUploadBytes int64 = 10 << 20

	// DefaultDotEnv is the file read by WithDotEnv when given an empty path.
	DefaultDotEnv = ".env"
)

// Config holds every runtime setting.
type Config struct {
	Addr           string
	CatalogPath    string
	CatalogTable   string
	TopN           int
	ColorCount     int
	Quality        int
	MaxDimension   int
	Algorithm      colour.Algorithm
	Metric         colour.Metric
	MaxUploadBytes int64
	Watch          bool
	LogLevel       string
	LogJSON        bool
}

// Default returns the built-in configuration.
func Default() Config {
	opts := recommend.DefaultOptions()
	return Config{
		Addr:           DefaultAddr,
		CatalogPath:    DefaultCatalog,
		TopN:           opts.TopN,
		ColorCount:     opts.ColorCount,
		Quality:        opts.Quality,
		MaxDimension:   opts.MaxDimension,
		Algorithm:      opts.Algorithm,
		Metric:         opts.Metric,
		MaxUploadBytes: DefaultMaxUploadBytes,
		LogLevel:       "info",
	}
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, fmt.Errorf("listen address must not be empty"))
	}
	if c.CatalogPath == "" {
		errs = append(errs, fmt.Errorf("catalog path must not be empty"))
	}
	if c.TopN < 1 {
		errs = append(errs, fmt.Errorf("top must be at least 1, got %d", c.TopN))
	}
	if err := (colour.ExtractorConfig{
		Algorithm:    c.Algorithm,
		ColorCount:   c.ColorCount,
		Quality:      c.Quality,
		MaxDimension: c.MaxDimension,
	}).Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := colour.DistanceFor(c.Metric); err != nil {
		errs = append(errs, err)
	}
	if c.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RecommendOptions maps the config onto recommendation defaults.
func (c Config) RecommendOptions() recommend.Options {
	maxDim := c.MaxDimension
	if maxDim == 0 {
		maxDim = -1
	}
	return recommend.Options{
		TopN:         c.TopN,
		ColorCount:   c.ColorCount,
		Quality:      c.Quality,
		MaxDimension: maxDim,
		Algorithm:    c.Algorithm,
		Metric:       c.Metric,
	}
}

// LookupFunc reads a single variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Builder assembles a Config from its sources.
type Builder struct {
	config     Config
	dotEnvPath string
	useDotEnv  bool
	lookup     LookupFunc
}

// NewBuilder creates a builder starting from Default.
func NewBuilder() *Builder {
	return &Builder{config: Default()}
}

// WithDotEnv loads variables from a .env file before reading the environment,
// unless HUEMATCH_ENV is "production". Variables already set in the process
// environment win over the file. A missing file is not an error.
func (b *Builder) WithDotEnv(path string) *Builder {
	if path == "" {
		path = DefaultDotEnv
	}
	b.dotEnvPath = path
	b.useDotEnv = true
	return b
}

// WithEnv applies variables read through lookup; nil uses os.LookupEnv.
func (b *Builder) WithEnv(lookup LookupFunc) *Builder {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	b.lookup = lookup
	return b
}

// Build resolves the configuration. It does not validate it, so flags can be
// applied first.
func (b *Builder) Build() (Config, error) {
	cfg := b.config

	if b.useDotEnv && !isProduction(b.lookup) {
		if err := godotenv.Load(b.dotEnvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load %s: %w", b.dotEnvPath, err)
		}
	}

	if b.lookup == nil {
		return cfg, nil
	}
	if err := applyEnv(&cfg, b.lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func isProduction(lookup LookupFunc) bool {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env, _ := lookup(EnvEnvironment)
	return strings.EqualFold(strings.TrimSpace(env), "production")
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: not an integer: %q", key, v))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: not a boolean: %q", key, v))
				return
			}
			*dst = b
		}
	}

	if v, ok := get(EnvAddr); ok {
		cfg.Addr = v
	} else if port, ok := get(EnvPort); ok {
		cfg.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if v, ok := get(EnvCatalog); ok {
		cfg.CatalogPath = v
	}
	if v, ok := get(EnvCatalogTable); ok {
		cfg.CatalogTable = v
	}
	setInt(EnvTop, &cfg.TopN)
	setInt(EnvColours, &cfg.ColorCount)
	setInt(EnvQuality, &cfg.Quality)
	setInt(EnvMaxDimension, &cfg.MaxDimension)
	if v, ok := get(EnvAlgorithm); ok {
		cfg.Algorithm = colour.Algorithm(strings.ToLower(v))
	}
	if v, ok := get(EnvMetric); ok {
		cfg.Metric = colour.Metric(strings.ToLower(v))
	}
	if v, ok := get(EnvMaxUploadBytes); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: not an integer: %q", EnvMaxUploadBytes, v))
		} else {
			cfg.MaxUploadBytes = n
		}
	}
	setBool(EnvWatch, &cfg.Watch)
	if v, ok := get(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	setBool(EnvLogJSON, &cfg.LogJSON)

	return errors.Join(errs...)
}
