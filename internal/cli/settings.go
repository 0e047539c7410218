package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/huematch/internal/catalog"
	"github.com/jmylchreest/huematch/internal/colour"
	"github.com/jmylchreest/huematch/internal/config"
	"github.com/jmylchreest/huematch/internal/logging"
)

// Flag names shared between commands. Values come from the environment
// unless the flag is set explicitly.
const (
	flagCatalog        = "catalog"
	flagCatalogTable   = "catalog-table"
	flagCatalogFormat  = "catalog-format"
	flagTop            = "top"
	flagColours        = "colours"
	flagQuality        = "quality"
	flagMaxDimension   = "max-dimension"
	flagAlgorithm      = "algorithm"
	flagMetric         = "metric"
	flagAddr           = "addr"
	flagMaxUploadBytes = "max-upload-bytes"
	flagWatch          = "watch"
)

func addCatalogFlags(fs *pflag.FlagSet) {
	def := config.Default()
	fs.String(flagCatalog, def.CatalogPath, "catalog file (.csv, .yaml, .json, .db, optionally .xz, .gz or .bz2)")
	fs.String(flagCatalogTable, catalog.DefaultTable, "table name for SQLite catalogs")
	fs.String(flagCatalogFormat, "", "catalog format override (csv, yaml, json, sqlite)")
}

func addExtractionFlags(fs *pflag.FlagSet) {
	def := config.Default()
	fs.IntP(flagColours, "c", def.ColorCount, "number of palette colours to extract (1-256)")
	fs.Int(flagQuality, def.Quality, "sample every Nth pixel (1 = every pixel)")
	fs.Int(flagMaxDimension, def.MaxDimension, "downscale images larger than this before sampling (0 = never)")
	fs.StringP(flagAlgorithm, "a", string(def.Algorithm), fmt.Sprintf("extraction algorithm (%s)", joinNames(colour.ValidAlgorithms())))
}

func addMatchFlags(fs *pflag.FlagSet) {
	def := config.Default()
	fs.IntP(flagTop, "n", def.TopN, "number of recommendations")
	fs.StringP(flagMetric, "m", string(def.Metric), fmt.Sprintf("colour distance metric (%s)", joinNames(colour.ValidMetrics())))
}

func joinNames[T ~string](names []T) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// resolveConfig builds the configuration from defaults, .env and the
// environment, then applies any flag the user set explicitly.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.NewBuilder().
		WithDotEnv("").
		WithEnv(nil).
		Build()
	if err != nil {
		return cfg, err
	}
	if err := applyFlags(cmd.Flags(), &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			v, err := fs.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if fs.Changed(name) {
			v, err := fs.GetInt(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	flag := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, err := fs.GetBool(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str(flagCatalog, &cfg.CatalogPath)
	str(flagCatalogTable, &cfg.CatalogTable)
	str(flagAddr, &cfg.Addr)
	num(flagTop, &cfg.TopN)
	num(flagColours, &cfg.ColorCount)
	num(flagQuality, &cfg.Quality)
	num(flagMaxDimension, &cfg.MaxDimension)
	flag(flagWatch, &cfg.Watch)
	flag("log-json", &cfg.LogJSON)
	str("log-level", &cfg.LogLevel)

	var algorithm, metric string
	str(flagAlgorithm, &algorithm)
	if algorithm != "" {
		cfg.Algorithm = colour.Algorithm(strings.ToLower(algorithm))
	}
	str(flagMetric, &metric)
	if metric != "" {
		cfg.Metric = colour.Metric(strings.ToLower(metric))
	}
	if fs.Changed(flagMaxUploadBytes) {
		v, err := fs.GetInt64(flagMaxUploadBytes)
		errs = append(errs, err)
		cfg.MaxUploadBytes = v
	}

	// An explicit --log-level beats the shorthand flags.
	if !fs.Changed("log-level") {
		if quiet, _ := fs.GetBool("quiet"); quiet {
			cfg.LogLevel = "error"
		} else if verbose, _ := fs.GetBool("verbose"); verbose {
			cfg.LogLevel = "debug"
		}
	}

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("failed to read flags: %w", err)
		}
	}
	return nil
}

// newLogger builds the root logger writing to the command's stderr.
func newLogger(cmd *cobra.Command, cfg config.Config) (hclog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.LogLevel,
		JSON:   cfg.LogJSON,
		Output: cmd.ErrOrStderr(),
	})
}

func catalogLoadOptions(cmd *cobra.Command, cfg config.Config) catalog.LoadOptions {
	format, _ := cmd.Flags().GetString(flagCatalogFormat)
	return catalog.LoadOptions{
		Format: catalog.Format(strings.ToLower(format)),
		Table:  cfg.CatalogTable,
	}
}

// verbosef prints progress to stderr when --verbose is set.
func verbosef(cmd *cobra.Command, format string, args ...any) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), format, args...)
	}
}

// writeOutput writes to path, or to the command's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path, output string) error {
	if path == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), output)
		return err
	}
	verbosef(cmd, "Writing output to: %s\n", path)
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil { // #nosec G306 - output files are meant to be readable
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
