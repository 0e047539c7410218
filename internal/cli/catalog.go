package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/huematch/internal/catalog"
)

var (
	// Catalog command flags
	catalogPage    int
	catalogPerPage int
	catalogFormat  string
	catalogOutput  string
)

// catalogCmd groups the catalog subcommands.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and convert colour catalogs",
	Long: `Inspect and convert colour catalogs.

A catalog is a list of (name, hex, url, stock) rows stored as CSV, YAML,
JSON or a SQLite table. Any of these may be compressed with xz, gzip or
bzip2.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog colours a page at a time",
	Args:  cobra.NoArgs,
	RunE:  runCatalogList,
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a catalog loads cleanly",
	Args:  cobra.NoArgs,
	RunE:  runCatalogValidate,
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert a catalog to CSV",
	Long: `Convert a catalog from any supported format to CSV.

Examples:
  # Dump a SQLite catalog as CSV
  huematch catalog export --catalog shop.db --catalog-table hijabs -o catalog.csv`,
	Args: cobra.NoArgs,
	RunE: runCatalogExport,
}

func init() {
	addCatalogFlags(catalogCmd.PersistentFlags())

	catalogListCmd.Flags().IntVar(&catalogPage, "page", 1, "page number")
	catalogListCmd.Flags().IntVar(&catalogPerPage, "per-page", catalog.DefaultPerPage, "colours per page")
	catalogListCmd.Flags().StringVarP(&catalogFormat, "format", "f", "table", "output format (table, json)")

	catalogExportCmd.Flags().StringVarP(&catalogOutput, "output", "o", "", "output file (default: stdout)")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogExportCmd)
}

func loadCatalog(cmd *cobra.Command) (*catalog.Catalog, string, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	verbosef(cmd, "Loading catalog: %s\n", cfg.CatalogPath)
	cat, err := catalog.LoadWithOptions(cfg.CatalogPath, catalogLoadOptions(cmd, cfg))
	if err != nil {
		return nil, cfg.CatalogPath, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, cfg.CatalogPath, nil
}

func runCatalogList(cmd *cobra.Command, _ []string) error {
	if catalogPage < 1 {
		return fmt.Errorf("page must be at least 1, got %d", catalogPage)
	}
	if catalogPerPage < 1 {
		return fmt.Errorf("per-page must be at least 1, got %d", catalogPerPage)
	}

	cat, _, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	entries, pages := cat.Page(catalogPage, catalogPerPage)

	switch catalogFormat {
	case "json":
		out, err := json.MarshalIndent(map[string]any{
			"page":     catalogPage,
			"per_page": catalogPerPage,
			"pages":    pages,
			"total":    cat.Len(),
			"in_stock": cat.InStock(),
			"colours":  entries,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to convert to JSON: %w", err)
		}
		return writeOutput(cmd, "", string(out)+"\n")
	case "table":
		table := NewTable([]string{"Name", "Hex", "Stock", "URL"})
		table.SetColumnAlignRight(2)
		table.SetColumnMaxWidth(0, nameColumnWidth)
		for _, e := range entries {
			stock := strconv.Itoa(e.Stock)
			if !e.InStock() {
				stock += " (out)"
			}
			table.AddRow([]string{e.Name, e.Hex, stock, e.URL})
		}
		footer := fmt.Sprintf("\nPage %d of %d (%d colours, %d in stock)\n", catalogPage, pages, cat.Len(), cat.InStock())
		return writeOutput(cmd, "", table.Render()+footer)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json)", catalogFormat)
	}
}

func runCatalogValidate(cmd *cobra.Command, _ []string) error {
	cat, path, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return nil
	}
	msg := fmt.Sprintf("%s: %d colours, %d in stock\n", path, cat.Len(), cat.InStock())
	if cat.InStock() == 0 && cat.Len() > 0 {
		msg += "warning: nothing is in stock, every colour will be recommended\n"
	}
	return writeOutput(cmd, "", msg)
}

func runCatalogExport(cmd *cobra.Command, _ []string) error {
	cat, _, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := catalog.WriteCSV(&buf, cat.Entries()); err != nil {
		return err
	}
	return writeOutput(cmd, catalogOutput, buf.String())
}
