package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/huematch/internal/catalog"
	"github.com/jmylchreest/huematch/internal/colour"
	"github.com/jmylchreest/huematch/internal/image"
	"github.com/jmylchreest/huematch/internal/recommend"
)

var (
	// Match command flags
	matchFormat  string
	matchOutput  string
	matchPreview bool
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match <image|url>",
	Short: "Recommend catalog colours for a photo",
	Long: `Extract the palette of a photo and rank the catalog against it.

Each catalog colour is scored by its distance to the closest palette colour.
Only in-stock colours are recommended unless nothing is in stock.

Examples:
  # Top 3 matches from the bundled catalog
  huematch match outfit.jpg

  # Top 5 from a SQLite catalog using CIEDE2000
  huematch match --catalog shop.db --top 5 --metric ciede2000 outfit.png

  # JSON output for scripting
  huematch match -f json outfit.webp`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	addCatalogFlags(matchCmd.Flags())
	addExtractionFlags(matchCmd.Flags())
	addMatchFlags(matchCmd.Flags())
	matchCmd.Flags().StringVarP(&matchFormat, "format", "f", "table", "output format (table, json)")
	matchCmd.Flags().StringVarP(&matchOutput, "output", "o", "", "output file (default: stdout)")
	matchCmd.Flags().BoolVar(&matchPreview, "preview", false, "show palette swatches when writing to a terminal")
}

// runMatch executes the match command.
func runMatch(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	verbosef(cmd, "Loading catalog: %s\n", cfg.CatalogPath)
	cat, err := catalog.LoadWithOptions(cfg.CatalogPath, catalogLoadOptions(cmd, cfg))
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	verbosef(cmd, "Catalog has %d colours (%d in stock)\n", cat.Len(), cat.InStock())

	verbosef(cmd, "Loading image: %s\n", source)
	data, err := image.NewSmartLoader().Load(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	svc := recommend.New(cfg.RecommendOptions(), logger)
	rec, err := svc.Recommend(cat, data, recommend.Request{})
	if err != nil {
		if recommend.IsInvalidImage(err) {
			return fmt.Errorf("%s: %w", recommend.InvalidImageMessage, err)
		}
		return err
	}

	preview := matchPreview && matchOutput == "" && colour.SupportsANSIColours()
	output, err := formatRecommendation(rec, matchFormat, preview)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return writeOutput(cmd, matchOutput, output)
}

func formatRecommendation(rec *recommend.Recommendation, format string, showPreview bool) (string, error) {
	switch format {
	case "table":
		return formatRecommendationTable(rec, showPreview), nil
	case "json":
		jsonBytes, err := json.MarshalIndent(rec.JSON(), "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to convert to JSON: %w", err)
		}
		return string(jsonBytes) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: table, json)", format)
	}
}

func formatRecommendationTable(rec *recommend.Recommendation, showPreview bool) string {
	var b strings.Builder

	if showPreview {
		fmt.Fprintf(&b, "Dominant: %s\n", colour.FormatColourWithPreview(rec.Dominant, 4))
		b.WriteString("Palette:  ")
		for _, c := range rec.Palette.Colors {
			b.WriteString(colour.ColourPreview(c, 4) + " ")
		}
		b.WriteString("\n\n")
	} else {
		fmt.Fprintf(&b, "Dominant: %s\n", rec.Dominant.Hex())
		fmt.Fprintf(&b, "Palette:  %s\n\n", strings.Join(rec.Palette.ToHex(), " "))
	}

	table := NewTable([]string{"#", "Name", "Hex", "Score", "Distance", "Stock", "URL"})
	for _, col := range []int{0, 3, 4, 5} {
		table.SetColumnAlignRight(col)
	}
	table.SetColumnMaxWidth(1, nameColumnWidth)
	for _, r := range rec.Results {
		table.AddRow([]string{
			strconv.Itoa(r.Rank),
			r.Colour.Name,
			r.Colour.Hex,
			strconv.FormatFloat(r.Score, 'f', 1, 64) + "%",
			strconv.FormatFloat(r.Distance, 'f', 2, 64),
			strconv.Itoa(r.Colour.Stock),
			r.Colour.URL,
		})
	}
	b.WriteString(table.Render())
	return b.String()
}
