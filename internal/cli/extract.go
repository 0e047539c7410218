package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/huematch/internal/colour"
	"github.com/jmylchreest/huematch/internal/image"
	"github.com/jmylchreest/huematch/internal/recommend"
)

var (
	// Extract command flags
	extractFormat      string
	extractOutput      string
	extractShowPreview bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <image|url>",
	Short: "Extract the colour palette of a photo",
	Long: `Extract the dominant colours of a photo without matching them.

Colours are listed most dominant first. Mostly transparent and near-white
pixels are ignored so a studio backdrop does not swamp the outfit.

Supported image formats: JPEG, PNG, GIF, WebP

Examples:
  # Extract 5 colours (default) from a photo
  huematch extract outfit.jpg

  # Extract 8 colours with terminal swatches
  huematch extract --preview --colours 8 outfit.png

  # Output as JSON with weights
  huematch extract --format json outfit.jpg

  # Sample every 4th pixel with k-means
  huematch extract -a kmeans --quality 4 https://example.com/outfit.webp`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	addExtractionFlags(extractCmd.Flags())
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "hex", "output format (hex, rgb, json)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output file (default: stdout)")
	extractCmd.Flags().BoolVar(&extractShowPreview, "preview", false, "show colour swatches when writing to a terminal")
}

// runExtract executes the extract command.
func runExtract(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	verbosef(cmd, "Loading image: %s\n", source)
	data, err := image.NewSmartLoader().Load(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	verbosef(cmd, "Extracting %d colours using %s algorithm...\n", cfg.ColorCount, cfg.Algorithm)
	svc := recommend.New(cfg.RecommendOptions(), logger)
	palette, format, err := svc.Extract(data, recommend.Request{})
	if err != nil {
		if recommend.IsInvalidImage(err) {
			return fmt.Errorf("%s: %w", recommend.InvalidImageMessage, err)
		}
		return err
	}
	verbosef(cmd, "Extracted %d colours from %s image\n", palette.Len(), format)

	preview := extractShowPreview && extractOutput == "" && colour.SupportsANSIColours()
	output, err := formatPalette(palette, extractFormat, preview)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return writeOutput(cmd, extractOutput, output)
}

// formatPalette formats the palette according to the specified format.
func formatPalette(palette *colour.Palette, format string, showPreview bool) (string, error) {
	switch format {
	case "hex":
		return formatHex(palette, showPreview), nil
	case "rgb":
		return formatRGB(palette, showPreview), nil
	case "json":
		jsonBytes, err := palette.ToJSON()
		if err != nil {
			return "", fmt.Errorf("failed to convert to JSON: %w", err)
		}
		return string(jsonBytes) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: hex, rgb, json)", format)
	}
}

// formatHex formats the palette as hex colour codes.
func formatHex(palette *colour.Palette, showPreview bool) string {
	var b strings.Builder
	for _, c := range palette.Colors {
		if showPreview {
			b.WriteString(colour.FormatColourWithPreview(c, 8))
		} else {
			b.WriteString(c.Hex())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatRGB formats the palette as RGB values.
func formatRGB(palette *colour.Palette, showPreview bool) string {
	var b strings.Builder
	for _, c := range palette.Colors {
		if showPreview {
			b.WriteString(colour.ColourPreview(c, 8) + "  ")
		}
		b.WriteString(c.String())
		b.WriteString("\n")
	}
	return b.String()
}
