package recommend

import (
	"github.com/jmylchreest/huematch/internal/colour"
	"github.com/jmylchreest/huematch/internal/matcher"
)

// ResultJSON is the wire form of one ranked catalog entry.
type ResultJSON struct {
	Rank     int     `json:"rank"`
	Name     string  `json:"name"`
	Hex      string  `json:"hex"`
	URL      string  `json:"url"`
	Stock    int     `json:"stock"`
	InStock  bool    `json:"in_stock"`
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
	Nearest  string  `json:"nearest"`
}

// ImageJSON describes the decoded upload.
type ImageJSON struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// RecommendationJSON is the wire form shared by the CLI and HTTP API.
type RecommendationJSON struct {
	Dominant string             `json:"dominant"`
	Palette  colour.PaletteJSON `json:"palette"`
	Image    ImageJSON          `json:"image"`
	Results  []ResultJSON       `json:"results"`
}

// ResultsJSON converts ranked results to their wire form.
func ResultsJSON(results []matcher.Result) []ResultJSON {
	out := make([]ResultJSON, len(results))
	for i, r := range results {
		out[i] = ResultJSON{
			Rank:     r.Rank,
			Name:     r.Colour.Name,
			Hex:      r.Colour.Hex,
			URL:      r.Colour.URL,
			Stock:    r.Colour.Stock,
			InStock:  r.Colour.InStock(),
			Distance: r.Distance,
			Score:    r.Score,
			Nearest:  r.Nearest.Hex(),
		}
	}
	return out
}

// JSON returns the wire form of the recommendation.
func (r *Recommendation) JSON() RecommendationJSON {
	return RecommendationJSON{
		Dominant: r.Dominant.Hex(),
		Palette:  r.Palette.JSON(),
		Image:    ImageJSON{Format: r.Format, Width: r.Width, Height: r.Height},
		Results:  ResultsJSON(r.Results),
	}
}
