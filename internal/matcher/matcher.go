// Package matcher ranks catalog colours by how closely they match a photo's
// palette.
package matcher

import (
	"errors"
	"math"
	"slices"

	"github.com/jmylchreest/huematch/internal/catalog"
	"github.com/jmylchreest/huematch/internal/colour"
)

// DefaultTopN is the number of results returned when Options.TopN is not positive.
const DefaultTopN = 3

var (
	// ErrEmptyCatalog is returned when there is nothing to match against.
	ErrEmptyCatalog = errors.New("catalog is empty")

	// ErrEmptyPalette is returned when the palette has no colours.
	ErrEmptyPalette = errors.New("palette is empty")
)

// Options controls ranking.
type Options struct {
	// TopN caps the number of results. Values <= 0 use DefaultTopN.
	TopN int

	// Metric selects the distance function. Empty means red-mean.
	Metric colour.Metric
}

// Result is one ranked catalog entry.
type Result struct {
	Colour catalog.ReferenceColor

	// Distance to the nearest palette colour.
	Distance float64

	// Score is 100 for the closest returned entry falling to 0 for the
	// furthest, rounded to one decimal. It is relative to the returned set.
	Score float64

	// Nearest is the palette colour that produced Distance.
	Nearest colour.RGB

	// Rank is the 1-based position in the result list.
	Rank int
}

type scored struct {
	entry    catalog.ReferenceColor
	distance float64
	nearest  colour.RGB
}

// Match ranks catalog entries by their distance to the closest palette
// colour. When any entry is in stock, only in-stock entries are considered.
// Equal distances keep catalog order. The catalog is not modified.
func Match(cat *catalog.Catalog, palette *colour.Palette, opts Options) ([]Result, error) {
	if cat.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	if palette == nil || palette.Len() == 0 {
		return nil, ErrEmptyPalette
	}

	distance, err := colour.DistanceFor(opts.Metric)
	if err != nil {
		return nil, err
	}

	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	inStockOnly := cat.InStock() > 0
	candidates := make([]scored, 0, cat.Len())
	for _, entry := range cat.All() {
		if inStockOnly && !entry.InStock() {
			continue
		}
		d, nearest := nearestDistance(entry.RGB(), palette.Colors, distance)
		candidates = append(candidates, scored{entry: entry, distance: d, nearest: nearest})
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		return 0
	})

	if len(candidates) > topN {
		candidates = candidates[:topN]
	}

	maxDistance := candidates[len(candidates)-1].distance
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			Colour:   c.entry,
			Distance: c.distance,
			Score:    score(c.distance, maxDistance),
			Nearest:  c.nearest,
			Rank:     i + 1,
		}
	}
	return results, nil
}

// nearestDistance returns the smallest distance from target to any palette
// colour. The first palette colour wins ties.
func nearestDistance(target colour.RGB, palette []colour.RGB, distance colour.DistanceFunc) (float64, colour.RGB) {
	best := math.Inf(1)
	var nearest colour.RGB
	for _, c := range palette {
		if d := distance(target, c); d < best {
			best = d
			nearest = c
		}
	}
	return best, nearest
}

func score(d, maxDistance float64) float64 {
	if maxDistance == 0 {
		return 100
	}
	return math.Round((1-d/maxDistance)*1000) / 10
}
