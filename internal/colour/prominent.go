package colour

import (
	"fmt"
	"image"
	"image/color"

	"github.com/EdlinOrg/prominentcolor"

	"github.com/jmylchreest/huematch/internal/security"
)

// mosaicSide is the width and maximum height of the image handed to
// prominentcolor. Staying within its resize bound keeps the sampled pixels
// exact instead of resampled.
const mosaicSide = prominentcolor.DefaultSize

// ProminentExtractor extracts colours with the prominentcolor k-means
// implementation. It clusters the same sampled pixels the other extractors
// use, so the white backdrop and quality rules apply here too.
type ProminentExtractor struct {
	sampler sampler
}

// Extract extracts up to count prominent colours ordered by pixel count.
func (e *ProminentExtractor) Extract(img image.Image, count int) (*Palette, error) {
	if err := validateCount(count); err != nil {
		return nil, err
	}

	pixels, err := e.sampler.sample(img)
	if err != nil {
		return nil, err
	}

	items, err := prominentcolor.KmeansWithAll(
		count,
		mosaic(pixels),
		prominentcolor.ArgumentNoCropping,
		mosaicSide,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract prominent colours: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyImage
	}

	total := 0
	for _, item := range items {
		total += item.Cnt
	}

	colors := make([]RGB, len(items))
	weights := make([]float64, len(items))
	for i, item := range items {
		colors[i] = RGB{
			R: security.SafeUint8FromUint32(item.Color.R),
			G: security.SafeUint8FromUint32(item.Color.G),
			B: security.SafeUint8FromUint32(item.Color.B),
		}
		if total > 0 {
			weights[i] = float64(item.Cnt) / float64(total)
		}
	}

	return NewPaletteWithWeights(colors, weights), nil
}

// mosaic lays pixels out row by row in an image no larger than
// mosaicSide x mosaicSide, striding evenly through them when there are more
// than fit. Unused cells stay fully transparent, which prominentcolor ignores.
func mosaic(pixels []RGB) *image.NRGBA {
	limit := mosaicSide * mosaicSide
	if len(pixels) > limit {
		picked := make([]RGB, limit)
		for i := range picked {
			picked[i] = pixels[i*len(pixels)/limit]
		}
		pixels = picked
	}

	width := min(len(pixels), mosaicSide)
	height := (len(pixels) + width - 1) / width
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, p := range pixels {
		img.SetNRGBA(i%width, i/width, color.NRGBA{R: p.R, G: p.G, B: p.B, A: 255})
	}
	return img
}
