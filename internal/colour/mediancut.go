package colour

import (
	"image"
	"math"
	"slices"
)

const (
	// sigBits is the number of significant bits kept per channel.
	sigBits   = 5
	rShift    = 8 - sigBits
	axisRed   = 0
	axisGreen = 1
	axisBlue  = 2

	// fractByPopulation is the share of boxes produced by splitting on
	// population alone before switching to population*volume.
	fractByPopulation = 0.75
)

// MedianCutExtractor implements modified median cut quantization.
type MedianCutExtractor struct {
	sampler sampler
}

// NewMedianCutExtractor creates a MedianCutExtractor with default sampling.
func NewMedianCutExtractor() *MedianCutExtractor {
	return &MedianCutExtractor{
		sampler: sampler{quality: DefaultQuality, maxDimension: DefaultMaxDimension},
	}
}

// colourBin is one cell of the quantized histogram. Channel sums keep the
// exact mean of the pixels that fell into the cell.
type colourBin struct {
	q          [3]uint8
	count      int
	sumR, sumG uint64
	sumB       uint64
}

type colourBox struct {
	bins       []colourBin
	min, max   [3]uint8
	population int
}

// Extract extracts colours by recursively splitting the histogram along the
// longest axis at the population median.
func (e *MedianCutExtractor) Extract(img image.Image, count int) (*Palette, error) {
	if err := validateCount(count); err != nil {
		return nil, err
	}

	pixels, err := e.sampler.sample(img)
	if err != nil {
		return nil, err
	}

	bins := buildHistogram(pixels)
	boxes := quantize(bins, count)

	colors := make([]RGB, len(boxes))
	weights := make([]float64, len(boxes))
	total := float64(len(pixels))
	for i, b := range boxes {
		colors[i] = b.average()
		weights[i] = float64(b.population) / total
	}

	return NewPaletteWithWeights(colors, weights), nil
}

// buildHistogram buckets pixels into the 5-bit-per-channel histogram,
// returning only non-empty bins in index order.
func buildHistogram(pixels []RGB) []colourBin {
	hist := make(map[int]*colourBin)
	for _, p := range pixels {
		q := [3]uint8{p.R >> rShift, p.G >> rShift, p.B >> rShift}
		idx := int(q[0])<<(2*sigBits) | int(q[1])<<sigBits | int(q[2])
		bin, ok := hist[idx]
		if !ok {
			bin = &colourBin{q: q}
			hist[idx] = bin
		}
		bin.count++
		bin.sumR += uint64(p.R)
		bin.sumG += uint64(p.G)
		bin.sumB += uint64(p.B)
	}

	keys := make([]int, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	bins := make([]colourBin, len(keys))
	for i, k := range keys {
		bins[i] = *hist[k]
	}
	return bins
}

// quantize splits the initial box until target boxes exist or nothing can
// be split further. Boxes are returned by descending population.
func quantize(bins []colourBin, target int) []colourBox {
	if len(bins) == 0 {
		return nil
	}

	boxes := []colourBox{newColourBox(bins)}
	byPopulation := max(int(math.Ceil(fractByPopulation*float64(target))), 1)

	boxes = splitBoxes(boxes, byPopulation, func(b colourBox) float64 {
		return float64(b.population)
	})
	boxes = splitBoxes(boxes, target, func(b colourBox) float64 {
		return float64(b.population) * float64(b.volume())
	})

	slices.SortStableFunc(boxes, func(a, b colourBox) int {
		return b.population - a.population
	})
	return boxes
}

// splitBoxes repeatedly splits the highest priority splittable box.
func splitBoxes(boxes []colourBox, target int, priority func(colourBox) float64) []colourBox {
	for len(boxes) < target {
		best := -1
		bestScore := -1.0
		for i, b := range boxes {
			if !b.canSplit() {
				continue
			}
			if score := priority(b); score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best < 0 {
			break
		}

		left, right := boxes[best].split()
		boxes[best] = left
		boxes = append(boxes, right)
	}
	return boxes
}

func newColourBox(bins []colourBin) colourBox {
	box := colourBox{bins: bins, min: bins[0].q, max: bins[0].q}
	for _, bin := range bins {
		box.population += bin.count
		for axis := range 3 {
			box.min[axis] = min(box.min[axis], bin.q[axis])
			box.max[axis] = max(box.max[axis], bin.q[axis])
		}
	}
	return box
}

func (b colourBox) volume() int {
	v := 1
	for axis := range 3 {
		v *= int(b.max[axis]-b.min[axis]) + 1
	}
	return v
}

func (b colourBox) canSplit() bool {
	return len(b.bins) > 1
}

// longestAxis returns the axis with the widest quantized range; ties go to
// red, then green.
func (b colourBox) longestAxis() int {
	axis := axisRed
	for _, a := range []int{axisGreen, axisBlue} {
		if b.max[a]-b.min[a] > b.max[axis]-b.min[axis] {
			axis = a
		}
	}
	return axis
}

// split cuts the box at the population median along its longest axis. Both
// halves are guaranteed to be non-empty.
func (b colourBox) split() (colourBox, colourBox) {
	axis := b.longestAxis()
	ordered := slices.Clone(b.bins)
	slices.SortStableFunc(ordered, func(x, y colourBin) int {
		return int(x.q[axis]) - int(y.q[axis])
	})

	half := b.population / 2
	cumulative := 0
	cut := len(ordered) / 2
	for i, bin := range ordered {
		cumulative += bin.count
		if cumulative >= half {
			cut = i + 1
			break
		}
	}
	cut = min(max(cut, 1), len(ordered)-1)

	return newColourBox(ordered[:cut]), newColourBox(ordered[cut:])
}

// average returns the population-weighted mean colour of the box.
func (b colourBox) average() RGB {
	var r, g, bl, n uint64
	for _, bin := range b.bins {
		r += bin.sumR
		g += bin.sumG
		bl += bin.sumB
		n += uint64(bin.count)
	}
	if n == 0 {
		return RGB{}
	}
	return RGB{
		R: uint8((r + n/2) / n),
		G: uint8((g + n/2) / n),
		B: uint8((bl + n/2) / n),
	}
}
