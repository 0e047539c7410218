package colour

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	// Pixels at or below this alpha are treated as background.
	minAlpha = 125

	// Pixels with every channel above this value are treated as paper/backdrop white.
	nearWhite = 250
)

// sampler downsizes an image and collects the pixels that take part in
// quantization.
type sampler struct {
	quality      int
	maxDimension int
}

// prepare bounds the image size so the cost of sampling is predictable.
func (s sampler) prepare(img image.Image) image.Image {
	if s.maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= s.maxDimension && b.Dy() <= s.maxDimension {
		return img
	}
	return imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Box)
}

// sample walks the pixels in row-major order taking every quality-th one,
// skipping transparent and near-white pixels. Returns ErrEmptyImage when
// nothing usable remains.
func (s sampler) sample(img image.Image) ([]RGB, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	img = s.prepare(img)

	bounds := img.Bounds()
	width := bounds.Dx()
	total := width * bounds.Dy()
	if total == 0 {
		return nil, ErrEmptyImage
	}

	step := max(s.quality, 1)
	pixels := make([]RGB, 0, total/step+1)
	var whites []RGB
	for i := 0; i < total; i += step {
		x := bounds.Min.X + i%width
		y := bounds.Min.Y + i/width
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		if c.A < minAlpha {
			continue
		}
		rgb := RGB{R: c.R, G: c.G, B: c.B}
		if c.R > nearWhite && c.G > nearWhite && c.B > nearWhite {
			whites = append(whites, rgb)
			continue
		}
		pixels = append(pixels, rgb)
	}

	// A photo of a white garment is still a valid image.
	if len(pixels) == 0 {
		pixels = whites
	}
	if len(pixels) == 0 {
		return nil, ErrEmptyImage
	}
	return pixels, nil
}
