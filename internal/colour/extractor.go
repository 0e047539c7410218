package colour

import (
	"errors"
	"fmt"
	"image"
)

// ErrEmptyImage is returned when an image has no usable pixels after
// sampling, e.g. zero-area or fully transparent images.
var ErrEmptyImage = errors.New("image has no usable pixels")

// Extractor defines the interface for colour extraction algorithms.
type Extractor interface {
	// Extract extracts a colour palette from an image.
	// The count parameter specifies the number of colours to extract.
	Extract(img image.Image, count int) (*Palette, error)
}

// Algorithm represents the colour extraction algorithm type.
type Algorithm string

const (
	// AlgorithmMedianCut uses modified median cut quantization over a
	// 5-bit-per-channel histogram.
	AlgorithmMedianCut Algorithm = "mediancut"

	// AlgorithmKMeans uses k-means clustering for colour extraction.
	AlgorithmKMeans Algorithm = "kmeans"

	// AlgorithmProminent uses the prominentcolor k-means implementation.
	AlgorithmProminent Algorithm = "prominent"
)

const (
	// DefaultColorCount is the palette size used when none is requested.
	DefaultColorCount = 5

	// DefaultQuality samples every pixel of the downsized image.
	DefaultQuality = 1

	// DefaultMaxDimension bounds the longest image side before sampling.
	DefaultMaxDimension = 512

	maxColorCount = 256
)

// ValidAlgorithms returns a list of valid algorithm names, default first.
func ValidAlgorithms() []Algorithm {
	return []Algorithm{
		AlgorithmMedianCut,
		AlgorithmKMeans,
		AlgorithmProminent,
	}
}

// IsValidAlgorithm checks if the given algorithm name is valid.
func IsValidAlgorithm(alg Algorithm) bool {
	for _, valid := range ValidAlgorithms() {
		if alg == valid {
			return true
		}
	}
	return false
}

// ExtractorConfig holds configuration for colour extraction.
type ExtractorConfig struct {
	Algorithm  Algorithm
	ColorCount int

	// Quality is the pixel sampling step: 1 samples every pixel, higher
	// values skip pixels for speed.
	Quality int

	// MaxDimension downsizes images whose longest side exceeds it before
	// sampling. Zero disables downsizing.
	MaxDimension int
}

// DefaultExtractorConfig returns the default extractor configuration.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Algorithm:    AlgorithmMedianCut,
		ColorCount:   DefaultColorCount,
		Quality:      DefaultQuality,
		MaxDimension: DefaultMaxDimension,
	}
}

// Validate validates the extractor configuration.
func (c ExtractorConfig) Validate() error {
	if !IsValidAlgorithm(c.Algorithm) {
		return fmt.Errorf("invalid algorithm: %s (valid algorithms: %v)", c.Algorithm, ValidAlgorithms())
	}
	if err := validateCount(c.ColorCount); err != nil {
		return err
	}
	if c.Quality < 1 {
		return fmt.Errorf("quality must be at least 1, got %d", c.Quality)
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("max dimension must not be negative, got %d", c.MaxDimension)
	}
	return nil
}

// NewExtractor creates a new Extractor based on the configured algorithm.
// Returns an error if the configuration is invalid.
func NewExtractor(cfg ExtractorConfig) (Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sampler := sampler{quality: cfg.Quality, maxDimension: cfg.MaxDimension}
	switch cfg.Algorithm {
	case AlgorithmMedianCut:
		return &MedianCutExtractor{sampler: sampler}, nil
	case AlgorithmKMeans:
		e := NewKMeansExtractor()
		e.sampler = sampler
		return e, nil
	case AlgorithmProminent:
		return &ProminentExtractor{sampler: sampler}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %s (valid algorithms: %v)", cfg.Algorithm, ValidAlgorithms())
	}
}

func validateCount(count int) error {
	if count < 1 {
		return fmt.Errorf("colour count must be at least 1, got %d", count)
	}
	if count > maxColorCount {
		return fmt.Errorf("colour count too large: %d (maximum: %d)", count, maxColorCount)
	}
	return nil
}
