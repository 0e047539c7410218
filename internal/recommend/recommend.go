// Package recommend turns an outfit photo into ranked hijab colour
// suggestions from a catalog.
package recommend

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/huematch/internal/catalog"
	"github.com/jmylchreest/huematch/internal/colour"
	imgpkg "github.com/jmylchreest/huematch/internal/image"
	"github.com/jmylchreest/huematch/internal/matcher"
)

// InvalidImageMessage is the user-facing text for any image that cannot be
// used for matching.
const InvalidImageMessage = "please upload a valid image (PNG, JPG, JPEG, GIF or WebP)"

// Options are the service-wide defaults applied to zero-valued request fields.
type Options struct {
	TopN         int
	ColorCount   int
	Quality      int
	MaxDimension int
	Algorithm    colour.Algorithm
	Metric       colour.Metric
}

// DefaultOptions returns the defaults used by the CLI and server.
func DefaultOptions() Options {
	return Options{
		TopN:         matcher.DefaultTopN,
		ColorCount:   colour.DefaultColorCount,
		Quality:      colour.DefaultQuality,
		MaxDimension: colour.DefaultMaxDimension,
		Algorithm:    colour.AlgorithmMedianCut,
		Metric:       colour.MetricRedMean,
	}
}

// Request carries per-call overrides. Zero fields fall back to Options.
type Request struct {
	TopN       int
	ColorCount int
	Quality    int
	Algorithm  colour.Algorithm
	Metric     colour.Metric
}

// Recommendation is the full result of one call.
type Recommendation struct {
	Palette  *colour.Palette
	Dominant colour.RGB
	Results  []matcher.Result
	Format   string
	Width    int
	Height   int
}

// Service runs the decode, extract and match pipeline. It holds no per-call
// state and is safe for concurrent use.
type Service struct {
	opts   Options
	logger hclog.Logger
}

// New creates a Service. Zero-valued options take the package defaults.
func New(opts Options, logger hclog.Logger) *Service {
	def := DefaultOptions()
	if opts.TopN <= 0 {
		opts.TopN = def.TopN
	}
	if opts.ColorCount <= 0 {
		opts.ColorCount = def.ColorCount
	}
	if opts.Quality <= 0 {
		opts.Quality = def.Quality
	}
	switch {
	case opts.MaxDimension == 0:
		opts.MaxDimension = def.MaxDimension
	case opts.MaxDimension < 0:
		// Negative disables downscaling.
		opts.MaxDimension = 0
	}
	if opts.Algorithm == "" {
		opts.Algorithm = def.Algorithm
	}
	if opts.Metric == "" {
		opts.Metric = def.Metric
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{opts: opts, logger: logger.Named("recommend")}
}

// Options returns the effective service defaults.
func (s *Service) Options() Options {
	return s.opts
}

func (s *Service) resolve(req Request) Request {
	if req.TopN <= 0 {
		req.TopN = s.opts.TopN
	}
	if req.ColorCount <= 0 {
		req.ColorCount = s.opts.ColorCount
	}
	if req.Quality <= 0 {
		req.Quality = s.opts.Quality
	}
	if req.Algorithm == "" {
		req.Algorithm = s.opts.Algorithm
	}
	if req.Metric == "" {
		req.Metric = s.opts.Metric
	}
	return req
}

// Extract decodes data and returns its palette without matching.
func (s *Service) Extract(data []byte, req Request) (*colour.Palette, string, error) {
	_, format, palette, err := s.analyse(data, s.resolve(req))
	if err != nil {
		return nil, "", err
	}
	return palette, format, nil
}

func (s *Service) analyse(data []byte, req Request) (image.Image, string, *colour.Palette, error) {
	img, format, err := imgpkg.Decode(data)
	if err != nil {
		return nil, "", nil, err
	}

	extractor, err := colour.NewExtractor(colour.ExtractorConfig{
		Algorithm:    req.Algorithm,
		ColorCount:   req.ColorCount,
		Quality:      req.Quality,
		MaxDimension: s.opts.MaxDimension,
	})
	if err != nil {
		return nil, "", nil, err
	}

	palette, err := extractor.Extract(img, req.ColorCount)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to extract colours: %w", err)
	}
	return img, format, palette, nil
}

// Recommend decodes the image, extracts its palette and ranks the catalog
// against it. Either the full recommendation or an error is returned.
func (s *Service) Recommend(cat *catalog.Catalog, data []byte, req Request) (*Recommendation, error) {
	start := time.Now()
	req = s.resolve(req)

	// Reject an empty catalog before doing any image work.
	if cat.Len() == 0 {
		return nil, matcher.ErrEmptyCatalog
	}

	img, format, palette, err := s.analyse(data, req)
	if err != nil {
		return nil, err
	}

	results, err := matcher.Match(cat, palette, matcher.Options{TopN: req.TopN, Metric: req.Metric})
	if err != nil {
		return nil, fmt.Errorf("failed to match catalog: %w", err)
	}

	dominant, _ := palette.Dominant()
	bounds := img.Bounds()

	s.logger.Debug("recommendation computed",
		"format", format,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"algorithm", req.Algorithm,
		"metric", req.Metric,
		"palette", palette.Len(),
		"dominant", dominant.Hex(),
		"results", len(results),
		"duration", time.Since(start))

	return &Recommendation{
		Palette:  palette,
		Dominant: dominant,
		Results:  results,
		Format:   format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// IsInvalidImage reports whether err means the upload itself was unusable,
// as opposed to a configuration or catalog problem.
func IsInvalidImage(err error) bool {
	var decodeErr *imgpkg.DecodeError
	return errors.As(err, &decodeErr) || errors.Is(err, colour.ErrEmptyImage)
}
