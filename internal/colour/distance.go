package colour

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Metric names a colour-difference formula.
type Metric string

const (
	// MetricRedMean is the red-mean weighted Euclidean distance. It is the
	// default used for catalog matching.
	MetricRedMean Metric = "redmean"

	// MetricEuclideanSquared is the plain sum of squared channel differences
	// with no square root and no weighting.
	MetricEuclideanSquared Metric = "euclidean-squared"

	// MetricCIE76 is the Euclidean distance in CIELAB space.
	MetricCIE76 Metric = "cie76"

	// MetricCIEDE2000 is the CIEDE2000 colour difference.
	MetricCIEDE2000 Metric = "ciede2000"
)

// DistanceFunc computes a non-negative difference between two colours.
type DistanceFunc func(a, b RGB) float64

// ValidMetrics returns the list of supported metrics, default first.
func ValidMetrics() []Metric {
	return []Metric{
		MetricRedMean,
		MetricEuclideanSquared,
		MetricCIE76,
		MetricCIEDE2000,
	}
}

// DistanceFor returns the distance function for a metric. The empty metric
// selects MetricRedMean.
func DistanceFor(m Metric) (DistanceFunc, error) {
	switch m {
	case MetricRedMean, "":
		return RedMeanDistance, nil
	case MetricEuclideanSquared:
		return EuclideanSquaredDistance, nil
	case MetricCIE76:
		return CIE76Distance, nil
	case MetricCIEDE2000:
		return CIEDE2000Distance, nil
	default:
		return nil, fmt.Errorf("unknown metric: %s (valid metrics: %v)", m, ValidMetrics())
	}
}

// RedMeanDistance computes the red-mean weighted Euclidean distance:
//
//	rMean = (r1 + r2) / 2
//	sqrt((2 + rMean/256)*dR² + 4*dG² + (2 + (255-rMean)/256)*dB²)
func RedMeanDistance(a, b RGB) float64 {
	rMean := (float64(a.R) + float64(b.R)) / 2
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)

	return math.Sqrt((2+rMean/256)*dr*dr + 4*dg*dg + (2+(255-rMean)/256)*db*db)
}

// EuclideanSquaredDistance returns the sum of squared channel differences.
func EuclideanSquaredDistance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return dr*dr + dg*dg + db*db
}

// CIE76Distance returns the Euclidean distance between the colours in CIELAB.
func CIE76Distance(a, b RGB) float64 {
	return toColorful(a).DistanceLab(toColorful(b))
}

// CIEDE2000Distance returns the CIEDE2000 difference between the colours.
func CIEDE2000Distance(a, b RGB) float64 {
	return toColorful(a).DistanceCIEDE2000(toColorful(b))
}

func toColorful(c RGB) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}
