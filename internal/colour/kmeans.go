package colour

import (
	"image"
	"math"
	"math/rand"
	"slices"
)

// KMeansExtractor implements colour extraction using k-means clustering.
type KMeansExtractor struct {
	sampler       sampler
	maxIterations int
	convergence   float64
	maxSamples    int
	seed          int64
}

// NewKMeansExtractor creates a new KMeansExtractor with default settings.
func NewKMeansExtractor() *KMeansExtractor {
	return &KMeansExtractor{
		sampler:       sampler{quality: DefaultQuality, maxDimension: DefaultMaxDimension},
		maxIterations: 20,
		convergence:   2.0,
		maxSamples:    5000,
		seed:          1,
	}
}

// Extract extracts colours from an image using k-means clustering.
// Returns colours ordered by cluster size with their relative weights.
func (e *KMeansExtractor) Extract(img image.Image, count int) (*Palette, error) {
	if err := validateCount(count); err != nil {
		return nil, err
	}

	pixels, err := e.sampler.sample(img)
	if err != nil {
		return nil, err
	}
	pixels = thin(pixels, e.maxSamples)

	// Count unique colours first; clustering cannot produce more.
	frequency := make(map[RGB]int)
	unique := make([]RGB, 0)
	for _, p := range pixels {
		if frequency[p] == 0 {
			unique = append(unique, p)
		}
		frequency[p]++
	}

	if count >= len(unique) {
		slices.SortStableFunc(unique, func(a, b RGB) int {
			return frequency[b] - frequency[a]
		})
		weights := make([]float64, len(unique))
		for i, c := range unique {
			weights[i] = float64(frequency[c]) / float64(len(pixels))
		}
		return NewPaletteWithWeights(unique, weights), nil
	}

	centroids, weights := e.kmeans(pixels, count)
	return clustersToPalette(centroids, weights), nil
}

// point3D represents a point in 3D RGB colour space.
type point3D struct {
	R, G, B float64
}

// distance calculates the Euclidean distance between two points in RGB space.
func (p point3D) distance(other point3D) float64 {
	dr := p.R - other.R
	dg := p.G - other.G
	db := p.B - other.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func (p point3D) rgb() RGB {
	return RGB{
		R: uint8(math.Round(math.Min(math.Max(p.R, 0), 255))),
		G: uint8(math.Round(math.Min(math.Max(p.G, 0), 255))),
		B: uint8(math.Round(math.Min(math.Max(p.B, 0), 255))),
	}
}

// thin keeps at most limit pixels using an even stride.
func thin(pixels []RGB, limit int) []RGB {
	if limit <= 0 || len(pixels) <= limit {
		return pixels
	}
	step := int(math.Ceil(float64(len(pixels)) / float64(limit)))
	out := make([]RGB, 0, limit)
	for i := 0; i < len(pixels); i += step {
		out = append(out, pixels[i])
	}
	return out
}

// clustersToPalette orders clusters by weight, dropping empty ones.
func clustersToPalette(centroids []point3D, weights []float64) *Palette {
	order := make([]int, 0, len(centroids))
	for i := range centroids {
		if weights[i] > 0 {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case weights[a] > weights[b]:
			return -1
		case weights[a] < weights[b]:
			return 1
		}
		return 0
	})

	colors := make([]RGB, len(order))
	ordered := make([]float64, len(order))
	for i, idx := range order {
		colors[i] = centroids[idx].rgb()
		ordered[i] = weights[idx]
	}
	return NewPaletteWithWeights(colors, ordered)
}

// kmeans performs k-means clustering on the pixel data.
// Returns centroids and their weights (relative cluster sizes).
func (e *KMeansExtractor) kmeans(pixels []RGB, k int) ([]point3D, []float64) {
	rng := rand.New(rand.NewSource(e.seed)) // #nosec G404 - deterministic clustering, not security sensitive

	points := make([]point3D, len(pixels))
	for i, c := range pixels {
		points[i] = point3D{R: float64(c.R), G: float64(c.G), B: float64(c.B)}
	}

	// Initialize centroids using k-means++ algorithm
	centroids := e.initializeCentroidsKMeansPlusPlus(rng, points, k)

	assignments := make([]int, len(points))

	for range e.maxIterations {
		changed := 0
		for i, point := range points {
			nearest := e.findNearestCentroid(point, centroids)
			if assignments[i] != nearest {
				assignments[i] = nearest
				changed++
			}
		}

		// If very few assignments changed (< 1%), we've converged
		if float64(changed)/float64(len(points)) < 0.01 {
			break
		}

		newCentroids := e.recalculateCentroids(rng, points, assignments, k)

		totalMovement := 0.0
		for i := range centroids {
			totalMovement += centroids[i].distance(newCentroids[i])
		}
		avgMovement := totalMovement / float64(k)

		centroids = newCentroids

		if avgMovement < e.convergence {
			break
		}
	}

	// Final assignment so weights match the returned centroids.
	for i, point := range points {
		assignments[i] = e.findNearestCentroid(point, centroids)
	}

	weights := make([]float64, k)
	for _, assignment := range assignments {
		weights[assignment]++
	}

	totalPixels := float64(len(assignments))
	for i := range weights {
		weights[i] /= totalPixels
	}

	return centroids, weights
}

// initializeCentroidsKMeansPlusPlus initializes centroids using k-means++ algorithm.
func (e *KMeansExtractor) initializeCentroidsKMeansPlusPlus(rng *rand.Rand, points []point3D, k int) []point3D {
	if len(points) == 0 || k == 0 {
		return []point3D{}
	}

	centroids := make([]point3D, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	for len(centroids) < k {
		distances := make([]float64, len(points))
		totalDistance := 0.0

		for i, point := range points {
			minDist := math.MaxFloat64
			for _, centroid := range centroids {
				if dist := point.distance(centroid); dist < minDist {
					minDist = dist
				}
			}
			distances[i] = minDist * minDist
			totalDistance += distances[i]
		}

		if totalDistance == 0 {
			// Every point coincides with a centroid; perturb the last one.
			last := centroids[len(centroids)-1]
			centroids = append(centroids, point3D{R: last.R + 0.1, G: last.G + 0.1, B: last.B + 0.1})
			continue
		}

		target := rng.Float64() * totalDistance
		cumulative := 0.0
		for i, dist := range distances {
			cumulative += dist
			if cumulative >= target {
				centroids = append(centroids, points[i])
				break
			}
		}
	}

	return centroids
}

// findNearestCentroid finds the index of the nearest centroid to a point.
func (e *KMeansExtractor) findNearestCentroid(point point3D, centroids []point3D) int {
	minDist := math.MaxFloat64
	nearest := 0

	for i, centroid := range centroids {
		if dist := point.distance(centroid); dist < minDist {
			minDist = dist
			nearest = i
		}
	}

	return nearest
}

// recalculateCentroids recalculates centroid positions based on assigned points.
func (e *KMeansExtractor) recalculateCentroids(rng *rand.Rand, points []point3D, assignments []int, k int) []point3D {
	sums := make([]point3D, k)
	counts := make([]int, k)

	for i, point := range points {
		cluster := assignments[i]
		sums[cluster].R += point.R
		sums[cluster].G += point.G
		sums[cluster].B += point.B
		counts[cluster]++
	}

	centroids := make([]point3D, k)
	for i := range k {
		if counts[i] > 0 {
			centroids[i] = point3D{
				R: sums[i].R / float64(counts[i]),
				G: sums[i].G / float64(counts[i]),
				B: sums[i].B / float64(counts[i]),
			}
		} else {
			// Empty cluster - reinitialize from a random point
			centroids[i] = points[rng.Intn(len(points))]
		}
	}

	return centroids
}
