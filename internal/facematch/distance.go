package facematch

import "math"

// EuclideanDistance computes the L2 distance between two encodings.
// Vectors of different length (or empty ones) are infinitely far apart so they never match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
