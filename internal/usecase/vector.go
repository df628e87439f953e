package usecase

import "math"

// unitTolerance is how far a vector norm may drift from 1 and still count as unit length
const unitTolerance = 1e-4

// l2Norm returns the euclidean norm, accumulated in float64
func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a
// zero vector of the same length.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := l2Norm(v)
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// IsUnit reports whether v has unit norm within tolerance
func IsUnit(v []float32) bool {
	return math.Abs(l2Norm(v)-1) <= unitTolerance
}

// dot computes the inner product of two equal-length vectors
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// isFinite reports whether every component is neither NaN nor infinite
func isFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
