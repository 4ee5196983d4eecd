package utils

import "math"

// NormalizeL2 returns a copy of x scaled to unit L2 norm and the original
// norm. A zero norm returns (nil, 0); callers decide whether that is an
// error or an excluded entry.
func NormalizeL2(x []float32) ([]float32, float64) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, 0
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(x))
	inv := 1.0 / norm
	for i, v := range x {
		out[i] = float32(float64(v) * inv)
	}
	return out, norm
}

// Dot returns the inner product of a and b accumulated in float64.
// Callers must ensure equal lengths.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
