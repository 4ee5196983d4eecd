package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	v, norm := NormalizeL2([]float32{3, 4})
	if norm != 5 {
		t.Errorf("norm = %v, want 5", norm)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v", v)
	}

	var unit float64
	for _, x := range v {
		unit += float64(x) * float64(x)
	}
	if math.Abs(unit-1) > 1e-6 {
		t.Errorf("unit norm = %v", unit)
	}
}

func TestNormalizeL2Zero(t *testing.T) {
	v, norm := NormalizeL2([]float32{0, 0, 0})
	if v != nil || norm != 0 {
		t.Errorf("zero vector: got %v, %v", v, norm)
	}
}

func TestDot(t *testing.T) {
	if d := Dot([]float32{1, 2, 3}, []float32{4, 5, 6}); d != 32 {
		t.Errorf("dot = %v, want 32", d)
	}
}
