package util

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi float64
		expected  float64
	}{
		{"inside", 0.3, -1, 1, 0.3},
		{"below", -2, -1, 1, -1},
		{"above", 5, -1, 1, 1},
		{"edge", 1, -1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.expected {
				t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.expected)
			}
		})
	}
}

func TestFiniteOr(t *testing.T) {
	if got := FiniteOr(math.NaN(), 2); got != 2 {
		t.Errorf("FiniteOr(NaN, 2) = %v, want 2", got)
	}
	if got := FiniteOr(math.Inf(-1), 2); got != 2 {
		t.Errorf("FiniteOr(-Inf, 2) = %v, want 2", got)
	}
	if got := FiniteOr(1.5, 2); got != 1.5 {
		t.Errorf("FiniteOr(1.5, 2) = %v, want 1.5", got)
	}
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		input, expected float64
	}{
		{0, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{5 * math.Pi, math.Pi},
		{2 * math.Pi, 0},
	}

	for _, tt := range tests {
		if got := WrapAngle(tt.input); math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("WrapAngle(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestAngleDiff(t *testing.T) {
	// crossing north takes the short way round
	got := AngleDiff(Radians(350), Radians(10))
	if math.Abs(got-Radians(20)) > 1e-12 {
		t.Errorf("AngleDiff(350°, 10°) = %v°, want 20°", Degrees(got))
	}
	got = AngleDiff(Radians(10), Radians(350))
	if math.Abs(got+Radians(20)) > 1e-12 {
		t.Errorf("AngleDiff(10°, 350°) = %v°, want -20°", Degrees(got))
	}
}
