package units

import (
	"math"
	"testing"
)

func TestLengthConversions(t *testing.T) {
	tests := []struct {
		mm   float64
		want float64
	}{
		{0, 0},
		{1000, 1},
		{-2500, -2.5},
		{10, 0.01},
	}
	for _, tt := range tests {
		if got := MillimetersToMeters(tt.mm); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("MillimetersToMeters(%v) = %v, want %v", tt.mm, got, tt.want)
		}
	}

	if got := MetersToMillimeters(1.2345); got != 1235 {
		t.Errorf("MetersToMillimeters(1.2345) = %d, want 1235", got)
	}
	if got := MetersToMillimeters(-0.3); got != -300 {
		t.Errorf("MetersToMillimeters(-0.3) = %d, want -300", got)
	}
}

func TestAngleConversions(t *testing.T) {
	if got := CentidegreesToRadians(9000); math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("CentidegreesToRadians(9000) = %v, want pi/2", got)
	}
	if got := RadiansToCentidegrees(-math.Pi); got != -18000 {
		t.Errorf("RadiansToCentidegrees(-pi) = %d, want -18000", got)
	}
	if got := Degrees(Radians(45)); math.Abs(got-45) > 1e-12 {
		t.Errorf("round trip 45deg = %v", got)
	}
}

func TestNormalizeAnglePiPi(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
		want  float64
	}{
		{"zero", 0, 0},
		{"quarter", math.Pi / 2, math.Pi / 2},
		{"pi wraps to -pi", math.Pi, -math.Pi},
		{"just over pi", math.Pi + 0.1, -math.Pi + 0.1},
		{"negative full turn", -2 * math.Pi, 0},
		{"three halves", 3 * math.Pi / 2, -math.Pi / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAnglePiPi(tt.angle)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizeAnglePiPi(%v) = %v, want %v", tt.angle, got, tt.want)
			}
			if got < -math.Pi || got >= math.Pi {
				t.Errorf("result %v outside [-pi, pi)", got)
			}
		})
	}
}
