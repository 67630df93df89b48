// Package scan holds the lidar scan helpers used by the exploration and
// homing controllers.
//
// A scan is an ordered slice of ranges in millimetres covering a fixed 270
// degree field of view. Index 0 is the rightmost beam, the middle index looks
// straight ahead and the last index is the leftmost beam. Readings of 10 mm
// or less are internal reflections or "no return" and never count as
// obstacles.
package scan

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FieldOfView is the angular span of a scan in radians.
const FieldOfView = 270 * math.Pi / 180

// Range limits in millimetres
const (
	// MinValidMM is the largest reading treated as invalid.
	MinValidMM = 10
	// UnlimitedMM replaces invalid readings in distance reductions.
	UnlimitedMM = 10000
)

// Scan is one lidar sweep in millimetres.
type Scan []int

// Valid reports whether a raw reading is an actual return.
func Valid(mm int) bool {
	return mm > MinValidMM
}

// Meters converts the scan to metres, mapping invalid readings to
// UnlimitedMM.
func (s Scan) Meters() []float64 {
	out := make([]float64, len(s))
	for i, mm := range s {
		if !Valid(mm) {
			mm = UnlimitedMM
		}
		out[i] = float64(mm) / 1000.0
	}
	return out
}

// Bearing returns the beam angle of index i in radians, 0 straight ahead,
// positive to the left.
func (s Scan) Bearing(i int) float64 {
	n := len(s)
	if n < 2 {
		return 0
	}
	return -FieldOfView/2 + float64(i)*FieldOfView/float64(n-1)
}

// Frontal returns the middle third of the scan.
func (s Scan) Frontal() Scan {
	n := len(s)
	return s[n/3 : 2*n/3]
}

// MinDist returns the nearest valid range in metres. An empty scan yields 0.
func MinDist(s Scan) float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Min(s.Meters())
}

// FrontalMinDist is MinDist over the frontal sector.
func FrontalMinDist(s Scan) float64 {
	return MinDist(s.Frontal())
}

// Points converts valid readings to robot-frame coordinates in metres
// (x forward, y left).
func (s Scan) Points() [][2]float64 {
	pts := make([][2]float64, 0, len(s))
	for i, mm := range s {
		if !Valid(mm) {
			continue
		}
		d := float64(mm) / 1000.0
		a := s.Bearing(i)
		pts = append(pts, [2]float64{d * math.Cos(a), d * math.Sin(a)})
	}
	return pts
}
