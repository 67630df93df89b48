// Package units provides the fixed-point conversions used on the telemetry
// link. The sensor layer speaks millimetres and hundredths of a degree; the
// navigator works in metres and radians.
package units

import (
	"math"
)

// Telemetry scale factors
const (
	MillimetersPerMeter = 1000.0
	CentidegreesPerDeg  = 100.0
	// AccelScale converts raw acc readings to the working acceleration unit.
	AccelScale = 1000.0
)

// MillimetersToMeters converts a raw millimetre reading to metres.
func MillimetersToMeters(mm float64) float64 {
	return mm / MillimetersPerMeter
}

// MetersToMillimeters converts metres to the nearest whole millimetre.
func MetersToMillimeters(m float64) int64 {
	return int64(math.Round(m * MillimetersPerMeter))
}

// CentidegreesToRadians converts hundredths of a degree to radians.
func CentidegreesToRadians(cdeg float64) float64 {
	return cdeg / CentidegreesPerDeg * math.Pi / 180.0
}

// RadiansToCentidegrees converts radians to the nearest whole centidegree.
func RadiansToCentidegrees(rad float64) int64 {
	return int64(math.Round(rad * 180.0 / math.Pi * CentidegreesPerDeg))
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// NormalizeAnglePiPi wraps an angle into [-pi, pi).
func NormalizeAnglePiPi(angle float64) float64 {
	a := math.Mod(angle+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
