package scan

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// WallAngleFunc computes the heading correction in radians that keeps a wall
// at radius metres on the chosen side.
type WallAngleFunc func(s Scan, radius float64, rightWall bool) float64

// tooCloseOffset is the bearing offset used once the wall is nearer than the
// standoff radius; it steers slightly away from the wall.
const tooCloseOffset = 100 * math.Pi / 180

// FollowWallAngle is the default wall-following heuristic. It finds the
// nearest return on the hugged side and heads along the tangent of a circle
// of the given radius around it: far walls are approached, a wall at exactly
// radius is followed in parallel and nearer walls are steered away from.
func FollowWallAngle(s Scan, radius float64, rightWall bool) float64 {
	n := len(s)
	if n < 2 || radius <= 0 {
		return 0
	}
	dists := s.Meters()
	var index int
	if rightWall {
		index = floats.MinIdx(dists[:n/2])
	} else {
		index = n/2 + floats.MinIdx(dists[n/2:])
	}
	dist := dists[index]
	laserAngle := s.Bearing(index)

	offset := tooCloseOffset
	if dist >= radius {
		offset = math.Asin(radius / dist)
	}
	if rightWall {
		return normalize(laserAngle + offset)
	}
	return normalize(laserAngle - offset)
}

func normalize(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
