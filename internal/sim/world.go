// Package sim is a kinematic robot simulator that speaks the telemetry bus
// protocol. It is used by controller tests and by the navigator's dry-run
// mode.
package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// MaxRange is the farthest return the simulated lidar reports, in metres.
const MaxRange = 10.0

// Segment is a wall between two points.
type Segment struct {
	A, B r2.Vec
}

// World is a set of walls in the plane.
type World struct {
	Walls []Segment
}

// Tunnel returns a straight tunnel along +x, closed behind the start at
// x = -1 and at the far end x = length.
func Tunnel(length, width float64) World {
	h := width / 2
	return World{Walls: []Segment{
		{A: r2.Vec{X: -1, Y: -h}, B: r2.Vec{X: length, Y: -h}},
		{A: r2.Vec{X: -1, Y: h}, B: r2.Vec{X: length, Y: h}},
		{A: r2.Vec{X: -1, Y: -h}, B: r2.Vec{X: -1, Y: h}},
		{A: r2.Vec{X: length, Y: -h}, B: r2.Vec{X: length, Y: h}},
	}}
}

// Open returns a world without walls.
func Open() World { return World{} }

func cross(p, q r2.Vec) float64 { return p.X*q.Y - p.Y*q.X }

// intersect returns the distance along the unit ray (origin, dir) to s.
func intersect(origin, dir r2.Vec, s Segment) (float64, bool) {
	e := r2.Sub(s.B, s.A)
	denom := cross(dir, e)
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	w := r2.Sub(s.A, origin)
	t := cross(w, e) / denom
	u := cross(w, dir) / denom
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// Raycast returns the distance to the nearest wall along angle from origin,
// or false if nothing lies within MaxRange.
func (w World) Raycast(origin r2.Vec, angle float64) (float64, bool) {
	dir := r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}
	best := math.Inf(1)
	for _, s := range w.Walls {
		if t, ok := intersect(origin, dir, s); ok && t < best {
			best = t
		}
	}
	if best > MaxRange {
		return 0, false
	}
	return best, true
}
