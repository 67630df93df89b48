// Package trace records the 3D path travelled by the robot and turns it into
// a shortcut path for the way back.
package trace

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultStep is the minimum spacing between stored points in metres.
const DefaultStep = 0.5

// Waypoint search parameters
const (
	// VerticalWeight discounts elevation differences, which dead reckoning
	// estimates poorly.
	VerticalWeight = 0.2
	// WhereToRelaxations is how many times WhereTo grows the radius after
	// the first attempt.
	WhereToRelaxations = 8
	// WhereToGrowth is the radius multiplier between attempts.
	WhereToGrowth = 1.5
)

// ErrNoWaypoint means no stored point lies near the robot even after the
// search radius was relaxed; the trace and the position estimate disagree.
var ErrNoWaypoint = errors.New("no trace waypoint within reach")

var waypointWeights = r3.Vec{X: 1, Y: 1, Z: VerticalWeight}

// Trace is an ordered list of visited positions.
type Trace struct {
	step   float64
	points []r3.Vec
	pruned bool
}

// New returns a trace seeded with the origin. A non-positive step uses
// DefaultStep.
func New(step float64) *Trace {
	if step <= 0 {
		step = DefaultStep
	}
	return &Trace{step: step, points: []r3.Vec{{}}}
}

// Step returns the recording step.
func (t *Trace) Step() float64 { return t.step }

// Len returns the number of stored points.
func (t *Trace) Len() int { return len(t.points) }

// Pruned reports whether Prune has run.
func (t *Trace) Pruned() bool { return t.pruned }

// Points returns a copy of the stored points.
func (t *Trace) Points() []r3.Vec {
	return append([]r3.Vec(nil), t.points...)
}

// Last returns the most recently stored point.
func (t *Trace) Last() r3.Vec {
	return t.points[len(t.points)-1]
}

// Record appends p if it is at least one step away from the last stored
// point and reports whether it was stored.
func (t *Trace) Record(p r3.Vec) bool {
	if r3.Norm(r3.Sub(p, t.Last())) < t.step {
		return false
	}
	t.points = append(t.points, p)
	return true
}

// Prune replaces the trace with a shortcut path. Starting from the first
// point it repeatedly keeps the farthest later point (by index) that lies
// within radius of the last kept point, then continues just past it. Loops
// collapse and the first point is preserved. A non-positive radius uses the
// recording step.
//
// The scan is quadratic in the trace length; call it once, before homing.
func (t *Trace) Prune(radius float64) {
	if radius <= 0 {
		radius = t.step
	}
	out := &Trace{step: t.step, points: []r3.Vec{t.points[0]}}
	openEnd := 1
	for openEnd < len(t.points) {
		best := openEnd
		last := out.Last()
		for i := openEnd; i < len(t.points); i++ {
			if r3.Norm(r3.Sub(t.points[i], last)) < radius {
				best = i
			}
		}
		out.Record(t.points[best])
		openEnd = best + 1
	}
	t.points = out.points
	t.pruned = true
}

// WhereTo returns the first stored point, in recorded order, within
// maxTargetDistance of pos. Distance discounts the vertical axis by
// VerticalWeight. When nothing qualifies the radius grows by WhereToGrowth,
// up to WhereToRelaxations times, before ErrNoWaypoint is returned.
func (t *Trace) WhereTo(pos r3.Vec, maxTargetDistance float64) (r3.Vec, error) {
	limit := maxTargetDistance
	for attempt := 0; attempt <= WhereToRelaxations; attempt++ {
		for _, target := range t.points {
			if WeightedDistance(target, pos, waypointWeights) < limit {
				return target, nil
			}
		}
		limit *= WhereToGrowth
	}
	return r3.Vec{}, fmt.Errorf("%w: position (%.1f, %.1f, %.1f), radius up to %.1f m",
		ErrNoWaypoint, pos.X, pos.Y, pos.Z, limit/WhereToGrowth)
}

// WeightedDistance is the Euclidean distance with each squared axis
// difference scaled by the matching weight.
func WeightedDistance(a, b, w r3.Vec) float64 {
	d := r3.Sub(a, b)
	return math.Sqrt(w.X*d.X*d.X + w.Y*d.Y*d.Y + w.Z*d.Z*d.Z)
}
