package scan

import (
	"math"
)

// Planner defaults
const (
	DefaultPlannerMargin    = 0.35
	DefaultPlannerLookahead = 1.5
	plannerStep             = 5 * math.Pi / 180
)

// LocalPlanner is an obstacle-avoidance advisor. Given the latest scan it
// turns a desired heading into the closest heading whose corridor of width
// 2*Margin is free of returns for Lookahead metres.
type LocalPlanner struct {
	Margin    float64
	Lookahead float64

	points [][2]float64
}

// NewLocalPlanner returns a planner with default margin and lookahead.
func NewLocalPlanner() *LocalPlanner {
	return &LocalPlanner{Margin: DefaultPlannerMargin, Lookahead: DefaultPlannerLookahead}
}

// Update replaces the obstacle set with the returns of s.
func (p *LocalPlanner) Update(s Scan) {
	p.points = s.Points()
}

// clearance is the distance from the nearest return to the segment from the
// robot along direction for Lookahead metres.
func (p *LocalPlanner) clearance(direction float64) float64 {
	ux, uy := math.Cos(direction), math.Sin(direction)
	best := math.Inf(1)
	for _, pt := range p.points {
		t := pt[0]*ux + pt[1]*uy
		if t < 0 {
			t = 0
		} else if t > p.Lookahead {
			t = p.Lookahead
		}
		dx, dy := pt[0]-t*ux, pt[1]-t*uy
		if d := math.Hypot(dx, dy); d < best {
			best = d
		}
	}
	return best
}

// Recommend returns a safety score in [0, 1] and the heading to take. The
// desired heading is returned unchanged when its corridor is clear;
// otherwise the nearest clear heading within +-90 degrees is chosen, or the
// most open one if none is clear.
func (p *LocalPlanner) Recommend(desired float64) (safety, direction float64) {
	if len(p.points) == 0 {
		return 1, desired
	}
	score := func(c float64) float64 {
		return math.Min(1, c/p.Margin)
	}
	if c := p.clearance(desired); c >= p.Margin {
		return score(c), desired
	}

	bestDir, bestClear := desired, p.clearance(desired)
	for k := 1; float64(k)*plannerStep <= math.Pi/2+1e-9; k++ {
		for _, sign := range []float64{1, -1} {
			dir := normalize(desired + sign*float64(k)*plannerStep)
			c := p.clearance(dir)
			if c >= p.Margin {
				return score(c), dir
			}
			if c > bestClear {
				bestDir, bestClear = dir, c
			}
		}
	}
	return score(bestClear), bestDir
}
