package scan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniform returns a scan of n beams all reading mm.
func uniform(n, mm int) Scan {
	s := make(Scan, n)
	for i := range s {
		s[i] = mm
	}
	return s
}

// corridor renders a scan of n beams inside an infinite corridor running
// along the robot's heading, with walls right metres to the right and left
// metres to the left.
func corridor(n int, right, left float64) Scan {
	s := make(Scan, n)
	for i := range s {
		a := s.Bearing(i)
		sin := math.Sin(a)
		switch {
		case sin < -1e-6:
			s[i] = int(-right / sin * 1000)
		case sin > 1e-6:
			s[i] = int(left / sin * 1000)
		default:
			s[i] = 0
		}
		if s[i] > 30000 {
			s[i] = 0
		}
	}
	return s
}

func TestBearing(t *testing.T) {
	s := uniform(271, 1000)
	assert.InDelta(t, -135*math.Pi/180, s.Bearing(0), 1e-12)
	assert.InDelta(t, 0, s.Bearing(135), 1e-12)
	assert.InDelta(t, 135*math.Pi/180, s.Bearing(270), 1e-12)
}

func TestMinDistIgnoresInvalid(t *testing.T) {
	s := Scan{0, 5, 10, 2500, 800, 0}
	assert.InDelta(t, 0.8, MinDist(s), 1e-12)
	assert.InDelta(t, 10.0, MinDist(Scan{0, 0, 3}), 1e-12, "all invalid reads as unlimited")
	assert.Equal(t, 0.0, MinDist(nil))
}

func TestFrontalMinDist(t *testing.T) {
	s := uniform(270, 5000)
	s[10] = 300  // right side, outside the frontal sector
	s[135] = 900 // straight ahead
	assert.InDelta(t, 0.9, FrontalMinDist(s), 1e-12)
}

func TestPoints(t *testing.T) {
	s := Scan{1000, 0, 2000}
	pts := s.Points()
	require.Len(t, pts, 2)
	// index 0 is -135 degrees
	assert.InDelta(t, -math.Sqrt2/2, pts[0][0], 1e-9)
	assert.InDelta(t, -math.Sqrt2/2, pts[0][1], 1e-9)
}

func TestFollowWallAngle(t *testing.T) {
	const radius = 0.6

	t.Run("parallel at standoff goes straight", func(t *testing.T) {
		s := corridor(271, radius, 3.0)
		assert.InDelta(t, 0, FollowWallAngle(s, radius, true), 0.1)
	})

	t.Run("too close steers away from right wall", func(t *testing.T) {
		s := corridor(271, 0.3, 3.0)
		assert.Greater(t, FollowWallAngle(s, radius, true), 0.0)
	})

	t.Run("far right wall steers toward it", func(t *testing.T) {
		s := corridor(271, 1.5, 3.0)
		assert.Less(t, FollowWallAngle(s, radius, true), 0.0)
	})

	t.Run("left wall mirrors right wall", func(t *testing.T) {
		right := FollowWallAngle(corridor(271, 1.5, 3.0), radius, true)
		left := FollowWallAngle(corridor(271, 3.0, 1.5), radius, false)
		assert.InDelta(t, -right, left, 0.1)
	})

	t.Run("degenerate input", func(t *testing.T) {
		assert.Equal(t, 0.0, FollowWallAngle(Scan{1000}, radius, true))
		assert.Equal(t, 0.0, FollowWallAngle(uniform(10, 1000), 0, true))
	})
}

func TestLocalPlanner(t *testing.T) {
	t.Run("no obstacles keeps desired heading", func(t *testing.T) {
		p := NewLocalPlanner()
		p.Update(uniform(271, 0))
		safety, dir := p.Recommend(0.3)
		assert.Equal(t, 1.0, safety)
		assert.Equal(t, 0.3, dir)
	})

	t.Run("wide corridor keeps heading", func(t *testing.T) {
		p := NewLocalPlanner()
		p.Update(corridor(271, 1.0, 1.0))
		safety, dir := p.Recommend(0)
		assert.Equal(t, 0.0, dir)
		assert.Equal(t, 1.0, safety)
	})

	t.Run("obstacle ahead deflects", func(t *testing.T) {
		p := NewLocalPlanner()
		s := uniform(271, 0)
		// a post 1 m straight ahead
		for i := 130; i <= 140; i++ {
			s[i] = 1000
		}
		p.Update(s)
		safety, dir := p.Recommend(0)
		assert.NotEqual(t, 0.0, dir)
		assert.LessOrEqual(t, math.Abs(dir), math.Pi/2+1e-9)
		assert.Equal(t, 1.0, safety)
		assert.GreaterOrEqual(t, p.clearance(dir), p.Margin)
	})
}
