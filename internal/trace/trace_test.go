package trace

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func dist(a, b r3.Vec) float64 { return r3.Norm(r3.Sub(a, b)) }

// isSubsequence reports whether sub appears in full in order.
func isSubsequence(sub, full []r3.Vec) bool {
	j := 0
	for _, p := range full {
		if j < len(sub) && sub[j] == p {
			j++
		}
	}
	return j == len(sub)
}

// randomWalk records a noisy walk of n samples with small increments.
func randomWalk(rng *rand.Rand, tr *Trace, n int) {
	pos := r3.Vec{}
	heading := 0.0
	for i := 0; i < n; i++ {
		heading += rng.NormFloat64() * 0.3
		pos = r3.Add(pos, r3.Vec{X: 0.1 * math.Cos(heading), Y: 0.1 * math.Sin(heading), Z: 0.01 * rng.NormFloat64()})
		tr.Record(pos)
	}
}

func TestNewSeedsOrigin(t *testing.T) {
	tr := New(0)
	assert.Equal(t, DefaultStep, tr.Step())
	assert.Equal(t, []r3.Vec{{}}, tr.Points())
	assert.False(t, tr.Pruned())
}

func TestRecordKeepsStepSpacing(t *testing.T) {
	tr := New(0.5)
	assert.False(t, tr.Record(r3.Vec{X: 0.3}))
	assert.True(t, tr.Record(r3.Vec{X: 0.5}))
	assert.False(t, tr.Record(r3.Vec{X: 0.9}))
	assert.True(t, tr.Record(r3.Vec{X: 0.9, Z: 0.4}))

	rng := rand.New(rand.NewSource(7))
	randomWalk(rng, tr, 2000)
	pts := tr.Points()
	for i := 1; i < len(pts); i++ {
		require.GreaterOrEqual(t, dist(pts[i], pts[i-1]), tr.Step(), "points %d and %d too close", i-1, i)
	}
}

func TestPruneCollapsesReturnSegment(t *testing.T) {
	tr := New(0.5)
	for i := 0; i <= 10; i++ {
		tr.Record(r3.Vec{X: 0.5 * float64(i)})
	}
	require.True(t, tr.Record(r3.Vec{X: 0.5}))
	require.Equal(t, 12, tr.Len())

	tr.Prune(1.0)

	want := []r3.Vec{{}, {X: 0.5}}
	if diff := cmp.Diff(want, tr.Points()); diff != "" {
		t.Errorf("pruned trace mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, tr.Pruned())
}

func TestPruneStraightLine(t *testing.T) {
	tr := New(0.5)
	for i := 0; i <= 20; i++ {
		tr.Record(r3.Vec{X: 0.5 * float64(i)})
	}
	tr.Prune(1.2)

	// every second point survives: 1.0 m apart is the farthest within 1.2 m
	var want []r3.Vec
	for i := 0; i <= 20; i += 2 {
		want = append(want, r3.Vec{X: 0.5 * float64(i)})
	}
	if diff := cmp.Diff(want, tr.Points(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("pruned trace mismatch (-want +got):\n%s", diff)
	}
}

func TestPruneProperties(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		tr := New(0.5)
		randomWalk(rng, tr, 3000)
		before := tr.Points()

		const radius = 2.3
		tr.Prune(radius)
		after := tr.Points()

		require.LessOrEqual(t, len(after), len(before), "seed %d", seed)
		require.Equal(t, before[0], after[0], "seed %d: first point", seed)
		require.True(t, isSubsequence(after, before), "seed %d: not a subsequence", seed)
		for i := 1; i < len(after); i++ {
			d := dist(after[i], after[i-1])
			require.Less(t, d, radius, "seed %d: hop %d is %.2f m", seed, i, d)
			require.GreaterOrEqual(t, d, tr.Step(), "seed %d: hop %d", seed, i)
		}
	}
}

func TestPruneDefaultsToStep(t *testing.T) {
	tr := New(0.5)
	for i := 0; i <= 4; i++ {
		tr.Record(r3.Vec{X: 0.5 * float64(i)})
	}
	tr.Prune(0)
	// radius 0.5 with strict comparison keeps only immediate neighbours
	assert.Equal(t, 5, tr.Len())
}

func TestWhereTo(t *testing.T) {
	tr := New(0.5)
	for i := 0; i <= 20; i++ {
		tr.Record(r3.Vec{X: 0.5 * float64(i)})
	}

	t.Run("returns first point in recorded order", func(t *testing.T) {
		got, err := tr.WhereTo(r3.Vec{X: 8}, 5.0)
		require.NoError(t, err)
		assert.Equal(t, r3.Vec{X: 3.5}, got)
	})

	t.Run("elevation is discounted", func(t *testing.T) {
		// 6 m above the origin weighs as ~2.7 m
		got, err := tr.WhereTo(r3.Vec{Z: 6}, 3.0)
		require.NoError(t, err)
		assert.Equal(t, r3.Vec{}, got)
	})

	t.Run("relaxes radius", func(t *testing.T) {
		got, err := tr.WhereTo(r3.Vec{X: 5, Y: 10}, 5.0)
		require.NoError(t, err)
		assert.Contains(t, tr.Points(), got, "waypoints are stored points, never interpolations")
	})

	t.Run("gives up after the last relaxation", func(t *testing.T) {
		_, err := tr.WhereTo(r3.Vec{Y: 200}, 5.0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoWaypoint))
	})
}

func TestWhereTo_RelaxationBound(t *testing.T) {
	tr := New(0.5)
	last := 5.0 * math.Pow(WhereToGrowth, WhereToRelaxations)
	// 5 * 1.5^7 is about 85.4 m, 5 * 1.5^8 about 128.1 m
	require.InDelta(t, 128.14, last, 0.01)

	t.Run("found only at the last relaxation", func(t *testing.T) {
		got, err := tr.WhereTo(r3.Vec{X: 100}, 5.0)
		require.NoError(t, err)
		assert.Equal(t, r3.Vec{}, got)
	})

	t.Run("just beyond the last relaxation", func(t *testing.T) {
		_, err := tr.WhereTo(r3.Vec{X: last + 1}, 5.0)
		require.ErrorIs(t, err, ErrNoWaypoint)
		assert.Contains(t, err.Error(), "128.1 m")
	})
}

func TestWeightedDistance(t *testing.T) {
	a := r3.Vec{X: 3, Y: 4, Z: 10}
	assert.InDelta(t, 5.0, WeightedDistance(a, r3.Vec{Z: 10}, r3.Vec{X: 1, Y: 1, Z: 0.2}), 1e-12)
	assert.InDelta(t, math.Sqrt(25+0.2*100), WeightedDistance(a, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 0.2}), 1e-12)
}
