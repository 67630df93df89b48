package navigation

import (
	"context"
	"math"
	"time"

	"github.com/pTommyed/osgar/internal/monitoring"
	"github.com/pTommyed/osgar/internal/telemetry"
)

// DefaultWallTimeout bounds FollowWall when no timeout is given.
const DefaultWallTimeout = 3 * time.Hour

// Collision recovery distances in metres
const (
	RecoveryReverse = 1.0
	RecoveryAdvance = 1.5
)

// WallParams configures one FollowWall run. Zero values disable the
// optional limits, except DistLimit which is disabled only when nil.
type WallParams struct {
	Radius    float64
	RightWall bool
	// Timeout is measured on the mission clock from the start of the call.
	Timeout time.Duration
	// DistLimit ends the run once the signed distance traveled since the
	// start of the call reaches it. A non-positive limit ends the run on the
	// first packet.
	DistLimit *float64
	// StopOnArtifacts ends the run once this many new artifacts are known.
	StopOnArtifacts int
	// SearchSince is a mission clock time; artifacts found before it do not
	// count towards StopOnArtifacts.
	SearchSince time.Duration
}

// FollowWall explores by keeping Radius metres from the chosen wall. It
// returns the distance traveled during the call. Collisions reported by
// Update trigger the recovery maneuver and the run continues afterwards.
func (n *Navigator) FollowWall(ctx context.Context, p WallParams) (float64, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultWallTimeout
	}
	startDist := n.traveled
	startTime := n.simTime
	countedBefore := 0

	for n.simTime-startTime < timeout {
		ev, err := n.Update(ctx)
		if err != nil {
			return n.traveled - startDist, err
		}
		if ev.Collision {
			if n.armed {
				panic("navigation: collision reported with the detector still armed")
			}
			if err := n.recoverFromCollision(ctx, p.RightWall); err != nil {
				return n.traveled - startDist, err
			}
			continue
		}

		if ev.Channel == telemetry.ChannelScan {
			n.goSafely(n.wallAngle(n.scan, p.Radius, p.RightWall))
		}
		if p.DistLimit != nil && n.traveled-startDist >= *p.DistLimit {
			monitoring.Logf("[navigator] %v distance limit reached at %.1f (%.1f)", n.now, n.traveled, n.traveled-startDist)
			break
		}
		if p.SearchSince > 0 && n.simTime < p.SearchSince {
			countedBefore = n.artifacts.Len()
		}
		if p.StopOnArtifacts > 0 && countedBefore+p.StopOnArtifacts <= n.artifacts.Len() {
			monitoring.Logf("[navigator] %v artifact count reached (%d)", n.now, n.artifacts.Len())
			break
		}
	}
	return n.traveled - startDist, nil
}

// recoverFromCollision backs off, sidesteps away from the wall and re-arms
// the detector. The position held before stopping wins over any jump seen
// while stopping.
func (n *Navigator) recoverFromCollision(ctx context.Context, rightWall bool) error {
	before := n.xyz
	if err := n.Stop(ctx); err != nil {
		return err
	}
	monitoring.Logf("[navigator] %v pose jump (%.2f %.2f %.2f) -> (%.2f %.2f %.2f)",
		n.now, before.X, before.Y, before.Z, n.xyz.X, n.xyz.Y, n.xyz.Z)
	n.xyz = before

	turn := math.Pi / 2
	if !rightWall {
		turn = -turn
	}
	steps := []func() error{
		func() error { return n.GoStraight(ctx, -RecoveryReverse) },
		func() error { return n.Stop(ctx) },
		func() error { return n.Turn(ctx, turn, true, 0) },
		func() error { return n.GoStraight(ctx, RecoveryAdvance) },
		func() error { return n.Stop(ctx) },
		func() error { return n.Turn(ctx, -turn, true, 0) },
		func() error { return n.GoStraight(ctx, RecoveryAdvance) },
		func() error { return n.Stop(ctx) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	n.armed = true
	return nil
}
