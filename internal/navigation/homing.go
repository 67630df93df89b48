package navigation

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pTommyed/osgar/internal/monitoring"
	"github.com/pTommyed/osgar/internal/scan"
	"github.com/pTommyed/osgar/internal/telemetry"
	"github.com/pTommyed/osgar/internal/units"
)

// TurnStopAngle is the heading error at and beyond which homing commands
// zero linear speed.
const TurnStopAngle = math.Pi / 2

// TurnSpeedFactor scales linear speed by heading error: 1 straight ahead,
// falling linearly to 0 at TurnStopAngle.
func TurnSpeedFactor(headingError float64) float64 {
	f := 1 - math.Abs(headingError)/TurnStopAngle
	if f < 0 {
		return 0
	}
	return f
}

// ReturnHome prunes the trace and drives back along it until the robot is
// within the home threshold of the origin. The detector should be
// disarmed; a collision here is returned as ErrUnexpectedCollision.
// trace.ErrNoWaypoint is fatal for the mission.
func (n *Navigator) ReturnHome(ctx context.Context) error {
	shortcut := n.cfg.GetShortcutRadius()
	maxTarget := n.cfg.GetMaxTargetDistance()
	if maxTarget <= shortcut {
		return fmt.Errorf("max target distance %.2f must exceed shortcut radius %.2f", maxTarget, shortcut)
	}
	threshold := n.cfg.GetHomeThreshold()

	before := n.trace.Len()
	n.trace.Prune(shortcut)
	monitoring.Logf("[navigator] %v trace pruned %d -> %d points", n.now, before, n.trace.Len())

	for r3.Norm(n.xyz) > threshold {
		ev, err := n.next(ctx)
		if err != nil {
			return err
		}
		if ev.Channel != telemetry.ChannelScan {
			continue
		}
		target, err := n.trace.WhereTo(n.xyz, maxTarget)
		if err != nil {
			return err
		}
		desired := units.NormalizeAnglePiPi(math.Atan2(target.Y-n.xyz.Y, target.X-n.xyz.X) - n.yaw)
		n.goHome(desired)
	}
	monitoring.Logf("[navigator] %v home (%.1f %.1f %.1f)", n.now, n.xyz.X, n.xyz.Y, n.xyz.Z)
	return nil
}

func (n *Navigator) goHome(desired float64) {
	dir := n.steer(desired)
	speed := SpeedForClearance(n.maxSpeed, scan.FrontalMinDist(n.scan)) * TurnSpeedFactor(dir)
	n.SendSpeed(speed, AngularGain*dir)
}
