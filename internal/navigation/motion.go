package navigation

import (
	"context"
	"math"
	"time"

	"github.com/pTommyed/osgar/internal/monitoring"
	"github.com/pTommyed/osgar/internal/scan"
	"github.com/pTommyed/osgar/internal/telemetry"
	"github.com/pTommyed/osgar/internal/units"
)

// Speed law constants
const (
	// AngularGain converts a heading error to an angular speed command.
	AngularGain = 1.2
	// ComfortDistance is the frontal clearance above which the robot runs at
	// full speed.
	ComfortDistance = 0.75
	// MinClearance is the frontal clearance at which the commanded speed
	// reaches zero.
	MinClearance = 0.2
)

// Settle limits
const (
	StopSettle = 20 * time.Second
	TurnSettle = 2 * time.Second
)

// SpeedForClearance returns the linear speed for the nearest frontal
// obstacle at dist metres. It falls linearly from maxSpeed at
// ComfortDistance to zero at MinClearance, and goes negative below it.
func SpeedForClearance(maxSpeed, dist float64) float64 {
	if dist < ComfortDistance {
		return maxSpeed * (dist - MinClearance) / (ComfortDistance - MinClearance)
	}
	return maxSpeed
}

// SendSpeed publishes a desired_speed command [mm/s, cdeg/s].
func (n *Navigator) SendSpeed(speed, angularSpeed float64) {
	n.publish(telemetry.ChannelDesiredSpeed, []int64{
		units.MetersToMillimeters(speed),
		units.RadiansToCentidegrees(angularSpeed),
	})
}

// next is Update for loops that have no collision handling.
func (n *Navigator) next(ctx context.Context) (Event, error) {
	ev, err := n.Update(ctx)
	if err != nil {
		return ev, err
	}
	if ev.Collision {
		return ev, ErrUnexpectedCollision
	}
	return ev, nil
}

// GoStraight drives how far metres along the current heading, backwards
// when negative, measured by planar odometry distance from the start.
func (n *Navigator) GoStraight(ctx context.Context, howFar float64) error {
	monitoring.Logf("[navigator] %v go_straight %.1f", n.now, howFar)
	start := n.lastPose
	speed := n.maxSpeed
	if howFar < 0 {
		speed = -speed
	}
	n.SendSpeed(speed, 0)
	for math.Hypot(n.lastPose.x-start.x, n.lastPose.y-start.y) < math.Abs(howFar) {
		if _, err := n.next(ctx); err != nil {
			return err
		}
	}
	n.SendSpeed(0, 0)
	return nil
}

// Turn pivots by angle radians (positive is counter-clockwise) while
// commanding the given linear speed. With withStop the robot is halted and
// given up to TurnSettle to come to rest.
func (n *Navigator) Turn(ctx context.Context, angle float64, withStop bool, speed float64) error {
	monitoring.Logf("[navigator] %v turn %.1f", n.now, units.Degrees(angle))
	start := n.lastPose
	angular := n.maxAngularSpeed
	if angle < 0 {
		angular = -angular
	}
	n.SendSpeed(speed, angular)
	for math.Abs(units.NormalizeAnglePiPi(start.heading-n.lastPose.heading)) < math.Abs(angle) {
		if _, err := n.next(ctx); err != nil {
			return err
		}
	}
	if !withStop {
		return nil
	}
	n.SendSpeed(0, 0)
	return n.settle(ctx, TurnSettle)
}

// Stop commands zero velocity and waits up to StopSettle for odometry to
// stop changing.
func (n *Navigator) Stop(ctx context.Context) error {
	n.SendSpeed(0, 0)
	return n.settle(ctx, StopSettle)
}

func (n *Navigator) settle(ctx context.Context, limit time.Duration) error {
	if err := n.ensureStarted(ctx); err != nil {
		return err
	}
	start := n.now
	for n.now-start < limit {
		if _, err := n.next(ctx); err != nil {
			return err
		}
		if !n.isMoving {
			break
		}
	}
	monitoring.Logf("[navigator] %v stop at %v moving=%v", n.now, n.now-start, n.isMoving)
	return nil
}

// Wait consumes telemetry until dt of packet time has passed.
func (n *Navigator) Wait(ctx context.Context, dt time.Duration) error {
	if err := n.ensureStarted(ctx); err != nil {
		return err
	}
	start := n.now
	for n.now-start < dt {
		if _, err := n.next(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (n *Navigator) ensureStarted(ctx context.Context) error {
	if n.started {
		return nil
	}
	_, err := n.next(ctx)
	return err
}

// steer returns the heading to take for desired, after the local planner
// when one is enabled.
func (n *Navigator) steer(desired float64) float64 {
	if n.planner == nil {
		return desired
	}
	_, safe := n.planner.Recommend(desired)
	return safe
}

// goSafely commands a turn towards desired with the linear speed limited
// by frontal clearance.
func (n *Navigator) goSafely(desired float64) {
	dir := n.steer(desired)
	speed := SpeedForClearance(n.maxSpeed, scan.FrontalMinDist(n.scan))
	n.SendSpeed(speed, AngularGain*dir)
}
