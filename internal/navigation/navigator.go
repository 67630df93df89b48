// Package navigation is the robot's mission controller. It consumes
// telemetry from a bus, maintains the dead-reckoned 3D position, and drives
// the robot through wall following, collision recovery and homing by
// publishing velocity commands back onto the bus.
//
// All state is owned by a single Navigator and mutated only from Update,
// which handles exactly one packet per call. Controllers are synchronous
// loops around Update; the bus read is the only place they block.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pTommyed/osgar/internal/artifact"
	"github.com/pTommyed/osgar/internal/config"
	"github.com/pTommyed/osgar/internal/monitoring"
	"github.com/pTommyed/osgar/internal/scan"
	"github.com/pTommyed/osgar/internal/telemetry"
	"github.com/pTommyed/osgar/internal/trace"
	"github.com/pTommyed/osgar/internal/units"
)

// Gravity is the expected magnitude of gravitational acceleration.
const Gravity = 9.8

// ErrUnexpectedCollision is returned when the collision detector fires
// outside wall following, where no recovery maneuver exists.
var ErrUnexpectedCollision = errors.New("collision outside wall following")

// Event describes the packet consumed by one Update call.
type Event struct {
	Channel   telemetry.Channel
	Timestamp time.Duration
	// Collision is set when an acc packet exceeded the threshold while the
	// detector was armed. The detector is disarmed when this fires.
	Collision bool
}

// pose is a raw odometry reading in metres and radians.
type pose struct {
	x, y, heading float64
}

// Navigator holds the kinematic and sensor state of the robot.
type Navigator struct {
	bus telemetry.Bus
	cfg *config.NavConfig

	maxSpeed           float64
	maxAngularSpeed    float64
	collisionThreshold float64
	virtualWorld       bool

	now     time.Duration
	started bool
	simTime time.Duration

	lastPose pose
	isMoving bool
	traveled float64

	xyz         r3.Vec
	xyzQuat     r3.Vec
	orientation quat.Number
	yaw         float64
	pitch       float64
	roll        float64

	scan    scan.Scan
	stats   telemetry.Stats
	voltage []float64
	status  monitoring.MinuteThrottle

	trace     *trace.Trace
	artifacts *artifact.Memory
	planner   *scan.LocalPlanner
	wallAngle scan.WallAngleFunc

	armed bool
}

// New returns a navigator reading from bus. A nil cfg uses the defaults.
func New(bus telemetry.Bus, cfg *config.NavConfig) *Navigator {
	if cfg == nil {
		cfg = config.EmptyNavConfig()
	}
	n := &Navigator{
		bus:                bus,
		cfg:                cfg,
		maxSpeed:           cfg.GetMaxSpeed(),
		maxAngularSpeed:    cfg.GetMaxAngularSpeed(),
		collisionThreshold: cfg.GetCollisionThreshold(),
		virtualWorld:       cfg.GetVirtualWorld(),
		orientation:        quat.Number{Real: 1},
		trace:              trace.New(cfg.GetTraceStep()),
		artifacts:          artifact.NewMemory(cfg.GetDedupRadius()),
		wallAngle:          scan.FollowWallAngle,
	}
	if cfg.GetUseLocalPlanner() {
		n.planner = scan.NewLocalPlanner()
	}
	return n
}

// SetWallAngle replaces the wall following heuristic.
func (n *Navigator) SetWallAngle(f scan.WallAngleFunc) {
	if f == nil {
		f = scan.FollowWallAngle
	}
	n.wallAngle = f
}

// SetCollisionArmed arms or disarms the collision detector.
func (n *Navigator) SetCollisionArmed(armed bool) { n.armed = armed }

// CollisionArmed reports whether the collision detector is armed.
func (n *Navigator) CollisionArmed() bool { return n.armed }

// Config returns the configuration the navigator was built with.
func (n *Navigator) Config() *config.NavConfig { return n.cfg }

// XYZ returns the dead-reckoned world position.
func (n *Navigator) XYZ() r3.Vec { return n.xyz }

// XYZQuat returns the position integrated through the orientation
// quaternion.
func (n *Navigator) XYZQuat() r3.Vec { return n.xyzQuat }

// Orientation returns the latest orientation quaternion.
func (n *Navigator) Orientation() quat.Number { return n.orientation }

// Yaw returns the latest yaw in radians.
func (n *Navigator) Yaw() float64 { return n.yaw }

// Pitch returns the latest pitch in radians.
func (n *Navigator) Pitch() float64 { return n.pitch }

// Roll returns the latest roll in radians.
func (n *Navigator) Roll() float64 { return n.roll }

// Heading returns the raw odometry heading in radians.
func (n *Navigator) Heading() float64 { return n.lastPose.heading }

// Traveled returns the signed distance accumulated from odometry.
func (n *Navigator) Traveled() float64 { return n.traveled }

// IsMoving reports whether the last two odometry readings differed.
func (n *Navigator) IsMoving() bool { return n.isMoving }

// Now returns the timestamp of the last packet.
func (n *Navigator) Now() time.Duration { return n.now }

// SimTime returns the mission clock.
func (n *Navigator) SimTime() time.Duration { return n.simTime }

// Scan returns the latest lidar scan.
func (n *Navigator) Scan() scan.Scan { return n.scan }

// Stats returns the packet counters since the last status line.
func (n *Navigator) Stats() telemetry.Stats { return n.stats }

// Voltage returns the latest voltage readings.
func (n *Navigator) Voltage() []float64 { return n.voltage }

// Trace returns the recorded path.
func (n *Navigator) Trace() *trace.Trace { return n.trace }

// Artifacts returns the artifact memory.
func (n *Navigator) Artifacts() *artifact.Memory { return n.artifacts }

// Update reads one packet from the bus and applies it. It returns the bus
// error unchanged (telemetry.ErrBusClosed, context errors) and wraps
// telemetry.ErrMalformedPacket for payloads of the wrong shape.
func (n *Navigator) Update(ctx context.Context) (Event, error) {
	p, err := n.bus.Listen(ctx)
	if err != nil {
		return Event{}, err
	}
	if n.status.Due(p.Timestamp) {
		n.logStatus(p.Timestamp)
		n.stats = telemetry.Stats{}
	}

	n.now = p.Timestamp
	n.started = true
	if !n.virtualWorld {
		n.simTime = p.Timestamp
	}
	n.stats.Count(p.Channel)

	ev := Event{Channel: p.Channel, Timestamp: p.Timestamp}
	switch p.Channel {
	case telemetry.ChannelPose2D:
		err = n.onPose2D(p)
	case telemetry.ChannelScan:
		err = n.onScan(p)
	case telemetry.ChannelRot:
		err = n.onRot(p)
	case telemetry.ChannelOrientation:
		err = n.onOrientation(p)
	case telemetry.ChannelSimTime:
		err = n.onSimTime(p)
	case telemetry.ChannelAcc:
		ev.Collision, err = n.onAcc(p)
	case telemetry.ChannelArtf:
		err = n.onArtf(p)
	case telemetry.ChannelVoltage:
		n.voltage, err = p.Floats(-1)
	}
	if err != nil {
		return ev, fmt.Errorf("update at %v: %w", p.Timestamp, err)
	}
	return ev, nil
}

func (n *Navigator) logStatus(ts time.Duration) {
	monitoring.Logf("[navigator] %v (%.1f %.1f %.1f) %s", ts, n.xyz.X, n.xyz.Y, n.xyz.Z, n.stats)
	if len(n.voltage) > 0 {
		volts := make([]string, len(n.voltage))
		for i, v := range n.voltage {
			volts[i] = fmt.Sprintf("%.1f", v/100)
		}
		monitoring.Logf("[navigator] %v voltage %v", ts, volts)
	}
}

func (n *Navigator) onPose2D(p telemetry.Packet) error {
	raw, err := p.DecodePose2D()
	if err != nil {
		return err
	}
	cur := pose{
		x:       units.MillimetersToMeters(raw.XMM),
		y:       units.MillimetersToMeters(raw.YMM),
		heading: units.CentidegreesToRadians(raw.HeadingCdeg),
	}
	last := n.lastPose
	n.isMoving = cur != last

	dx, dy := cur.x-last.x, cur.y-last.y
	dist := math.Hypot(dx, dy)
	if dx*math.Cos(last.heading)+dy*math.Sin(last.heading) < 0 {
		dist = -dist
	}
	n.lastPose = cur
	n.traveled += dist

	cp := math.Cos(n.pitch)
	n.xyz = r3.Add(n.xyz, r3.Vec{
		X: cp * math.Cos(n.yaw) * dist,
		Y: cp * math.Sin(n.yaw) * dist,
		Z: math.Sin(n.pitch) * dist,
	})
	n.publish(telemetry.ChannelPose2D, []int64{
		units.MetersToMillimeters(n.xyz.X),
		units.MetersToMillimeters(n.xyz.Y),
		units.RadiansToCentidegrees(n.yaw),
	})
	if !n.trace.Pruned() {
		n.trace.Record(n.xyz)
	}

	n.xyzQuat = r3.Add(n.xyzQuat, r3.Rotation(n.orientation).Rotate(r3.Vec{X: dist}))
	n.publish(telemetry.ChannelPose3D, [2][]float64{
		{n.xyzQuat.X, n.xyzQuat.Y, n.xyzQuat.Z},
		{n.orientation.Imag, n.orientation.Jmag, n.orientation.Kmag, n.orientation.Real},
	})
	return nil
}

func (n *Navigator) onScan(p telemetry.Packet) error {
	ranges, err := p.DecodeScan()
	if err != nil {
		return err
	}
	n.scan = ranges
	if n.planner != nil {
		n.planner.Update(n.scan)
	}
	return nil
}

func (n *Navigator) onRot(p telemetry.Packet) error {
	rot, err := p.DecodeRot()
	if err != nil {
		return err
	}
	n.yaw = units.CentidegreesToRadians(rot.YawCdeg)
	n.pitch = units.CentidegreesToRadians(rot.PitchCdeg)
	n.roll = units.CentidegreesToRadians(rot.RollCdeg)
	return nil
}

func (n *Navigator) onOrientation(p telemetry.Packet) error {
	q, err := p.DecodeOrientation()
	if err != nil {
		return err
	}
	n.orientation = quat.Number{Real: q[3], Imag: q[0], Jmag: q[1], Kmag: q[2]}
	return nil
}

func (n *Navigator) onSimTime(p telemetry.Packet) error {
	sec, err := p.Float()
	if err != nil {
		return err
	}
	n.simTime = time.Duration(sec * float64(time.Second))
	return nil
}

// onAcc removes the gravity expected at the current pitch and reports a
// collision when the horizontal remainder exceeds the threshold while the
// detector is armed. Roll is not compensated.
func (n *Navigator) onAcc(p telemetry.Packet) (bool, error) {
	raw, err := p.DecodeAcc()
	if err != nil {
		return false, err
	}
	acc := r3.Scale(1/units.AccelScale, r3.Vec{X: raw[0], Y: raw[1], Z: raw[2]})
	expected := r3.NewRotation(n.pitch, r3.Vec{Y: 1}).Rotate(r3.Vec{Z: Gravity})
	c := r3.Sub(acc, expected)
	if math.Hypot(c.X, c.Y) <= n.collisionThreshold {
		return false, nil
	}
	monitoring.Logf("[navigator] %v collision! acc=%v armed=%v", p.Timestamp, raw, n.armed)
	if !n.armed {
		return false, nil
	}
	n.armed = false
	return true, nil
}

func (n *Navigator) onArtf(p telemetry.Packet) error {
	det, err := p.DecodeArtf()
	if err != nil {
		return err
	}
	angle := n.yaw + units.CentidegreesToRadians(det.BearingCdeg)
	dist := units.MillimetersToMeters(det.DistanceMM)
	pos := r3.Add(n.xyz, r3.Vec{X: math.Cos(angle) * dist, Y: math.Sin(angle) * dist})
	if n.artifacts.Register(det.Label, pos) {
		monitoring.Logf("[navigator] %v artifact %s at (%.1f %.1f %.1f)", p.Timestamp, det.Label, pos.X, pos.Y, pos.Z)
	}
	return nil
}

// publish is fire-and-forget; a failed write is logged and the control loop
// carries on with its state intact.
func (n *Navigator) publish(ch telemetry.Channel, data any) {
	if err := n.bus.Publish(ch, data); err != nil {
		monitoring.Logf("[navigator] publish %s: %v", ch, err)
	}
}

// ReportArtifacts publishes the artf_xyz batch when any artifact is known.
func (n *Navigator) ReportArtifacts() {
	if n.artifacts.Len() == 0 {
		return
	}
	n.publish(telemetry.ChannelArtfXYZ, n.artifacts.Report())
}
