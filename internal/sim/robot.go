package sim

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pTommyed/osgar/internal/scan"
	"github.com/pTommyed/osgar/internal/telemetry"
	"github.com/pTommyed/osgar/internal/units"
)

// Defaults
const (
	DefaultStep  = 50 * time.Millisecond
	DefaultBeams = 271
)

// Inject is a packet delivered once the simulation clock reaches At.
type Inject struct {
	At      time.Duration
	Channel telemetry.Channel
	Data    any
}

// Robot is a differential drive robot that follows desired_speed commands
// exactly. Each step it emits rot, pose2d and scan packets, followed by any
// injected packets that have come due.
type Robot struct {
	World World
	Step  time.Duration
	Beams int
	// Limit ends the stream; the bus then reports ErrBusClosed.
	Limit time.Duration
	// Pitch is reported on rot in radians.
	Pitch float64

	now      time.Duration
	pos      r2.Vec
	heading  float64
	speed    float64
	angular  float64
	queue    []telemetry.Packet
	injects  []Inject
	commands int
	bus      *telemetry.MemoryBus
}

// NewRobot returns a robot at the origin facing +x.
func NewRobot(world World, limit time.Duration, injects ...Inject) *Robot {
	r := &Robot{
		World: world,
		Step:  DefaultStep,
		Beams: DefaultBeams,
		Limit: limit,
	}
	r.injects = append(r.injects, injects...)
	sort.SliceStable(r.injects, func(i, j int) bool { return r.injects[i].At < r.injects[j].At })
	r.bus = telemetry.NewSourceBus(r.next)
	r.bus.OnPublish(r.onPublish)
	return r
}

// Bus returns the bus connected to the robot.
func (r *Robot) Bus() *telemetry.MemoryBus { return r.bus }

// Position returns the true position.
func (r *Robot) Position() r2.Vec { return r.pos }

// Heading returns the true heading in radians.
func (r *Robot) Heading() float64 { return r.heading }

// Now returns the simulation clock.
func (r *Robot) Now() time.Duration { return r.now }

// Commands returns the number of desired_speed commands received.
func (r *Robot) Commands() int { return r.commands }

// Velocity returns the commanded linear and angular speed.
func (r *Robot) Velocity() (float64, float64) { return r.speed, r.angular }

func (r *Robot) onPublish(ch telemetry.Channel, data any) {
	if ch != telemetry.ChannelDesiredSpeed {
		return
	}
	v, ok := data.([]int64)
	if !ok || len(v) != 2 {
		return
	}
	r.commands++
	r.speed = units.MillimetersToMeters(float64(v[0]))
	r.angular = units.CentidegreesToRadians(float64(v[1]))
}

func (r *Robot) next() (telemetry.Packet, bool) {
	if len(r.queue) == 0 {
		if r.now >= r.Limit {
			return telemetry.Packet{}, false
		}
		r.advance()
	}
	p := r.queue[0]
	r.queue = r.queue[1:]
	return p, true
}

func (r *Robot) advance() {
	r.now += r.Step
	dt := r.Step.Seconds()
	r.heading += r.angular * dt
	r.pos = r2.Add(r.pos, r2.Vec{X: r.speed * dt * math.Cos(r.heading), Y: r.speed * dt * math.Sin(r.heading)})

	heading := units.RadiansToCentidegrees(r.heading)
	r.queue = append(r.queue,
		telemetry.NewPacket(r.now, telemetry.ChannelRot, []int64{heading, units.RadiansToCentidegrees(r.Pitch), 0}),
		telemetry.NewPacket(r.now, telemetry.ChannelPose2D, []int64{
			units.MetersToMillimeters(r.pos.X),
			units.MetersToMillimeters(r.pos.Y),
			heading,
		}),
		telemetry.NewPacket(r.now, telemetry.ChannelScan, r.Scan()),
	)
	for len(r.injects) > 0 && r.injects[0].At <= r.now {
		in := r.injects[0]
		r.injects = r.injects[1:]
		r.queue = append(r.queue, telemetry.NewPacket(r.now, in.Channel, in.Data))
	}
}

// Scan renders the lidar view from the current pose.
func (r *Robot) Scan() scan.Scan {
	s := make(scan.Scan, r.Beams)
	for i := range s {
		if d, ok := r.World.Raycast(r.pos, r.heading+s.Bearing(i)); ok {
			s[i] = int(units.MetersToMillimeters(d))
		}
	}
	return s
}
