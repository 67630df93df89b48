package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pTommyed/osgar/internal/config"
	"github.com/pTommyed/osgar/internal/monitoring"
	"github.com/pTommyed/osgar/internal/telemetry"
)

func pkt(ms int, ch telemetry.Channel, data any) telemetry.Packet {
	return telemetry.NewPacket(time.Duration(ms)*time.Millisecond, ch, data)
}

func quiet(t *testing.T) {
	t.Helper()
	_, restore := monitoring.Capture()
	t.Cleanup(restore)
}

// drain runs Update until the bus closes and returns the events seen.
func drain(t *testing.T, n *Navigator) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := n.Update(context.Background())
		if errors.Is(err, telemetry.ErrBusClosed) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func decodeInts(t *testing.T, raw json.RawMessage) []int64 {
	t.Helper()
	var v []int64
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestTraveledDistance(t *testing.T) {
	quiet(t)
	bus := telemetry.NewMemoryBus(
		pkt(0, telemetry.ChannelPose2D, []int{0, 0, 0}),
		pkt(100, telemetry.ChannelPose2D, []int{1000, 0, 0}),
		pkt(200, telemetry.ChannelPose2D, []int{2000, 0, 0}),
		pkt(300, telemetry.ChannelPose2D, []int{2000, 500, 9000}),
		pkt(400, telemetry.ChannelPose2D, []int{2000, 1500, 9000}),
	)
	n := New(bus, nil)
	drain(t, n)
	assert.InDelta(t, 3.5, n.Traveled(), 1e-9)
	assert.True(t, n.IsMoving())
}

func TestTraveledDistanceBackwards(t *testing.T) {
	quiet(t)
	bus := telemetry.NewMemoryBus(
		pkt(0, telemetry.ChannelPose2D, []int{1000, 0, 0}),
		pkt(100, telemetry.ChannelPose2D, []int{500, 0, 0}),
		pkt(200, telemetry.ChannelPose2D, []int{500, 0, 0}),
	)
	n := New(bus, nil)
	drain(t, n)
	assert.InDelta(t, 0.5, n.Traveled(), 1e-9)
	assert.InDelta(t, 0.5, n.XYZ().X, 1e-9)
	assert.False(t, n.IsMoving())
}

func TestPoseIntegrationUsesPitchAndYaw(t *testing.T) {
	quiet(t)
	bus := telemetry.NewMemoryBus(
		pkt(0, telemetry.ChannelRot, []int{0, 3000, 0}),
		pkt(100, telemetry.ChannelPose2D, []int{1000, 0, 0}),
		pkt(200, telemetry.ChannelRot, []int{9000, 0, 0}),
		pkt(300, telemetry.ChannelPose2D, []int{2000, 0, 0}),
	)
	n := New(bus, nil)
	drain(t, n)

	want := r3.Vec{X: math.Cos(math.Pi / 6), Y: 1, Z: 0.5}
	assert.InDelta(t, want.X, n.XYZ().X, 1e-9)
	assert.InDelta(t, want.Y, n.XYZ().Y, 1e-9)
	assert.InDelta(t, want.Z, n.XYZ().Z, 1e-9)

	corrected := bus.Published(telemetry.ChannelPose2D)
	require.Len(t, corrected, 2)
	assert.Equal(t, []int64{866, 0, 0}, decodeInts(t, corrected[0].Data))
	assert.Equal(t, []int64{866, 1000, 9000}, decodeInts(t, corrected[1].Data))

	// identity orientation: the quaternion track ignores pitch and yaw
	assert.InDelta(t, 2.0, n.XYZQuat().X, 1e-9)
	poses := bus.Published(telemetry.ChannelPose3D)
	require.Len(t, poses, 2)
	var pose3d [2][]float64
	require.NoError(t, json.Unmarshal(poses[1].Data, &pose3d))
	assert.InDeltaSlice(t, []float64{2, 0, 0}, pose3d[0], 1e-9)
	assert.Equal(t, []float64{0, 0, 0, 1}, pose3d[1])
}

func TestQuaternionTrack(t *testing.T) {
	quiet(t)
	s := math.Sqrt2 / 2
	bus := telemetry.NewMemoryBus(
		// 90 degrees about z, in x, y, z, w order
		pkt(0, telemetry.ChannelOrientation, []float64{0, 0, s, s}),
		pkt(100, telemetry.ChannelPose2D, []int{1000, 0, 0}),
	)
	n := New(bus, nil)
	drain(t, n)
	assert.InDelta(t, 0.0, n.XYZQuat().X, 1e-9)
	assert.InDelta(t, 1.0, n.XYZQuat().Y, 1e-9)
	assert.InDelta(t, 1.0, n.XYZ().X, 1e-9, "scalar track still follows rot yaw")
}

func TestTraceRecordsIntegratedPosition(t *testing.T) {
	quiet(t)
	var packets []telemetry.Packet
	for i := 0; i <= 8; i++ {
		packets = append(packets, pkt(i*100, telemetry.ChannelPose2D, []int{i * 500, 0, 0}))
	}
	n := New(telemetry.NewMemoryBus(packets...), nil)
	drain(t, n)
	// origin plus every 0.5 m up to 4.0 m
	assert.Equal(t, 9, n.Trace().Len())
}

func TestCollisionFiresOncePerArm(t *testing.T) {
	quiet(t)
	spike := []int{20000, 0, 9800}
	bus := telemetry.NewMemoryBus(
		pkt(0, telemetry.ChannelAcc, spike),
		pkt(10, telemetry.ChannelAcc, spike),
		pkt(20, telemetry.ChannelAcc, spike),
	)
	n := New(bus, nil)
	ctx := context.Background()

	n.SetCollisionArmed(true)
	ev, err := n.Update(ctx)
	require.NoError(t, err)
	assert.True(t, ev.Collision)
	assert.False(t, n.CollisionArmed())

	ev, err = n.Update(ctx)
	require.NoError(t, err)
	assert.False(t, ev.Collision, "second spike before re-arming")

	n.SetCollisionArmed(true)
	ev, err = n.Update(ctx)
	require.NoError(t, err)
	assert.True(t, ev.Collision)
}

func TestCollisionNeverWhileDisarmed(t *testing.T) {
	quiet(t)
	n := New(telemetry.NewMemoryBus(pkt(0, telemetry.ChannelAcc, []int{50000, 50000, 0})), nil)
	for _, ev := range drain(t, n) {
		assert.False(t, ev.Collision)
	}
}

func TestCollisionCompensatesPitch(t *testing.T) {
	quiet(t)
	// 15 m/s^2 forward. Level, that is a jolt. Pitched 90 degrees, 9.8 of
	// it is gravity.
	tests := []struct {
		name      string
		pitchCdeg int
		want      bool
	}{
		{"level", 0, true},
		{"nose up", 9000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(telemetry.NewMemoryBus(
				pkt(0, telemetry.ChannelRot, []int{0, tt.pitchCdeg, 0}),
				pkt(10, telemetry.ChannelAcc, []int{15000, 0, 0}),
			), nil)
			n.SetCollisionArmed(true)
			events := drain(t, n)
			require.Len(t, events, 2)
			assert.Equal(t, tt.want, events[1].Collision)
		})
	}
}

func TestArtifactProjection(t *testing.T) {
	quiet(t)
	bus := telemetry.NewMemoryBus(
		pkt(0, telemetry.ChannelRot, []int{9000, 0, 0}),
		pkt(10, telemetry.ChannelArtf, []any{"TYPE_BACKPACK", -9000, 2000}),
		pkt(20, telemetry.ChannelArtf, []any{"TYPE_BACKPACK", -8000, 2500}),
		pkt(30, telemetry.ChannelArtf, []any{"TYPE_PHONE", 0, 5000}),
	)
	n := New(bus, nil)
	drain(t, n)

	recs := n.Artifacts().Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "TYPE_BACKPACK", recs[0].Label)
	assert.InDelta(t, 2.0, recs[0].Position.X, 1e-9)
	assert.InDelta(t, 0.0, recs[0].Position.Y, 1e-9)
	assert.Equal(t, "TYPE_PHONE", recs[1].Label)
	assert.InDelta(t, 5.0, recs[1].Position.Y, 1e-9)

	n.ReportArtifacts()
	reports := bus.Published(telemetry.ChannelArtfXYZ)
	require.Len(t, reports, 1)
	assert.JSONEq(t, `[["TYPE_BACKPACK",2000,0,0],["TYPE_PHONE",0,5000,0]]`, string(reports[0].Data))
}

func TestReportArtifactsSkipsEmpty(t *testing.T) {
	bus := telemetry.NewMemoryBus()
	New(bus, nil).ReportArtifacts()
	assert.Empty(t, bus.Published(""))
}

func TestMalformedPacketIsFatal(t *testing.T) {
	quiet(t)
	for _, p := range []telemetry.Packet{
		pkt(0, telemetry.ChannelPose2D, []int{1, 2}),
		pkt(0, telemetry.ChannelRot, []int{1, 2, 3, 4}),
		pkt(0, telemetry.ChannelScan, []int{}),
		pkt(0, telemetry.ChannelArtf, []any{"x", 1}),
		pkt(0, telemetry.ChannelSimTime, "soon"),
	} {
		n := New(telemetry.NewMemoryBus(p), nil)
		_, err := n.Update(context.Background())
		assert.ErrorIs(t, err, telemetry.ErrMalformedPacket, "channel %s", p.Channel)
	}
}

func TestUpdateStopsOnClosedBusAndCancel(t *testing.T) {
	n := New(telemetry.NewMemoryBus(), nil)
	_, err := n.Update(context.Background())
	assert.ErrorIs(t, err, telemetry.ErrBusClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n = New(telemetry.NewMemoryBus(pkt(0, telemetry.ChannelVoltage, []int{1})), nil)
	_, err = n.Update(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsAndStatusLine(t *testing.T) {
	lines, restore := monitoring.Capture()
	defer restore()

	bus := telemetry.NewMemoryBus(
		pkt(0, telemetry.ChannelVoltage, []int{1210, 1190}),
		pkt(30_000, "camera", "jpeg"),
		pkt(30_100, telemetry.ChannelScan, []int{1000, 1000, 1000}),
		pkt(61_000, telemetry.ChannelSimTime, 61.0),
	)
	n := New(bus, nil)
	drain(t, n)

	// one status line for minute 0 and one for minute 1, each followed by
	// the voltage once it is known
	var status []string
	for _, l := range *lines {
		if len(l) > 0 {
			status = append(status, l)
		}
	}
	require.Len(t, status, 3)
	assert.Contains(t, status[1], "other=1")
	assert.Contains(t, status[1], "scan=1")
	assert.Contains(t, status[2], "12.1")
	assert.Equal(t, uint64(1), n.Stats().SimTime, "counters reset after each status line")
}

func TestMissionClock(t *testing.T) {
	quiet(t)
	packets := []telemetry.Packet{
		pkt(5_000, telemetry.ChannelSimTime, 2.5),
		pkt(6_000, telemetry.ChannelVoltage, []int{1}),
	}

	n := New(telemetry.NewMemoryBus(packets...), nil)
	drain(t, n)
	assert.Equal(t, 6*time.Second, n.SimTime())

	virtual := true
	n = New(telemetry.NewMemoryBus(packets...), &config.NavConfig{VirtualWorld: &virtual})
	drain(t, n)
	assert.Equal(t, 2500*time.Millisecond, n.SimTime())
	assert.Equal(t, 6*time.Second, n.Now())
}
