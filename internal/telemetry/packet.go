// Package telemetry defines the packets exchanged with the sensor/motor
// abstraction layer and the bus they travel on.
//
// Each packet is a timestamped (channel, payload) pair. Payloads are JSON
// values whose shape is fixed per channel; decoders in this package check
// the shape and report ErrMalformedPacket on any mismatch.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Channel names a telemetry stream.
type Channel string

// Channels consumed by the navigator.
const (
	ChannelPose2D      Channel = "pose2d"
	ChannelScan        Channel = "scan"
	ChannelRot         Channel = "rot"
	ChannelOrientation Channel = "orientation"
	ChannelAcc         Channel = "acc"
	ChannelSimTime     Channel = "sim_time_sec"
	ChannelArtf        Channel = "artf"
	ChannelVoltage     Channel = "voltage"
)

// Channels published by the navigator. pose2d is both consumed (raw odometry)
// and published (corrected pose).
const (
	ChannelDesiredSpeed Channel = "desired_speed"
	ChannelPose3D       Channel = "pose3d"
	ChannelArtfXYZ      Channel = "artf_xyz"
)

// ErrMalformedPacket reports a payload whose shape does not match its channel.
var ErrMalformedPacket = errors.New("malformed telemetry packet")

// ErrBusClosed is returned by Bus.Listen once the bus has shut down.
var ErrBusClosed = errors.New("telemetry bus closed")

// Packet is one message received from the bus.
type Packet struct {
	// Timestamp is the time since the start of the recording/link.
	Timestamp time.Duration
	Channel   Channel
	Data      json.RawMessage
}

// NewPacket builds a packet by encoding data as JSON. It panics if data
// cannot be encoded, so it is meant for literals in tests and simulators.
func NewPacket(ts time.Duration, ch Channel, data any) Packet {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("telemetry: encode %s payload: %v", ch, err))
	}
	return Packet{Timestamp: ts, Channel: ch, Data: raw}
}

func malformed(ch Channel, format string, v ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedPacket, ch, fmt.Sprintf(format, v...))
}

// Floats decodes the payload as a numeric array. When n >= 0 the array must
// have exactly n elements.
func (p Packet) Floats(n int) ([]float64, error) {
	var values []float64
	if err := json.Unmarshal(p.Data, &values); err != nil {
		return nil, malformed(p.Channel, "%v", err)
	}
	if n >= 0 && len(values) != n {
		return nil, malformed(p.Channel, "expected %d values, got %d", n, len(values))
	}
	return values, nil
}

// Float decodes a scalar numeric payload.
func (p Packet) Float() (float64, error) {
	var v float64
	if err := json.Unmarshal(p.Data, &v); err != nil {
		return 0, malformed(p.Channel, "%v", err)
	}
	return v, nil
}

// Pose2D is a raw odometry reading.
type Pose2D struct {
	XMM         float64
	YMM         float64
	HeadingCdeg float64
}

// DecodePose2D decodes [x_mm, y_mm, heading_cdeg].
func (p Packet) DecodePose2D() (Pose2D, error) {
	v, err := p.Floats(3)
	if err != nil {
		return Pose2D{}, err
	}
	return Pose2D{XMM: v[0], YMM: v[1], HeadingCdeg: v[2]}, nil
}

// Rotation is a yaw/pitch/roll reading in centidegrees.
type Rotation struct {
	YawCdeg   float64
	PitchCdeg float64
	RollCdeg  float64
}

// DecodeRot decodes [yaw, pitch, roll] in centidegrees.
func (p Packet) DecodeRot() (Rotation, error) {
	v, err := p.Floats(3)
	if err != nil {
		return Rotation{}, err
	}
	return Rotation{YawCdeg: v[0], PitchCdeg: v[1], RollCdeg: v[2]}, nil
}

// Quaternion is an orientation reading in [x, y, z, w] order.
type Quaternion [4]float64

// DecodeOrientation decodes a four element quaternion.
func (p Packet) DecodeOrientation() (Quaternion, error) {
	v, err := p.Floats(4)
	if err != nil {
		return Quaternion{}, err
	}
	return Quaternion{v[0], v[1], v[2], v[3]}, nil
}

// DecodeAcc decodes [ax, ay, az] in raw units (x1000).
func (p Packet) DecodeAcc() ([3]float64, error) {
	v, err := p.Floats(3)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{v[0], v[1], v[2]}, nil
}

// DecodeScan decodes a lidar scan as integer millimetre ranges.
func (p Packet) DecodeScan() ([]int, error) {
	var ranges []int
	if err := json.Unmarshal(p.Data, &ranges); err != nil {
		return nil, malformed(p.Channel, "%v", err)
	}
	if len(ranges) == 0 {
		return nil, malformed(p.Channel, "empty scan")
	}
	return ranges, nil
}

// Detection is an artifact sighting relative to the robot.
type Detection struct {
	Label       string
	BearingCdeg float64
	DistanceMM  float64
}

// DecodeArtf decodes [label, bearing_cdeg, distance_mm].
func (p Packet) DecodeArtf() (Detection, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(p.Data, &fields); err != nil {
		return Detection{}, malformed(p.Channel, "%v", err)
	}
	if len(fields) != 3 {
		return Detection{}, malformed(p.Channel, "expected 3 values, got %d", len(fields))
	}
	var d Detection
	if err := json.Unmarshal(fields[0], &d.Label); err != nil {
		return Detection{}, malformed(p.Channel, "label: %v", err)
	}
	if err := json.Unmarshal(fields[1], &d.BearingCdeg); err != nil {
		return Detection{}, malformed(p.Channel, "bearing: %v", err)
	}
	if err := json.Unmarshal(fields[2], &d.DistanceMM); err != nil {
		return Detection{}, malformed(p.Channel, "distance: %v", err)
	}
	return d, nil
}
