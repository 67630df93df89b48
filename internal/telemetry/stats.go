package telemetry

import "fmt"

// Stats counts received packets per channel. The set of counters is fixed;
// anything outside the consumed channels lands in Other.
type Stats struct {
	Pose2D      uint64
	Scan        uint64
	Rot         uint64
	Orientation uint64
	Acc         uint64
	SimTime     uint64
	Artf        uint64
	Voltage     uint64
	Other       uint64
}

// Count increments the counter for ch.
func (s *Stats) Count(ch Channel) {
	switch ch {
	case ChannelPose2D:
		s.Pose2D++
	case ChannelScan:
		s.Scan++
	case ChannelRot:
		s.Rot++
	case ChannelOrientation:
		s.Orientation++
	case ChannelAcc:
		s.Acc++
	case ChannelSimTime:
		s.SimTime++
	case ChannelArtf:
		s.Artf++
	case ChannelVoltage:
		s.Voltage++
	default:
		s.Other++
	}
}

// Total returns the sum of all counters.
func (s Stats) Total() uint64 {
	return s.Pose2D + s.Scan + s.Rot + s.Orientation + s.Acc + s.SimTime + s.Artf + s.Voltage + s.Other
}

func (s Stats) String() string {
	return fmt.Sprintf("acc=%d artf=%d orientation=%d pose2d=%d rot=%d scan=%d sim_time_sec=%d voltage=%d other=%d",
		s.Acc, s.Artf, s.Orientation, s.Pose2D, s.Rot, s.Scan, s.SimTime, s.Voltage, s.Other)
}
