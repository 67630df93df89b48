package telemetry

import (
	"context"
	"time"

	"github.com/pTommyed/osgar/internal/serialmux"
	"github.com/pTommyed/osgar/internal/timeutil"
)

// SerialBus adapts a serial multiplexer to the Bus interface. It holds one
// subscription for its whole lifetime so that no line is missed between
// Listen calls.
type SerialBus struct {
	mux   serialmux.SerialMuxInterface
	id    string
	lines chan string
	clock timeutil.Clock
	start time.Time
	last  time.Duration
}

// NewSerialBus subscribes to mux. Lines without a timestamp are stamped with
// the time elapsed since this call according to clock; a nil clock uses
// wall time.
func NewSerialBus(mux serialmux.SerialMuxInterface, clock timeutil.Clock) *SerialBus {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	id, lines := mux.Subscribe()
	return &SerialBus{
		mux:   mux,
		id:    id,
		lines: lines,
		clock: clock,
		start: clock.Now(),
	}
}

// Listen returns the next packet from the link.
func (b *SerialBus) Listen(ctx context.Context) (Packet, error) {
	select {
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	case line, ok := <-b.lines:
		if !ok {
			return Packet{}, ErrBusClosed
		}
		p, stamped, err := ParseLine(line)
		if err != nil {
			return Packet{}, err
		}
		if !stamped {
			p.Timestamp = b.clock.Since(b.start)
		}
		// keep the mission clock monotonic even if the link reorders stamps
		if p.Timestamp < b.last {
			p.Timestamp = b.last
		}
		b.last = p.Timestamp
		return p, nil
	}
}

// Publish writes one framed line to the link.
func (b *SerialBus) Publish(ch Channel, data any) error {
	line, err := FormatLine(ch, 0, data)
	if err != nil {
		return err
	}
	return b.mux.SendCommand(line)
}

// Close releases the subscription. The multiplexer itself is left open.
func (b *SerialBus) Close() {
	b.mux.Unsubscribe(b.id)
}
