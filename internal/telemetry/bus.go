package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Bus is the publish/subscribe link to the sensor/motor abstraction layer.
//
// Listen blocks until the next packet arrives, the bus shuts down
// (ErrBusClosed) or ctx is cancelled (ctx.Err()). Packets are returned in
// delivery order. Publish is fire-and-forget.
type Bus interface {
	Listen(ctx context.Context) (Packet, error)
	Publish(ch Channel, data any) error
}

// wireMessage is the JSON-lines framing used on the serial link.
type wireMessage struct {
	T    *float64        `json:"t,omitempty"`
	Ch   Channel         `json:"ch"`
	Data json.RawMessage `json:"data"`
}

// ParseLine decodes one line of the link framing. ok is false when the line
// carries no timestamp and the caller must stamp it.
func ParseLine(line string) (p Packet, ok bool, err error) {
	var msg wireMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return Packet{}, false, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	if msg.Ch == "" {
		return Packet{}, false, fmt.Errorf("%w: missing channel", ErrMalformedPacket)
	}
	if len(msg.Data) == 0 {
		return Packet{}, false, fmt.Errorf("%w: %s: missing data", ErrMalformedPacket, msg.Ch)
	}
	p = Packet{Channel: msg.Ch, Data: msg.Data}
	if msg.T == nil {
		return p, false, nil
	}
	if *msg.T < 0 || math.IsNaN(*msg.T) || math.IsInf(*msg.T, 0) {
		return Packet{}, false, fmt.Errorf("%w: %s: invalid timestamp %v", ErrMalformedPacket, msg.Ch, *msg.T)
	}
	p.Timestamp = time.Duration(*msg.T * float64(time.Second))
	return p, true, nil
}

// FormatLine encodes a packet for the link. Zero timestamps are omitted.
func FormatLine(ch Channel, ts time.Duration, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", ch, err)
	}
	msg := wireMessage{Ch: ch, Data: raw}
	if ts > 0 {
		secs := ts.Seconds()
		msg.T = &secs
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode %s message: %w", ch, err)
	}
	return string(line), nil
}
