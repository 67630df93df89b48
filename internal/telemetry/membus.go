package telemetry

import (
	"context"
	"encoding/json"
	"sync"
)

// Published is a message captured by MemoryBus.Publish.
type Published struct {
	Channel Channel
	Data    json.RawMessage
}

// Source produces the next packet for a MemoryBus. It returns false once the
// stream is exhausted.
type Source func() (Packet, bool)

// MemoryBus is an in-process Bus used by tests, simulators and dev runs.
// Packets come either from a fixed slice or from a Source; publishes are
// recorded and optionally observed by a callback.
type MemoryBus struct {
	mu        sync.Mutex
	next      Source
	published []Published
	onPublish func(Channel, any)
}

// NewMemoryBus returns a bus that delivers packets in order and then
// reports ErrBusClosed.
func NewMemoryBus(packets ...Packet) *MemoryBus {
	queue := append([]Packet(nil), packets...)
	return NewSourceBus(func() (Packet, bool) {
		if len(queue) == 0 {
			return Packet{}, false
		}
		p := queue[0]
		queue = queue[1:]
		return p, true
	})
}

// NewSourceBus returns a bus that pulls packets from src.
func NewSourceBus(src Source) *MemoryBus {
	return &MemoryBus{next: src}
}

// OnPublish registers a callback invoked synchronously for every publish.
func (b *MemoryBus) OnPublish(f func(Channel, any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPublish = f
}

// Listen returns the next packet or ErrBusClosed.
func (b *MemoryBus) Listen(ctx context.Context) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}
	p, ok := b.next()
	if !ok {
		return Packet{}, ErrBusClosed
	}
	return p, nil
}

// Publish records the message.
func (b *MemoryBus) Publish(ch Channel, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.published = append(b.published, Published{Channel: ch, Data: raw})
	cb := b.onPublish
	b.mu.Unlock()
	if cb != nil {
		cb(ch, data)
	}
	return nil
}

// Published returns every recorded message on ch, or all messages when ch
// is empty.
func (b *MemoryBus) Published(ch Channel) []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Published
	for _, p := range b.published {
		if ch == "" || p.Channel == ch {
			out = append(out, p)
		}
	}
	return out
}
