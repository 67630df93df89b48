package monitoring

import (
	"fmt"
	"time"
)

func sprintf(format string, v ...interface{}) string {
	return fmt.Sprintf(format, v...)
}

// MinuteThrottle reports true the first time it sees a timestamp and then
// once each time the timestamp enters a new whole minute. It is driven by
// mission time rather than wall time so replays and simulations log at the
// same points as live runs.
type MinuteThrottle struct {
	started    bool
	lastMinute int64
}

// Due reports whether a status line should be emitted for timestamp t.
func (m *MinuteThrottle) Due(t time.Duration) bool {
	minute := int64(t / time.Minute)
	if !m.started || minute != m.lastMinute {
		m.started = true
		m.lastMinute = minute
		return true
	}
	return false
}
