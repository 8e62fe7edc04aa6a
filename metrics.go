package serial

import (
	"time"

	"go.uber.org/atomic"
)

// Metrics tracks per-session communication statistics. Counters are
// incremented on the async side and read by the tick loop without any
// lock.
type Metrics struct {
	OpenAttempts atomic.Int64
	OpenFailures atomic.Int64

	Reads      atomic.Int64
	BytesRead  atomic.Int64
	ReadErrors atomic.Int64

	Writes       atomic.Int64
	BytesWritten atomic.Int64
	WriteErrors  atomic.Int64

	// DroppedMessages counts fail-fast sends into a full bridge.
	DroppedMessages atomic.Int64

	ConnectedAt  atomic.Int64 // unix nanos of last confirmed open, 0 when closed
	LastActivity atomic.Int64 // unix nanos of last read or write
}

// MetricsSnapshot is a point-in-time copy of a session's counters.
type MetricsSnapshot struct {
	OpenAttempts    int64
	OpenFailures    int64
	Reads           int64
	BytesRead       int64
	ReadErrors      int64
	Writes          int64
	BytesWritten    int64
	WriteErrors     int64
	DroppedMessages int64
	Uptime          time.Duration
	LastActivity    time.Time
}

// Snapshot returns a consistent-enough copy for display. Individual
// counters are each atomically read; cross-counter skew is acceptable.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		OpenAttempts:    m.OpenAttempts.Load(),
		OpenFailures:    m.OpenFailures.Load(),
		Reads:           m.Reads.Load(),
		BytesRead:       m.BytesRead.Load(),
		ReadErrors:      m.ReadErrors.Load(),
		Writes:          m.Writes.Load(),
		BytesWritten:    m.BytesWritten.Load(),
		WriteErrors:     m.WriteErrors.Load(),
		DroppedMessages: m.DroppedMessages.Load(),
	}
	if at := m.ConnectedAt.Load(); at > 0 {
		s.Uptime = time.Since(time.Unix(0, at))
	}
	if at := m.LastActivity.Load(); at > 0 {
		s.LastActivity = time.Unix(0, at)
	}
	return s
}

func (m *Metrics) touch() {
	m.LastActivity.Store(time.Now().UnixNano())
}
