package serial

import (
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Session is one logical serial-port connection: settings, confirmed
// state, queued outbound data, and the endpoints of the bridge to its
// task. All fields are guarded by a single mutex held only for short
// read/modify/release sections on the tick loop; the async task never
// touches the session, only its captured bridge and hardware handle.
type Session struct {
	mu sync.Mutex

	name     string
	settings PortSettings
	state    PortState

	bridge *bridge
	task   *taskHandle
	// cancelTask tears down the running task tree, used when the port
	// vanishes from discovery or the registry shuts down.
	cancelTask func()

	data    portData
	metrics *Metrics
	log     zerolog.Logger
}

// portData is the mutable per-session payload state.
type portData struct {
	// queue holds outbound strings until the tick loop drains them.
	queue    []string
	scheme   Scheme
	lineFeed bool
	history  History
	traffic  *TrafficLog

	// utf8Buf carries an incomplete multibyte tail from one read to the
	// next so the decoder never sees a split sequence.
	utf8Buf []byte

	// pending buffers events drained from the bridge until the frontend
	// collects them.
	pending []Event
}

func newSession(name string, logger zerolog.Logger) *Session {
	return &Session{
		name:     name,
		settings: DefaultSettings(name),
		state:    StateClose,
		metrics:  &Metrics{},
		log:      logger.With().Str("port", name).Logger(),
		data: portData{
			scheme: SchemeUTF8,
		},
	}
}

// Name returns the session's port name. Names are immutable, no lock
// is needed.
func (s *Session) Name() string {
	return s.name
}

// State returns the last state received through the bridge.
func (s *Session) State() PortState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Settings returns a copy of the session's settings.
func (s *Session) Settings() PortSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// takeQueue atomically takes and clears the outbound queue.
// Caller holds the lock.
func (d *portData) takeQueue() []string {
	q := d.queue
	d.queue = nil
	return q
}

// reset clears buffers and drops the traffic log handle. Called on a
// confirmed close and on error clear. Caller holds the lock.
func (d *portData) reset() {
	d.queue = nil
	d.utf8Buf = nil
	d.traffic.Close()
	d.traffic = nil
}

// processRawBytes runs incoming bytes through the UTF-8 reassembly
// buffer: complete sequences are returned, an incomplete trailing
// sequence is held for the next read, and CR is normalized to LF.
// Caller holds the lock.
func (d *portData) processRawBytes(data []byte) []byte {
	d.utf8Buf = append(d.utf8Buf, data...)

	complete := len(d.utf8Buf)
	// Only the last utf8.UTFMax-1 bytes can belong to a split sequence.
	for back := 1; back < utf8.UTFMax && back <= len(d.utf8Buf); back++ {
		b := d.utf8Buf[len(d.utf8Buf)-back]
		if b < utf8.RuneSelf {
			break
		}
		if !utf8.RuneStart(b) {
			continue
		}
		// Found the start of the trailing sequence; hold it back only
		// when it is truncated. A decoded U+FFFD also reports RuneError
		// but with its full size, and must pass through.
		if r, size := utf8.DecodeRune(d.utf8Buf[len(d.utf8Buf)-back:]); r == utf8.RuneError && size == 1 {
			complete = len(d.utf8Buf) - back
		}
		break
	}

	out := make([]byte, complete)
	copy(out, d.utf8Buf[:complete])
	d.utf8Buf = append(d.utf8Buf[:0], d.utf8Buf[complete:]...)

	for i, b := range out {
		if b == '\r' {
			out[i] = '\n'
		}
	}
	return out
}
