package serial

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// SessionInfo is the frontend's view of one session.
type SessionInfo struct {
	Name  string
	State PortState
}

// Registry owns the live session table. It is driven by a synchronous
// tick loop: every Tick runs the four handlers in fixed order
// (discovery-merge, task-ensure, outbound-drain, inbound-drain) and
// never blocks. Async work happens only in session tasks and the
// discovery loop, both spawned from here.
//
// All Registry methods, Tick included, must be called from the single
// frontend goroutine. Per-session locks exist because session tasks
// run elsewhere, not to make the table itself concurrent.
type Registry struct {
	cfg *Config
	log zerolog.Logger

	// sessions is ordered by first discovery, keyed by port name.
	sessions []*Session

	names chan []string
	// missedPoll tolerates one transient all-empty discovery result
	// before sessions are retired.
	missedPoll bool

	pool *BufferPool

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewRegistry creates a registry. A nil config uses defaults.
func NewRegistry(cfg *Config, logger zerolog.Logger) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:     cfg,
		log:     logger,
		names:   make(chan []string, 1),
		pool:    NewBufferPool(cfg.ReadBufferSize),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Shutdown cancels every running session task and the discovery feed.
// Sessions in flight tear down asynchronously.
func (r *Registry) Shutdown() {
	r.cancel()
}

// Tick runs one scheduler pass. Must be called from a single goroutine.
func (r *Registry) Tick() {
	r.mergeDiscovery()
	r.ensureTasks()
	r.flushOutbound()
	r.drainInbound()
}

// --- discovery-merge ---

func (r *Registry) mergeDiscovery() {
	select {
	case names := <-r.names:
		if len(names) == 0 && len(r.sessions) > 0 && !r.missedPoll {
			// One empty poll is tolerated: an enumeration hiccup must
			// not retire a Ready session.
			r.missedPoll = true
			return
		}
		r.missedPoll = len(names) == 0
		r.Reconcile(names)
	default:
	}
}

// Reconcile applies a discovery result: sessions whose name vanished
// are retired, new names get fresh Closed sessions, surviving sessions
// are left untouched. Idempotent and order-independent.
func (r *Registry) Reconcile(names []string) {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if known[s.Name()] {
			kept = append(kept, s)
			continue
		}
		r.retire(s)
	}
	r.sessions = kept

	for _, n := range names {
		if r.find(n) == nil {
			r.log.Info().Str("port", n).Msg("discovered serial port")
			s := newSession(n, r.log)
			s.settings = r.cfg.PortSettings(n)
			s.data.lineFeed = r.cfg.Defaults.LineFeed
			if r.cfg.Defaults.Scheme != "" {
				if scheme, err := ParseScheme(r.cfg.Defaults.Scheme); err == nil {
					s.data.scheme = scheme
				}
			}
			r.sessions = append(r.sessions, s)
		}
	}
}

// retire drops a vanished session: the close request lets a Ready task
// tear down in order, the context cancel reaps a task still awaiting
// its open request.
func (r *Registry) retire(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.log.Info().Str("port", s.name).Msg("serial port vanished, retiring session")
	if s.bridge != nil {
		if err := s.bridge.sendRequest(closeRequest{name: s.name}); err != nil {
			s.metrics.DroppedMessages.Inc()
		}
	}
	if s.cancelTask != nil {
		s.cancelTask()
	}
	s.data.reset()
}

func (r *Registry) find(name string) *Session {
	for _, s := range r.sessions {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// --- task-ensure ---

func (r *Registry) ensureTasks() {
	for _, s := range r.sessions {
		r.ensureTask(s)
	}
}

// ensureTask spawns a task for a session that has none. Invariant: a
// new task is only created while the handle is nil, so at most one
// task ever owns a session's hardware resource. Terminated handles are
// cleared first, which is what re-arms a session after close or error.
func (r *Registry) ensureTask(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != nil {
		if !s.task.terminated() {
			return
		}
		// The terminal StateClose/ErrorOccurred events are still buffered
		// in the old bridge; deliver them before the endpoints go away.
		for {
			e, ok := s.bridge.tryRecvEvent()
			if !ok {
				break
			}
			r.applyEvent(s, e)
		}
		if s.cancelTask != nil {
			s.cancelTask()
		}
		s.task = nil
		s.bridge = nil
	}

	b := newBridge(r.cfg.ChannelCapacity)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(r.baseCtx)
	go runTask(ctx, b, s.metrics, r.pool, s.log, done)

	s.bridge = b
	s.task = &taskHandle{done: done}
	s.cancelTask = cancel
}

// --- outbound-drain ---

// flushOutbound takes each session's queued strings, logs them as one
// sent entry, encodes them with the session's scheme, and hands the
// bytes to the task. The queue is consumed whether or not the port is
// Ready; data queued against a closed port is logged but goes nowhere.
func (r *Registry) flushOutbound() {
	for _, s := range r.sessions {
		s.mu.Lock()
		q := s.data.takeQueue()
		if len(q) == 0 {
			s.mu.Unlock()
			continue
		}

		s.data.traffic.Append(DirectionSent, []byte(strings.Join(q, "\n")))

		var payload []byte
		for _, text := range q {
			payload = append(payload, Encode(text, s.data.scheme)...)
			if s.data.lineFeed {
				payload = append(payload, '\n')
			}
		}

		if s.state == StateReady && s.bridge != nil {
			if err := s.bridge.sendRequest(writeRequest{data: payload}); err != nil {
				s.metrics.DroppedMessages.Inc()
				s.log.Warn().Err(err).Msg("outbound drain dropped")
			}
		}
		s.mu.Unlock()
	}
}

// --- inbound-drain ---

// drainInbound empties each session's event channel, updating the
// confirmed state, writing the traffic log, and buffering events for
// DrainEvents.
func (r *Registry) drainInbound() {
	for _, s := range r.sessions {
		s.mu.Lock()
		for s.bridge != nil {
			e, ok := s.bridge.tryRecvEvent()
			if !ok {
				break
			}
			r.applyEvent(s, e)
		}
		s.mu.Unlock()
	}
}

// applyEvent handles one inbound event. Caller holds the session lock.
func (r *Registry) applyEvent(s *Session, e Event) {
	switch ev := e.(type) {
	case StateEvent:
		s.state = ev.State
		switch ev.State {
		case StateReady:
			s.data.queue = nil
			s.data.traffic = NewTrafficLog(r.cfg.LogDir, s.name, s.log)
			s.log.Info().Str("log", s.data.traffic.Path()).Msg("session ready")
		case StateClose:
			s.data.reset()
			s.log.Info().Msg("session closed")
		}
	case DataEvent:
		data := ev.Data
		if s.data.scheme == SchemeUTF8 {
			data = s.data.processRawBytes(data)
			if len(data) == 0 {
				return
			}
			e = DataEvent{Data: data}
		}
		s.data.traffic.Append(DirectionReceived, []byte(Decode(data, s.data.scheme)))
	case ErrorEvent:
		s.state = StateError
		s.data.utf8Buf = nil
		s.data.traffic.Append(DirectionError, ev.Data)
		s.log.Warn().Str("error", string(ev.Data)).Msg("session error")
	}
	s.data.pending = append(s.data.pending, e)
}

// --- external operations (all fire-and-forget, never blocking) ---

// Sessions lists the tracked sessions with their confirmed states.
func (r *Registry) Sessions() []SessionInfo {
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionInfo{Name: s.Name(), State: s.State()})
	}
	return out
}

// RequestOpen stores the settings and asks the session task to open
// the hardware. The session stays Close until the task confirms; an
// errored session must be cleared first.
func (r *Registry) RequestOpen(name string, settings PortSettings) error {
	s := r.find(name)
	if s == nil {
		return ErrPortNotFound
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateError {
		return ErrSessionErrored
	}
	if s.bridge == nil {
		return ErrNoTask
	}
	s.settings = settings
	if err := s.bridge.sendRequest(openRequest{settings: settings}); err != nil {
		s.metrics.DroppedMessages.Inc()
		return err
	}
	return nil
}

// RequestWrite sends raw bytes to an open session.
func (r *Registry) RequestWrite(name string, data []byte) error {
	s := r.find(name)
	if s == nil {
		return ErrPortNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return ErrPortNotOpen
	}
	if s.bridge == nil {
		return ErrNoTask
	}
	if err := s.bridge.sendRequest(writeRequest{data: data}); err != nil {
		s.metrics.DroppedMessages.Inc()
		return err
	}
	return nil
}

// QueueSend queues user text for the next outbound drain and records
// it in the command history. The text is encoded with the session's
// scheme at flush time.
func (r *Registry) QueueSend(name, text string) error {
	s := r.find(name)
	if s == nil {
		return ErrPortNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.queue = append(s.data.queue, text)
	s.data.history.Add(text)
	return nil
}

// RequestClose asks the session task to close the hardware. The
// session stays in its current state until the task confirms; an
// errored session must be cleared instead.
func (r *Registry) RequestClose(name string) error {
	s := r.find(name)
	if s == nil {
		return ErrPortNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateError {
		return ErrSessionErrored
	}
	if s.bridge == nil {
		return ErrNoTask
	}
	if err := s.bridge.sendRequest(closeRequest{name: name}); err != nil {
		s.metrics.DroppedMessages.Inc()
		return err
	}
	return nil
}

// ClearError acknowledges a device fault, moving the session from
// Error back to Close and resetting its buffers so a fresh open can
// proceed.
func (r *Registry) ClearError(name string) error {
	s := r.find(name)
	if s == nil {
		return ErrPortNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateError {
		return nil
	}
	s.state = StateClose
	s.data.reset()
	s.log.Info().Msg("session error cleared")
	return nil
}

// DrainEvents returns and clears the events buffered for a session
// since the last call. Intended to be called once per tick by the
// frontend.
func (r *Registry) DrainEvents(name string) []Event {
	s := r.find(name)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.data.pending
	s.data.pending = nil
	return events
}

// SetScheme selects the encoding scheme used for subsequent traffic.
func (r *Registry) SetScheme(name string, scheme Scheme) error {
	s := r.find(name)
	if s == nil {
		return ErrPortNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.scheme = scheme
	s.data.utf8Buf = nil
	return nil
}

// Scheme returns the session's current encoding scheme. An unknown
// name reports SchemeUTF8.
func (r *Registry) Scheme(name string) Scheme {
	s := r.find(name)
	if s == nil {
		return SchemeUTF8
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.scheme
}

// SetLineFeed sets whether queued sends get a trailing line feed.
func (r *Registry) SetLineFeed(name string, enabled bool) error {
	s := r.find(name)
	if s == nil {
		return ErrPortNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.lineFeed = enabled
	return nil
}

// History returns a copy of a session's command history.
func (r *Registry) History(name string) []string {
	s := r.find(name)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.history.Entries()
}

// Metrics returns a snapshot of a session's counters.
func (r *Registry) Metrics(name string) (MetricsSnapshot, error) {
	s := r.find(name)
	if s == nil {
		return MetricsSnapshot{}, ErrPortNotFound
	}
	return s.metrics.Snapshot(), nil
}

// TrafficLogPath returns the session's current traffic log file, empty
// when the session has never been opened.
func (r *Registry) TrafficLogPath(name string) string {
	s := r.find(name)
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.traffic.Path()
}

// PoolStats exposes the shared read-buffer pool statistics.
func (r *Registry) PoolStats() PoolStats {
	return r.pool.Stats()
}
