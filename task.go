package serial

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// taskHandle tracks one running session task. The registry holds at
// most one per session; a nil handle is the only state in which a new
// task may be spawned.
type taskHandle struct {
	done chan struct{}
}

// terminated reports whether the task has fully exited, including its
// read sub-task teardown.
func (h *taskHandle) terminated() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// minimum teardown wait for the read sub-task, applied when the
// configured settings timeout is shorter.
const minTeardownWait = 100 * time.Millisecond

// runTask drives one session's lifecycle:
//
//	AwaitingOpen -> Opening -> Ready -> Closing -> Terminated
//
// It blocks on the bridge until an open request arrives, acquires the
// hardware handle, then splits into a read sub-task and a write loop.
// Any terminal condition (open failure, I/O failure, close request,
// context cancellation) ends the task; retrying requires the registry
// to observe the terminal state, clear the handle, and spawn a fresh
// task.
func runTask(ctx context.Context, b *bridge, m *Metrics, pool *BufferPool, logger zerolog.Logger, done chan struct{}) {
	defer close(done)

	settings, ok := awaitOpen(ctx, b)
	if !ok {
		return
	}

	m.OpenAttempts.Inc()
	handle, err := openPort(settings.Name, settings.mode())
	if err != nil {
		m.OpenFailures.Inc()
		logger.Error().Err(err).Msg("failed to open serial port")
		b.sendEvent(ctx, ErrorEvent{Data: []byte("open port failed: " + err.Error())})
		return
	}
	if settings.FlowControl == FlowControlHardware {
		if err := handle.SetRTS(true); err != nil {
			logger.Warn().Err(err).Msg("failed to assert RTS")
		}
	}

	logger.Info().Str("settings", settings.String()).Msg("opened serial port")
	if !b.sendEvent(ctx, StateEvent{State: StateReady}) {
		_ = handle.Close()
		return
	}
	m.ConnectedAt.Store(time.Now().UnixNano())

	readCtx, cancelRead := context.WithCancel(ctx)
	readDone := make(chan struct{})
	go readLoop(readCtx, handle, b, m, pool, logger, readDone)

	writeLoop(ctx, handle, b, m, logger)

	// Hard abort: closing the handle discards any in-flight read and
	// unblocks the sub-task. In-flight data is not drained.
	cancelRead()
	_ = handle.Close()
	m.ConnectedAt.Store(0)

	wait := settings.Timeout
	if wait < minTeardownWait {
		wait = minTeardownWait
	}
	select {
	case <-readDone:
	case <-time.After(wait):
		logger.Warn().Msg("read sub-task did not stop within teardown wait")
	}
	logger.Debug().Msg("session task exited")
}

// awaitOpen blocks until an open request arrives. Every other request
// kind received in this state is ignored.
func awaitOpen(ctx context.Context, b *bridge) (PortSettings, bool) {
	for {
		req, ok := b.recvRequest(ctx)
		if !ok {
			return PortSettings{}, false
		}
		if open, ok := req.(openRequest); ok {
			return open.settings, true
		}
	}
}

// readLoop is the read sub-task. A zero-byte read or an I/O error means
// the connection is lost; the loop exits without emitting further
// messages and leaves state reporting to the owning task.
func readLoop(ctx context.Context, handle portHandle, b *bridge, m *Metrics, pool *BufferPool, logger zerolog.Logger, done chan struct{}) {
	defer close(done)

	buf := pool.Get()
	defer pool.Put(buf)

	for {
		n, err := handle.Read(buf)
		if err != nil || n == 0 {
			if err != nil && ctx.Err() == nil {
				m.ReadErrors.Inc()
				logger.Debug().Err(err).Msg("read loop ended")
			}
			return
		}
		m.Reads.Inc()
		m.BytesRead.Add(int64(n))
		m.touch()

		data := make([]byte, n)
		copy(data, buf[:n])
		if !b.sendEvent(ctx, DataEvent{Data: data}) {
			return
		}
	}
}

// writeLoop consumes the request channel on the owning task goroutine.
// FIFO delivery means writes queued before a close are attempted before
// the close is honored; writes queued after may be dropped with the
// tearing-down task.
func writeLoop(ctx context.Context, handle portHandle, b *bridge, m *Metrics, logger zerolog.Logger) {
	for {
		req, ok := b.recvRequest(ctx)
		if !ok {
			return
		}
		switch r := req.(type) {
		case writeRequest:
			if err := writeAll(handle, r.data); err != nil {
				m.WriteErrors.Inc()
				logger.Error().Err(err).Msg("write failed")
				b.sendEvent(ctx, ErrorEvent{Data: []byte("write failed: " + err.Error())})
				return
			}
			m.Writes.Inc()
			m.BytesWritten.Add(int64(len(r.data)))
			m.touch()
		case closeRequest:
			logger.Info().Str("port", r.name).Msg("closing serial port")
			b.sendEvent(ctx, StateEvent{State: StateClose})
			return
		default:
			// An open request while already open is ignored; settings
			// changes require a close and reopen.
		}
	}
}

func writeAll(handle portHandle, data []byte) error {
	written := 0
	for written < len(data) {
		n, err := handle.Write(data[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPortNotOpen
		}
		written += n
	}
	return nil
}
