package serial

import "context"

// Requests flow from the tick loop into the session task. The channel
// is FIFO, which is what guarantees a write queued before a close is
// attempted before the close is honored.
type request interface{ isRequest() }

type openRequest struct{ settings PortSettings }

type writeRequest struct{ data []byte }

type closeRequest struct{ name string }

func (openRequest) isRequest()  {}
func (writeRequest) isRequest() {}
func (closeRequest) isRequest() {}

// Event is a message from a session task back to the tick loop.
type Event interface{ isEvent() }

// StateEvent reports a confirmed hardware state change.
type StateEvent struct {
	State PortState
}

// DataEvent carries bytes read from the port.
type DataEvent struct {
	Data []byte
}

// ErrorEvent carries an error payload from the port task.
type ErrorEvent struct {
	Data []byte
}

func (StateEvent) isEvent() {}
func (DataEvent) isEvent()  {}
func (ErrorEvent) isEvent() {}

// bridge is the per-session channel pair connecting the tick loop to
// the session task. Both channels are bounded and single-consumer.
//
// The tick side only ever uses the non-blocking calls; the task side
// blocks, guarded by its context.
type bridge struct {
	req chan request
	evt chan Event
}

func newBridge(capacity int) *bridge {
	if capacity <= 0 {
		capacity = 100
	}
	return &bridge{
		req: make(chan request, capacity),
		evt: make(chan Event, capacity),
	}
}

// sendRequest is the tick-side send: fail-fast on a full channel, the
// tick loop must never block.
func (b *bridge) sendRequest(r request) error {
	select {
	case b.req <- r:
		return nil
	default:
		return ErrBridgeFull
	}
}

// tryRecvEvent is the tick-side receive.
func (b *bridge) tryRecvEvent() (Event, bool) {
	select {
	case e := <-b.evt:
		return e, true
	default:
		return nil, false
	}
}

// recvRequest is the task-side blocking receive.
func (b *bridge) recvRequest(ctx context.Context) (request, bool) {
	select {
	case r := <-b.req:
		return r, true
	case <-ctx.Done():
		return nil, false
	}
}

// sendEvent is the task-side blocking send. Returns false when the
// task context ended before the event could be delivered.
func (b *bridge) sendEvent(ctx context.Context, e Event) bool {
	select {
	case b.evt <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
