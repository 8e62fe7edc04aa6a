package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobug "go.bug.st/serial"
)

type mockPort struct {
	readCh chan []byte

	mu       sync.Mutex
	writes   [][]byte
	closed   bool
	rts      bool
	writeErr error
}

func newMockPort() *mockPort {
	return &mockPort{readCh: make(chan []byte, 16)}
}

func (m *mockPort) Read(p []byte) (int, error) {
	b, ok := <-m.readCh
	if !ok {
		return 0, io.EOF
	}
	return copy(p, b), nil
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	m.writes = append(m.writes, cp)
	return len(p), nil
}

func (m *mockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.readCh)
		m.closed = true
	}
	return nil
}

func (m *mockPort) SetRTS(v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rts = v
	return nil
}

func (m *mockPort) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockPort) written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *mockPort) setWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// installMockPort overrides the port opener for the duration of a test.
func installMockPort(t *testing.T, open func(name string, mode *gobug.Mode) (portHandle, error)) {
	t.Helper()
	prev := openPort
	openPort = open
	t.Cleanup(func() { openPort = prev })
}

func startTask(t *testing.T) (*bridge, chan struct{}, context.CancelFunc) {
	t.Helper()
	b := newBridge(16)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go runTask(ctx, b, &Metrics{}, NewBufferPool(64), zerolog.Nop(), done)
	t.Cleanup(cancel)
	return b, done, cancel
}

func recvEvent(t *testing.T, b *bridge) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if e, ok := b.tryRecvEvent(); ok {
			return e
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for event")
		case <-time.After(time.Millisecond):
		}
	}
}

func waitClosed(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not terminate")
	}
}

func TestTaskLifecycle(t *testing.T) {
	mp := newMockPort()
	var openedName string
	var openedMode *gobug.Mode
	installMockPort(t, func(name string, mode *gobug.Mode) (portHandle, error) {
		openedName = name
		openedMode = mode
		return mp, nil
	})

	b, done, _ := startTask(t)

	settings := DefaultSettings("COM3")
	if err := b.sendRequest(openRequest{settings: settings}); err != nil {
		t.Fatal(err)
	}

	e := recvEvent(t, b)
	if se, ok := e.(StateEvent); !ok || se.State != StateReady {
		t.Fatalf("first event = %#v, want Ready", e)
	}
	if openedName != "COM3" || openedMode.BaudRate != 115200 {
		t.Errorf("opened %q at %d", openedName, openedMode.BaudRate)
	}

	// inbound data is forwarded as-is
	mp.readCh <- []byte("pong")
	e = recvEvent(t, b)
	if de, ok := e.(DataEvent); !ok || !bytes.Equal(de.Data, []byte("pong")) {
		t.Fatalf("data event = %#v", e)
	}

	// outbound write reaches the handle
	if err := b.sendRequest(writeRequest{data: []byte("ping")}); err != nil {
		t.Fatal(err)
	}
	if err := b.sendRequest(closeRequest{name: "COM3"}); err != nil {
		t.Fatal(err)
	}

	e = recvEvent(t, b)
	if se, ok := e.(StateEvent); !ok || se.State != StateClose {
		t.Fatalf("close event = %#v", e)
	}
	waitClosed(t, done)

	writes := mp.written()
	if len(writes) != 1 || !bytes.Equal(writes[0], []byte("ping")) {
		t.Errorf("writes = %v", writes)
	}
	if !mp.isClosed() {
		t.Error("handle not closed after task exit")
	}
}

func TestTaskOpenFailure(t *testing.T) {
	installMockPort(t, func(string, *gobug.Mode) (portHandle, error) {
		return nil, errors.New("device busy")
	})

	b, done, _ := startTask(t)
	if err := b.sendRequest(openRequest{settings: DefaultSettings("COM3")}); err != nil {
		t.Fatal(err)
	}

	e := recvEvent(t, b)
	ee, ok := e.(ErrorEvent)
	if !ok {
		t.Fatalf("event = %#v, want ErrorEvent", e)
	}
	if !bytes.Contains(ee.Data, []byte("device busy")) {
		t.Errorf("error payload = %q", ee.Data)
	}
	// no Ready is ever reported and the task terminates
	waitClosed(t, done)
	if e, ok := b.tryRecvEvent(); ok {
		t.Errorf("unexpected trailing event %#v", e)
	}
}

func TestTaskIgnoresRequestsBeforeOpen(t *testing.T) {
	mp := newMockPort()
	installMockPort(t, func(string, *gobug.Mode) (portHandle, error) { return mp, nil })

	b, _, _ := startTask(t)
	b.sendRequest(writeRequest{data: []byte("too early")})
	b.sendRequest(closeRequest{name: "COM3"})
	b.sendRequest(openRequest{settings: DefaultSettings("COM3")})

	e := recvEvent(t, b)
	if se, ok := e.(StateEvent); !ok || se.State != StateReady {
		t.Fatalf("event = %#v, want Ready", e)
	}
	if len(mp.written()) != 0 {
		t.Errorf("pre-open write reached the handle: %v", mp.written())
	}
}

func TestTaskWriteBeforeCloseIsAttempted(t *testing.T) {
	mp := newMockPort()
	installMockPort(t, func(string, *gobug.Mode) (portHandle, error) { return mp, nil })

	b, done, _ := startTask(t)
	b.sendRequest(openRequest{settings: DefaultSettings("COM3")})
	recvEvent(t, b) // Ready

	b.sendRequest(writeRequest{data: []byte("last words")})
	b.sendRequest(closeRequest{name: "COM3"})
	waitClosed(t, done)

	writes := mp.written()
	if len(writes) != 1 || !bytes.Equal(writes[0], []byte("last words")) {
		t.Errorf("writes = %v", writes)
	}
}

func TestTaskWriteFailure(t *testing.T) {
	mp := newMockPort()
	mp.setWriteErr(errors.New("io failure"))
	installMockPort(t, func(string, *gobug.Mode) (portHandle, error) { return mp, nil })

	b, done, _ := startTask(t)
	b.sendRequest(openRequest{settings: DefaultSettings("COM3")})
	recvEvent(t, b) // Ready

	b.sendRequest(writeRequest{data: []byte("x")})
	e := recvEvent(t, b)
	if _, ok := e.(ErrorEvent); !ok {
		t.Fatalf("event = %#v, want ErrorEvent", e)
	}
	waitClosed(t, done)
	if !mp.isClosed() {
		t.Error("handle not closed after write failure")
	}
}

func TestTaskContextCancelBeforeOpen(t *testing.T) {
	installMockPort(t, func(string, *gobug.Mode) (portHandle, error) {
		t.Fatal("open must not be called")
		return nil, nil
	})

	b, done, cancel := startTask(t)
	cancel()
	waitClosed(t, done)
	if e, ok := b.tryRecvEvent(); ok {
		t.Errorf("unexpected event %#v", e)
	}
}

func TestTaskHardwareFlowControlAssertsRTS(t *testing.T) {
	mp := newMockPort()
	installMockPort(t, func(string, *gobug.Mode) (portHandle, error) { return mp, nil })

	b, _, _ := startTask(t)
	settings := DefaultSettings("COM3")
	settings.FlowControl = FlowControlHardware
	b.sendRequest(openRequest{settings: settings})
	recvEvent(t, b) // Ready

	mp.mu.Lock()
	rts := mp.rts
	mp.mu.Unlock()
	if !rts {
		t.Error("RTS not asserted")
	}
}

func TestTaskMetrics(t *testing.T) {
	mp := newMockPort()
	installMockPort(t, func(string, *gobug.Mode) (portHandle, error) { return mp, nil })

	b := newBridge(16)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var m Metrics
	go runTask(ctx, b, &m, NewBufferPool(64), zerolog.Nop(), done)

	b.sendRequest(openRequest{settings: DefaultSettings("COM3")})
	recvEvent(t, b) // Ready

	mp.readCh <- []byte("1234")
	recvEvent(t, b) // data
	b.sendRequest(writeRequest{data: []byte("12")})
	b.sendRequest(closeRequest{name: "COM3"})
	waitClosed(t, done)

	snap := m.Snapshot()
	if snap.OpenAttempts != 1 || snap.OpenFailures != 0 {
		t.Errorf("opens = %d/%d", snap.OpenAttempts, snap.OpenFailures)
	}
	if snap.Reads != 1 || snap.BytesRead != 4 {
		t.Errorf("reads = %d (%d bytes)", snap.Reads, snap.BytesRead)
	}
	if snap.Writes != 1 || snap.BytesWritten != 2 {
		t.Errorf("writes = %d (%d bytes)", snap.Writes, snap.BytesWritten)
	}
	if snap.LastActivity.IsZero() {
		t.Error("LastActivity not recorded")
	}
}
