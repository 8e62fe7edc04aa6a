package serial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"
)

func installPortList(t *testing.T, list func() ([]*enumerator.PortDetails, error)) {
	t.Helper()
	prev := listDetailedPorts
	listDetailedPorts = list
	t.Cleanup(func() { listDetailedPorts = prev })
}

func TestDiscoverUSBPortsFilters(t *testing.T) {
	installPortList(t, func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "COM1", IsUSB: false},
			{Name: "COM3", IsUSB: true, VID: "0403", PID: "6001"},
			{Name: "/dev/ttyUSB0", IsUSB: true},
		}, nil
	})

	got := discoverUSBPorts(zerolog.Nop())
	want := []string{"COM3", "/dev/ttyUSB0"}
	if len(got) != len(want) {
		t.Fatalf("ports = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("port %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiscoverUSBPortsEnumerationFailure(t *testing.T) {
	installPortList(t, func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("enumeration broken")
	})
	if got := discoverUSBPorts(zerolog.Nop()); got != nil {
		t.Errorf("ports = %v, want nil", got)
	}
}

func TestRunDiscoveryFeedsRegistry(t *testing.T) {
	installPortList(t, func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: "COM7", IsUSB: true}}, nil
	})

	r := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.RunDiscovery(ctx, time.Millisecond)

	deadline := time.After(2 * time.Second)
	for r.find("COM7") == nil {
		r.Tick()
		select {
		case <-deadline:
			t.Fatal("discovery result never reached the registry")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRunDiscoveryReplacesStaleResult(t *testing.T) {
	r := newTestRegistry(t)

	// a stale result the tick loop never consumed is replaced, not kept
	r.names <- []string{"COM1"}
	select {
	case r.names <- []string{"COM2"}:
		t.Fatal("names channel should be full")
	default:
	}

	installPortList(t, func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: "COM2", IsUSB: true}}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	go r.RunDiscovery(ctx, time.Hour)
	// one immediate poll happens before the first ticker wait
	time.Sleep(50 * time.Millisecond)
	cancel()

	names := <-r.names
	if len(names) != 1 || names[0] != "COM2" {
		t.Errorf("names = %v, want [COM2]", names)
	}
}
