package serial

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"
)

// allow tests to override external dependencies
var listDetailedPorts = enumerator.GetDetailedPortsList

// RunDiscovery polls the OS port list until the context ends and
// forwards the discovered names into the registry. Run it on its own
// goroutine; enumeration can be slow on some platforms and must not
// stall the tick loop. An enumeration failure yields an empty list for
// that cycle, never a dead loop.
func (r *Registry) RunDiscovery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		names := discoverUSBPorts(r.log)
		select {
		case r.names <- names:
		default:
			// Replace a result the tick loop has not consumed yet.
			select {
			case <-r.names:
			default:
			}
			select {
			case r.names <- names:
			default:
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// discoverUSBPorts lists OS-visible serial devices, filtered to the
// USB transport class.
func discoverUSBPorts(logger zerolog.Logger) []string {
	ports, err := listDetailedPorts()
	if err != nil {
		logger.Warn().Err(err).Msg("port enumeration failed")
		return nil
	}
	var names []string
	for _, p := range ports {
		if p.IsUSB {
			names = append(names, p.Name)
		}
	}
	return names
}
