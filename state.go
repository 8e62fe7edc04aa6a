package serial

// PortState is the lifecycle state of a session. The authoritative
// state is only ever the last StateEvent received through the bridge;
// the tick loop never assumes a transition before observing it.
type PortState int

const (
	// StateClose means no hardware handle is held.
	StateClose PortState = iota
	// StateReady means the hardware confirmed the open.
	StateReady
	// StateError means a device fault occurred. The session must be
	// explicitly cleared before it can be closed or reopened.
	StateError
)

func (s PortState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateError:
		return "Error"
	default:
		return "Close"
	}
}
