package serial

// FlowControl selects the flow control discipline for a port.
//
// go.bug.st/serial's Mode carries no flow-control field; hardware flow
// control is approximated by asserting RTS on open, software flow
// control is carried in settings for the frontend only.
type FlowControl int

func (fc FlowControl) String() string {
	switch fc {
	case FlowControlHardware:
		return "Hardware"
	case FlowControlSoftware:
		return "Software"
	default:
		return "None"
	}
}

const (
	// FlowControlNone disables flow control.
	FlowControlNone FlowControl = iota
	// FlowControlHardware selects RTS/CTS flow control.
	FlowControlHardware
	// FlowControlSoftware selects XON/XOFF flow control.
	FlowControlSoftware
)
