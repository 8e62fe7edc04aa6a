package serial

import (
	"fmt"
	"strings"
	"time"

	gobug "go.bug.st/serial"
)

// PortSettings is the immutable-per-open configuration of a session.
// It is copied by value into the session task when an open request is
// delivered; changing settings afterwards has no effect on a running
// task and requires a close and reopen.
type PortSettings struct {
	// Name is the OS device name, e.g. "COM3" or "/dev/ttyUSB0".
	Name string
	// BaudRate in bits per second.
	BaudRate BaudRate
	// DataBits per character.
	DataBits DataBits
	// StopBits per character.
	StopBits StopBits
	// Parity checking mode.
	Parity Parity
	// FlowControl discipline.
	FlowControl FlowControl
	// Timeout bounds the teardown wait for the read sub-task after the
	// write loop exits. Reads themselves block until data arrives or the
	// handle is closed.
	Timeout time.Duration
}

// DefaultSettings returns 115200-8N1 with no flow control.
func DefaultSettings(name string) PortSettings {
	return PortSettings{
		Name:        name,
		BaudRate:    Baud115200,
		DataBits:    DataBits8,
		StopBits:    StopBits1,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
		Timeout:     500 * time.Millisecond,
	}
}

// Validate checks the settings against the supported parameter sets.
func (s PortSettings) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: port name cannot be empty", ErrInvalidSettings)
	}
	if !isValidPortPattern(s.Name) {
		return fmt.Errorf("%w: port name %q doesn't match expected pattern", ErrInvalidSettings, s.Name)
	}
	if !isValidBaudRate(s.BaudRate) {
		return fmt.Errorf("%w: invalid baud rate %d, must be one of %v", ErrInvalidSettings, s.BaudRate, CommonBaudRates)
	}
	if s.DataBits < DataBits5 || s.DataBits > DataBits8 {
		return fmt.Errorf("%w: data bits must be 5-8, got %d", ErrInvalidSettings, s.DataBits)
	}
	switch s.StopBits {
	case StopBits1, StopBits1Half, StopBits2:
	default:
		return fmt.Errorf("%w: invalid stop bits value %d", ErrInvalidSettings, s.StopBits)
	}
	switch s.Parity {
	case ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
	default:
		return fmt.Errorf("%w: invalid parity value %d", ErrInvalidSettings, s.Parity)
	}
	switch s.FlowControl {
	case FlowControlNone, FlowControlHardware, FlowControlSoftware:
	default:
		return fmt.Errorf("%w: invalid flow control value %d", ErrInvalidSettings, s.FlowControl)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative: %v", ErrInvalidSettings, s.Timeout)
	}
	return nil
}

// mode converts the settings into the go.bug.st port mode.
func (s PortSettings) mode() *gobug.Mode {
	return &gobug.Mode{
		BaudRate: s.BaudRate.Int(),
		DataBits: s.DataBits.Int(),
		Parity:   s.Parity.Get(),
		StopBits: s.StopBits.Get(),
	}
}

// String renders the settings in the usual shorthand, e.g.
// "COM3 115200-8N1".
func (s PortSettings) String() string {
	return fmt.Sprintf("%s %d-%d%s%s",
		s.Name, s.BaudRate, s.DataBits, s.Parity.String()[:1], s.StopBits)
}

func isValidBaudRate(rate BaudRate) bool {
	for _, v := range CommonBaudRates {
		if rate == v {
			return true
		}
	}
	return false
}

func isValidPortPattern(portName string) bool {
	if strings.Contains(portName, "..") {
		return false
	}
	// Windows: COM1-COM999 (must have at least one digit after COM)
	if strings.HasPrefix(portName, "COM") && len(portName) >= 4 && len(portName) <= 6 {
		return true
	}
	// Unix/Linux: /dev/tty* or /dev/cu* (macOS)
	if strings.HasPrefix(portName, "/dev/tty") || strings.HasPrefix(portName, "/dev/cu") {
		return true
	}
	return false
}
