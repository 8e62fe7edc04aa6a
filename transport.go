package serial

import (
	gobug "go.bug.st/serial"
)

// portHandle abstracts the subset of go.bug.st/serial.Port used by the
// session task.
type portHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetRTS(bool) error
}

// allow tests to override external dependencies
var openPort = func(name string, mode *gobug.Mode) (portHandle, error) {
	return gobug.Open(name, mode)
}
