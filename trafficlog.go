package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Direction tags a traffic log entry with where the payload came from.
type Direction int

const (
	// DirectionSent marks data written to the port.
	DirectionSent Direction = iota
	// DirectionReceived marks data read from the port.
	DirectionReceived
	// DirectionError marks an error message.
	DirectionError
)

func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return "T"
	case DirectionError:
		return "E"
	default:
		return "R"
	}
}

// TrafficLog is the append-only per-session-open traffic file. Writes
// are best-effort: filesystem failures are logged and swallowed so the
// I/O path is never affected.
type TrafficLog struct {
	path string
	file *os.File
	log  zerolog.Logger
}

const trafficTimeFormat = "20060102 15:04:05.000"

// NewTrafficLog creates a fresh log file for one session open. The
// directory is auto-created and the name sanitized so the file always
// lands inside dir, whatever the port name looks like.
func NewTrafficLog(dir, portName string, logger zerolog.Logger) *TrafficLog {
	name := sanitizeLogName(portName) + "_" + time.Now().Format("20060102_150405") + ".txt"
	path := filepath.Join(dir, name)

	tl := &TrafficLog{path: path, log: logger}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error().Err(err).Str("dir", dir).Msg("failed to create logs directory")
		return tl
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to create traffic log")
		return tl
	}
	tl.file = f
	return tl
}

// sanitizeLogName strips leading path separators and replaces the rest
// with underscores, e.g. "/dev/ttyUSB0" becomes "dev_ttyUSB0".
func sanitizeLogName(name string) string {
	name = strings.TrimLeft(name, "/\\")
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}

// Append writes one tagged entry: "[<timestamp> <direction>]\n<payload>".
func (t *TrafficLog) Append(dir Direction, payload []byte) {
	if t == nil || t.file == nil {
		return
	}
	head := fmt.Sprintf("[%s %s]\n", time.Now().Format(trafficTimeFormat), dir)
	entry := make([]byte, 0, len(head)+len(payload)+1)
	entry = append(entry, head...)
	entry = append(entry, payload...)
	entry = append(entry, '\n')
	if _, err := t.file.Write(entry); err != nil {
		t.log.Error().Err(err).Str("path", t.path).Msg("traffic log append failed")
	}
}

// Path returns the log file location.
func (t *TrafficLog) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Read returns the current file contents, for a history view. Missing
// or unreadable files read as empty.
func (t *TrafficLog) Read() string {
	if t == nil || t.path == "" {
		return ""
	}
	b, err := os.ReadFile(t.path)
	if err != nil {
		return ""
	}
	return string(b)
}

// Close releases the file handle. Safe on nil and double close.
func (t *TrafficLog) Close() {
	if t == nil || t.file == nil {
		return
	}
	if err := t.file.Close(); err != nil {
		t.log.Error().Err(err).Str("path", t.path).Msg("traffic log close failed")
	}
	t.file = nil
}
