package serialport

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrNotRunning is returned by Write when the reader has no open port.
	ErrNotRunning = errors.New("serial reader not running")
	// ErrWriteFailed is returned when the port accepted fewer bytes than requested.
	ErrWriteFailed = errors.New("short write to serial port")
	// ErrPortClosed is returned by MockPort after Close.
	ErrPortClosed = errors.New("serial port closed")
)

// Port is the minimal surface needed from a serial device.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort is a Port whose reads can be bounded. A read that times out
// returns (0, nil).
type TimeoutPort interface {
	Port
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens the device at path. OpenSerial is the production opener;
// tests substitute MockOpener.
type Opener func(path string, opts PortOptions) (Port, error)

// Parser consumes chunks as they arrive from the port. Parse runs on the
// reader goroutine and must not retain chunk.
type Parser interface {
	Parse(chunk []byte)
}

// ParserFunc adapts a plain function to Parser.
type ParserFunc func(chunk []byte)

func (f ParserFunc) Parse(chunk []byte) { f(chunk) }
