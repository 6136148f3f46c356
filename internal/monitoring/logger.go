package monitoring

import (
	"io"
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Ingestion code reports skipped, dropped and
// rejected data through it instead of returning errors.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var debugLogger atomic.Pointer[log.Logger]

// SetDebugLogger installs a writer that receives verbose per-frame
// diagnostics such as CRC mismatches. Pass nil to disable.
func SetDebugLogger(w io.Writer) {
	if w == nil {
		debugLogger.Store(nil)
		return
	}
	debugLogger.Store(log.New(w, "", log.LstdFlags|log.Lmicroseconds))
}

// DebugEnabled reports whether a debug logger is installed.
func DebugEnabled() bool {
	return debugLogger.Load() != nil
}

// Debugf logs when a debug logger is configured and is a no-op otherwise.
func Debugf(format string, v ...interface{}) {
	if l := debugLogger.Load(); l != nil {
		l.Printf(format, v...)
	}
}
