package serialport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/mausbridge/internal/monitoring"
)

// ReadBufferSize is the size of the scratch buffer handed to Port.Read.
const ReadBufferSize = 256

// ReaderStats counts traffic through a Reader. Fields are safe to read from
// any goroutine.
type ReaderStats struct {
	Chunks    atomic.Uint64
	BytesRead atomic.Uint64
	BytesSent atomic.Uint64
	Starts    atomic.Uint64
}

// Reader owns one serial channel. A single goroutine reads from the port and
// hands every chunk to Parser before the next read, so the parser and
// anything it calls run on that goroutine only.
type Reader struct {
	Name    string
	Path    string
	Options PortOptions
	Open    Opener
	Parser  Parser

	Stats ReaderStats

	mu     sync.Mutex
	port   Port
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	writeMu sync.Mutex
}

// NewReader returns a Reader that opens path with OpenSerial.
func NewReader(name, path string, opts PortOptions, parser Parser) *Reader {
	return &Reader{
		Name:    name,
		Path:    path,
		Options: opts,
		Open:    OpenSerial,
		Parser:  parser,
	}
}

// Start opens the device and launches the read loop. It returns false if
// the device cannot be opened or the reader is already running; in the
// latter case the running loop is left untouched.
func (r *Reader) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runningLocked() {
		monitoring.Logf("%s: reader already running on %s", r.Name, r.Path)
		return false
	}

	open := r.Open
	if open == nil {
		open = OpenSerial
	}
	port, err := open(r.Path, r.Options)
	if err != nil {
		monitoring.Logf("%s: failed to open %s: %v", r.Name, r.Path, err)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.port = port
	r.cancel = cancel
	r.done = done
	r.err = nil
	r.Stats.Starts.Add(1)

	go func() {
		defer close(done)
		defer cancel()
		defer port.Close()

		err := r.Run(ctx, port)
		if ctx.Err() != nil {
			// stopped on request
			err = nil
		}
		if err != nil {
			monitoring.Logf("%s: reader on %s exited: %v", r.Name, r.Path, err)
		}

		r.mu.Lock()
		r.err = err
		if r.port == port {
			r.port = nil
		}
		r.mu.Unlock()
	}()
	return true
}

// Stop signals the read loop and waits for it to exit. The wait is bounded
// by the port's read timeout. It returns false if nothing was running.
func (r *Reader) Stop() bool {
	r.mu.Lock()
	if !r.runningLocked() {
		r.mu.Unlock()
		return false
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	return true
}

// Running reports whether the read loop is active.
func (r *Reader) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runningLocked()
}

func (r *Reader) runningLocked() bool {
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Err returns the error that ended the last run, or nil if it was stopped
// cleanly or is still running.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Run reads from port until ctx is cancelled or a read fails. Each chunk is
// parsed before the next read. Run does not close port.
func (r *Reader) Run(ctx context.Context, port Port) error {
	buf := make([]byte, ReadBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			r.Stats.Chunks.Add(1)
			r.Stats.BytesRead.Add(uint64(n))
			if r.Parser != nil {
				r.Parser.Parse(buf[:n])
			}
		}
		if err != nil {
			return err
		}
	}
}

// Write sends p to the open port in a single call. Writes are serialized
// with each other but not with the read loop.
func (r *Reader) Write(p []byte) (int, error) {
	r.mu.Lock()
	port := r.port
	running := r.runningLocked()
	r.mu.Unlock()
	if port == nil || !running {
		return 0, ErrNotRunning
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	n, err := port.Write(p)
	r.Stats.BytesSent.Add(uint64(n))
	if err != nil {
		if errors.Is(err, ErrPortClosed) {
			return n, ErrNotRunning
		}
		return n, err
	}
	if n != len(p) {
		return n, ErrWriteFailed
	}
	return n, nil
}
