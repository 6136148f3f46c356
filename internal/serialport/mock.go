package serialport

import (
	"bytes"
	"sync"
	"time"
)

// MockPort is an in-memory Port for tests. Reads drain queued chunks one at
// a time; an empty queue behaves like a read timeout.
type MockPort struct {
	mu sync.Mutex

	chunks  [][]byte
	written bytes.Buffer
	closed  bool

	// ReadErr is returned once the queue is empty, if set.
	ReadErr error
	// WriteErr is returned by every Write, if set.
	WriteErr error
	// Idle is how long an empty read waits before returning (0, nil).
	Idle time.Duration

	readTimeout time.Duration
	reads       int
}

// NewMockPort returns a port that will yield chunks in order.
func NewMockPort(chunks ...[]byte) *MockPort {
	m := &MockPort{Idle: time.Millisecond}
	m.Feed(chunks...)
	return m
}

// Feed queues more chunks for Read.
func (m *MockPort) Feed(chunks ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks = append(m.chunks, append([]byte(nil), c...))
	}
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	m.reads++
	if m.closed {
		m.mu.Unlock()
		return 0, ErrPortClosed
	}
	if len(m.chunks) > 0 {
		n := copy(p, m.chunks[0])
		if n < len(m.chunks[0]) {
			m.chunks[0] = m.chunks[0][n:]
		} else {
			m.chunks = m.chunks[1:]
		}
		m.mu.Unlock()
		return n, nil
	}
	if m.ReadErr != nil {
		err := m.ReadErr
		m.mu.Unlock()
		return 0, err
	}
	idle := m.Idle
	m.mu.Unlock()

	time.Sleep(idle)
	return 0, nil
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrPortClosed
	}
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	return m.written.Write(p)
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPort) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeout = timeout
	return nil
}

// Written returns a copy of everything written to the port.
func (m *MockPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written.Bytes()...)
}

// Pending reports how many queued chunks have not been read yet.
func (m *MockPort) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockOpener returns an Opener that hands out port, or fails with err.
func MockOpener(port *MockPort, err error) Opener {
	return func(path string, opts PortOptions) (Port, error) {
		if err != nil {
			return nil, err
		}
		if _, nerr := opts.Normalize(); nerr != nil {
			return nil, nerr
		}
		return port, nil
	}
}
