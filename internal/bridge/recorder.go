package bridge

import (
	"sync"

	"github.com/banshee-data/mausbridge/internal/monitoring"
)

// recordQueueSize bounds the writes waiting on the recorder.
const recordQueueSize = 256

type recordJob struct {
	what  string
	write func() error
}

// recordQueue runs recorder writes on their own goroutine so the serial
// readers never wait on the database. A full queue drops the write.
type recordQueue struct {
	b    *Bridge
	jobs chan recordJob
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newRecordQueue(b *Bridge, size int) *recordQueue {
	q := &recordQueue{
		b:    b,
		jobs: make(chan recordJob, size),
		done: make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *recordQueue) drain() {
	defer close(q.done)
	for job := range q.jobs {
		q.b.record(job.what, job.write())
	}
}

// enqueue never blocks.
func (q *recordQueue) enqueue(what string, write func() error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.b.RecordDropped.Add(1)
		return
	}
	select {
	case q.jobs <- recordJob{what: what, write: write}:
	default:
		if q.b.RecordDropped.Add(1) == 1 {
			monitoring.Logf("bridge: recorder queue full, dropping %s", what)
		}
	}
}

// close stops accepting writes and waits for queued ones to finish.
func (q *recordQueue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	<-q.done
}
