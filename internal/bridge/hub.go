package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event kinds published on the hub.
const (
	KindIMU  = "imu"
	KindESC  = "esc"
	KindEcho = "echo"
	KindScan = "scan"
)

// Event is one decoded item from any channel.
type Event struct {
	Kind   string    `json:"kind"`
	Source string    `json:"source,omitempty"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data"`
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	bufferSize  int

	Published atomic.Uint64
	Dropped   atomic.Uint64
}

func NewHub(bufferSize int) *Hub {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Hub{subscribers: make(map[string]chan Event), bufferSize: bufferSize}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, h.bufferSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) Publish(e Event) {
	h.Published.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- e:
		default:
			h.Dropped.Add(1)
		}
	}
}

// Close unsubscribes everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
