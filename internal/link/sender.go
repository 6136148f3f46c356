package link

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/mausbridge/internal/crc8"
)

// AppendFrame appends the encoded frame for payload to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, ErrPayloadTooLarge
	}
	dst = append(dst, Magic[0], Magic[1], seq, byte(len(payload)), crc8.Checksum(payload, crc8.MausTable))
	return append(dst, payload...), nil
}

// Sender frames payloads and writes them to w. Each frame goes out in a
// single Write. Sends are fire and forget.
type Sender struct {
	w io.Writer

	mu  sync.Mutex
	seq uint8
	buf []byte

	Sent   atomic.Uint64
	Failed atomic.Uint64
}

func NewSender(w io.Writer) *Sender {
	return &Sender{w: w, buf: make([]byte, 0, BufferSize)}
}

// Send writes one frame carrying payload.
func (s *Sender) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := AppendFrame(s.buf[:0], s.seq, payload)
	if err != nil {
		return err
	}
	s.buf = frame
	s.seq++

	if _, err := s.w.Write(frame); err != nil {
		s.Failed.Add(1)
		return err
	}
	s.Sent.Add(1)
	return nil
}

// NextSeq returns the sequence id the next frame will carry.
func (s *Sender) NextSeq() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
