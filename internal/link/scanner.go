package link

import (
	"sync/atomic"

	"github.com/banshee-data/mausbridge/internal/crc8"
	"github.com/banshee-data/mausbridge/internal/monitoring"
	"github.com/banshee-data/mausbridge/internal/ringbuf"
)

// ScannerStats are updated by the reader goroutine and may be read from any
// goroutine.
type ScannerStats struct {
	BytesIn   atomic.Uint64
	Delivered atomic.Uint64
	CRCErrors atomic.Uint64
	AckFrames atomic.Uint64
	Passes    atomic.Uint64
}

// Scanner finds packets in a ring sized for one maximum frame. Each pass
// walks the ring from the oldest byte; delivered frames are zeroed so a later
// pass cannot match them again.
//
// A pass stops at the first magic whose frame is not complete yet. Bytes
// inside that frame are never matched on their own, and Parse feeds the ring
// only as many bytes as that frame still needs before scanning again, so
// every header is checked before it can be overwritten.
//
// A Scanner is owned by a single reader goroutine.
type Scanner struct {
	ring    *ringbuf.Ring
	handler Handler
	payload []byte
	scanned uint64 // ring.Written() at the end of the last pass
	need    int    // bytes until the pending frame can be checked
	ack     int    // ack magic cursor over the raw stream

	Stats ScannerStats
}

// NewScanner returns a scanner that delivers packets to h.
func NewScanner(h Handler) *Scanner {
	return &Scanner{
		ring:    ringbuf.New(BufferSize),
		handler: h,
		payload: make([]byte, 0, MaxPayload),
		need:    BufferSize,
	}
}

// Parse appends chunk to the ring and scans it.
func (s *Scanner) Parse(chunk []byte) {
	s.Stats.BytesIn.Add(uint64(len(chunk)))
	s.countAcks(chunk)
	for {
		n := min(len(chunk), s.need)
		s.ring.Write(chunk[:n])
		chunk = chunk[n:]
		s.Scan()
		if len(chunk) == 0 {
			return
		}
	}
}

// Scan runs one pass over the ring and returns the number of packets
// delivered.
func (s *Scanner) Scan() int {
	s.Stats.Passes.Add(1)

	size := s.ring.Cap()
	fresh := s.ring.Written() - s.scanned
	if fresh > uint64(size) {
		fresh = uint64(size)
	}
	// logical index of the first byte that arrived since the last pass
	newFrom := size - int(fresh)
	s.scanned = s.ring.Written()
	s.need = size

	delivered := 0
	msg := 0
	for i := 0; i < size; i++ {
		msg = matchMagic(Magic, msg, s.ring.At(i))
		if msg < len(Magic) {
			continue
		}
		msg = 0

		start := i - 1
		if start+HeaderSize > size {
			s.need = start + HeaderSize - size
			return delivered
		}
		length := int(s.ring.At(start + 3))
		end := start + HeaderSize + length
		if end > size {
			s.need = end - size
			return delivered
		}

		seq := s.ring.At(start + 2)
		want := s.ring.At(start + 4)
		s.payload = s.ring.Read(s.payload, start+HeaderSize, length)
		if got := crc8.Checksum(s.payload, crc8.MausTable); got != want {
			// only report corruption the first time the frame is complete
			if end-1 >= newFrom {
				s.Stats.CRCErrors.Add(1)
				monitoring.Debugf("link: crc mismatch seq=%d len=%d got=%#02x want=%#02x", seq, length, got, want)
			}
			continue
		}

		s.handler.HandlePacket(&Packet{Seq: seq, CRC: want, Payload: s.payload})
		s.Stats.Delivered.Add(1)
		delivered++

		s.ring.Zero(start, HeaderSize+length)
		i = end - 1
	}
	if msg == 1 {
		// trailing first magic byte
		s.need = HeaderSize - 1
	}
	return delivered
}

// countAcks counts ack magics on the raw stream. Acks carry no handler.
func (s *Scanner) countAcks(chunk []byte) {
	for _, b := range chunk {
		s.ack = matchMagic(AckMagic, s.ack, b)
		if s.ack == len(AckMagic) {
			s.ack = 0
			s.Stats.AckFrames.Add(1)
		}
	}
}

// Reset discards all buffered bytes.
func (s *Scanner) Reset() {
	s.ring.Reset()
	s.scanned = 0
	s.need = BufferSize
	s.ack = 0
}

// matchMagic advances a two byte match cursor. On a mismatch the byte is
// tried again as the first byte of the pattern, so "12 12 34" still
// matches.
func matchMagic(magic [2]byte, pos int, b byte) int {
	if b == magic[pos] {
		return pos + 1
	}
	if b == magic[0] {
		return 1
	}
	return 0
}
