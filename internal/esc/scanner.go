package esc

import (
	"sync/atomic"

	"github.com/banshee-data/mausbridge/internal/monitoring"
	"github.com/banshee-data/mausbridge/internal/ringbuf"
	"github.com/banshee-data/mausbridge/internal/timeutil"
)

// Stats may be read from any goroutine.
type Stats struct {
	Bytes      atomic.Uint64
	Frames     atomic.Uint64
	ZeroFrames atomic.Uint64
}

// Scanner slides a ten byte window over the stream one byte at a time and
// accepts any window whose CRC matches. Windows may overlap a previous
// match; only the first nine bytes a scanner ever sees are skipped.
type Scanner struct {
	ring    *ringbuf.Ring
	window  []byte
	fresh   int
	handler Handler
	clock   timeutil.Clock

	Stats Stats
}

func NewScanner(h Handler, clock timeutil.Clock) *Scanner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Scanner{
		ring:    ringbuf.New(FrameSize),
		window:  make([]byte, 0, FrameSize),
		handler: h,
		clock:   clock,
	}
}

// Parse feeds chunk through the window.
func (s *Scanner) Parse(chunk []byte) {
	s.Stats.Bytes.Add(uint64(len(chunk)))
	for _, b := range chunk {
		s.ring.WriteByte(b)
		if s.fresh < FrameSize {
			s.fresh++
		}
		if s.fresh < FrameSize {
			continue
		}

		s.window = s.ring.Read(s.window, 0, FrameSize)
		if !Valid(s.window) {
			continue
		}
		if allZero(s.window) {
			// an idle line satisfies the CRC
			s.Stats.ZeroFrames.Add(1)
			continue
		}

		t, _ := Decode(s.window)
		t.Time = s.clock.Now()
		s.Stats.Frames.Add(1)
		monitoring.Debugf("esc: %d C %.2f V %.2f A %d erpm", t.Temperature, t.Volts(), t.Amps(), t.ElectricalRPM())
		if s.handler != nil {
			s.handler.HandleTelemetry(t)
		}
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
