package lidar

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/mausbridge/internal/monitoring"
	"github.com/banshee-data/mausbridge/internal/timeutil"
)

// Stats counts decoder activity. Counters are cumulative and safe to read
// from any goroutine.
type Stats struct {
	Bytes         atomic.Uint64
	Frames        atomic.Uint64
	Points        atomic.Uint64
	Scans         atomic.Uint64
	CRCErrors     atomic.Uint64
	SkippedBytes  atomic.Uint64
	DroppedBytes  atomic.Uint64
	DroppedPoints atomic.Uint64

	clock timeutil.Clock

	mu         sync.Mutex
	lastReset  time.Time
	lastBytes  uint64
	lastFrames uint64
	lastPoints uint64
	lastScans  uint64
}

// NewStats creates a Stats whose rate window starts now.
func NewStats(clock timeutil.Clock) *Stats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Stats{clock: clock, lastReset: clock.Now()}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Bytes         uint64 `json:"bytes"`
	Frames        uint64 `json:"frames"`
	Points        uint64 `json:"points"`
	Scans         uint64 `json:"scans"`
	CRCErrors     uint64 `json:"crc_errors"`
	SkippedBytes  uint64 `json:"skipped_bytes"`
	DroppedBytes  uint64 `json:"dropped_bytes"`
	DroppedPoints uint64 `json:"dropped_points"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Bytes:         s.Bytes.Load(),
		Frames:        s.Frames.Load(),
		Points:        s.Points.Load(),
		Scans:         s.Scans.Load(),
		CRCErrors:     s.CRCErrors.Load(),
		SkippedBytes:  s.SkippedBytes.Load(),
		DroppedBytes:  s.DroppedBytes.Load(),
		DroppedPoints: s.DroppedPoints.Load(),
	}
}

// Rates holds per-second throughput since the previous call to Rates.
type Rates struct {
	Bytes, Frames, Points, Scans float64
	Window                       time.Duration
}

// Rates returns throughput since the last call and starts a new window.
func (s *Stats) Rates() Rates {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	window := now.Sub(s.lastReset)
	bytes, frames := s.Bytes.Load(), s.Frames.Load()
	points, scans := s.Points.Load(), s.Scans.Load()

	r := Rates{Window: window}
	if secs := window.Seconds(); secs > 0 {
		r.Bytes = float64(bytes-s.lastBytes) / secs
		r.Frames = float64(frames-s.lastFrames) / secs
		r.Points = float64(points-s.lastPoints) / secs
		r.Scans = float64(scans-s.lastScans) / secs
	}

	s.lastReset = now
	s.lastBytes, s.lastFrames, s.lastPoints, s.lastScans = bytes, frames, points, scans
	return r
}

// LogStats logs throughput since the previous call. Nothing is logged when
// the device has been silent.
func (s *Stats) LogStats() {
	r := s.Rates()
	if r.Frames == 0 && r.Bytes == 0 {
		return
	}
	msg := fmt.Sprintf("lidar stats (/sec): %.1f KB, %.1f frames, %s points, %.1f scans",
		r.Bytes/1024, r.Frames, FormatWithCommas(int64(r.Points)), r.Scans)
	if crc := s.CRCErrors.Load(); crc > 0 {
		msg += fmt.Sprintf(", %d crc errors total", crc)
	}
	monitoring.Logf("%s", msg)
}

// FormatWithCommas formats a number with thousands separators.
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(str, "-")
	if neg {
		str = str[1:]
	}
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return b.String()
}
