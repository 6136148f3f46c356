package lidar

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxPoints bounds the accumulator when no rotation boundary shows up.
// A healthy LD19 produces roughly 450 points per rotation.
const DefaultMaxPoints = 8192

// Scan is one rotation of points in arrival order.
type Scan struct {
	ID     string
	Points []Point
}

// Start returns the timestamp of the first point.
func (s *Scan) Start() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Time()
}

// End returns the timestamp of the last point.
func (s *Scan) End() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Time()
}

// ScanHandler receives completed scans on the reader goroutine. It must not
// block.
type ScanHandler interface {
	HandleScan(s *Scan)
}

// ScanHandlerFunc adapts a function to ScanHandler.
type ScanHandlerFunc func(s *Scan)

func (f ScanHandlerFunc) HandleScan(s *Scan) { f(s) }

// ScanBuilder accumulates points and cuts them into scans wherever the
// angle goes backwards.
type ScanBuilder struct {
	handler   ScanHandler
	maxPoints int
	points    []Point

	Scans         atomic.Uint64
	DroppedPoints atomic.Uint64
}

// NewScanBuilder returns a builder delivering to h. maxPoints <= 0 selects
// DefaultMaxPoints.
func NewScanBuilder(h ScanHandler, maxPoints int) *ScanBuilder {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &ScanBuilder{handler: h, maxPoints: maxPoints}
}

// Add appends points to the accumulator.
func (b *ScanBuilder) Add(pts ...Point) {
	b.points = append(b.points, pts...)
}

// Pending returns the number of accumulated points not yet delivered.
func (b *ScanBuilder) Pending() int { return len(b.points) }

// Flush delivers every complete segment and keeps the tail after the last
// boundary. It returns the number of scans delivered and the number of old
// points dropped to stay within the bound.
func (b *ScanBuilder) Flush() (scans, dropped int) {
	start := 0
	for i := 1; i < len(b.points); i++ {
		if b.points[i].Angle >= b.points[i-1].Angle {
			continue
		}
		scan := &Scan{
			ID:     uuid.NewString(),
			Points: append([]Point(nil), b.points[start:i]...),
		}
		if b.handler != nil {
			b.handler.HandleScan(scan)
		}
		b.Scans.Add(1)
		scans++
		start = i
	}

	if start > 0 {
		n := copy(b.points, b.points[start:])
		b.points = b.points[:n]
	}
	if over := len(b.points) - b.maxPoints; over > 0 {
		n := copy(b.points, b.points[over:])
		b.points = b.points[:n]
		b.DroppedPoints.Add(uint64(over))
		dropped = over
	}
	return scans, dropped
}

// Reset drops all accumulated points.
func (b *ScanBuilder) Reset() {
	b.points = b.points[:0]
}
