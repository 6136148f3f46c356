package lidar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanRecorder struct {
	scans []*Scan
}

func (r *scanRecorder) HandleScan(s *Scan) { r.scans = append(r.scans, s) }

func anglePoints(angles ...uint16) []Point {
	pts := make([]Point, len(angles))
	for i, a := range angles {
		pts[i] = Point{Angle: a, Distance: 1000, Timestamp: int64(i)}
	}
	return pts
}

func TestScanBuilder_Segments(t *testing.T) {
	rec := &scanRecorder{}
	b := NewScanBuilder(rec, 0)

	b.Add(anglePoints(100, 200, 35000, 50, 60, 35900, 10, 20)...)
	scans, dropped := b.Flush()
	assert.Equal(t, 2, scans)
	assert.Zero(t, dropped)

	require.Len(t, rec.scans, 2)
	assert.Len(t, rec.scans[0].Points, 3)
	assert.Len(t, rec.scans[1].Points, 3)
	assert.Equal(t, uint16(50), rec.scans[1].Points[0].Angle)
	assert.NotEqual(t, rec.scans[0].ID, rec.scans[1].ID)
	assert.Equal(t, 2, b.Pending())
}

func TestScanBuilder_NoBoundary(t *testing.T) {
	rec := &scanRecorder{}
	b := NewScanBuilder(rec, 0)
	b.Add(anglePoints(1, 2, 3, 3, 4)...)
	scans, _ := b.Flush()
	assert.Zero(t, scans)
	assert.Equal(t, 5, b.Pending())
	assert.Empty(t, rec.scans)
}

func TestScanBuilder_KeepsTailAcrossFlushes(t *testing.T) {
	rec := &scanRecorder{}
	b := NewScanBuilder(rec, 0)

	b.Add(anglePoints(30000, 31000)...)
	b.Flush()
	b.Add(anglePoints(32000, 100)...)
	b.Flush()

	require.Len(t, rec.scans, 1)
	assert.Len(t, rec.scans[0].Points, 3)
	assert.Equal(t, 1, b.Pending())
}

func TestScanBuilder_Bound(t *testing.T) {
	b := NewScanBuilder(nil, 10)
	for i := 0; i < 25; i++ {
		b.Add(Point{Angle: uint16(i)})
	}
	_, dropped := b.Flush()
	assert.Equal(t, 15, dropped)
	assert.Equal(t, 10, b.Pending())
	assert.Equal(t, uint64(15), b.DroppedPoints.Load())

	// the newest points survive
	b.Add(Point{Angle: 0})
	rec := &scanRecorder{}
	b.handler = rec
	b.Flush()
	require.Len(t, rec.scans, 1)
	assert.Equal(t, uint16(15), rec.scans[0].Points[0].Angle)
}

func TestScan_StartEnd(t *testing.T) {
	s := &Scan{Points: anglePoints(1, 2, 3)}
	assert.Equal(t, int64(0), s.Start().UnixNano())
	assert.Equal(t, int64(2), s.End().UnixNano())
	assert.True(t, (&Scan{}).Start().IsZero())
	assert.True(t, (&Scan{}).End().IsZero())
}
