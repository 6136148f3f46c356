package lidar

import (
	"math"
	"time"
)

// Point is a single lidar return.
type Point struct {
	Distance  uint16 // millimetres, 0 when there was no return
	Intensity uint8
	Angle     uint16 // 0.01 degrees in [0, 36000)
	Timestamp int64  // unix nanoseconds
}

// Valid reports whether the point carries a range measurement.
func (p Point) Valid() bool { return p.Distance > 0 }

func (p Point) Degrees() float64 { return float64(p.Angle) / 100 }

func (p Point) Time() time.Time { return time.Unix(0, p.Timestamp) }

// XY returns the point in metres, with x along 0 degrees and y along 90.
func (p Point) XY() (x, y float64) {
	r := float64(p.Distance) / 1000
	theta := p.Degrees() * math.Pi / 180
	return r * math.Cos(theta), r * math.Sin(theta)
}
