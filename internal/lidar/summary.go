package lidar

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a scan for storage and display.
type Summary struct {
	ID             string
	Start          time.Time
	End            time.Time
	Points         int
	ValidPoints    int
	MeanDistance   float64 // millimetres, valid points only
	StdDevDistance float64
	MinDistance    float64
	MaxDistance    float64
	MeanIntensity  float64
}

// Summarize computes distance statistics over the points with a return.
func Summarize(s *Scan) Summary {
	sum := Summary{
		ID:     s.ID,
		Start:  s.Start(),
		End:    s.End(),
		Points: len(s.Points),
	}

	dist := make([]float64, 0, len(s.Points))
	intensity := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if !p.Valid() {
			continue
		}
		dist = append(dist, float64(p.Distance))
		intensity = append(intensity, float64(p.Intensity))
	}
	sum.ValidPoints = len(dist)
	if len(dist) == 0 {
		return sum
	}

	sum.MeanDistance, sum.StdDevDistance = stat.MeanStdDev(dist, nil)
	if len(dist) == 1 {
		sum.StdDevDistance = 0
	}
	sum.MinDistance = floats.Min(dist)
	sum.MaxDistance = floats.Max(dist)
	sum.MeanIntensity = stat.Mean(intensity, nil)
	return sum
}
