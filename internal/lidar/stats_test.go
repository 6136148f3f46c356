package lidar

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/mausbridge/internal/monitoring"
	"github.com/banshee-data/mausbridge/internal/timeutil"
)

func TestStats_Rates(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := NewStats(clock)

	s.Frames.Add(100)
	s.Points.Add(1200)
	s.Bytes.Add(4700)
	clock.Advance(2 * time.Second)

	r := s.Rates()
	assert.Equal(t, 2*time.Second, r.Window)
	assert.Equal(t, 50.0, r.Frames)
	assert.Equal(t, 600.0, r.Points)
	assert.Equal(t, 2350.0, r.Bytes)

	// a new window starts after each call
	clock.Advance(time.Second)
	r = s.Rates()
	assert.Zero(t, r.Frames)
	assert.Equal(t, uint64(100), s.Snapshot().Frames)
}

func TestStats_LogStats(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := NewStats(clock)

	clock.Advance(time.Second)
	s.LogStats()
	assert.Empty(t, logged, "silent device logs nothing")

	s.Frames.Add(10)
	s.Points.Add(1200)
	s.Bytes.Add(470)
	s.CRCErrors.Add(2)
	clock.Advance(time.Second)
	s.LogStats()
	if assert.Len(t, logged, 1) {
		assert.Contains(t, logged[0], "10.0 frames")
		assert.Contains(t, logged[0], "1,200 points")
		assert.Contains(t, logged[0], "2 crc errors")
	}
}

func TestFormatWithCommas(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
		{-12, "-12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatWithCommas(tt.in))
	}
}
