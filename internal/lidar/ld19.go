// Package lidar decodes the LD19 (FHL-LD19) serial lidar stream into points
// and groups them into full rotations.
//
// Frames are 47 bytes, little endian:
//
//	0x54 0x2C SPEED START [DIST INTENSITY]x12 END TIMESTAMP CRC
//
// SPEED is degrees per second, angles are hundredths of a degree and CRC is
// CRC8 (poly 0x4D) over the first 46 bytes.
package lidar

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/banshee-data/mausbridge/internal/crc8"
)

const (
	FrameHeader    = 0x54
	FrameVersion   = 0x2C
	FrameSize      = 47
	PointsPerFrame = 12

	// FullCircle is one rotation in hundredths of a degree.
	FullCircle = 36000

	// MaxRemainder bounds the bytes carried between Parse calls.
	MaxRemainder = 1024
)

var (
	ErrShortFrame = errors.New("lidar: short frame")
	ErrBadHeader  = errors.New("lidar: bad frame header")
	ErrBadCRC     = errors.New("lidar: frame crc mismatch")
)

// RawPoint is one measurement as carried on the wire.
type RawPoint struct {
	Distance  uint16 // millimetres
	Intensity uint8
}

// RawFrame is the decoded layout of one 47 byte frame.
type RawFrame struct {
	Speed           uint16 // degrees per second
	StartAngle      uint16 // 0.01 degrees
	Points          [PointsPerFrame]RawPoint
	EndAngle        uint16 // 0.01 degrees
	DeviceTimestamp uint16 // milliseconds, wraps at 30000
	CRC             uint8
}

// ParseFrame decodes the frame at the start of b after checking the header
// and CRC.
func ParseFrame(b []byte) (RawFrame, error) {
	var f RawFrame
	if len(b) < FrameSize {
		return f, ErrShortFrame
	}
	if b[0] != FrameHeader || b[1] != FrameVersion {
		return f, ErrBadHeader
	}
	if crc8.Checksum(b[:FrameSize-1], crc8.LD19Table) != b[FrameSize-1] {
		return f, ErrBadCRC
	}

	f.Speed = binary.LittleEndian.Uint16(b[2:])
	f.StartAngle = binary.LittleEndian.Uint16(b[4:])
	for i := range f.Points {
		off := 6 + i*3
		f.Points[i] = RawPoint{
			Distance:  binary.LittleEndian.Uint16(b[off:]),
			Intensity: b[off+2],
		}
	}
	f.EndAngle = binary.LittleEndian.Uint16(b[42:])
	f.DeviceTimestamp = binary.LittleEndian.Uint16(b[44:])
	f.CRC = b[46]
	return f, nil
}

// Append encodes f onto dst with a freshly computed CRC. f.CRC is ignored.
func (f *RawFrame) Append(dst []byte) []byte {
	start := len(dst)
	dst = append(dst, FrameHeader, FrameVersion)
	dst = binary.LittleEndian.AppendUint16(dst, f.Speed)
	dst = binary.LittleEndian.AppendUint16(dst, f.StartAngle)
	for _, p := range f.Points {
		dst = binary.LittleEndian.AppendUint16(dst, p.Distance)
		dst = append(dst, p.Intensity)
	}
	dst = binary.LittleEndian.AppendUint16(dst, f.EndAngle)
	dst = binary.LittleEndian.AppendUint16(dst, f.DeviceTimestamp)
	return append(dst, crc8.Checksum(dst[start:], crc8.LD19Table))
}

// AngleStep returns the spacing between consecutive points in hundredths of
// a degree. An end angle below the start angle means the frame crossed zero.
func (f *RawFrame) AngleStep() float64 {
	end := int(f.EndAngle)
	if end < int(f.StartAngle) {
		end += FullCircle
	}
	return float64(end-int(f.StartAngle)) / float64(PointsPerFrame-1)
}

// AppendPoints expands the frame into twelve points and appends them to dst.
// arrival is when the frame was read; it is taken as the time of the last
// point and earlier points are placed back along the rotation.
func (f *RawFrame) AppendPoints(dst []Point, arrival time.Time) []Point {
	step := f.AngleStep()
	ts := arrival.UnixNano()
	for i, raw := range f.Points {
		angle := (int(f.StartAngle) + int(math.Round(step*float64(i)))) % FullCircle

		var offset int64
		if f.Speed > 0 {
			secs := (step * float64(PointsPerFrame-1-i) / 100) / float64(f.Speed)
			offset = int64(secs * float64(time.Second))
		}

		dst = append(dst, Point{
			Distance:  raw.Distance,
			Intensity: raw.Intensity,
			Angle:     uint16(angle),
			Timestamp: ts - offset,
		})
	}
	return dst
}
