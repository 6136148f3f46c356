package lidar

import (
	"github.com/banshee-data/mausbridge/internal/crc8"
	"github.com/banshee-data/mausbridge/internal/monitoring"
	"github.com/banshee-data/mausbridge/internal/timeutil"
)

// Decoder turns raw LD19 bytes into scans. Bytes after the last decoded
// frame are carried into the next Parse call, bounded by MaxRemainder.
//
// A Decoder is owned by a single reader goroutine. Stats may be read from
// anywhere.
type Decoder struct {
	clock   timeutil.Clock
	builder *ScanBuilder

	remainder []byte
	scratch   []byte
	points    []Point

	Stats *Stats
}

// NewDecoder returns a decoder that delivers scans to h.
func NewDecoder(h ScanHandler, clock timeutil.Clock) *Decoder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Decoder{
		clock:     clock,
		builder:   NewScanBuilder(h, DefaultMaxPoints),
		remainder: make([]byte, 0, MaxRemainder),
		points:    make([]Point, 0, PointsPerFrame),
		Stats:     NewStats(clock),
	}
}

// Builder exposes the scan accumulator.
func (d *Decoder) Builder() *ScanBuilder { return d.builder }

// Remainder returns the number of bytes carried into the next call.
func (d *Decoder) Remainder() int { return len(d.remainder) }

// Parse decodes every complete frame in remainder+chunk, then delivers any
// finished scans.
func (d *Decoder) Parse(chunk []byte) {
	d.Stats.Bytes.Add(uint64(len(chunk)))

	buf := append(d.scratch[:0], d.remainder...)
	buf = append(buf, chunk...)
	d.scratch = buf
	// frames ending past this index completed during this call
	fresh := len(buf) - len(chunk)

	pos, consumed := 0, 0
	for pos+FrameSize <= len(buf) {
		if buf[pos] != FrameHeader || buf[pos+1] != FrameVersion {
			pos++
			continue
		}

		frame, err := ParseFrame(buf[pos : pos+FrameSize])
		if err != nil {
			if pos+FrameSize > fresh {
				d.Stats.CRCErrors.Add(1)
				monitoring.Debugf("lidar: crc mismatch at offset %d: got %#02x want %#02x",
					pos, crc8.Checksum(buf[pos:pos+FrameSize-1], crc8.LD19Table), buf[pos+FrameSize-1])
			}
			pos++
			continue
		}

		if skipped := pos - consumed; skipped > 0 {
			d.Stats.SkippedBytes.Add(uint64(skipped))
			monitoring.Debugf("lidar: skipped %d bytes before frame", skipped)
		}

		d.points = frame.AppendPoints(d.points[:0], d.clock.Now())
		d.builder.Add(d.points...)
		d.Stats.Frames.Add(1)
		d.Stats.Points.Add(PointsPerFrame)

		pos += FrameSize
		consumed = pos
	}

	rest := buf[consumed:]
	if over := len(rest) - MaxRemainder; over > 0 {
		d.Stats.DroppedBytes.Add(uint64(over))
		monitoring.Logf("lidar: remainder full, dropped %d bytes", over)
		rest = rest[over:]
	}
	d.remainder = append(d.remainder[:0], rest...)

	scans, dropped := d.builder.Flush()
	d.Stats.Scans.Add(uint64(scans))
	if dropped > 0 {
		d.Stats.DroppedPoints.Add(uint64(dropped))
		monitoring.Logf("lidar: no rotation boundary, dropped %d points", dropped)
	}
}

// Reset clears carried bytes and accumulated points.
func (d *Decoder) Reset() {
	d.remainder = d.remainder[:0]
	d.builder.Reset()
}
