// Package esc reads KISS ESC telemetry. Frames are ten bytes with no start
// marker: nine data bytes and a CRC8 (poly 0x07). Multi-byte fields are big
// endian.
package esc

import (
	"encoding/binary"
	"time"

	"github.com/banshee-data/mausbridge/internal/crc8"
)

// FrameSize is the length of one telemetry frame including its CRC.
const FrameSize = 10

// Telemetry is one decoded frame.
type Telemetry struct {
	Time        time.Time
	Temperature uint8  // degrees C
	Voltage     uint16 // 0.01 V
	Current     uint16 // 0.01 A
	Consumption uint16 // mAh
	ERPM        uint16 // electrical RPM / 100
}

func (t Telemetry) Volts() float64 { return float64(t.Voltage) / 100 }

func (t Telemetry) Amps() float64 { return float64(t.Current) / 100 }

// ElectricalRPM returns the unscaled electrical RPM.
func (t Telemetry) ElectricalRPM() int { return int(t.ERPM) * 100 }

// Decode reads the data fields of a frame. It does not check the CRC and
// reports false if b is shorter than a frame.
func Decode(b []byte) (Telemetry, bool) {
	if len(b) < FrameSize {
		return Telemetry{}, false
	}
	return Telemetry{
		Temperature: b[0],
		Voltage:     binary.BigEndian.Uint16(b[1:]),
		Current:     binary.BigEndian.Uint16(b[3:]),
		Consumption: binary.BigEndian.Uint16(b[5:]),
		ERPM:        binary.BigEndian.Uint16(b[7:]),
	}, true
}

// Valid reports whether b holds a frame whose CRC matches.
func Valid(b []byte) bool {
	if len(b) < FrameSize {
		return false
	}
	return crc8.Checksum(b[:FrameSize-1], crc8.KISSTable) == b[FrameSize-1]
}

// Append encodes t onto dst with its CRC.
func (t Telemetry) Append(dst []byte) []byte {
	start := len(dst)
	dst = append(dst, t.Temperature)
	dst = binary.BigEndian.AppendUint16(dst, t.Voltage)
	dst = binary.BigEndian.AppendUint16(dst, t.Current)
	dst = binary.BigEndian.AppendUint16(dst, t.Consumption)
	dst = binary.BigEndian.AppendUint16(dst, t.ERPM)
	return append(dst, crc8.Checksum(dst[start:], crc8.KISSTable))
}

// Handler receives decoded telemetry on the reader goroutine.
type Handler interface {
	HandleTelemetry(t Telemetry)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(t Telemetry)

func (f HandlerFunc) HandleTelemetry(t Telemetry) { f(t) }
