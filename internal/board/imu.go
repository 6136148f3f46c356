package board

import (
	"encoding/binary"
	"math"
	"time"
)

// IMUDumpSize is the minimum FIFO packet length carried by an IMU dump.
const IMUDumpSize = 42

// quaternion fixed point scale (Q14)
const quatScale = 16384.0

// IMUSample is one FIFO packet from the board's IMU. Gyro and accel values
// are raw sensor counts; accel is 8192 counts per g.
type IMUSample struct {
	Time time.Time

	QW, QX, QY, QZ         float64
	GyroX, GyroY, GyroZ    float64
	AccelX, AccelY, AccelZ float64
}

// DecodeIMU parses a FIFO packet. Words are big endian signed 16 bit values
// at four byte strides. A short packet yields a zero sample and false.
func DecodeIMU(b []byte) (IMUSample, bool) {
	if len(b) < IMUDumpSize {
		return IMUSample{}, false
	}
	word := func(off int) float64 {
		return float64(int16(binary.BigEndian.Uint16(b[off:])))
	}
	return IMUSample{
		QW:     word(0) / quatScale,
		QX:     word(4) / quatScale,
		QY:     word(8) / quatScale,
		QZ:     word(12) / quatScale,
		GyroX:  word(16),
		GyroY:  word(20),
		GyroZ:  word(24),
		AccelX: word(28),
		AccelY: word(32),
		AccelZ: word(36),
	}, true
}

// YawRadians returns the heading encoded by the quaternion.
func (s IMUSample) YawRadians() float64 {
	sinyCosp := 2 * (s.QW*s.QZ + s.QX*s.QY)
	cosyCosp := 1 - 2*(s.QY*s.QY+s.QZ*s.QZ)
	return math.Atan2(sinyCosp, cosyCosp)
}
