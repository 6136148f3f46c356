package board

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imuPacket(words map[int]int16) []byte {
	b := make([]byte, IMUDumpSize)
	for off, v := range words {
		binary.BigEndian.PutUint16(b[off:], uint16(v))
	}
	return b
}

func TestDecodeIMU(t *testing.T) {
	s, ok := DecodeIMU(imuPacket(map[int]int16{
		0:  16384,
		16: -200,
		24: 150,
		36: 8192,
	}))
	require.True(t, ok)
	assert.Equal(t, 1.0, s.QW)
	assert.Zero(t, s.QZ)
	assert.Equal(t, -200.0, s.GyroX)
	assert.Equal(t, 150.0, s.GyroZ)
	assert.Equal(t, 8192.0, s.AccelZ)
	assert.Zero(t, s.YawRadians())
}

func TestDecodeIMU_Short(t *testing.T) {
	s, ok := DecodeIMU(make([]byte, IMUDumpSize-1))
	assert.False(t, ok)
	assert.Equal(t, IMUSample{}, s)
}

func TestIMUSample_YawRadians(t *testing.T) {
	tests := []struct {
		name string
		yaw  float64
	}{
		{"quarter turn left", math.Pi / 2},
		{"quarter turn right", -math.Pi / 2},
		{"half turn", math.Pi * 0.999},
		{"small", 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := int16(math.Round(math.Cos(tt.yaw/2) * quatScale))
			z := int16(math.Round(math.Sin(tt.yaw/2) * quatScale))
			s, ok := DecodeIMU(imuPacket(map[int]int16{0: w, 12: z}))
			require.True(t, ok)
			assert.InDelta(t, tt.yaw, s.YawRadians(), 1e-3)
		})
	}
}
