package esc

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecode(t *testing.T) {
	tel, ok := Decode(mustHex(t, "2304ec020b009600faea"))
	require.True(t, ok)
	assert.Equal(t, uint8(35), tel.Temperature)
	assert.Equal(t, uint16(1260), tel.Voltage)
	assert.Equal(t, uint16(523), tel.Current)
	assert.Equal(t, uint16(150), tel.Consumption)
	assert.Equal(t, uint16(250), tel.ERPM)

	assert.InDelta(t, 12.6, tel.Volts(), 1e-9)
	assert.InDelta(t, 5.23, tel.Amps(), 1e-9)
	assert.Equal(t, 25000, tel.ElectricalRPM())
}

func TestDecode_Short(t *testing.T) {
	_, ok := Decode(make([]byte, FrameSize-1))
	assert.False(t, ok)
	assert.False(t, Valid(make([]byte, 3)))
}

func TestAppendAndValid(t *testing.T) {
	tel := Telemetry{Temperature: 35, Voltage: 1260, Current: 523, Consumption: 150, ERPM: 250}
	b := tel.Append(nil)
	assert.Equal(t, mustHex(t, "2304ec020b009600faea"), b)
	assert.True(t, Valid(b))

	b[4] ^= 0x01
	assert.False(t, Valid(b))
}
