package link

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mausbridge/internal/crc8"
)

type writeRecorder struct {
	writes [][]byte
	err    error
}

func (w *writeRecorder) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func TestAppendFrame(t *testing.T) {
	payload := []byte{0x02, 0xdc, 0x05, 0xdc, 0x05}
	got, err := AppendFrame(nil, 7, payload)
	require.NoError(t, err)

	want := append([]byte{0x12, 0x34, 7, 5, crc8.Checksum(payload, crc8.MausTable)}, payload...)
	assert.Equal(t, want, got)
}

func TestAppendFrame_Empty(t *testing.T) {
	got, err := AppendFrame(nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34, 0, 0, 0}, got)
}

func TestAppendFrame_TooLarge(t *testing.T) {
	_, err := AppendFrame(nil, 0, make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestSender_SingleWritePerFrame(t *testing.T) {
	w := &writeRecorder{}
	s := NewSender(w)
	require.NoError(t, s.Send([]byte("hello")))
	require.NoError(t, s.Send([]byte("world")))

	require.Len(t, w.writes, 2)
	assert.Equal(t, byte(0), w.writes[0][2])
	assert.Equal(t, byte(1), w.writes[1][2])
	assert.Equal(t, uint64(2), s.Sent.Load())
}

func TestSender_SeqWraps(t *testing.T) {
	w := &writeRecorder{}
	s := NewSender(w)
	for i := 0; i < 257; i++ {
		require.NoError(t, s.Send([]byte{byte(i)}))
	}
	assert.Equal(t, byte(255), w.writes[255][2])
	assert.Equal(t, byte(0), w.writes[256][2])
	assert.Equal(t, uint8(1), s.NextSeq())
}

func TestSender_Errors(t *testing.T) {
	w := &writeRecorder{err: errors.New("port gone")}
	s := NewSender(w)
	assert.EqualError(t, s.Send([]byte{1}), "port gone")
	assert.Equal(t, uint64(1), s.Failed.Load())

	assert.ErrorIs(t, s.Send(make([]byte, 300)), ErrPayloadTooLarge)
	assert.Equal(t, uint8(1), s.NextSeq(), "oversize payloads do not consume a sequence id")
}

func TestSender_ScannerRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	s := NewSender(&wire)
	for _, p := range [][]byte{{1}, {2, 3}, bytes.Repeat([]byte{0x34}, 40)} {
		require.NoError(t, s.Send(p))
	}

	rec := &recorder{}
	NewScanner(rec).Parse(wire.Bytes())
	require.Len(t, rec.packets, 3)
	assert.Equal(t, []byte{2, 3}, rec.packets[1].Payload)
	assert.Equal(t, uint8(2), rec.packets[2].Seq)
}
