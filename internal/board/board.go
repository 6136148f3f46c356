// Package board speaks the maus board command set over the link protocol.
// The first payload byte of every packet is a command id.
package board

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/banshee-data/mausbridge/internal/esc"
	"github.com/banshee-data/mausbridge/internal/link"
	"github.com/banshee-data/mausbridge/internal/monitoring"
	"github.com/banshee-data/mausbridge/internal/timeutil"
)

// Command ids.
const (
	CmdSetRGB       byte = 0x01
	CmdSetServos    byte = 0x02
	CmdIMUDump      byte = 0x03
	CmdEncoderDump  byte = 0x04 // reserved, the firmware never sends it
	CmdESCTelemetry byte = 0x05
	CmdEchoResponse byte = 0xFE
	CmdEchoRequest  byte = 0xFF
)

const (
	maxRGBColors = (link.MaxPayload - 1) / 4
	maxEchoData  = link.MaxPayload - 1
)

var ErrTooManyColors = errors.New("board: too many RGB colors")

// IMUHandler receives IMU samples on the reader goroutine.
type IMUHandler interface {
	HandleIMU(s IMUSample)
}

// IMUHandlerFunc adapts a function to IMUHandler.
type IMUHandlerFunc func(s IMUSample)

func (f IMUHandlerFunc) HandleIMU(s IMUSample) { f(s) }

// EchoHandler receives echo responses. data is only valid during the call.
type EchoHandler interface {
	HandleEcho(data []byte)
}

// EchoHandlerFunc adapts a function to EchoHandler.
type EchoHandlerFunc func(data []byte)

func (f EchoHandlerFunc) HandleEcho(data []byte) { f(data) }

// Stats may be read from any goroutine.
type Stats struct {
	Packets       atomic.Uint64
	IMUSamples    atomic.Uint64
	ESCFrames     atomic.Uint64
	EchoRequests  atomic.Uint64
	EchoResponses atomic.Uint64
	ShortPayloads atomic.Uint64
	Ignored       atomic.Uint64
	SendErrors    atomic.Uint64
}

// Board dispatches packets from the board and sends commands to it. Any
// handler may be nil.
type Board struct {
	sender *link.Sender
	clock  timeutil.Clock

	IMUHandler  IMUHandler
	ESCHandler  esc.Handler
	EchoHandler EchoHandler

	Stats Stats
}

// New returns a Board that writes framed commands to w.
func New(w io.Writer, clock timeutil.Clock) *Board {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Board{sender: link.NewSender(w), clock: clock}
}

// Sender exposes the underlying link sender.
func (b *Board) Sender() *link.Sender { return b.sender }

// HandlePacket implements link.Handler.
func (b *Board) HandlePacket(p *link.Packet) {
	b.Stats.Packets.Add(1)
	if len(p.Payload) == 0 {
		b.Stats.Ignored.Add(1)
		return
	}
	cmd, data := p.Payload[0], p.Payload[1:]

	switch cmd {
	case CmdEchoRequest:
		b.Stats.EchoRequests.Add(1)
		reply := make([]byte, 0, len(p.Payload))
		reply = append(reply, CmdEchoResponse)
		reply = append(reply, data...)
		if err := b.send(reply); err != nil {
			monitoring.Logf("board: echo reply failed: %v", err)
		}

	case CmdEchoResponse:
		b.Stats.EchoResponses.Add(1)
		if b.EchoHandler != nil {
			b.EchoHandler.HandleEcho(data)
		}

	case CmdIMUDump:
		sample, ok := DecodeIMU(data)
		if !ok {
			b.Stats.ShortPayloads.Add(1)
			monitoring.Debugf("board: short imu dump (%d bytes)", len(data))
			return
		}
		sample.Time = b.clock.Now()
		b.Stats.IMUSamples.Add(1)
		if b.IMUHandler != nil {
			b.IMUHandler.HandleIMU(sample)
		}

	case CmdESCTelemetry:
		t, ok := esc.Decode(data)
		if !ok {
			b.Stats.ShortPayloads.Add(1)
			monitoring.Debugf("board: short esc dump (%d bytes)", len(data))
			return
		}
		t.Time = b.clock.Now()
		b.Stats.ESCFrames.Add(1)
		if b.ESCHandler != nil {
			b.ESCHandler.HandleTelemetry(t)
		}

	default:
		b.Stats.Ignored.Add(1)
		monitoring.Debugf("board: ignoring command %#02x seq=%d len=%d", cmd, p.Seq, len(p.Payload))
	}
}

// SetServos sets the steering and throttle pulse widths.
func (b *Board) SetServos(steering, throttle uint16) error {
	payload := make([]byte, 1, 5)
	payload[0] = CmdSetServos
	payload = binary.LittleEndian.AppendUint16(payload, steering)
	payload = binary.LittleEndian.AppendUint16(payload, throttle)
	return b.send(payload)
}

// SetRGB sets the LED colors, one little endian word per LED.
func (b *Board) SetRGB(colors []uint32) error {
	if len(colors) > maxRGBColors {
		return fmt.Errorf("%w: %d > %d", ErrTooManyColors, len(colors), maxRGBColors)
	}
	payload := make([]byte, 1, 1+4*len(colors))
	payload[0] = CmdSetRGB
	for _, c := range colors {
		payload = binary.LittleEndian.AppendUint32(payload, c)
	}
	return b.send(payload)
}

// Echo asks the board to send data back in an echo response.
func (b *Board) Echo(data []byte) error {
	if len(data) > maxEchoData {
		return link.ErrPayloadTooLarge
	}
	return b.send(append([]byte{CmdEchoRequest}, data...))
}

// Send transmits a raw payload whose first byte is the command id.
func (b *Board) Send(payload []byte) error {
	return b.send(payload)
}

func (b *Board) send(payload []byte) error {
	if err := b.sender.Send(payload); err != nil {
		b.Stats.SendErrors.Add(1)
		return err
	}
	return nil
}
