// Package link implements the magic-delimited packet protocol spoken by the
// maus board:
//
//	0x12 0x34 SEQ LEN CRC PAYLOAD[LEN]
//
// CRC is CRC8 (poly 0x31) over the payload only. SEQ wraps at 256 and is
// diagnostic only. There is no acknowledgement or retransmission.
package link

import "errors"

const (
	// HeaderSize is magic(2) + seq + len + crc.
	HeaderSize = 5
	// MaxPayload is the largest payload a single length byte can describe.
	MaxPayload = 255
	// BufferSize holds exactly one maximum size frame.
	BufferSize = HeaderSize + MaxPayload
)

var (
	// Magic starts every packet.
	Magic = [2]byte{0x12, 0x34}
	// AckMagic starts the reserved acknowledgement frame
	// (0x56 0x78 SEQ CRC8(magic+seq)). Acks are counted, never handled.
	AckMagic = [2]byte{0x56, 0x78}
)

// ErrPayloadTooLarge is returned when a payload does not fit in one frame.
var ErrPayloadTooLarge = errors.New("payload exceeds 255 bytes")

// Packet is a parsed view of one frame. Payload aliases scanner memory and
// is only valid for the duration of the handler call.
type Packet struct {
	Seq     uint8
	CRC     uint8
	Payload []byte
}

// Len returns the payload length as carried in the header.
func (p *Packet) Len() int { return len(p.Payload) }

// Handler receives every packet whose CRC checks out.
type Handler interface {
	HandlePacket(p *Packet)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(p *Packet)

func (f HandlerFunc) HandlePacket(p *Packet) { f(p) }
