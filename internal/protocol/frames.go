package protocol

import (
	"encoding/binary"
	"errors"
	"math"

	"padkeys/internal/touch"
)

// Frame packet types.
const (
	PacketTouchFrame   uint8 = 0x01
	PacketDeviceStatus uint8 = 0x02
	PacketRegister     uint8 = 0x10
	PacketHeartbeat    uint8 = 0x11
	PacketAck          uint8 = 0x12 // engine -> bridge: confirms the UDP path is open
)

// Header: [type(1)] [side(1)] [seq(4)] [timestamp(8)] = 14 bytes
const FrameHeaderSize = 14

// MaxContacts bounds the per-frame contact count on the wire.
const MaxContacts = 16

const contactSize = 16 // id(4) + x(4) + y(4) + pressure(4)

// FramePacket is a binary-encoded message from the device bridge.
//
// Wire format per type:
//
//	TouchFrame   (0x01): header + count(1) + count*(id(4) x(f32) y(f32) p(f32))
//	DeviceStatus (0x02): header + connected(1)
//	Register     (0x10): header only
//	Heartbeat    (0x11): header only
//	Ack          (0x12): header only
type FramePacket struct {
	Type      uint8
	Side      touch.Side
	Seq       uint32
	Timestamp int64
	Contacts  []touch.Sample // touch frame
	Connected bool           // device status
}

// EncodeFramePacket serializes pkt to wire format.
func EncodeFramePacket(pkt *FramePacket) ([]byte, error) {
	size := FrameHeaderSize
	switch pkt.Type {
	case PacketTouchFrame:
		if len(pkt.Contacts) > MaxContacts {
			return nil, errors.New("frames: too many contacts")
		}
		size += 1 + len(pkt.Contacts)*contactSize
	case PacketDeviceStatus:
		size += 1
	}

	buf := make([]byte, size)
	buf[0] = pkt.Type
	buf[1] = uint8(pkt.Side)
	binary.BigEndian.PutUint32(buf[2:6], pkt.Seq)
	binary.BigEndian.PutUint64(buf[6:14], uint64(pkt.Timestamp))

	payload := buf[FrameHeaderSize:]
	switch pkt.Type {
	case PacketTouchFrame:
		payload[0] = uint8(len(pkt.Contacts))
		off := 1
		for _, c := range pkt.Contacts {
			binary.BigEndian.PutUint32(payload[off:off+4], c.ID)
			binary.BigEndian.PutUint32(payload[off+4:off+8], math.Float32bits(float32(c.Pos.X)))
			binary.BigEndian.PutUint32(payload[off+8:off+12], math.Float32bits(float32(c.Pos.Y)))
			binary.BigEndian.PutUint32(payload[off+12:off+16], math.Float32bits(float32(c.Pressure)))
			off += contactSize
		}
	case PacketDeviceStatus:
		if pkt.Connected {
			payload[0] = 1
		}
	}

	return buf, nil
}

// DecodeFramePacket deserializes wire bytes into a FramePacket.
func DecodeFramePacket(data []byte) (*FramePacket, error) {
	if len(data) < FrameHeaderSize {
		return nil, errors.New("frames: packet too short")
	}

	pkt := &FramePacket{
		Type:      data[0],
		Side:      touch.Side(data[1]),
		Seq:       binary.BigEndian.Uint32(data[2:6]),
		Timestamp: int64(binary.BigEndian.Uint64(data[6:14])),
	}
	if !pkt.Side.Valid() {
		return nil, errors.New("frames: invalid side")
	}

	payload := data[FrameHeaderSize:]
	switch pkt.Type {
	case PacketTouchFrame:
		if len(payload) < 1 {
			return nil, errors.New("frames: touch frame payload too short")
		}
		count := int(payload[0])
		if count > MaxContacts {
			return nil, errors.New("frames: too many contacts")
		}
		if len(payload) < 1+count*contactSize {
			return nil, errors.New("frames: touch frame payload too short")
		}
		pkt.Contacts = make([]touch.Sample, count)
		off := 1
		for i := 0; i < count; i++ {
			pkt.Contacts[i] = touch.Sample{
				ID: binary.BigEndian.Uint32(payload[off : off+4]),
				Pos: touch.Point{
					X: float64(math.Float32frombits(binary.BigEndian.Uint32(payload[off+4 : off+8]))),
					Y: float64(math.Float32frombits(binary.BigEndian.Uint32(payload[off+8 : off+12]))),
				},
				Pressure: float64(math.Float32frombits(binary.BigEndian.Uint32(payload[off+12 : off+16]))),
			}
			off += contactSize
		}
	case PacketDeviceStatus:
		if len(payload) < 1 {
			return nil, errors.New("frames: device status payload too short")
		}
		pkt.Connected = payload[0] == 1
	case PacketRegister, PacketHeartbeat, PacketAck:
		// no payload
	default:
		return nil, errors.New("frames: unknown packet type")
	}

	return pkt, nil
}

// Frame converts a decoded touch-frame packet to the engine's frame type.
func (pkt *FramePacket) Frame() touch.Frame {
	return touch.Frame{
		Side:      pkt.Side,
		Seq:       pkt.Seq,
		Timestamp: pkt.Timestamp,
		Contacts:  pkt.Contacts,
	}
}
