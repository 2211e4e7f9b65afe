package protocol

import (
	"math"
	"testing"

	"padkeys/internal/touch"
)

func TestTouchFrameRoundTrip(t *testing.T) {
	pkt := &FramePacket{
		Type:      PacketTouchFrame,
		Side:      touch.SideRight,
		Seq:       4242,
		Timestamp: 1724900000123,
		Contacts: []touch.Sample{
			{ID: 7, Pos: touch.Point{X: 0.25, Y: 0.75}, Pressure: 0.5},
			{ID: 8, Pos: touch.Point{X: 1.0, Y: 0.0}, Pressure: 1.0},
		},
	}

	data, err := EncodeFramePacket(pkt)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != FrameHeaderSize+1+2*16 {
		t.Errorf("encoded length = %d, want %d", len(data), FrameHeaderSize+1+2*16)
	}

	got, err := DecodeFramePacket(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Type != PacketTouchFrame || got.Side != touch.SideRight {
		t.Errorf("header mismatch: %+v", got)
	}
	if got.Seq != 4242 || got.Timestamp != 1724900000123 {
		t.Errorf("seq/ts mismatch: seq=%d ts=%d", got.Seq, got.Timestamp)
	}
	if len(got.Contacts) != 2 {
		t.Fatalf("contact count = %d, want 2", len(got.Contacts))
	}
	for i, want := range pkt.Contacts {
		c := got.Contacts[i]
		if c.ID != want.ID {
			t.Errorf("contact %d ID = %d, want %d", i, c.ID, want.ID)
		}
		if math.Abs(c.Pos.X-want.Pos.X) > 1e-6 || math.Abs(c.Pos.Y-want.Pos.Y) > 1e-6 {
			t.Errorf("contact %d pos = %+v, want %+v", i, c.Pos, want.Pos)
		}
	}

	f := got.Frame()
	if f.Side != touch.SideRight || f.Seq != 4242 || len(f.Contacts) != 2 {
		t.Errorf("Frame() conversion mismatch: %+v", f)
	}
}

func TestDeviceStatusRoundTrip(t *testing.T) {
	for _, connected := range []bool{true, false} {
		pkt := &FramePacket{Type: PacketDeviceStatus, Side: touch.SideLeft, Connected: connected}
		data, err := EncodeFramePacket(pkt)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		got, err := DecodeFramePacket(data)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if got.Connected != connected {
			t.Errorf("connected = %v, want %v", got.Connected, connected)
		}
	}
}

func TestHeaderOnlyPackets(t *testing.T) {
	for _, typ := range []uint8{PacketRegister, PacketHeartbeat, PacketAck} {
		data, err := EncodeFramePacket(&FramePacket{Type: typ, Side: touch.SideLeft})
		if err != nil {
			t.Fatalf("encode type 0x%02X failed: %v", typ, err)
		}
		if len(data) != FrameHeaderSize {
			t.Errorf("type 0x%02X length = %d, want header only", typ, len(data))
		}
		if _, err := DecodeFramePacket(data); err != nil {
			t.Errorf("decode type 0x%02X failed: %v", typ, err)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	// Truncated header.
	if _, err := DecodeFramePacket(make([]byte, FrameHeaderSize-1)); err == nil {
		t.Error("expected error for short packet")
	}

	// Invalid side byte.
	data, _ := EncodeFramePacket(&FramePacket{Type: PacketHeartbeat, Side: touch.SideLeft})
	data[1] = 9
	if _, err := DecodeFramePacket(data); err == nil {
		t.Error("expected error for invalid side")
	}

	// Unknown type.
	data, _ = EncodeFramePacket(&FramePacket{Type: PacketHeartbeat, Side: touch.SideLeft})
	data[0] = 0xFF
	if _, err := DecodeFramePacket(data); err == nil {
		t.Error("expected error for unknown type")
	}

	// Touch frame whose declared count exceeds the payload.
	full, _ := EncodeFramePacket(&FramePacket{
		Type: PacketTouchFrame,
		Side: touch.SideLeft,
		Contacts: []touch.Sample{
			{ID: 1, Pos: touch.Point{X: 0.1, Y: 0.2}},
		},
	})
	truncated := full[:len(full)-4]
	if _, err := DecodeFramePacket(truncated); err == nil {
		t.Error("expected error for truncated contacts")
	}
}

func TestEncodeRejectsTooManyContacts(t *testing.T) {
	pkt := &FramePacket{
		Type:     PacketTouchFrame,
		Side:     touch.SideLeft,
		Contacts: make([]touch.Sample, MaxContacts+1),
	}
	if _, err := EncodeFramePacket(pkt); err == nil {
		t.Error("expected error for contact overflow")
	}
}
