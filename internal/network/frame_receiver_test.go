package network

import (
	"net"
	"testing"
	"time"

	"padkeys/internal/protocol"
	"padkeys/internal/touch"
)

func TestSeqDedup(t *testing.T) {
	d := newSeqDedup()

	if d.isDuplicate(1) {
		t.Error("first occurrence flagged as duplicate")
	}
	if !d.isDuplicate(1) {
		t.Error("second occurrence not flagged")
	}
	for seq := uint32(2); seq < 600; seq++ {
		if d.isDuplicate(seq) {
			t.Fatalf("fresh seq %d flagged as duplicate", seq)
		}
	}
	// Seq 1 has been evicted from the ring by now.
	if d.isDuplicate(1) {
		t.Error("evicted seq still flagged as duplicate")
	}
}

type receiverHarness struct {
	r      *FrameReceiver
	client *net.UDPConn
	frames chan touch.Frame
	status chan bool
}

func newReceiverHarness(t *testing.T) *receiverHarness {
	t.Helper()
	h := &receiverHarness{
		r:      NewFrameReceiver(0), // ephemeral port
		frames: make(chan touch.Frame, 16),
		status: make(chan bool, 16),
	}
	h.r.OnFrame = func(f touch.Frame) { h.frames <- f }
	h.r.OnDeviceStatus = func(side touch.Side, connected bool) { h.status <- connected }

	if err := h.r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(h.r.Stop)

	addr := h.r.conn.LocalAddr().(*net.UDPAddr)
	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: addr.Port})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	h.client = client
	return h
}

func (h *receiverHarness) send(t *testing.T, pkt *protocol.FramePacket) {
	t.Helper()
	data, err := protocol.EncodeFramePacket(pkt)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := h.client.Write(data); err != nil {
		t.Fatalf("send failed: %v", err)
	}
}

func (h *receiverHarness) expectFrame(t *testing.T) touch.Frame {
	t.Helper()
	select {
	case f := <-h.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return touch.Frame{}
	}
}

func (h *receiverHarness) expectNoFrame(t *testing.T) {
	t.Helper()
	select {
	case f := <-h.frames:
		t.Fatalf("unexpected frame delivered: %+v", f)
	case <-time.After(150 * time.Millisecond):
	}
}

func touchPacket(side touch.Side, seq uint32, ts int64) *protocol.FramePacket {
	return &protocol.FramePacket{
		Type:      protocol.PacketTouchFrame,
		Side:      side,
		Seq:       seq,
		Timestamp: ts,
		Contacts:  []touch.Sample{{ID: 1, Pos: touch.Point{X: 0.5, Y: 0.5}}},
	}
}

func TestRegisterGetsAck(t *testing.T) {
	h := newReceiverHarness(t)

	h.send(t, &protocol.FramePacket{Type: protocol.PacketRegister, Side: touch.SideLeft})

	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := h.client.Read(buf)
	if err != nil {
		t.Fatalf("no ack received: %v", err)
	}
	pkt, err := protocol.DecodeFramePacket(buf[:n])
	if err != nil {
		t.Fatalf("ack decode failed: %v", err)
	}
	if pkt.Type != protocol.PacketAck {
		t.Errorf("reply type = 0x%02X, want ack", pkt.Type)
	}
}

func TestFrameDeliveryAndConnectNotification(t *testing.T) {
	h := newReceiverHarness(t)

	h.send(t, touchPacket(touch.SideLeft, 1, 1000))

	f := h.expectFrame(t)
	if f.Side != touch.SideLeft || f.Timestamp != 1000 {
		t.Errorf("delivered frame = %+v", f)
	}

	select {
	case connected := <-h.status:
		if !connected {
			t.Error("first frame should report connected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no device status notification")
	}
}

func TestDuplicateSeqDropped(t *testing.T) {
	h := newReceiverHarness(t)

	h.send(t, touchPacket(touch.SideLeft, 1, 1000))
	h.expectFrame(t)

	// Same seq again, even with a newer timestamp: dropped.
	h.send(t, touchPacket(touch.SideLeft, 1, 2000))
	h.expectNoFrame(t)
}

func TestStaleTimestampDropped(t *testing.T) {
	h := newReceiverHarness(t)

	h.send(t, touchPacket(touch.SideLeft, 1, 1000))
	h.expectFrame(t)

	// Fresh seq but an older timestamp: reordered, dropped.
	h.send(t, touchPacket(touch.SideLeft, 2, 900))
	h.expectNoFrame(t)

	// The other side has its own timestamp sequence.
	h.send(t, touchPacket(touch.SideRight, 3, 900))
	f := h.expectFrame(t)
	if f.Side != touch.SideRight {
		t.Errorf("frame side = %v, want right", f.Side)
	}
}

func TestDeviceStatusPacket(t *testing.T) {
	h := newReceiverHarness(t)

	h.send(t, &protocol.FramePacket{Type: protocol.PacketDeviceStatus, Side: touch.SideRight, Connected: true})
	select {
	case connected := <-h.status:
		if !connected {
			t.Error("expected connected notification")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status notification")
	}

	h.send(t, &protocol.FramePacket{Type: protocol.PacketDeviceStatus, Side: touch.SideRight, Connected: false})
	select {
	case connected := <-h.status:
		if connected {
			t.Error("expected disconnect notification")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status notification")
	}
}

func TestMailboxCoalescesToNewest(t *testing.T) {
	// No Start: no deliver loops draining, so offers contend for the one
	// mailbox slot and older undelivered frames must be displaced.
	r := NewFrameReceiver(0)

	r.offer(touch.SideLeft, touch.Frame{Side: touch.SideLeft, Timestamp: 1})
	r.offer(touch.SideLeft, touch.Frame{Side: touch.SideLeft, Timestamp: 2})
	r.offer(touch.SideLeft, touch.Frame{Side: touch.SideLeft, Timestamp: 3})

	select {
	case f := <-r.mailboxes[touch.SideLeft]:
		if f.Timestamp != 3 {
			t.Errorf("delivered ts = %d, want newest (3)", f.Timestamp)
		}
	default:
		t.Fatal("mailbox empty after offers")
	}
	select {
	case f := <-r.mailboxes[touch.SideLeft]:
		t.Errorf("mailbox held more than one frame: ts %d", f.Timestamp)
	default:
	}
}
