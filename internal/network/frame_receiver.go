// Package network receives touch-frame streams from the device bridge over
// UDP with register/heartbeat liveness and per-side coalescing backpressure.
package network

import (
	"log"
	"net"
	"sync"
	"time"

	"padkeys/internal/protocol"
	"padkeys/internal/touch"
)

// bridgeTimeout is how long without a heartbeat before the bridge (and both
// devices with it) is considered gone.
const bridgeTimeout = 15 * time.Second

// FrameReceiver listens for binary touch-frame packets from the device
// bridge. Frames are delivered per side in strictly increasing timestamp
// order; when a consumer falls behind, older undelivered frames for a side
// are coalesced away and only the newest is retained, since classification
// timing comes from the timestamps carried in frames, not arrival order.
type FrameReceiver struct {
	port int
	conn *net.UDPConn
	done chan struct{}

	// OnFrame receives in-order frames, one goroutine per side.
	OnFrame func(touch.Frame)

	// OnDeviceStatus receives per-side connect/disconnect notifications,
	// both explicit ones from the bridge and inferred heartbeat losses.
	OnDeviceStatus func(side touch.Side, connected bool)

	mailboxes [touch.NumSides]chan touch.Frame
	lastTS    [touch.NumSides]int64

	dedup seqDedup

	bridgeMu   sync.Mutex
	bridgeAddr *net.UDPAddr
	lastSeen   time.Time
	connected  [touch.NumSides]bool
}

// seqDedup tracks recently seen sequence numbers to discard redundant
// packets. Fixed-size ring, no allocation after construction.
type seqDedup struct {
	ring [512]uint32
	pos  int
	seen map[uint32]struct{}
}

func newSeqDedup() seqDedup {
	return seqDedup{seen: make(map[uint32]struct{}, 512)}
}

func (d *seqDedup) isDuplicate(seq uint32) bool {
	if _, ok := d.seen[seq]; ok {
		return true
	}
	old := d.ring[d.pos]
	if old != 0 {
		delete(d.seen, old)
	}
	d.ring[d.pos] = seq
	d.seen[seq] = struct{}{}
	d.pos = (d.pos + 1) % len(d.ring)
	return false
}

// NewFrameReceiver creates a receiver listening on the given UDP port.
func NewFrameReceiver(port int) *FrameReceiver {
	r := &FrameReceiver{
		port:  port,
		done:  make(chan struct{}),
		dedup: newSeqDedup(),
	}
	for side := range r.mailboxes {
		r.mailboxes[side] = make(chan touch.Frame, 1)
	}
	return r
}

// Start binds the UDP socket and begins receiving.
func (r *FrameReceiver) Start() error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: r.port})
	if err != nil {
		return err
	}
	r.conn = conn

	// 1 MB read buffer for frame bursts.
	conn.SetReadBuffer(1 << 20)

	log.Printf("UDP Frames: Listening on :%d", r.port)

	go r.readLoop()
	go r.staleLoop()
	for side := touch.Side(0); side < touch.NumSides; side++ {
		go r.deliverLoop(side)
	}
	return nil
}

// Stop shuts the receiver down.
func (r *FrameReceiver) Stop() {
	close(r.done)
	if r.conn != nil {
		r.conn.Close()
	}
}

func (r *FrameReceiver) readLoop() {
	buf := make([]byte, 512)
	for {
		n, remote, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
				continue
			}
		}

		pkt, err := protocol.DecodeFramePacket(buf[:n])
		if err != nil {
			continue
		}

		switch pkt.Type {
		case protocol.PacketRegister:
			r.registerBridge(remote)
			r.sendAck(remote)

		case protocol.PacketHeartbeat:
			r.touchBridge(remote)

		case protocol.PacketDeviceStatus:
			r.touchBridge(remote)
			r.setConnected(pkt.Side, pkt.Connected)

		case protocol.PacketTouchFrame:
			r.touchBridge(remote)
			if r.dedup.isDuplicate(pkt.Seq) {
				continue
			}
			// Frames must arrive in strictly increasing timestamp order
			// per side; anything stale or reordered is dropped.
			if pkt.Timestamp <= r.lastTS[pkt.Side] {
				continue
			}
			r.lastTS[pkt.Side] = pkt.Timestamp
			r.setConnected(pkt.Side, true)
			r.offer(pkt.Side, pkt.Frame())
		}
	}
}

// offer places a frame in the side's one-slot mailbox, displacing any
// undelivered older frame. Only the final position matters for
// classification; intermediate jitter is safe to coalesce.
func (r *FrameReceiver) offer(side touch.Side, f touch.Frame) {
	mb := r.mailboxes[side]
	for {
		select {
		case mb <- f:
			return
		default:
			select {
			case <-mb:
			default:
			}
		}
	}
}

func (r *FrameReceiver) deliverLoop(side touch.Side) {
	mb := r.mailboxes[side]
	for {
		select {
		case f := <-mb:
			if r.OnFrame != nil {
				r.OnFrame(f)
			}
		case <-r.done:
			return
		}
	}
}

// staleLoop watches for heartbeat loss and reports both sides disconnected
// when the bridge goes quiet.
func (r *FrameReceiver) staleLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.bridgeMu.Lock()
			stale := r.bridgeAddr != nil && time.Since(r.lastSeen) > bridgeTimeout
			if stale {
				log.Printf("UDP Frames: bridge %s timed out", r.bridgeAddr)
				r.bridgeAddr = nil
			}
			r.bridgeMu.Unlock()
			if stale {
				for side := touch.Side(0); side < touch.NumSides; side++ {
					r.setConnected(side, false)
				}
			}
		case <-r.done:
			return
		}
	}
}

func (r *FrameReceiver) registerBridge(addr *net.UDPAddr) {
	r.bridgeMu.Lock()
	fresh := r.bridgeAddr == nil || r.bridgeAddr.String() != addr.String()
	r.bridgeAddr = addr
	r.lastSeen = time.Now()
	r.bridgeMu.Unlock()
	if fresh {
		log.Printf("UDP Frames: bridge registered from %s", addr)
	}
}

func (r *FrameReceiver) touchBridge(addr *net.UDPAddr) {
	r.bridgeMu.Lock()
	if r.bridgeAddr == nil {
		r.bridgeAddr = addr
	}
	r.lastSeen = time.Now()
	r.bridgeMu.Unlock()
}

func (r *FrameReceiver) setConnected(side touch.Side, connected bool) {
	r.bridgeMu.Lock()
	changed := r.connected[side] != connected
	r.connected[side] = connected
	r.bridgeMu.Unlock()
	if changed && r.OnDeviceStatus != nil {
		r.OnDeviceStatus(side, connected)
	}
}

func (r *FrameReceiver) sendAck(addr *net.UDPAddr) {
	pkt := &protocol.FramePacket{Type: protocol.PacketAck, Timestamp: time.Now().UnixMilli()}
	data, err := protocol.EncodeFramePacket(pkt)
	if err != nil {
		return
	}
	r.conn.WriteToUDP(data, addr)
}
