package touch

import (
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable view of the latest frame per side plus a
// monotonically increasing revision number. Transition marks a side whose
// last frame added and removed fingers in the same tick, meaning its
// classification is still settling.
type Snapshot struct {
	Revision   uint64           `json:"revision"`
	Frames     [NumSides]Frame  `json:"frames"`
	Transition [NumSides]bool   `json:"transition"`
}

// Publisher maintains the latest Snapshot for visualization consumers.
// Writes go through a short critical section; reads are lock-free and never
// block the input path. Published snapshots are immutable: contact slices are
// copied on publish, so readers may hold them indefinitely.
type Publisher struct {
	current   atomic.Pointer[Snapshot]
	recording atomic.Bool

	writeMu sync.Mutex // serializes the two per-side intake workers

	subMu sync.Mutex
	subs  map[chan uint64]struct{}
}

// NewPublisher creates a Publisher with recording enabled and revision 0.
func NewPublisher() *Publisher {
	p := &Publisher{subs: make(map[chan uint64]struct{})}
	p.recording.Store(true)
	p.current.Store(&Snapshot{})
	return p
}

// Publish records frame as the latest state for its side and bumps the
// revision. While recording is disabled this is a no-op and the revision
// stays frozen.
func (p *Publisher) Publish(frame Frame, transition bool) {
	if !p.recording.Load() {
		return
	}
	if !frame.Side.Valid() {
		return
	}

	// Own the contact slice so the stored snapshot is immutable.
	contacts := make([]Sample, len(frame.Contacts))
	copy(contacts, frame.Contacts)
	frame.Contacts = contacts

	p.writeMu.Lock()
	prev := p.current.Load()
	next := &Snapshot{
		Revision:   prev.Revision + 1,
		Frames:     prev.Frames,
		Transition: prev.Transition,
	}
	next.Frames[frame.Side] = frame
	next.Transition[frame.Side] = transition
	p.current.Store(next)
	rev := next.Revision
	p.writeMu.Unlock()

	p.notify(rev)
}

// Current returns the latest snapshot. Never blocks.
func (p *Publisher) Current() *Snapshot {
	return p.current.Load()
}

// IfUpdated returns the latest snapshot only if its revision is strictly
// greater than since; otherwise (nil, false).
func (p *Publisher) IfUpdated(since uint64) (*Snapshot, bool) {
	s := p.current.Load()
	if s.Revision <= since {
		return nil, false
	}
	return s, true
}

// Revision returns the current revision number.
func (p *Publisher) Revision() uint64 {
	return p.current.Load().Revision
}

// SetRecording enables or disables snapshot recording. While disabled,
// Current keeps returning the last value published before disabling.
func (p *Publisher) SetRecording(enabled bool) {
	p.recording.Store(enabled)
}

// Recording reports whether snapshot recording is enabled.
func (p *Publisher) Recording() bool {
	return p.recording.Load()
}

// Subscribe registers a revision notification channel. Delivery is lossy:
// if the subscriber is not keeping up the notification is dropped, since the
// latest snapshot is always available through Current.
func (p *Publisher) Subscribe() chan uint64 {
	ch := make(chan uint64, 16)
	p.subMu.Lock()
	p.subs[ch] = struct{}{}
	p.subMu.Unlock()
	return ch
}

// Unsubscribe removes a channel registered with Subscribe and closes it.
func (p *Publisher) Unsubscribe(ch chan uint64) {
	p.subMu.Lock()
	if _, ok := p.subs[ch]; ok {
		delete(p.subs, ch)
		close(ch)
	}
	p.subMu.Unlock()
}

func (p *Publisher) notify(rev uint64) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- rev:
		default:
		}
	}
}
