// Package classifier decides what the fingers on one trackpad side mean:
// typing, pointer movement, a gesture, or nothing. One Classifier instance
// exists per side; the two never share mutable state.
package classifier

import (
	"sync/atomic"
	"time"

	"padkeys/internal/keymap"
	"padkeys/internal/layout"
	"padkeys/internal/touch"
)

// Mode is the classified intent of the current finger activity on a side.
type Mode int32

const (
	ModeIdle Mode = iota
	ModeKeyCandidate
	ModeTyping
	ModeMouse
	ModeGesture
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeKeyCandidate:
		return "key_candidate"
	case ModeTyping:
		return "typing"
	case ModeMouse:
		return "mouse"
	case ModeGesture:
		return "gesture"
	}
	return "unknown"
}

// Thresholds are the timing and distance parameters driving classification.
// Distances are in normalized surface units, durations compared against the
// wall-clock timestamps carried in frames, never arrival time.
type Thresholds struct {
	// Hold is how long a stationary contact must persist before it is
	// treated as held rather than tapped.
	Hold time.Duration

	// DragCancelDistance is the cumulative displacement beyond which a
	// contact is reclassified as pointer movement instead of a key press.
	DragCancelDistance float64

	// TapClick is the maximum secondary-contact duration that still counts
	// as a click while in mouse mode.
	TapClick time.Duration

	// MoveSpeed is the minimum pointer speed (units/second) considered
	// intentional; slower motion is treated as jitter and suppressed.
	MoveSpeed float64

	// RepeatDelay and RepeatInterval control held-key auto-repeat cadence.
	RepeatDelay    time.Duration
	RepeatInterval time.Duration
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Hold:               250 * time.Millisecond,
		DragCancelDistance: 0.035,
		TapClick:           180 * time.Millisecond,
		MoveSpeed:          0.05,
		RepeatDelay:        400 * time.Millisecond,
		RepeatInterval:     60 * time.Millisecond,
	}
}

// Binding is the resolved target of a press, captured once at press start.
// An in-flight press completes against this capture even if the key table or
// layout is swapped while the finger is down.
type Binding struct {
	Mapping keymap.Mapping
	Region  layout.Rect
	Label   string
	Layer   int
}

// Sink receives the discrete events a classifier emits. Implementations must
// not block; they run on the frame-processing path.
type Sink interface {
	// Press is the down edge of an action. For plain key actions with
	// repeatable=true the sink may start auto-repeat; layer and toggle
	// actions are never repeatable.
	Press(side touch.Side, action keymap.Action, repeatable bool)

	// Release is the matching up edge for a previously pressed action.
	Release(side touch.Side, action keymap.Action)

	PointerMove(side touch.Side, dx, dy float64)
	PointerClick(side touch.Side, button int, pressed bool)

	// ModeChanged reports an intent transition, for status and debugging.
	ModeChanged(side touch.Side, from, to Mode)
}

// Config wires a classifier to its owner. The function fields are read every
// frame so the coordinator can swap thresholds and flags without touching the
// classifier.
type Config struct {
	Side          touch.Side
	Thresholds    func() Thresholds
	TypingEnabled func() bool
	MouseTakeover func() bool
	TapClick      func() bool

	// Bind resolves a press-start position to a binding under the current
	// configuration. Returning false means dead space: the press is tracked
	// but emits nothing.
	Bind func(p touch.Point) (Binding, bool)

	Sink Sink
}

// Classifier is the per-side intent state machine. ProcessFrame must be called
// from a single goroutine per instance; Mode and Contacts are safe to read
// from anywhere.
type Classifier struct {
	cfg Config

	mode     atomic.Int32
	contacts atomic.Int32

	press     *press
	pointerID uint32
	click     *clickCandidate

	prevPos  map[uint32]touch.Point
	prevTime int64
}

// press tracks the single contact being considered as a key press.
type press struct {
	id          uint32
	origin      touch.Point
	last        touch.Point
	start       int64
	binding     Binding
	bound       bool
	downEmitted bool
	downAction  keymap.Action
	travel      float64
}

type clickCandidate struct {
	id    uint32
	start int64
}

// New creates a classifier for one side.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, prevPos: make(map[uint32]touch.Point)}
}

// Side returns the side this classifier owns.
func (c *Classifier) Side() touch.Side {
	return c.cfg.Side
}

// Mode returns the current intent. Safe for concurrent reads.
func (c *Classifier) Mode() Mode {
	return Mode(c.mode.Load())
}

// Contacts returns the finger count of the last processed frame.
func (c *Classifier) Contacts() int {
	return int(c.contacts.Load())
}

// Reset unconditionally returns the classifier to Idle, releasing any emitted
// down edge so no press is left half-resolved. Used on device loss and global
// reset.
func (c *Classifier) Reset() {
	c.cancelPress()
	c.click = nil
	c.prevPos = make(map[uint32]touch.Point)
	c.contacts.Store(0)
	c.setMode(ModeIdle)
}

// ProcessFrame ingests one frame and returns whether it was a transition
// frame (fingers both added and removed in the same tick). Transition frames
// defer firm classification to the next stable frame.
func (c *Classifier) ProcessFrame(f touch.Frame) bool {
	thr := c.cfg.Thresholds()

	added, removed := 0, 0
	for _, s := range f.Contacts {
		if _, ok := c.prevPos[s.ID]; !ok {
			added++
		}
	}
	ids := make(map[uint32]touch.Point, len(f.Contacts))
	for _, s := range f.Contacts {
		ids[s.ID] = s.Pos
	}
	for id := range c.prevPos {
		if _, ok := ids[id]; !ok {
			removed++
		}
	}
	transition := added > 0 && removed > 0

	// Resolve a vanished press contact before anything else so a lift is
	// never lost, even inside a transition frame.
	if c.press != nil {
		if s, ok := f.Contact(c.press.id); ok {
			c.press.travel += c.press.last.DistanceTo(s.Pos)
			c.press.last = s.Pos
		} else {
			c.liftPress(f.Timestamp, thr)
		}
	}

	switch {
	case len(f.Contacts) == 0:
		c.finishClick(f.Timestamp, thr)
		c.click = nil
		c.setMode(ModeIdle)
	case len(f.Contacts) == 1:
		c.stepSingle(f, f.Contacts[0], thr, transition)
	default:
		c.stepMulti(f, thr, transition)
	}

	c.contacts.Store(int32(len(f.Contacts)))
	c.prevPos = ids
	c.prevTime = f.Timestamp
	return transition
}

func (c *Classifier) stepSingle(f touch.Frame, s touch.Sample, thr Thresholds, transition bool) {
	switch c.Mode() {
	case ModeIdle:
		if transition {
			return
		}
		if !c.cfg.TypingEnabled() {
			if c.cfg.MouseTakeover() {
				c.pointerID = s.ID
				c.setMode(ModeMouse)
			}
			return
		}
		c.beginPress(s, f.Timestamp)
		c.setMode(ModeKeyCandidate)

	case ModeKeyCandidate:
		if c.press == nil {
			// The tracked contact lifted earlier in this frame.
			if !transition {
				c.beginPress(s, f.Timestamp)
			}
			return
		}
		if c.press.id != s.ID {
			// Identity changed without the old contact vanishing: device
			// glitch, treat as lift+press.
			c.liftPress(f.Timestamp, thr)
			if !transition {
				c.beginPress(s, f.Timestamp)
			}
			return
		}
		if !c.press.downEmitted && c.cfg.MouseTakeover() && c.press.travel > thr.DragCancelDistance {
			c.cancelPress()
			c.pointerID = s.ID
			c.setMode(ModeMouse)
			return
		}
		if !c.press.downEmitted && c.press.bound {
			elapsed := time.Duration(f.Timestamp-c.press.start) * time.Millisecond
			if elapsed >= thr.Hold {
				c.fireHold()
				c.setMode(ModeTyping)
			}
		}

	case ModeTyping:
		if c.press == nil {
			if !transition {
				c.beginPress(s, f.Timestamp)
				c.setMode(ModeKeyCandidate)
			}
			return
		}
		if c.press.id != s.ID {
			c.liftPress(f.Timestamp, thr)
			if !transition {
				c.beginPress(s, f.Timestamp)
				c.setMode(ModeKeyCandidate)
			} else {
				c.setMode(ModeIdle)
			}
		}

	case ModeMouse:
		c.finishClick(f.Timestamp, thr)
		c.stepMouse(f, s, thr)

	case ModeGesture:
		// Gesture persists until all fingers lift.
	}
}

func (c *Classifier) stepMulti(f touch.Frame, thr Thresholds, transition bool) {
	mode := c.Mode()

	// Tap-click: while in mouse mode a brief secondary contact is a click,
	// not a gesture.
	if mode == ModeMouse && len(f.Contacts) == 2 && c.cfg.TapClick() {
		var secondary *touch.Sample
		for i := range f.Contacts {
			if f.Contacts[i].ID != c.pointerID {
				secondary = &f.Contacts[i]
			}
		}
		if secondary != nil {
			if c.click == nil {
				c.click = &clickCandidate{id: secondary.ID, start: f.Timestamp}
				return
			}
			if c.click.id == secondary.ID {
				if time.Duration(f.Timestamp-c.click.start)*time.Millisecond <= thr.TapClick {
					return
				}
				// Held too long for a click, fall through to gesture.
				c.click = nil
			}
		}
	}

	if mode == ModeKeyCandidate || mode == ModeTyping {
		c.cancelPress()
	}
	if mode != ModeGesture {
		c.setMode(ModeGesture)
	}
}

func (c *Classifier) stepMouse(f touch.Frame, s touch.Sample, thr Thresholds) {
	if s.ID != c.pointerID {
		c.pointerID = s.ID
		return
	}
	prev, ok := c.prevPos[s.ID]
	if !ok {
		return
	}
	dx := s.Pos.X - prev.X
	dy := s.Pos.Y - prev.Y
	if dx == 0 && dy == 0 {
		return
	}
	// Suppress sub-intentional jitter: anything slower than MoveSpeed over
	// the frame interval stays put.
	if dt := f.Timestamp - c.prevTime; dt > 0 {
		deadzone := thr.MoveSpeed * float64(dt) / 1000
		if prev.DistanceTo(s.Pos) < deadzone {
			return
		}
	}
	c.cfg.Sink.PointerMove(c.cfg.Side, dx, dy)
}

// finishClick emits a pending tap-click whose secondary contact has lifted
// within the tap-click cadence.
func (c *Classifier) finishClick(now int64, thr Thresholds) {
	if c.click == nil {
		return
	}
	if time.Duration(now-c.click.start)*time.Millisecond <= thr.TapClick {
		c.cfg.Sink.PointerClick(c.cfg.Side, 1, true)
		c.cfg.Sink.PointerClick(c.cfg.Side, 1, false)
	}
	c.click = nil
}

// beginPress starts tracking a contact as a key candidate, capturing its
// binding under the configuration in force right now. A primary
// momentary-layer action activates immediately: momentary means "while held",
// which starts at touch, not at tap confirmation.
func (c *Classifier) beginPress(s touch.Sample, ts int64) {
	p := &press{id: s.ID, origin: s.Pos, last: s.Pos, start: ts}
	if c.cfg.Bind != nil {
		if b, ok := c.cfg.Bind(s.Pos); ok {
			p.binding = b
			p.bound = true
		}
	}
	if p.bound && p.binding.Mapping.Primary.Kind == keymap.ActionLayerMomentary {
		c.cfg.Sink.Press(c.cfg.Side, p.binding.Mapping.Primary, false)
		p.downEmitted = true
		p.downAction = p.binding.Mapping.Primary
	}
	c.press = p
}

// liftPress resolves the tracked press at finger lift. A press whose down
// edge was already emitted gets its matching release; otherwise a bound press
// is confirmed as a tap and fires its action as a down/up pair.
func (c *Classifier) liftPress(ts int64, thr Thresholds) {
	p := c.press
	c.press = nil
	if p == nil {
		return
	}
	if p.downEmitted {
		c.cfg.Sink.Release(c.cfg.Side, p.downAction)
		return
	}
	if !p.bound {
		return
	}

	action := p.binding.Mapping.Primary
	if p.binding.Mapping.Hold != nil {
		// The contact outlived the hold threshold but no frame arrived in
		// between to fire it; honor the hold action at lift.
		if time.Duration(ts-p.start)*time.Millisecond >= thr.Hold {
			action = *p.binding.Mapping.Hold
		}
	}
	if action.Kind == keymap.ActionNone {
		return
	}
	c.setMode(ModeTyping)
	c.cfg.Sink.Press(c.cfg.Side, action, false)
	c.cfg.Sink.Release(c.cfg.Side, action)
}

// cancelPress drops the tracked press without tap confirmation, releasing an
// already-emitted down edge so downs and ups stay balanced.
func (c *Classifier) cancelPress() {
	p := c.press
	c.press = nil
	if p == nil {
		return
	}
	if p.downEmitted {
		c.cfg.Sink.Release(c.cfg.Side, p.downAction)
	}
}

// fireHold emits the sustained-press action: the hold action when the mapping
// defines one, otherwise the primary held for auto-repeat.
func (c *Classifier) fireHold() {
	p := c.press
	action := p.binding.Mapping.Primary
	if p.binding.Mapping.Hold != nil {
		action = *p.binding.Mapping.Hold
	}
	if action.Kind == keymap.ActionNone {
		return
	}
	repeatable := action.Kind == keymap.ActionKey
	c.cfg.Sink.Press(c.cfg.Side, action, repeatable)
	p.downEmitted = true
	p.downAction = action
}

func (c *Classifier) setMode(m Mode) {
	old := Mode(c.mode.Swap(int32(m)))
	if old != m {
		c.cfg.Sink.ModeChanged(c.cfg.Side, old, m)
	}
}
