// Package dispatch owns both side classifiers, serializes their outputs into
// one event stream, applies global policy (typing enable, active layer, edit
// mode) and forwards resolved actions to the OS synthesis boundary.
package dispatch

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"padkeys/internal/classifier"
	"padkeys/internal/input"
	"padkeys/internal/keymap"
	"padkeys/internal/layout"
	"padkeys/internal/touch"
)

// Hit describes a touch that resolved to a bound region, reported through the
// debug and keymap-editing hooks.
type Hit struct {
	Side   touch.Side  `json:"side"`
	Label  string      `json:"label"`
	Region layout.Rect `json:"region"`
	Layer  int         `json:"layer"`
	Pos    touch.Point `json:"pos"`
}

// Status is the externally visible engine state for display surfaces.
type Status struct {
	Mode          [touch.NumSides]string `json:"mode"`
	Contacts      [touch.NumSides]int    `json:"contacts"`
	ActiveLayer   int                    `json:"active_layer"`
	TypingEnabled bool                   `json:"typing_enabled"`
	ChordalShift  bool                   `json:"chordal_shift"`
	Haptics       bool                   `json:"haptics"`
}

const noMomentary = -1

// Coordinator is the dispatch engine. Configuration handles are swapped
// atomically so frame processing never observes a half-updated table or
// layout; setters take effect on the next processed frame.
type Coordinator struct {
	injector  input.Injector
	publisher *touch.Publisher

	table      atomic.Pointer[keymap.Table]
	resolvers  [touch.NumSides]atomic.Pointer[layout.Resolver]
	thresholds atomic.Pointer[classifier.Thresholds]

	typingEnabled atomic.Bool
	mouseTakeover atomic.Bool
	tapClick      atomic.Bool
	chordalShift  atomic.Bool
	haptics       atomic.Bool
	debugHits     atomic.Bool
	editMode      atomic.Bool

	persistentLayer atomic.Int32
	momentary       [touch.NumSides]atomic.Int32

	classifiers [touch.NumSides]*classifier.Classifier

	pointerScale atomic.Int64 // pixels per normalized unit

	repeatMu sync.Mutex
	repeats  [touch.NumSides]*repeatToken

	hookMu     sync.Mutex
	onDebugHit func(Hit)
	onEditHit  func(Hit)
	onKeyState func(action keymap.Action, down bool)
}

// New creates a Coordinator around an injector and a snapshot publisher.
func New(injector input.Injector, publisher *touch.Publisher) *Coordinator {
	c := &Coordinator{injector: injector, publisher: publisher}

	thr := classifier.DefaultThresholds()
	c.thresholds.Store(&thr)
	c.typingEnabled.Store(true)
	c.mouseTakeover.Store(true)
	c.tapClick.Store(true)
	c.haptics.Store(true)
	c.pointerScale.Store(900)
	for side := range c.momentary {
		c.momentary[side].Store(noMomentary)
	}

	for side := touch.Side(0); side < touch.NumSides; side++ {
		side := side
		c.classifiers[side] = classifier.New(classifier.Config{
			Side:          side,
			Thresholds:    func() classifier.Thresholds { return *c.thresholds.Load() },
			TypingEnabled: c.typingEnabled.Load,
			MouseTakeover: c.mouseTakeover.Load,
			TapClick:      c.tapClick.Load,
			Bind:          func(p touch.Point) (classifier.Binding, bool) { return c.bind(side, p) },
			Sink:          (*coordinatorSink)(c),
		})
	}
	return c
}

// ProcessFrame runs one frame through its side's classifier and records it in
// the snapshot publisher. Must be called with in-order frames per side;
// callers enforce that contract.
func (c *Coordinator) ProcessFrame(f touch.Frame) {
	if !f.Side.Valid() {
		return
	}
	transition := c.classifiers[f.Side].ProcessFrame(f)
	c.publisher.Publish(f, transition)
}

// DeviceStatus handles connect/disconnect notifications for a side. Any
// disconnect forces that side's classifier to Idle and cancels its repeat
// token so no repeat fires after the press has conceptually ended.
func (c *Coordinator) DeviceStatus(side touch.Side, connected bool) {
	if !side.Valid() {
		return
	}
	log.Printf("Dispatch: %s device %s", side, map[bool]string{true: "connected", false: "lost"}[connected])
	if !connected {
		c.ResetSide(side)
	}
}

// ResetSide forces one side back to Idle, releasing any held key.
func (c *Coordinator) ResetSide(side touch.Side) {
	c.cancelRepeat(side)
	c.classifiers[side].Reset()
	c.momentary[side].Store(noMomentary)
}

// Reset resets both sides and all repeat timers.
func (c *Coordinator) Reset() {
	for side := touch.Side(0); side < touch.NumSides; side++ {
		c.ResetSide(side)
	}
}

// Status returns the current per-side intent and global state.
func (c *Coordinator) Status() Status {
	var st Status
	for side := touch.Side(0); side < touch.NumSides; side++ {
		st.Mode[side] = c.classifiers[side].Mode().String()
		st.Contacts[side] = c.classifiers[side].Contacts()
	}
	st.ActiveLayer = c.ActiveLayer()
	st.TypingEnabled = c.typingEnabled.Load()
	st.ChordalShift = c.chordalShift.Load()
	st.Haptics = c.haptics.Load()
	return st
}

// ActiveLayer returns the effective layer: a held momentary layer wins over
// the persistent one; when both sides hold one, the right side wins.
func (c *Coordinator) ActiveLayer() int {
	if m := c.momentary[touch.SideRight].Load(); m != noMomentary {
		return int(m)
	}
	if m := c.momentary[touch.SideLeft].Load(); m != noMomentary {
		return int(m)
	}
	return int(c.persistentLayer.Load())
}

// SetTable atomically replaces the layered key mappings. In-flight presses
// keep the binding captured at press start.
func (c *Coordinator) SetTable(t *keymap.Table) {
	c.table.Store(t)
}

// SetLayout atomically replaces one side's geometry.
func (c *Coordinator) SetLayout(side touch.Side, l layout.Layout) error {
	r, err := layout.NewResolver(l)
	if err != nil {
		return err
	}
	c.resolvers[side].Store(r)
	return nil
}

// SetThresholds replaces all timing parameters.
func (c *Coordinator) SetThresholds(t classifier.Thresholds) {
	c.thresholds.Store(&t)
}

// Thresholds returns the current timing parameters.
func (c *Coordinator) Thresholds() classifier.Thresholds {
	return *c.thresholds.Load()
}

// SetTypingEnabled flips the global typing flag.
func (c *Coordinator) SetTypingEnabled(enabled bool) {
	c.typingEnabled.Store(enabled)
	log.Printf("Dispatch: typing enabled: %v", enabled)
}

// TypingEnabled reports the typing flag.
func (c *Coordinator) TypingEnabled() bool {
	return c.typingEnabled.Load()
}

// SetMouseTakeover enables or disables drag-cancel reclassification.
func (c *Coordinator) SetMouseTakeover(enabled bool) {
	c.mouseTakeover.Store(enabled)
}

// SetTapClick enables or disables tap-to-click in mouse mode.
func (c *Coordinator) SetTapClick(enabled bool) {
	c.tapClick.Store(enabled)
}

// SetChordalShift sets the cross-side chord policy flag. The engine carries
// and publishes it; clients that render or honor chording read it from status.
func (c *Coordinator) SetChordalShift(enabled bool) {
	c.chordalShift.Store(enabled)
}

// SetHaptics sets the touch-feedback policy flag. Published through status so
// the device bridge knows whether to vibrate on key events.
func (c *Coordinator) SetHaptics(enabled bool) {
	c.haptics.Store(enabled)
}

// SetDebugHits gates the debug-hit notification hook.
func (c *Coordinator) SetDebugHits(enabled bool) {
	c.debugHits.Store(enabled)
}

// SetEditMode toggles keymap-editing mode: normal dispatch is suppressed and
// raw hit-test results are reported through the edit hook instead.
func (c *Coordinator) SetEditMode(enabled bool) {
	c.editMode.Store(enabled)
	if enabled {
		c.Reset()
	}
}

// SetPersistentLayer sets the toggled (non-momentary) layer.
func (c *Coordinator) SetPersistentLayer(layer int) {
	if layer < 0 {
		layer = 0
	}
	c.persistentLayer.Store(int32(layer))
}

// SetPointerScale sets pointer speed in pixels per normalized surface unit.
func (c *Coordinator) SetPointerScale(pixels int) {
	if pixels > 0 {
		c.pointerScale.Store(int64(pixels))
	}
}

// OnDebugHit installs the debug-hit hook.
func (c *Coordinator) OnDebugHit(fn func(Hit)) {
	c.hookMu.Lock()
	c.onDebugHit = fn
	c.hookMu.Unlock()
}

// OnEditHit installs the keymap-editing hit hook.
func (c *Coordinator) OnEditHit(fn func(Hit)) {
	c.hookMu.Lock()
	c.onEditHit = fn
	c.hookMu.Unlock()
}

// OnKeyState installs a hook observing synthesized key edges, used by the
// emergency-chord watcher.
func (c *Coordinator) OnKeyState(fn func(action keymap.Action, down bool)) {
	c.hookMu.Lock()
	c.onKeyState = fn
	c.hookMu.Unlock()
}

// bind resolves a press-start position against the current layout and table.
// In edit mode it reports the hit and returns no binding so nothing is
// dispatched.
func (c *Coordinator) bind(side touch.Side, p touch.Point) (classifier.Binding, bool) {
	res := c.resolvers[side].Load()
	if res == nil {
		return classifier.Binding{}, false
	}
	layer := c.ActiveLayer()
	hit, ok := res.Hit(p, layer)
	if !ok {
		return classifier.Binding{}, false
	}

	if c.editMode.Load() {
		c.emitHit(c.editHook(), side, hit, layer, p)
		return classifier.Binding{}, false
	}

	var mapping keymap.Mapping
	switch hit.Kind {
	case layout.HitButton:
		mapping = keymap.Mapping{Primary: hit.Button.Primary, Hold: hit.Button.Hold}
	case layout.HitGridCell:
		t := c.table.Load()
		if t == nil {
			return classifier.Binding{}, false
		}
		mapping, ok = t.Lookup(layer, hit.Position)
		if !ok {
			return classifier.Binding{}, false
		}
	}

	if c.debugHits.Load() {
		c.emitHit(c.debugHook(), side, hit, layer, p)
	}

	label := hit.Label
	if hit.Kind == layout.HitGridCell && mapping.Primary.Label != "" {
		label = mapping.Primary.Label
	}
	return classifier.Binding{Mapping: mapping, Region: hit.Region, Label: label, Layer: layer}, true
}

func (c *Coordinator) debugHook() func(Hit) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	return c.onDebugHit
}

func (c *Coordinator) editHook() func(Hit) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	return c.onEditHit
}

func (c *Coordinator) keyStateHook() func(keymap.Action, bool) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	return c.onKeyState
}

func (c *Coordinator) emitHit(fn func(Hit), side touch.Side, hit layout.Hit, layer int, p touch.Point) {
	if fn == nil {
		return
	}
	fn(Hit{Side: side, Label: hit.Label, Region: hit.Region, Layer: layer, Pos: p})
}

// coordinatorSink adapts Coordinator to the classifier.Sink interface without
// exporting the event methods on Coordinator itself.
type coordinatorSink Coordinator

func (s *coordinatorSink) c() *Coordinator { return (*Coordinator)(s) }

func (s *coordinatorSink) Press(side touch.Side, action keymap.Action, repeatable bool) {
	c := s.c()
	switch action.Kind {
	case keymap.ActionKey:
		if err := c.injector.KeyDown(action.Code, action.Modifiers); err != nil {
			log.Printf("Dispatch: key down failed: %v", err)
		}
		if fn := c.keyStateHook(); fn != nil {
			fn(action, true)
		}
		if repeatable {
			c.startRepeat(side, action)
		}
	case keymap.ActionTypingToggle:
		c.SetTypingEnabled(!c.TypingEnabled())
	case keymap.ActionLayerMomentary:
		c.momentary[side].Store(int32(action.Layer))
	case keymap.ActionLayerToggle:
		if int(c.persistentLayer.Load()) == action.Layer {
			c.persistentLayer.Store(0)
		} else {
			c.persistentLayer.Store(int32(action.Layer))
		}
	}
}

func (s *coordinatorSink) Release(side touch.Side, action keymap.Action) {
	c := s.c()
	switch action.Kind {
	case keymap.ActionKey:
		c.cancelRepeat(side)
		if err := c.injector.KeyUp(action.Code, action.Modifiers); err != nil {
			log.Printf("Dispatch: key up failed: %v", err)
		}
		if fn := c.keyStateHook(); fn != nil {
			fn(action, false)
		}
	case keymap.ActionLayerMomentary:
		c.momentary[side].Store(noMomentary)
	}
}

func (s *coordinatorSink) PointerMove(side touch.Side, dx, dy float64) {
	c := s.c()
	scale := float64(c.pointerScale.Load())
	px := int(dx * scale)
	py := int(dy * scale)
	if px == 0 && py == 0 {
		return
	}
	if err := c.injector.PointerMove(px, py); err != nil {
		log.Printf("Dispatch: pointer move failed: %v", err)
	}
}

func (s *coordinatorSink) PointerClick(side touch.Side, button int, pressed bool) {
	if err := s.c().injector.PointerButton(button, pressed); err != nil {
		log.Printf("Dispatch: pointer button failed: %v", err)
	}
}

func (s *coordinatorSink) ModeChanged(side touch.Side, from, to classifier.Mode) {
	if s.c().debugHits.Load() {
		log.Printf("Dispatch: %s intent %s -> %s", side, from, to)
	}
}

// repeatToken gates a scheduled auto-repeat. Liveness is consulted at fire
// time, not only at schedule time, so a cancel always wins the race against
// an already-scheduled timer.
type repeatToken struct {
	alive atomic.Bool
}

func (t *repeatToken) cancel() {
	t.alive.Store(false)
}

// startRepeat issues a fresh token for the held key on this side, replacing
// and cancelling any previous one: at most one outstanding repeat per key.
func (c *Coordinator) startRepeat(side touch.Side, action keymap.Action) {
	tok := &repeatToken{}
	tok.alive.Store(true)

	c.repeatMu.Lock()
	if old := c.repeats[side]; old != nil {
		old.cancel()
	}
	c.repeats[side] = tok
	c.repeatMu.Unlock()

	delay := c.thresholds.Load().RepeatDelay
	time.AfterFunc(delay, func() { c.fireRepeat(tok, action) })
}

func (c *Coordinator) fireRepeat(tok *repeatToken, action keymap.Action) {
	if !tok.alive.Load() {
		return
	}
	if err := c.injector.KeyDown(action.Code, action.Modifiers); err != nil {
		log.Printf("Dispatch: key repeat failed: %v", err)
		return
	}
	interval := c.thresholds.Load().RepeatInterval
	time.AfterFunc(interval, func() { c.fireRepeat(tok, action) })
}

func (c *Coordinator) cancelRepeat(side touch.Side) {
	c.repeatMu.Lock()
	if tok := c.repeats[side]; tok != nil {
		tok.cancel()
		c.repeats[side] = nil
	}
	c.repeatMu.Unlock()
}
