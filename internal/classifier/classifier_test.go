package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"padkeys/internal/keymap"
	"padkeys/internal/layout"
	"padkeys/internal/touch"
)

type sinkEvent struct {
	kind       string // "press", "release", "move", "click"
	action     keymap.Action
	repeatable bool
	dx, dy     float64
	button     int
	pressed    bool
}

// recordSink records every emitted event in order.
type recordSink struct {
	events []sinkEvent
}

func (r *recordSink) Press(side touch.Side, action keymap.Action, repeatable bool) {
	r.events = append(r.events, sinkEvent{kind: "press", action: action, repeatable: repeatable})
}

func (r *recordSink) Release(side touch.Side, action keymap.Action) {
	r.events = append(r.events, sinkEvent{kind: "release", action: action})
}

func (r *recordSink) PointerMove(side touch.Side, dx, dy float64) {
	r.events = append(r.events, sinkEvent{kind: "move", dx: dx, dy: dy})
}

func (r *recordSink) PointerClick(side touch.Side, button int, pressed bool) {
	r.events = append(r.events, sinkEvent{kind: "click", button: button, pressed: pressed})
}

func (r *recordSink) ModeChanged(side touch.Side, from, to Mode) {}

func (r *recordSink) kinds() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.kind
	}
	return out
}

type testEnv struct {
	c             *Classifier
	sink          *recordSink
	typingEnabled bool
	mouseTakeover bool
	tapClick      bool
	mapping       keymap.Mapping
	bound         bool
}

func newTestEnv(mapping keymap.Mapping) *testEnv {
	env := &testEnv{
		sink:          &recordSink{},
		typingEnabled: true,
		mouseTakeover: true,
		tapClick:      true,
		mapping:       mapping,
		bound:         true,
	}
	env.c = New(Config{
		Side:          touch.SideLeft,
		Thresholds:    DefaultThresholds,
		TypingEnabled: func() bool { return env.typingEnabled },
		MouseTakeover: func() bool { return env.mouseTakeover },
		TapClick:      func() bool { return env.tapClick },
		Bind: func(p touch.Point) (Binding, bool) {
			if !env.bound {
				return Binding{}, false
			}
			return Binding{
				Mapping: env.mapping,
				Region:  layout.Rect{X: 0, Y: 0, W: 1, H: 1},
				Label:   env.mapping.Primary.Label,
			}, true
		},
		Sink: env.sink,
	})
	return env
}

func frame(ts int64, contacts ...touch.Sample) touch.Frame {
	return touch.Frame{Side: touch.SideLeft, Timestamp: ts, Contacts: contacts}
}

func contact(id uint32, x, y float64) touch.Sample {
	return touch.Sample{ID: id, Pos: touch.Point{X: x, Y: y}, Pressure: 1}
}

func keyA() keymap.Mapping {
	return keymap.Mapping{Primary: keymap.Key(0x41, 0)}
}

func TestQuickTapFiresDownUpPair(t *testing.T) {
	env := newTestEnv(keyA())

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	require.Equal(t, ModeKeyCandidate, env.c.Mode())
	require.Empty(t, env.sink.events, "no event before lift")

	env.c.ProcessFrame(frame(40))
	require.Equal(t, []string{"press", "release"}, env.sink.kinds())
	assert.Equal(t, uint16(0x41), env.sink.events[0].action.Code)
	assert.False(t, env.sink.events[0].repeatable, "tap is not repeatable")
	assert.Equal(t, ModeIdle, env.c.Mode())
}

func TestHoldFiresHoldActionNotPrimary(t *testing.T) {
	hold := keymap.Key(0x10, 0) // Shift
	env := newTestEnv(keymap.Mapping{Primary: keymap.Key(0x41, 0), Hold: &hold})

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(100, contact(1, 0.5, 0.5)))
	require.Empty(t, env.sink.events)

	env.c.ProcessFrame(frame(300, contact(1, 0.5, 0.5)))
	require.Equal(t, []string{"press"}, env.sink.kinds())
	assert.Equal(t, uint16(0x10), env.sink.events[0].action.Code)
	assert.Equal(t, ModeTyping, env.c.Mode())

	env.c.ProcessFrame(frame(350))
	require.Equal(t, []string{"press", "release"}, env.sink.kinds())
	assert.Equal(t, uint16(0x10), env.sink.events[1].action.Code)
}

func TestHoldWithoutHoldActionRepeatsPrimary(t *testing.T) {
	env := newTestEnv(keyA())

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(300, contact(1, 0.5, 0.5)))
	require.Equal(t, []string{"press"}, env.sink.kinds())
	assert.Equal(t, uint16(0x41), env.sink.events[0].action.Code)
	assert.True(t, env.sink.events[0].repeatable, "held primary must be repeatable")
}

func TestHoldHonoredAtLiftWithoutIntermediateFrame(t *testing.T) {
	hold := keymap.Key(0x10, 0)
	env := newTestEnv(keymap.Mapping{Primary: keymap.Key(0x41, 0), Hold: &hold})

	// No frame between touch and lift, but the lift timestamp is past the
	// hold threshold: the hold action wins.
	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(300))

	require.Equal(t, []string{"press", "release"}, env.sink.kinds())
	assert.Equal(t, uint16(0x10), env.sink.events[0].action.Code)
}

func TestDragCancelSuppressesKeyAndMovesPointer(t *testing.T) {
	env := newTestEnv(keyA())

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(20, contact(1, 0.53, 0.5)))
	env.c.ProcessFrame(frame(40, contact(1, 0.56, 0.5)))
	require.Equal(t, ModeMouse, env.c.Mode())

	env.c.ProcessFrame(frame(60, contact(1, 0.60, 0.5)))
	env.c.ProcessFrame(frame(80))

	for _, e := range env.sink.events {
		assert.NotEqual(t, "press", e.kind, "drag-cancelled press must not emit a key")
	}
	assert.Contains(t, env.sink.kinds(), "move")
	assert.Equal(t, ModeIdle, env.c.Mode())
}

func TestMouseTakeoverDisabledKeepsKeyCandidate(t *testing.T) {
	env := newTestEnv(keyA())
	env.mouseTakeover = false

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(20, contact(1, 0.6, 0.5)))
	require.Equal(t, ModeKeyCandidate, env.c.Mode())

	env.c.ProcessFrame(frame(40))
	require.Equal(t, []string{"press", "release"}, env.sink.kinds())
}

func TestMomentaryLayerActivatesOnTouchReleasesOnLift(t *testing.T) {
	env := newTestEnv(keymap.Mapping{Primary: keymap.Momentary(1)})

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	require.Equal(t, []string{"press"}, env.sink.kinds())
	assert.Equal(t, keymap.ActionLayerMomentary, env.sink.events[0].action.Kind)

	env.c.ProcessFrame(frame(500, contact(1, 0.5, 0.5)))
	require.Len(t, env.sink.events, 1, "momentary press must not re-fire on hold")

	env.c.ProcessFrame(frame(600))
	require.Equal(t, []string{"press", "release"}, env.sink.kinds())
}

func TestTypingDisabledFallsThroughToMouse(t *testing.T) {
	env := newTestEnv(keyA())
	env.typingEnabled = false

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	require.Equal(t, ModeMouse, env.c.Mode())

	env.c.ProcessFrame(frame(20, contact(1, 0.55, 0.5)))
	require.Equal(t, []string{"move"}, env.sink.kinds())
}

func TestMultiFingerCancelsPressAndEntersGesture(t *testing.T) {
	env := newTestEnv(keyA())

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(20, contact(1, 0.5, 0.5), contact(2, 0.7, 0.5), contact(3, 0.2, 0.2)))
	require.Equal(t, ModeGesture, env.c.Mode())
	require.Empty(t, env.sink.events, "cancelled candidate emits nothing")

	env.c.ProcessFrame(frame(200))
	require.Empty(t, env.sink.events)
	assert.Equal(t, ModeIdle, env.c.Mode())
}

func TestGestureCancelBalancesEmittedDown(t *testing.T) {
	env := newTestEnv(keyA())

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(300, contact(1, 0.5, 0.5))) // hold fires down
	require.Equal(t, []string{"press"}, env.sink.kinds())

	env.c.ProcessFrame(frame(320, contact(1, 0.5, 0.5), contact(2, 0.7, 0.5), contact(3, 0.2, 0.2)))
	require.Equal(t, []string{"press", "release"}, env.sink.kinds(),
		"cancelling an emitted down must release it")
}

func TestTransitionFrameDefersNewPress(t *testing.T) {
	env := newTestEnv(keyA())

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	// Contact 1 lifts and contact 2 lands in one frame: the lift resolves as
	// a tap, the new contact waits for a stable frame.
	env.c.ProcessFrame(frame(40, contact(2, 0.3, 0.5)))
	require.Equal(t, []string{"press", "release"}, env.sink.kinds())

	env.c.ProcessFrame(frame(60, contact(2, 0.3, 0.5)))
	require.Equal(t, ModeKeyCandidate, env.c.Mode())

	env.c.ProcessFrame(frame(80))
	require.Equal(t, []string{"press", "release", "press", "release"}, env.sink.kinds())
}

func TestTapClickEmitsLeftClick(t *testing.T) {
	env := newTestEnv(keyA())
	env.typingEnabled = false

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	require.Equal(t, ModeMouse, env.c.Mode())

	// Secondary finger taps briefly.
	env.c.ProcessFrame(frame(20, contact(1, 0.5, 0.5), contact(2, 0.7, 0.5)))
	env.c.ProcessFrame(frame(100, contact(1, 0.5, 0.5)))

	require.Equal(t, []string{"click", "click"}, env.sink.kinds())
	assert.Equal(t, 1, env.sink.events[0].button)
	assert.True(t, env.sink.events[0].pressed)
	assert.False(t, env.sink.events[1].pressed)
	assert.Equal(t, ModeMouse, env.c.Mode())
}

func TestTapClickHeldTooLongBecomesGesture(t *testing.T) {
	env := newTestEnv(keyA())
	env.typingEnabled = false

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(20, contact(1, 0.5, 0.5), contact(2, 0.7, 0.5)))
	env.c.ProcessFrame(frame(400, contact(1, 0.5, 0.5), contact(2, 0.7, 0.5)))

	require.Equal(t, ModeGesture, env.c.Mode())
	assert.Empty(t, env.sink.events)
}

func TestDeadSpacePressEmitsNothing(t *testing.T) {
	env := newTestEnv(keyA())
	env.bound = false

	env.c.ProcessFrame(frame(0, contact(1, 0.9, 0.9)))
	env.c.ProcessFrame(frame(40))

	assert.Empty(t, env.sink.events)
	assert.Equal(t, ModeIdle, env.c.Mode())
}

func TestPointerJitterSuppressed(t *testing.T) {
	env := newTestEnv(keyA())
	env.typingEnabled = false

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	// 0.0001 units in 10ms is far below MoveSpeed.
	env.c.ProcessFrame(frame(10, contact(1, 0.5001, 0.5)))
	assert.Empty(t, env.sink.events)

	env.c.ProcessFrame(frame(20, contact(1, 0.55, 0.5)))
	assert.Equal(t, []string{"move"}, env.sink.kinds())
}

func TestResetReleasesEmittedDown(t *testing.T) {
	env := newTestEnv(keyA())

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	env.c.ProcessFrame(frame(300, contact(1, 0.5, 0.5)))
	require.Equal(t, []string{"press"}, env.sink.kinds())

	env.c.Reset()
	require.Equal(t, []string{"press", "release"}, env.sink.kinds())
	assert.Equal(t, ModeIdle, env.c.Mode())
	assert.Equal(t, 0, env.c.Contacts())
}

func TestBindingCapturedAtPressStart(t *testing.T) {
	env := newTestEnv(keyA())

	env.c.ProcessFrame(frame(0, contact(1, 0.5, 0.5)))
	// Swap the mapping mid-press; the in-flight press must keep the capture.
	env.mapping = keymap.Mapping{Primary: keymap.Key(0x42, 0)}
	env.c.ProcessFrame(frame(40))

	require.Equal(t, []string{"press", "release"}, env.sink.kinds())
	assert.Equal(t, uint16(0x41), env.sink.events[0].action.Code)
}
