// Package keymap holds the layered key/action table: an immutable-per-revision
// mapping from grid positions to action descriptors, with non-zero layers
// falling back to the base layer for absent positions.
package keymap

import (
	"fmt"

	"padkeys/internal/touch"
)

// Position addresses a grid cell by (side, row, column). It is stable across
// layout changes as long as the grid shape is unchanged.
type Position struct {
	Side touch.Side `json:"side"`
	Row  int        `json:"row"`
	Col  int        `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Side, p.Row, p.Col)
}

// ActionKind discriminates the Action union.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionKey
	ActionTypingToggle
	ActionLayerMomentary
	ActionLayerToggle
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionKey:
		return "key"
	case ActionTypingToggle:
		return "typing_toggle"
	case ActionLayerMomentary:
		return "layer_momentary"
	case ActionLayerToggle:
		return "layer_toggle"
	}
	return "invalid"
}

// Action is a tagged action descriptor. Code and Modifiers are meaningful for
// ActionKey; Layer for the layer actions. Label is a human-readable name used
// for display and debug-hit reporting.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Code      uint16     `json:"code,omitempty"`
	Modifiers uint16     `json:"modifiers,omitempty"`
	Layer     int        `json:"layer,omitempty"`
	Label     string     `json:"label,omitempty"`
}

// Key builds a plain key action with an auto-derived label.
func Key(code, modifiers uint16) Action {
	return Action{Kind: ActionKey, Code: code, Modifiers: modifiers, Label: CodeLabel(code)}
}

// Momentary builds a momentary-layer action: the layer is active only while
// the key is held.
func Momentary(layer int) Action {
	return Action{Kind: ActionLayerMomentary, Layer: layer, Label: fmt.Sprintf("L%d", layer)}
}

// Toggle builds a layer-toggle action: a tap flips the persistent layer.
func Toggle(layer int) Action {
	return Action{Kind: ActionLayerToggle, Layer: layer, Label: fmt.Sprintf("L%d!", layer)}
}

// TypingToggle builds an action that flips the global typing-enabled flag.
func TypingToggle() Action {
	return Action{Kind: ActionTypingToggle, Label: "Typing"}
}

// Equal reports action equality: by (code, modifiers) for key actions, by
// (kind, layer) for everything else. Labels never participate.
func (a Action) Equal(b Action) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == ActionKey {
		return a.Code == b.Code && a.Modifiers == b.Modifiers
	}
	return a.Layer == b.Layer
}

// Mapping is the primary action plus an optional secondary action fired when
// the press is sustained past the hold threshold.
type Mapping struct {
	Primary Action  `json:"primary"`
	Hold    *Action `json:"hold,omitempty"`
}

// Table is a layered, immutable key mapping. Layer 0 is the base layer and is
// always populated; lookups in other layers fall back to layer 0 per position.
// A Table is never mutated after construction: configuration updates build a
// new Table and swap the pointer.
type Table struct {
	layers map[int]map[Position]Mapping
}

// NewTable builds a Table from per-layer mappings. Layer 0 must be present.
// A missing layer 1 is defaulted to a copy of layer 0, which is the
// data-integrity contract the engine requires from its loader. Input maps are
// copied; the caller may keep mutating its own.
func NewTable(layers map[int]map[Position]Mapping) (*Table, error) {
	if layers[0] == nil {
		return nil, fmt.Errorf("keymap: layer 0 must be populated")
	}
	copied := make(map[int]map[Position]Mapping, len(layers))
	for layer, m := range layers {
		if layer < 0 {
			return nil, fmt.Errorf("keymap: invalid layer %d", layer)
		}
		dst := make(map[Position]Mapping, len(m))
		for pos, mapping := range m {
			dst[pos] = mapping
		}
		copied[layer] = dst
	}
	if copied[1] == nil {
		base := make(map[Position]Mapping, len(copied[0]))
		for pos, mapping := range copied[0] {
			base[pos] = mapping
		}
		copied[1] = base
	}
	return &Table{layers: copied}, nil
}

// Lookup resolves a position in the given layer, falling back to layer 0 when
// the layer has no entry for it. The second return is false only when neither
// the layer nor the base layer binds the position.
func (t *Table) Lookup(layer int, pos Position) (Mapping, bool) {
	if m, ok := t.layers[layer]; ok {
		if mapping, ok := m[pos]; ok {
			return mapping, true
		}
	}
	if layer != 0 {
		if mapping, ok := t.layers[0][pos]; ok {
			return mapping, true
		}
	}
	return Mapping{}, false
}

// Layers returns the layer numbers present in the table.
func (t *Table) Layers() []int {
	out := make([]int, 0, len(t.layers))
	for n := range t.layers {
		out = append(out, n)
	}
	return out
}

// Len returns the number of entries in the given layer.
func (t *Table) Len(layer int) int {
	return len(t.layers[layer])
}
