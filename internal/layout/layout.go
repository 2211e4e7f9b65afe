// Package layout maps normalized touch positions to key bindings: a grid of
// key cells plus free-floating custom buttons, with per-layer button overlays.
package layout

import (
	"fmt"

	"padkeys/internal/keymap"
	"padkeys/internal/touch"
)

// Rect is a normalized rectangle. Membership is inclusive on all edges so a
// touch exactly on a shared cell boundary still resolves.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports inclusive membership of p in r.
func (r Rect) Contains(p touch.Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// GridSpec describes the key grid for one side: Rows x Cols uniform cells
// filling Bounds.
type GridSpec struct {
	Rows   int  `json:"rows"`
	Cols   int  `json:"cols"`
	Bounds Rect `json:"bounds"`
}

// Button is a user-placed key independent of the grid. Buttons on non-zero
// layers are additive to the layer-0 buttons; on geometric overlap within a
// layer the most recently added button wins.
type Button struct {
	Rect    Rect           `json:"rect"`
	Layer   int            `json:"layer"`
	Label   string         `json:"label"`
	Primary keymap.Action  `json:"primary"`
	Hold    *keymap.Action `json:"hold,omitempty"`
}

// Layout is the complete geometry for one side.
type Layout struct {
	Side    touch.Side `json:"side"`
	Grid    GridSpec   `json:"grid"`
	Buttons []Button   `json:"buttons,omitempty"`
}

// HitKind discriminates what a touch resolved to.
type HitKind int

const (
	HitGridCell HitKind = iota
	HitButton
)

// Hit is the result of resolving a touch position. For grid hits Position is
// set; for button hits Button points into the resolver's immutable copy.
type Hit struct {
	Kind     HitKind
	Position keymap.Position
	Button   *Button
	Region   Rect
	Label    string
}

// Resolver performs pure hit-testing against a precomputed layout. A Resolver
// is immutable: layout changes build a new Resolver and swap it atomically, so
// no call ever observes a half-updated layout.
type Resolver struct {
	side           touch.Side
	grid           GridSpec
	cells          [][]Rect
	buttonsByLayer map[int][]Button
}

// NewResolver precomputes cell rectangles and per-layer button lists from l.
func NewResolver(l Layout) (*Resolver, error) {
	if l.Grid.Rows <= 0 || l.Grid.Cols <= 0 {
		return nil, fmt.Errorf("layout: grid must have positive shape, got %dx%d", l.Grid.Rows, l.Grid.Cols)
	}
	if l.Grid.Bounds.W <= 0 || l.Grid.Bounds.H <= 0 {
		return nil, fmt.Errorf("layout: grid bounds must have positive size")
	}

	cellW := l.Grid.Bounds.W / float64(l.Grid.Cols)
	cellH := l.Grid.Bounds.H / float64(l.Grid.Rows)
	cells := make([][]Rect, l.Grid.Rows)
	for row := 0; row < l.Grid.Rows; row++ {
		cells[row] = make([]Rect, l.Grid.Cols)
		for col := 0; col < l.Grid.Cols; col++ {
			cells[row][col] = Rect{
				X: l.Grid.Bounds.X + float64(col)*cellW,
				Y: l.Grid.Bounds.Y + float64(row)*cellH,
				W: cellW,
				H: cellH,
			}
		}
	}

	// Copy buttons preserving insertion order within each layer; insertion
	// order is what breaks overlap ties.
	byLayer := make(map[int][]Button)
	for _, b := range l.Buttons {
		if b.Layer < 0 {
			return nil, fmt.Errorf("layout: button %q has invalid layer %d", b.Label, b.Layer)
		}
		byLayer[b.Layer] = append(byLayer[b.Layer], b)
	}

	return &Resolver{
		side:           l.Side,
		grid:           l.Grid,
		cells:          cells,
		buttonsByLayer: byLayer,
	}, nil
}

// Side returns the side this resolver belongs to.
func (r *Resolver) Side() touch.Side {
	return r.side
}

// Grid returns the grid shape the resolver was built from.
func (r *Resolver) Grid() GridSpec {
	return r.grid
}

// Hit resolves p against the layout for the given active layer. Priority:
// active-layer button (most recently added wins), then layer-0 button when the
// active layer is non-zero, then the containing grid cell. Returns false for
// dead space.
func (r *Resolver) Hit(p touch.Point, activeLayer int) (Hit, bool) {
	if b := r.hitButton(p, activeLayer); b != nil {
		return Hit{Kind: HitButton, Button: b, Region: b.Rect, Label: b.Label}, true
	}
	if activeLayer != 0 {
		if b := r.hitButton(p, 0); b != nil {
			return Hit{Kind: HitButton, Button: b, Region: b.Rect, Label: b.Label}, true
		}
	}
	return r.hitCell(p)
}

func (r *Resolver) hitButton(p touch.Point, layer int) *Button {
	buttons := r.buttonsByLayer[layer]
	for i := len(buttons) - 1; i >= 0; i-- {
		if buttons[i].Rect.Contains(p) {
			return &buttons[i]
		}
	}
	return nil
}

func (r *Resolver) hitCell(p touch.Point) (Hit, bool) {
	if !r.grid.Bounds.Contains(p) {
		return Hit{}, false
	}

	col := int((p.X - r.grid.Bounds.X) / r.grid.Bounds.W * float64(r.grid.Cols))
	row := int((p.Y - r.grid.Bounds.Y) / r.grid.Bounds.H * float64(r.grid.Rows))
	// A touch exactly on the far edge indexes one past the last cell; clamp,
	// the bounds check above already proved membership.
	if col >= r.grid.Cols {
		col = r.grid.Cols - 1
	}
	if row >= r.grid.Rows {
		row = r.grid.Rows - 1
	}

	pos := keymap.Position{Side: r.side, Row: row, Col: col}
	region := r.cells[row][col]
	return Hit{Kind: HitGridCell, Position: pos, Region: region, Label: pos.String()}, true
}
