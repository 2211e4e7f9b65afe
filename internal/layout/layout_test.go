package layout

import (
	"testing"

	"padkeys/internal/keymap"
	"padkeys/internal/touch"
)

func gridLayout(rows, cols int, buttons ...Button) Layout {
	return Layout{
		Side:    touch.SideLeft,
		Grid:    GridSpec{Rows: rows, Cols: cols, Bounds: Rect{X: 0, Y: 0, W: 1, H: 0.8}},
		Buttons: buttons,
	}
}

func TestNewResolverRejectsBadGrid(t *testing.T) {
	if _, err := NewResolver(gridLayout(0, 5)); err == nil {
		t.Error("expected error for zero rows")
	}
	if _, err := NewResolver(Layout{Grid: GridSpec{Rows: 2, Cols: 2}}); err == nil {
		t.Error("expected error for empty bounds")
	}
	bad := gridLayout(2, 2, Button{Layer: -1, Rect: Rect{W: 0.1, H: 0.1}})
	if _, err := NewResolver(bad); err == nil {
		t.Error("expected error for negative button layer")
	}
}

func TestGridHitIndexing(t *testing.T) {
	r, err := NewResolver(gridLayout(4, 5))
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	cases := []struct {
		x, y     float64
		row, col int
	}{
		{0.01, 0.01, 0, 0},
		{0.99, 0.79, 3, 4},
		{0.5, 0.4, 2, 2},
		{0.3, 0.1, 0, 1},
	}
	for _, tc := range cases {
		hit, ok := r.Hit(touch.Point{X: tc.x, Y: tc.y}, 0)
		if !ok {
			t.Errorf("Hit(%v,%v) missed", tc.x, tc.y)
			continue
		}
		if hit.Kind != HitGridCell {
			t.Errorf("Hit(%v,%v) kind = %v, want grid cell", tc.x, tc.y, hit.Kind)
		}
		if hit.Position.Row != tc.row || hit.Position.Col != tc.col {
			t.Errorf("Hit(%v,%v) = r%d c%d, want r%d c%d",
				tc.x, tc.y, hit.Position.Row, hit.Position.Col, tc.row, tc.col)
		}
	}
}

func TestGridEdgesInclusive(t *testing.T) {
	r, err := NewResolver(gridLayout(4, 5))
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	// Exactly on the far corner: inside, clamped to the last cell.
	hit, ok := r.Hit(touch.Point{X: 1.0, Y: 0.8}, 0)
	if !ok {
		t.Fatal("far corner must resolve")
	}
	if hit.Position.Row != 3 || hit.Position.Col != 4 {
		t.Errorf("far corner = r%d c%d, want r3 c4", hit.Position.Row, hit.Position.Col)
	}

	// Exactly on a shared interior boundary must still resolve.
	if _, ok := r.Hit(touch.Point{X: 0.2, Y: 0.2}, 0); !ok {
		t.Error("interior boundary must resolve")
	}
}

func TestDeadSpaceMisses(t *testing.T) {
	r, err := NewResolver(gridLayout(4, 5))
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	if _, ok := r.Hit(touch.Point{X: 0.5, Y: 0.95}, 0); ok {
		t.Error("point below the grid must be dead space")
	}
	if _, ok := r.Hit(touch.Point{X: -0.1, Y: 0.5}, 0); ok {
		t.Error("point left of the grid must be dead space")
	}
}

func TestButtonBeatsGrid(t *testing.T) {
	btn := Button{
		Rect:    Rect{X: 0.4, Y: 0.3, W: 0.2, H: 0.2},
		Label:   "Space",
		Primary: keymap.Key(keymap.CodeSpace, 0),
	}
	r, err := NewResolver(gridLayout(4, 5, btn))
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	hit, ok := r.Hit(touch.Point{X: 0.5, Y: 0.4}, 0)
	if !ok || hit.Kind != HitButton {
		t.Fatalf("expected button hit, got %+v (ok=%v)", hit, ok)
	}
	if hit.Button.Primary.Code != keymap.CodeSpace {
		t.Errorf("wrong button resolved: %+v", hit.Button)
	}
}

func TestOverlappingButtonsLastAddedWins(t *testing.T) {
	first := Button{Rect: Rect{X: 0.1, Y: 0.1, W: 0.3, H: 0.3}, Label: "first", Primary: keymap.Key(0x41, 0)}
	second := Button{Rect: Rect{X: 0.2, Y: 0.2, W: 0.3, H: 0.3}, Label: "second", Primary: keymap.Key(0x42, 0)}
	r, err := NewResolver(gridLayout(4, 5, first, second))
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	hit, ok := r.Hit(touch.Point{X: 0.25, Y: 0.25}, 0)
	if !ok || hit.Label != "second" {
		t.Errorf("expected last-added button, got %q (ok=%v)", hit.Label, ok)
	}

	// Outside the overlap the first button still resolves.
	hit, ok = r.Hit(touch.Point{X: 0.12, Y: 0.12}, 0)
	if !ok || hit.Label != "first" {
		t.Errorf("expected first button, got %q (ok=%v)", hit.Label, ok)
	}
}

func TestLayerButtonsAdditive(t *testing.T) {
	base := Button{Rect: Rect{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}, Layer: 0, Label: "base", Primary: keymap.Key(0x41, 0)}
	overlay := Button{Rect: Rect{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}, Layer: 1, Label: "overlay", Primary: keymap.Key(0x31, 0)}
	r, err := NewResolver(gridLayout(4, 5, base, overlay))
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	hit, _ := r.Hit(touch.Point{X: 0.2, Y: 0.2}, 0)
	if hit.Label != "base" {
		t.Errorf("layer 0 should resolve base, got %q", hit.Label)
	}

	hit, _ = r.Hit(touch.Point{X: 0.2, Y: 0.2}, 1)
	if hit.Label != "overlay" {
		t.Errorf("layer 1 should resolve overlay, got %q", hit.Label)
	}

	// A layer with no own button at the position falls back to layer 0.
	hit, _ = r.Hit(touch.Point{X: 0.2, Y: 0.2}, 2)
	if hit.Label != "base" {
		t.Errorf("layer 2 should fall back to base button, got %q", hit.Label)
	}
}
