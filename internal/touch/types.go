// Package touch defines the raw contact data model shared by the frame
// intake, the intent classifiers and the visualization snapshot path.
package touch

import "math"

// Side identifies one of the two trackpad surfaces.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

// NumSides is the number of independent surfaces.
const NumSides = 2

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return "unknown"
}

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Point is a surface-normalized position: (0,0) is the top-left corner of the
// pad, (1,1) the bottom-right, independent of the device resolution.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the euclidean distance between two normalized points.
func (p Point) DistanceTo(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Sample is one finger's contact on one side at one instant. ID is stable for
// the lifetime of that finger's contact; a new touch gets a new ID.
type Sample struct {
	ID       uint32  `json:"id"`
	Pos      Point   `json:"pos"`
	Pressure float64 `json:"pressure,omitempty"`
}

// Frame is the complete set of contacts for one side at one instant.
// Timestamp is wall-clock Unix milliseconds carried from the device; frames
// for a side arrive in strictly increasing timestamp order.
type Frame struct {
	Side      Side     `json:"side"`
	Seq       uint32   `json:"seq"`
	Timestamp int64    `json:"ts"`
	Contacts  []Sample `json:"contacts"`
}

// Contact returns the sample with the given contact ID, if present.
func (f Frame) Contact(id uint32) (Sample, bool) {
	for _, c := range f.Contacts {
		if c.ID == id {
			return c, true
		}
	}
	return Sample{}, false
}
