package estimate

import (
	"math"
	"strconv"
)

const (
	PositionMin   = -100.0
	PositionMax   = 100.0
	PositionRange = PositionMax - PositionMin
)

// Position is a point on the planning canvas: X is complexity, Y is
// uncertainty.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnchorPosition is where the anchor story sits.
var AnchorPosition = Position{X: 0, Y: 0}

// Normalize clamps each axis into [PositionMin, PositionMax]. NaN maps to the
// origin of that axis.
func Normalize(p Position) Position {
	return Position{X: clampAxis(p.X), Y: clampAxis(p.Y)}
}

// Sub returns p - q without normalizing.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// InBounds reports whether both axes are already within the canvas.
func (p Position) InBounds() bool {
	return p.X >= PositionMin && p.X <= PositionMax && p.Y >= PositionMin && p.Y <= PositionMax
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(PositionMin, math.Min(PositionMax, v))
}

// Placement is a position expressed as CSS percentages of the canvas, with
// the top edge at PositionMax.
type Placement struct {
	Left string `json:"left"`
	Top  string `json:"top"`
}

// PositionToPercentage maps a position to its placement on the rendered
// canvas.
func PositionToPercentage(p Position) Placement {
	n := Normalize(p)
	left := (n.X - PositionMin) / PositionRange * 100
	top := (PositionMax - n.Y) / PositionRange * 100
	return Placement{Left: formatPercent(left), Top: formatPercent(top)}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
