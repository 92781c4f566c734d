package estimate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	ComplexityWeight  = 0.7
	UncertaintyWeight = 0.3
	// PercentPerStage is how many percentage points of weighted score
	// difference move an estimate one step along the sequence.
	PercentPerStage = 10.0
)

// Points is a story-point value from the Fibonacci sequence. The zero value
// means no points are assigned.
type Points int

const NoPoints Points = 0

// Fibonacci is the closed, ascending story-point scale.
var Fibonacci = []Points{1, 2, 3, 5, 8, 13, 21, 34, 55, 89}

var ErrInvalidPoints = errors.New("points not in fibonacci sequence")

// IsSet reports whether p carries a value.
func (p Points) IsSet() bool {
	return p != NoPoints
}

// Index returns the position of p in Fibonacci, or -1.
func (p Points) Index() int {
	for i, v := range Fibonacci {
		if v == p {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes NoPoints as null.
func (p Points) MarshalJSON() ([]byte, error) {
	if !p.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(int(p))
}

// UnmarshalJSON accepts null or a number. Membership in the sequence is not
// checked here.
func (p *Points) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = NoPoints
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode points: %w", err)
	}
	*p = Points(n)
	return nil
}

// IsFibonacci reports whether n is a member of the sequence.
func IsFibonacci(n int) bool {
	return Points(n).Index() >= 0
}

// ParsePoints validates a raw point value. Zero is accepted and clears the
// value.
func ParsePoints(n int) (Points, error) {
	if n == 0 {
		return NoPoints, nil
	}
	if !IsFibonacci(n) {
		return NoPoints, fmt.Errorf("%w: %d", ErrInvalidPoints, n)
	}
	return Points(n), nil
}

// Step moves p delta stages along the sequence, clamped to its ends.
func Step(p Points, delta int) (Points, error) {
	idx := p.Index()
	if idx < 0 {
		return NoPoints, fmt.Errorf("%w: %d", ErrInvalidPoints, p)
	}
	return Fibonacci[clampIndex(idx+delta)], nil
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i > len(Fibonacci)-1 {
		return len(Fibonacci) - 1
	}
	return i
}

// WeightedScore rates a position in [0, 1], 0 being the best the canvas
// allows. Complexity grows with x and uncertainty grows as y falls.
func WeightedScore(p Position) float64 {
	xScore := (p.X + PositionRange/2) / PositionRange
	yScore := (PositionRange/2 - p.Y) / PositionRange
	return ComplexityWeight*xScore + UncertaintyWeight*yScore
}

// StoryPoints estimates a story relative to the anchor's points.
//
// NoPoints is returned while the anchor has no points. The anchor itself gets
// anchorPoints. Any other story moves one stage along the sequence for each
// PercentPerStage of weighted score it sits away from the anchor position.
func StoryPoints(story Story, anchorPoints Points) (Points, error) {
	if !anchorPoints.IsSet() {
		return NoPoints, nil
	}
	if story.IsAnchor {
		return anchorPoints, nil
	}

	anchorIndex := anchorPoints.Index()
	if anchorIndex < 0 {
		return NoPoints, fmt.Errorf("estimate story %s: %w: %d", story.ID, ErrInvalidPoints, anchorPoints)
	}

	diff := WeightedScore(Normalize(story.Position)) - WeightedScore(AnchorPosition)
	percentage := diff * 100
	stages := int(roundHalfUp(percentage / PercentPerStage))

	return Fibonacci[clampIndex(anchorIndex+stages)], nil
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
