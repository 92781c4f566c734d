package estimate

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestStoryPointsWithoutAnchorPoints(t *testing.T) {
	story := Story{ID: "s1", Position: Position{X: 80, Y: -20}}
	got, err := StoryPoints(story, NoPoints)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != NoPoints {
		t.Errorf("expected no points, got %d", got)
	}
}

func TestStoryPointsAnchorIdentity(t *testing.T) {
	anchor := Story{ID: "anchor", IsAnchor: true, Position: Position{X: 90, Y: -90}}
	for _, points := range Fibonacci {
		got, err := StoryPoints(anchor, points)
		if err != nil {
			t.Fatalf("unexpected error for %d: %v", points, err)
		}
		if got != points {
			t.Errorf("expected anchor to keep %d, got %d", points, got)
		}
	}
}

func TestStoryPointsAtAnchorPositionKeepsAnchorPoints(t *testing.T) {
	story := Story{ID: "twin", Position: AnchorPosition}
	for _, points := range Fibonacci {
		got, err := StoryPoints(story, points)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != points {
			t.Errorf("expected %d for a story on the anchor, got %d", points, got)
		}
	}
}

func TestStoryPointsInvalidAnchorPoints(t *testing.T) {
	story := Story{ID: "s1", Position: Position{X: 10, Y: 10}}
	_, err := StoryPoints(story, Points(4))
	if !errors.Is(err, ErrInvalidPoints) {
		t.Fatalf("expected ErrInvalidPoints, got %v", err)
	}
}

func TestStoryPointsComplexityLadder(t *testing.T) {
	tests := []struct {
		x    float64
		want Points
	}{
		{x: -60, want: 3},
		{x: -10, want: 8},
		{x: 30, want: 13},
		{x: 70, want: 21},
	}
	var prev Points
	for _, tt := range tests {
		got, err := StoryPoints(Story{ID: "s", Position: Position{X: tt.x}}, 8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("x=%v: expected %d, got %d", tt.x, tt.want, got)
		}
		if got < prev {
			t.Errorf("x=%v: estimate %d dropped below %d", tt.x, got, prev)
		}
		prev = got
	}
}

func TestStoryPointsUncertaintyWeighsLess(t *testing.T) {
	// 0.3 * 80/200 = 12% -> one stage.
	got, err := StoryPoints(Story{ID: "s", Position: Position{X: 0, Y: -80}}, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 13 {
		t.Errorf("expected 13, got %d", got)
	}

	// 0.7 * 90/200 = 31.5% -> three stages.
	got, err = StoryPoints(Story{ID: "s", Position: Position{X: 90, Y: 0}}, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 34 {
		t.Errorf("expected 34, got %d", got)
	}
}

func TestStoryPointsClampsAtSequenceEnds(t *testing.T) {
	worst := Story{ID: "worst", Position: Position{X: 100, Y: -100}}
	got, err := StoryPoints(worst, 89)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 89 {
		t.Errorf("expected 89 at the top of the ladder, got %d", got)
	}

	best := Story{ID: "best", Position: Position{X: -100, Y: 100}}
	got, err = StoryPoints(best, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("expected 1 at the bottom of the ladder, got %d", got)
	}
}

func TestStoryPointsMembership(t *testing.T) {
	for _, anchorPoints := range Fibonacci {
		for x := -150.0; x <= 150; x += 12.5 {
			for y := -150.0; y <= 150; y += 12.5 {
				got, err := StoryPoints(Story{ID: "s", Position: Position{X: x, Y: y}}, anchorPoints)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !IsFibonacci(int(got)) {
					t.Fatalf("StoryPoints(%v, %v, %d) = %d not in sequence", x, y, anchorPoints, got)
				}
			}
		}
	}
}

func TestParsePoints(t *testing.T) {
	if got, err := ParsePoints(0); err != nil || got != NoPoints {
		t.Errorf("expected 0 to clear points, got %d, %v", got, err)
	}
	if got, err := ParsePoints(13); err != nil || got != 13 {
		t.Errorf("expected 13, got %d, %v", got, err)
	}
	if _, err := ParsePoints(4); !errors.Is(err, ErrInvalidPoints) {
		t.Errorf("expected ErrInvalidPoints for 4, got %v", err)
	}
	if _, err := ParsePoints(-1); !errors.Is(err, ErrInvalidPoints) {
		t.Errorf("expected ErrInvalidPoints for -1, got %v", err)
	}
}

func TestStep(t *testing.T) {
	tests := []struct {
		from  Points
		delta int
		want  Points
	}{
		{from: 8, delta: 1, want: 13},
		{from: 8, delta: -2, want: 3},
		{from: 1, delta: -3, want: 1},
		{from: 55, delta: 5, want: 89},
	}
	for _, tt := range tests {
		got, err := Step(tt.from, tt.delta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("Step(%d, %d) = %d, expected %d", tt.from, tt.delta, got, tt.want)
		}
	}
	if _, err := Step(7, 1); !errors.Is(err, ErrInvalidPoints) {
		t.Errorf("expected ErrInvalidPoints, got %v", err)
	}
}

func TestPointsJSON(t *testing.T) {
	type wrapper struct {
		Points Points `json:"points"`
	}

	data, err := json.Marshal(wrapper{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"points":null}` {
		t.Errorf("expected null points, got %s", data)
	}

	data, err = json.Marshal(wrapper{Points: 13})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"points":13}` {
		t.Errorf("expected 13, got %s", data)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"points":21}`), &w); err != nil || w.Points != 21 {
		t.Errorf("expected 21, got %d (%v)", w.Points, err)
	}
	w = wrapper{Points: 8}
	if err := json.Unmarshal([]byte(`{"points":null}`), &w); err != nil || w.Points != NoPoints {
		t.Errorf("expected null to clear points, got %d (%v)", w.Points, err)
	}
	if err := json.Unmarshal([]byte(`{"points":"eight"}`), &w); err == nil {
		t.Error("expected error for non-numeric points")
	}
}
