package estimate

import (
	"errors"
	"fmt"
)

// Story is the part of a user story the scoring core needs.
type Story struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Position    Position `json:"position"`
	IsAnchor    bool     `json:"isAnchor"`
}

var ErrStoryNotFound = errors.New("story not found")

// Reanchor makes newAnchorID the anchor and re-expresses every other story
// relative to the new anchor's current position, so the geometry between
// stories is unchanged up to clamping. The new anchor is placed at
// newAnchorPosition, or AnchorPosition when nil. An in-bounds position is
// used exactly; an out-of-bounds one is normalized like any other position.
//
// The result has the same order as stories and exactly one anchor.
func Reanchor(stories []Story, newAnchorID string, newAnchorPosition *Position) ([]Story, error) {
	target := AnchorPosition
	if newAnchorPosition != nil {
		target = Normalize(*newAnchorPosition)
	}

	var origin Position
	found := false
	for _, story := range stories {
		if story.ID == newAnchorID {
			origin = story.Position
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("reanchor to %s: %w", newAnchorID, ErrStoryNotFound)
	}

	out := make([]Story, len(stories))
	for i, story := range stories {
		if story.ID == newAnchorID {
			story.Position = target
			story.IsAnchor = true
		} else {
			story.Position = Normalize(story.Position.Sub(origin))
			story.IsAnchor = false
		}
		out[i] = story
	}
	return out, nil
}
