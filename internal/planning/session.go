// Package planning holds a planning session's stories and anchor, and the
// commands that change them. Every command keeps the anchor invariant: when a
// session has stories, exactly one of them is the anchor.
package planning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"storyscape/api/internal/estimate"
)

var (
	ErrStoryNotFound = estimate.ErrStoryNotFound
	ErrAnchorDelete  = errors.New("anchor story cannot be deleted while other stories exist")
	ErrAnchorPinned  = errors.New("anchor story cannot be moved")
	ErrTitleRequired = errors.New("story title is required")
)

// Story is a user story placed on the session canvas.
type Story struct {
	estimate.Story
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is a planning session. AnchorPoints is estimate.NoPoints until the
// team assigns points to the anchor.
type Session struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Code          string          `json:"code"`
	Stories       []Story         `json:"stories"`
	AnchorStoryID string          `json:"anchorStoryId"`
	AnchorPoints  estimate.Points `json:"anchorPoints"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	out := s
	out.Stories = make([]Story, len(s.Stories))
	copy(out.Stories, s.Stories)
	return out
}

// Story returns the story with the given id.
func (s Session) Story(id string) (Story, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Stories[i], true
	}
	return Story{}, false
}

// Anchor returns the anchor story, if any.
func (s Session) Anchor() (Story, bool) {
	return s.Story(s.AnchorStoryID)
}

func (s Session) indexOf(id string) int {
	for i, story := range s.Stories {
		if story.ID == id {
			return i
		}
	}
	return -1
}

// AddStory appends a story at the anchor position. The first story of a
// session becomes its anchor.
func (s *Session) AddStory(id, title, description string, now time.Time) (Story, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Story{}, ErrTitleRequired
	}
	story := Story{
		Story: estimate.Story{
			ID:          id,
			Title:       title,
			Description: strings.TrimSpace(description),
			Position:    estimate.AnchorPosition,
			IsAnchor:    len(s.Stories) == 0,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Stories = append(s.Stories, story)
	if story.IsAnchor {
		s.AnchorStoryID = story.ID
	}
	s.UpdatedAt = now
	return story, nil
}

// UpdateStory replaces the display fields of a story.
func (s *Session) UpdateStory(id, title, description string, now time.Time) (Story, error) {
	i := s.indexOf(id)
	if i < 0 {
		return Story{}, fmt.Errorf("update story %s: %w", id, ErrStoryNotFound)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Story{}, ErrTitleRequired
	}
	s.Stories[i].Title = title
	s.Stories[i].Description = strings.TrimSpace(description)
	s.Stories[i].UpdatedAt = now
	s.UpdatedAt = now
	return s.Stories[i], nil
}

// MoveStory places a story at the normalized position.
func (s *Session) MoveStory(id string, to estimate.Position, now time.Time) (Story, error) {
	i := s.indexOf(id)
	if i < 0 {
		return Story{}, fmt.Errorf("move story %s: %w", id, ErrStoryNotFound)
	}
	if s.Stories[i].IsAnchor {
		return Story{}, ErrAnchorPinned
	}
	s.Stories[i].Position = estimate.Normalize(to)
	s.Stories[i].UpdatedAt = now
	s.UpdatedAt = now
	return s.Stories[i], nil
}

// DeleteStory removes a story. Removing the last story also clears the anchor
// and its points.
func (s *Session) DeleteStory(id string, now time.Time) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete story %s: %w", id, ErrStoryNotFound)
	}
	if s.Stories[i].IsAnchor && len(s.Stories) > 1 {
		return ErrAnchorDelete
	}
	s.Stories = append(s.Stories[:i:i], s.Stories[i+1:]...)
	if len(s.Stories) == 0 {
		s.AnchorStoryID = ""
		s.AnchorPoints = estimate.NoPoints
	}
	s.UpdatedAt = now
	return nil
}

// SetAnchor makes id the anchor and re-expresses every other story relative
// to it.
func (s *Session) SetAnchor(id string, now time.Time) error {
	core := make([]estimate.Story, len(s.Stories))
	for i, story := range s.Stories {
		core[i] = story.Story
	}
	moved, err := estimate.Reanchor(core, id, nil)
	if err != nil {
		return err
	}
	for i := range s.Stories {
		if s.Stories[i].Story != moved[i] {
			s.Stories[i].UpdatedAt = now
		}
		s.Stories[i].Story = moved[i]
	}
	s.AnchorStoryID = id
	s.UpdatedAt = now
	return nil
}

// SetAnchorPoints assigns the anchor's points; estimate.NoPoints clears them.
func (s *Session) SetAnchorPoints(points estimate.Points, now time.Time) error {
	if points.IsSet() && points.Index() < 0 {
		return fmt.Errorf("set anchor points: %w: %d", estimate.ErrInvalidPoints, points)
	}
	s.AnchorPoints = points
	s.UpdatedAt = now
	return nil
}
