package planning

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSession = errors.New("invalid planning session")

// Validate checks the shape and invariants of a session that crossed a trust
// boundary, such as a cached snapshot.
func Validate(s Session) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSession)
	}
	if strings.TrimSpace(s.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidSession)
	}
	if s.AnchorPoints.IsSet() && s.AnchorPoints.Index() < 0 {
		return fmt.Errorf("%w: anchor points %d", ErrInvalidSession, s.AnchorPoints)
	}

	seen := make(map[string]struct{}, len(s.Stories))
	anchors := 0
	for _, story := range s.Stories {
		if story.ID == "" {
			return fmt.Errorf("%w: story without id", ErrInvalidSession)
		}
		if _, dup := seen[story.ID]; dup {
			return fmt.Errorf("%w: duplicate story %s", ErrInvalidSession, story.ID)
		}
		seen[story.ID] = struct{}{}
		if !story.Position.InBounds() {
			return fmt.Errorf("%w: story %s out of bounds", ErrInvalidSession, story.ID)
		}
		if story.IsAnchor {
			anchors++
			if story.ID != s.AnchorStoryID {
				return fmt.Errorf("%w: anchor flag on %s but anchor is %q", ErrInvalidSession, story.ID, s.AnchorStoryID)
			}
		}
	}

	switch {
	case len(s.Stories) == 0 && s.AnchorStoryID != "":
		return fmt.Errorf("%w: anchor %s without stories", ErrInvalidSession, s.AnchorStoryID)
	case len(s.Stories) > 0 && anchors != 1:
		return fmt.Errorf("%w: %d anchors", ErrInvalidSession, anchors)
	}
	return nil
}
