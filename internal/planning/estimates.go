package planning

import (
	"fmt"

	"storyscape/api/internal/estimate"
)

// StoryEstimate is a story with everything a client renders next to it.
type StoryEstimate struct {
	Story
	Score     float64            `json:"score"`
	Points    *int               `json:"points"`
	Placement estimate.Placement `json:"placement"`
}

// Estimates scores every story of the session in order.
func Estimates(s Session) ([]StoryEstimate, error) {
	out := make([]StoryEstimate, 0, len(s.Stories))
	for _, story := range s.Stories {
		points, err := estimate.StoryPoints(story.Story, s.AnchorPoints)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", s.Code, err)
		}
		out = append(out, StoryEstimate{
			Story:     story,
			Score:     estimate.PositionScore(story.Position),
			Points:    pointsValue(points),
			Placement: estimate.PositionToPercentage(story.Position),
		})
	}
	return out, nil
}

func pointsValue(p estimate.Points) *int {
	if !p.IsSet() {
		return nil
	}
	v := int(p)
	return &v
}
