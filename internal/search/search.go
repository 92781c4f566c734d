package search

import (
	"context"

	"storyscape/api/internal/planning"
)

// Result is a single story hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	SessionCode string `json:"sessionCode"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
}

// Query describes a search request scoped to one session.
type Query struct {
	Text      string
	SessionID string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push stories into a search index.
type Indexer interface {
	IndexStories(stories []StoryRecord) error
	DeleteStories(ids []string) error
}

// Backend is a primary search engine that also owns its index.
type Backend interface {
	Searcher
	Indexer
}

// StoryRecord is the data we index for a story.
type StoryRecord struct {
	ID          string `json:"id"`
	SessionID   string `json:"sessionId"`
	SessionCode string `json:"sessionCode"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RecordsFor flattens the stories of a session into index records.
func RecordsFor(session planning.Session) []StoryRecord {
	records := make([]StoryRecord, 0, len(session.Stories))
	for _, story := range session.Stories {
		records = append(records, StoryRecord{
			ID:          story.ID,
			SessionID:   session.ID,
			SessionCode: session.Code,
			Title:       story.Title,
			Description: story.Description,
		})
	}
	return records
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return 20
	}
	if q.Limit > 100 {
		return 100
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}
