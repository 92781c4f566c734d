package search

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
)

// Service tries the primary backend first and falls back to Postgres FTS.
type Service struct {
	primary  Backend
	fallback Searcher
	loader   func(context.Context) ([]StoryRecord, error)
	logger   *log.Logger
}

// NewService creates a search service. primary may be nil when Meilisearch is
// not configured.
func NewService(primary Backend, pgfts *PgFTS, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{primary: primary, logger: logger.WithPrefix("search")}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts.LoadAllRecords
	}
	return s
}

func (s *Service) primaryReady() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search never fails; backend errors degrade to an empty result set.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	empty := Response{Results: []Result{}, Query: q.Text}
	if q.Text == "" {
		return empty
	}

	if s.primaryReady() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("primary search failed, falling back to pgfts", "err", err)
	}
	if s.fallback == nil {
		return empty
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("pgfts search failed", "err", err)
		return empty
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexStories pushes records to the primary index (fire-and-forget).
func (s *Service) IndexStories(records []StoryRecord) {
	if !s.primaryReady() || len(records) == 0 {
		return
	}
	go func() {
		if err := s.primary.IndexStories(records); err != nil {
			s.logger.Warn("index stories", "count", len(records), "err", err)
		}
	}()
}

// DeleteStories removes stories from the primary index (fire-and-forget).
func (s *Service) DeleteStories(ids []string) {
	if !s.primaryReady() || len(ids) == 0 {
		return
	}
	go func() {
		if err := s.primary.DeleteStories(ids); err != nil {
			s.logger.Warn("delete stories", "ids", ids, "err", err)
		}
	}()
}

// ReindexAll reads every story from Postgres and pushes it to the primary
// index. Called at startup.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.primaryReady() || s.loader == nil {
		return
	}
	records, err := s.loader(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", "err", err)
		return
	}
	if err := s.primary.IndexStories(records); err != nil {
		s.logger.Error("reindex stories", "err", err)
		return
	}
	s.logger.Info("reindexed stories", "count", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
