package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher on the generated stories.fts column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// storyQuery builds the ranked story query. The total match count rides
// along as a window column so one round trip serves both.
func storyQuery(q Query) (string, []any) {
	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	where := "s.fts @@ " + tsQuery
	if q.SessionID != "" {
		where += " AND s.session_id = $2"
		args = append(args, q.SessionID)
	}

	query := fmt.Sprintf(`
		SELECT s.id, ps.code, s.title,
			ts_headline('english', coalesce(s.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			count(*) OVER() AS total
		FROM stories s
		JOIN planning_sessions ps ON ps.id = s.session_id
		WHERE %s
		ORDER BY ts_rank(s.fts, %s) DESC, s.sort_order ASC
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, q.limit(), q.offset())
	return query, args
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	query, args := storyQuery(q)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var (
		results []Result
		total   int
	)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.SessionCode, &r.Title, &r.Snippet, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every story for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]StoryRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.session_id, ps.code, s.title, s.description
		FROM stories s
		JOIN planning_sessions ps ON ps.id = s.session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}
	defer rows.Close()

	records := make([]StoryRecord, 0)
	for rows.Next() {
		var r StoryRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.SessionCode, &r.Title, &r.Description); err != nil {
			return nil, fmt.Errorf("scan story record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story records: %w", err)
	}
	return records, nil
}
