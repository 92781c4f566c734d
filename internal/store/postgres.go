package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"storyscape/api/internal/estimate"
	"storyscape/api/internal/planning"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateSession(ctx context.Context, session planning.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO planning_sessions (id, name, code, anchor_story_id, anchor_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, session.ID, session.Name, session.Code, nullString(session.AnchorStoryID), nullPoints(session.AnchorPoints), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCodeTaken
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSessionByCode loads a session and its stories in display order. It
// returns sql.ErrNoRows when the code is unknown.
func (s *PostgresStore) GetSessionByCode(ctx context.Context, code string) (planning.Session, error) {
	var (
		session      planning.Session
		anchorID     sql.NullString
		anchorPoints sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, code, anchor_story_id, anchor_points, created_at, updated_at
		FROM planning_sessions
		WHERE code=$1
	`, code).Scan(&session.ID, &session.Name, &session.Code, &anchorID, &anchorPoints, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return planning.Session{}, err
	}
	session.AnchorStoryID = anchorID.String
	if anchorPoints.Valid {
		session.AnchorPoints = estimate.Points(anchorPoints.Int64)
	}

	stories, err := s.listStories(ctx, session.ID)
	if err != nil {
		return planning.Session{}, err
	}
	session.Stories = stories
	return session, nil
}

func (s *PostgresStore) listStories(ctx context.Context, sessionID string) ([]planning.Story, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, position_x, position_y, is_anchor, created_at, updated_at
		FROM stories
		WHERE session_id=$1
		ORDER BY sort_order ASC, created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	items := make([]planning.Story, 0)
	for rows.Next() {
		var item planning.Story
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Position.X, &item.Position.Y, &item.IsAnchor, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}
	return items, nil
}

// SaveSession writes the whole session in one transaction. Stories missing
// from session are deleted. Concurrent writers resolve last-write-wins.
func (s *PostgresStore) SaveSession(ctx context.Context, session planning.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE planning_sessions
		SET name=$2, anchor_story_id=$3, anchor_points=$4, updated_at=$5
		WHERE id=$1
	`, session.ID, session.Name, nullString(session.AnchorStoryID), nullPoints(session.AnchorPoints), session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	ids := make([]string, 0, len(session.Stories))
	for _, story := range session.Stories {
		ids = append(ids, story.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE session_id=$1 AND NOT (id = ANY($2))`, session.ID, ids); err != nil {
		return fmt.Errorf("prune stories: %w", err)
	}
	// Clear anchor flags first so the one-anchor index holds while rows are
	// rewritten.
	if _, err := tx.ExecContext(ctx, `UPDATE stories SET is_anchor=FALSE WHERE session_id=$1 AND is_anchor`, session.ID); err != nil {
		return fmt.Errorf("clear anchor: %w", err)
	}

	for i, story := range session.Stories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stories (id, session_id, title, description, position_x, position_y, is_anchor, sort_order, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				title=EXCLUDED.title,
				description=EXCLUDED.description,
				position_x=EXCLUDED.position_x,
				position_y=EXCLUDED.position_y,
				is_anchor=EXCLUDED.is_anchor,
				sort_order=EXCLUDED.sort_order,
				updated_at=EXCLUDED.updated_at
		`, story.ID, session.ID, story.Title, story.Description, story.Position.X, story.Position.Y, story.IsAnchor, i, story.CreatedAt, story.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert story %s: %w", story.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save session: %w", err)
	}
	return nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullPoints(points estimate.Points) any {
	if !points.IsSet() {
		return nil
	}
	return int64(points)
}
