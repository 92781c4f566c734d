package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"storyscape/api/internal/cache"
	"storyscape/api/internal/estimate"
	"storyscape/api/internal/export"
	"storyscape/api/internal/logging"
	"storyscape/api/internal/planning"
	"storyscape/api/internal/search"
	"storyscape/api/internal/store"
	"storyscape/api/internal/util"
)

const (
	maxNameLength        = 120
	maxTitleLength       = 200
	maxDescriptionLength = 4000
	joinCodeAttempts     = 5

	defaultBoardIdleTTL = 10 * time.Minute
	defaultMaxBoards    = 1024
)

type dataStore interface {
	Ping(context.Context) error
	CreateSession(context.Context, planning.Session) error
	GetSessionByCode(context.Context, string) (planning.Session, error)
	SaveSession(context.Context, planning.Session) error
}

type sessionCache interface {
	Get(context.Context, string) (planning.Session, error)
	Set(context.Context, planning.Session) error
	Invalidate(context.Context, string) error
	Ping(context.Context) error
}

type storySearch interface {
	Search(context.Context, search.Query) search.Response
	IndexStories([]search.StoryRecord)
	DeleteStories([]string)
}

type reportExporter interface {
	Export(context.Context, planning.Session, export.Format) (*export.Result, error)
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithCache enables the session snapshot cache.
func WithCache(c sessionCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithSearch enables story search and indexing.
func WithSearch(ss storySearch) Option {
	return func(s *Service) { s.search = ss }
}

// WithExporter replaces the default report exporter.
func WithExporter(e reportExporter) Option {
	return func(s *Service) { s.exporter = e }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// sessionEntry serializes load-and-apply for one join code. refs and
// lastUsed are guarded by Service.mu.
type sessionEntry struct {
	mu    sync.Mutex
	board *planning.Board

	refs     int
	lastUsed time.Time
}

type Service struct {
	store    dataStore
	cache    sessionCache
	search   storySearch
	exporter reportExporter
	logger   *log.Logger

	now     func() time.Time
	newID   func(prefix string) string
	newCode func() string

	mu           sync.Mutex
	sessions     map[string]*sessionEntry
	lastSweep    time.Time
	boardIdleTTL time.Duration
	maxBoards    int
}

func New(store dataStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		logger:   log.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    util.NewID,
		newCode:  util.NewJoinCode,
		sessions: make(map[string]*sessionEntry),

		boardIdleTTL: defaultBoardIdleTTL,
		maxBoards:    defaultMaxBoards,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.exporter == nil {
		s.exporter = export.NewService(nil, s.logger)
	}
	return s
}

// SessionView is what clients poll: the session plus derived estimates.
type SessionView struct {
	planning.Session
	Estimates []planning.StoryEstimate `json:"estimates"`
}

type EstimateInput struct {
	Position     estimate.Position `json:"position"`
	IsAnchor     bool              `json:"isAnchor"`
	AnchorPoints *int              `json:"anchorPoints"`
}

type EstimateResult struct {
	Position  estimate.Position  `json:"position"`
	Score     float64            `json:"score"`
	Points    *int               `json:"points"`
	Placement estimate.Placement `json:"placement"`
}

// ReadinessCheck is the outcome of probing one dependency.
type ReadinessCheck struct {
	Name string
	Err  error
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Readiness probes the database and, when configured, the cache. Only the
// database is required for the service to be ready.
func (s *Service) Readiness(ctx context.Context) (ready bool, checks []ReadinessCheck) {
	dbErr := s.store.Ping(ctx)
	checks = append(checks, ReadinessCheck{Name: "database", Err: dbErr})
	if s.cache != nil {
		checks = append(checks, ReadinessCheck{Name: "cache", Err: s.cache.Ping(ctx)})
	}
	return dbErr == nil, checks
}

func (s *Service) CreateSession(ctx context.Context, name string) (SessionView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SessionView{}, validationError("name is required", nil)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return SessionView{}, validationError(fmt.Sprintf("name must be at most %d characters", maxNameLength), nil)
	}

	now := s.now()
	session := planning.Session{
		ID:        s.newID("ses"),
		Name:      name,
		Stories:   []planning.Story{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		session.Code = s.newCode()
		err := s.store.CreateSession(ctx, session)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrCodeTaken) {
			return SessionView{}, err
		}
		if attempt == joinCodeAttempts {
			return SessionView{}, fmt.Errorf("allocate join code after %d attempts: %w", attempt, err)
		}
		logging.FromContext(ctx).Debug("join code taken, retrying", "code", session.Code, "attempt", attempt)
	}

	s.cacheSet(ctx, session)
	logging.FromContext(ctx).Info("session created", "code", session.Code, "session_id", session.ID)
	return SessionView{Session: session, Estimates: []planning.StoryEstimate{}}, nil
}

// GetSession returns a fresh copy of the session. Clients poll this to see
// changes made by other participants.
func (s *Service) GetSession(ctx context.Context, code string) (SessionView, error) {
	session, err := s.refresh(ctx, code)
	if err != nil {
		return SessionView{}, err
	}
	return newSessionView(session)
}

func (s *Service) AddStory(ctx context.Context, code, title, description string) (planning.Story, error) {
	if err := validateStoryText(title, description); err != nil {
		return planning.Story{}, err
	}
	id := s.newID("st")
	session, err := s.apply(ctx, code, func(session *planning.Session) error {
		_, err := session.AddStory(id, title, description, s.now())
		return err
	})
	if err != nil {
		return planning.Story{}, err
	}
	story, _ := session.Story(id)
	return story, nil
}

func (s *Service) UpdateStory(ctx context.Context, code, id, title, description string) (planning.Story, error) {
	if err := validateStoryText(title, description); err != nil {
		return planning.Story{}, err
	}
	session, err := s.apply(ctx, code, func(session *planning.Session) error {
		_, err := session.UpdateStory(id, title, description, s.now())
		return err
	})
	if err != nil {
		return planning.Story{}, err
	}
	story, _ := session.Story(id)
	return story, nil
}

// MoveStory places a story on the canvas. Out-of-range coordinates are
// clamped to the canvas.
func (s *Service) MoveStory(ctx context.Context, code, id string, to estimate.Position) (planning.Story, error) {
	session, err := s.apply(ctx, code, func(session *planning.Session) error {
		_, err := session.MoveStory(id, to, s.now())
		return err
	})
	if err != nil {
		return planning.Story{}, err
	}
	story, _ := session.Story(id)
	return story, nil
}

func (s *Service) DeleteStory(ctx context.Context, code, id string) error {
	if _, err := s.apply(ctx, code, func(session *planning.Session) error {
		return session.DeleteStory(id, s.now())
	}); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteStories([]string{id})
	}
	return nil
}

// SetAnchor makes id the anchor and re-expresses every other story relative
// to it.
func (s *Service) SetAnchor(ctx context.Context, code, id string) (SessionView, error) {
	session, err := s.apply(ctx, code, func(session *planning.Session) error {
		return session.SetAnchor(id, s.now())
	})
	if err != nil {
		return SessionView{}, err
	}
	return newSessionView(session)
}

// SetAnchorPoints assigns the anchor's points. nil clears them.
func (s *Service) SetAnchorPoints(ctx context.Context, code string, points *int) (SessionView, error) {
	value := estimate.NoPoints
	if points != nil {
		parsed, err := estimate.ParsePoints(*points)
		if err != nil || !parsed.IsSet() {
			return SessionView{}, validationError("points must be one of the Fibonacci values", map[string]any{"allowed": estimate.Fibonacci})
		}
		value = parsed
	}
	session, err := s.apply(ctx, code, func(session *planning.Session) error {
		return session.SetAnchorPoints(value, s.now())
	})
	if err != nil {
		return SessionView{}, err
	}
	return newSessionView(session)
}

func (s *Service) SearchStories(ctx context.Context, code, query string) (search.Response, error) {
	session, err := s.refresh(ctx, code)
	if err != nil {
		return search.Response{}, err
	}
	query = strings.TrimSpace(query)
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query}, nil
	}
	return s.search.Search(ctx, search.Query{Text: query, SessionID: session.ID}), nil
}

func (s *Service) ExportSession(ctx context.Context, code, format string) (*export.Result, error) {
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, commandError(err)
	}
	session, err := s.refresh(ctx, code)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, session, parsed)
	if err != nil {
		return nil, commandError(err)
	}
	return result, nil
}

// Estimate scores a single position without touching any session.
func (s *Service) Estimate(input EstimateInput) (EstimateResult, error) {
	anchorPoints := estimate.NoPoints
	if input.AnchorPoints != nil {
		parsed, err := estimate.ParsePoints(*input.AnchorPoints)
		if err != nil || !parsed.IsSet() {
			return EstimateResult{}, validationError("anchorPoints must be one of the Fibonacci values", map[string]any{"allowed": estimate.Fibonacci})
		}
		anchorPoints = parsed
	}

	position := estimate.Normalize(input.Position)
	if input.IsAnchor {
		position = estimate.AnchorPosition
	}
	points, err := estimate.StoryPoints(estimate.Story{Position: position, IsAnchor: input.IsAnchor}, anchorPoints)
	if err != nil {
		return EstimateResult{}, err
	}

	result := EstimateResult{
		Position:  position,
		Score:     estimate.PositionScore(position),
		Placement: estimate.PositionToPercentage(position),
	}
	if points.IsSet() {
		value := int(points)
		result.Points = &value
	}
	return result, nil
}

func newSessionView(session planning.Session) (SessionView, error) {
	estimates, err := planning.Estimates(session)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{Session: session, Estimates: estimates}, nil
}

func validateStoryText(title, description string) error {
	if strings.TrimSpace(title) == "" {
		return validationError("title is required", nil)
	}
	if utf8.RuneCountInString(strings.TrimSpace(title)) > maxTitleLength {
		return validationError(fmt.Sprintf("title must be at most %d characters", maxTitleLength), nil)
	}
	if utf8.RuneCountInString(strings.TrimSpace(description)) > maxDescriptionLength {
		return validationError(fmt.Sprintf("description must be at most %d characters", maxDescriptionLength), nil)
	}
	return nil
}

// acquire returns the entry for code, creating it if needed. Every acquire
// must be paired with release.
func (s *Service) acquire(code string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[code]
	if !ok {
		e = &sessionEntry{board: planning.NewBoard(planning.Session{Code: code})}
		s.sessions[code] = e
	}
	e.refs++
	e.lastUsed = s.now()
	return e
}

// release drops a reference. Entries whose session never loaded are removed
// as soon as nobody holds them, so lookups of unknown codes retain nothing.
func (s *Service) release(code string, e *sessionEntry, loaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	now := s.now()
	e.lastUsed = now
	if !loaded && e.refs == 0 && s.sessions[code] == e {
		delete(s.sessions, code)
	}
	s.evictLocked(now)
}

// evictLocked removes idle boards. It sweeps at most once per idle TTL
// unless the map is over its cap, in which case the least recently used
// idle boards go first.
func (s *Service) evictLocked(now time.Time) {
	over := len(s.sessions) > s.maxBoards
	if !over && now.Sub(s.lastSweep) < s.boardIdleTTL {
		return
	}
	s.lastSweep = now

	var idle []string
	for code, e := range s.sessions {
		if e.refs > 0 {
			continue
		}
		if now.Sub(e.lastUsed) >= s.boardIdleTTL {
			delete(s.sessions, code)
			continue
		}
		idle = append(idle, code)
	}
	if len(s.sessions) <= s.maxBoards {
		return
	}

	sort.Slice(idle, func(i, j int) bool {
		return s.sessions[idle[i]].lastUsed.Before(s.sessions[idle[j]].lastUsed)
	})
	for _, code := range idle {
		if len(s.sessions) <= s.maxBoards {
			break
		}
		delete(s.sessions, code)
	}
}

// refresh loads the latest copy of a session and resets its board to it.
func (s *Service) refresh(ctx context.Context, rawCode string) (planning.Session, error) {
	code := util.NormalizeJoinCode(rawCode)
	if len(code) != util.JoinCodeLength {
		return planning.Session{}, errSessionNotFound
	}
	e := s.acquire(code)
	e.mu.Lock()
	session, err := s.load(ctx, code, e.board)
	e.mu.Unlock()
	s.release(code, e, err == nil)
	return session, err
}

// load must be called with the entry lock held.
func (s *Service) load(ctx context.Context, code string, board *planning.Board) (planning.Session, error) {
	logger := logging.FromContext(ctx)

	if s.cache != nil {
		session, err := s.cache.Get(ctx, code)
		if err == nil {
			board.Reset(session)
			return session, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logger.Warn("session cache read failed", "code", code, "err", err)
		}
	}

	session, err := s.store.GetSessionByCode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return planning.Session{}, errSessionNotFound
	}
	if err != nil {
		return planning.Session{}, err
	}
	if err := planning.Validate(session); err != nil {
		return planning.Session{}, fmt.Errorf("load session %s: %w", code, err)
	}

	board.Reset(session)
	s.cacheSet(ctx, session)
	return session, nil
}

// apply runs a command against the latest copy of a session. The board
// rolls back when the command or the save fails.
func (s *Service) apply(ctx context.Context, rawCode string, mutate func(*planning.Session) error) (planning.Session, error) {
	code := util.NormalizeJoinCode(rawCode)
	if len(code) != util.JoinCodeLength {
		return planning.Session{}, errSessionNotFound
	}
	e := s.acquire(code)
	e.mu.Lock()
	_, loadErr := s.load(ctx, code, e.board)
	var session planning.Session
	err := loadErr
	if loadErr == nil {
		session, err = e.board.Apply(ctx, mutate, s.persist)
		if err != nil {
			err = commandError(err)
		}
	}
	e.mu.Unlock()
	s.release(code, e, loadErr == nil)
	if err != nil {
		return planning.Session{}, err
	}

	if s.search != nil {
		s.search.IndexStories(search.RecordsFor(session))
	}
	return session, nil
}

func (s *Service) persist(ctx context.Context, session planning.Session) error {
	if err := s.store.SaveSession(ctx, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errSessionNotFound
		}
		return fmt.Errorf("save session %s: %w", session.Code, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, session.Code); err != nil {
			logging.FromContext(ctx).Warn("session cache invalidate failed", "code", session.Code, "err", err)
		}
	}
	return nil
}

func (s *Service) cacheSet(ctx context.Context, session planning.Session) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, session); err != nil {
		logging.FromContext(ctx).Warn("session cache write failed", "code", session.Code, "err", err)
	}
}
