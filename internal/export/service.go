package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gosimple/slug"

	"storyscape/api/internal/planning"
)

// Service renders session reports and optionally archives them.
type Service struct {
	archive Archiver
	logger  *log.Logger
	pdf     func(ctx context.Context, html string) ([]byte, error)
	now     func() time.Time
}

// NewService creates an export service. archive may be nil.
func NewService(archive Archiver, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		archive: archive,
		logger:  logger.WithPrefix("export"),
		pdf:     renderPDF,
		now:     time.Now,
	}
}

// Export renders session in the requested format.
func (s *Service) Export(ctx context.Context, session planning.Session, format Format) (*Result, error) {
	estimates, err := planning.Estimates(session)
	if err != nil {
		return nil, fmt.Errorf("estimate session %s: %w", session.Code, err)
	}

	now := s.now().UTC()
	html, err := RenderSessionHTML(newTemplateData(session, estimates, now))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var result *Result
	switch format {
	case FormatHTML:
		result = &Result{
			Data:     []byte(html),
			Filename: Filename(session) + ".html",
			MimeType: "text/html; charset=utf-8",
		}
	case FormatPDF:
		data, err := s.pdf(ctx, html)
		if err != nil {
			return nil, err
		}
		result = &Result{
			Data:     data,
			Filename: Filename(session) + ".pdf",
			MimeType: "application/pdf",
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if s.archive != nil {
		key := fmt.Sprintf("%s/%s-%s", session.Code, now.Format("20060102T150405Z"), result.Filename)
		if err := s.archive.Archive(ctx, key, result.Data, result.MimeType); err != nil {
			s.logger.Warn("archive report failed", "code", session.Code, "key", key, "err", err)
		}
	}
	return result, nil
}

// Filename derives a download name from the session name and join code.
func Filename(session planning.Session) string {
	name := slug.Make(session.Name)
	if len(name) > 50 {
		name = strings.TrimRight(name[:50], "-")
	}
	if name == "" {
		name = "session"
	}
	return name + "-" + strings.ToLower(session.Code)
}
