package export

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"storyscape/api/internal/estimate"
	"storyscape/api/internal/planning"
)

type fakeArchiver struct {
	keys        []string
	contentType string
	err         error
}

func (f *fakeArchiver) Archive(_ context.Context, key string, _ []byte, contentType string) error {
	f.keys = append(f.keys, key)
	f.contentType = contentType
	return f.err
}

var exportNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func newTestService(archive Archiver) *Service {
	svc := NewService(archive, log.New(io.Discard))
	svc.now = func() time.Time { return exportNow }
	return svc
}

func exportSession(t *testing.T) planning.Session {
	t.Helper()
	s := planning.Session{ID: "ses_1", Name: "Sprint 12: Checkout & Payments", Code: "K7MPQ2"}
	if _, err := s.AddStory("a", "Cart badge", "", exportNow); err != nil {
		t.Fatalf("AddStory: %v", err)
	}
	if _, err := s.AddStory("b", "Stripe <webhooks>", "retry on 5xx", exportNow); err != nil {
		t.Fatalf("AddStory: %v", err)
	}
	if _, err := s.MoveStory("b", estimate.Position{X: 70, Y: 0}, exportNow); err != nil {
		t.Fatalf("MoveStory: %v", err)
	}
	if err := s.SetAnchorPoints(8, exportNow); err != nil {
		t.Fatalf("SetAnchorPoints: %v", err)
	}
	return s
}

func TestExportHTML(t *testing.T) {
	svc := newTestService(nil)
	result, err := svc.Export(context.Background(), exportSession(t), FormatHTML)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("unexpected mime type %s", result.MimeType)
	}
	if result.Filename != "sprint-12-checkout-and-payments-k7mpq2.html" {
		t.Errorf("unexpected filename %s", result.Filename)
	}

	html := string(result.Data)
	for _, want := range []string{
		"Sprint 12: Checkout &amp; Payments",
		"Join code K7MPQ2",
		"anchor points 8",
		"Stripe &lt;webhooks&gt;",
		"Cart badge (anchor)",
		"left: 85%",
		"<td class=\"num\">21</td>",
		"Mar 2, 2026",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in report", want)
		}
	}
}

func TestExportWithoutAnchorPoints(t *testing.T) {
	s := exportSession(t)
	if err := s.SetAnchorPoints(estimate.NoPoints, exportNow); err != nil {
		t.Fatalf("SetAnchorPoints: %v", err)
	}
	result, err := newTestService(nil).Export(context.Background(), s, FormatHTML)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(string(result.Data), "anchor points unset") {
		t.Error("expected unset anchor points in report")
	}
}

func TestExportPDFUsesRenderer(t *testing.T) {
	svc := newTestService(nil)
	var rendered string
	svc.pdf = func(_ context.Context, html string) ([]byte, error) {
		rendered = html
		return []byte("%PDF-1.7"), nil
	}

	result, err := svc.Export(context.Background(), exportSession(t), FormatPDF)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if string(result.Data) != "%PDF-1.7" || result.MimeType != "application/pdf" {
		t.Errorf("unexpected result %+v", result)
	}
	if !strings.HasSuffix(result.Filename, ".pdf") {
		t.Errorf("expected pdf filename, got %s", result.Filename)
	}
	if !strings.Contains(rendered, "K7MPQ2") {
		t.Error("expected session html passed to renderer")
	}
}

func TestExportPDFDependencyMissing(t *testing.T) {
	svc := newTestService(nil)
	svc.pdf = func(context.Context, string) ([]byte, error) {
		return nil, ErrPDFDependencyMissing
	}
	_, err := svc.Export(context.Background(), exportSession(t), FormatPDF)
	if !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}

func TestExportArchivesReport(t *testing.T) {
	archive := &fakeArchiver{}
	svc := newTestService(archive)
	if _, err := svc.Export(context.Background(), exportSession(t), FormatHTML); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	want := "K7MPQ2/20260302T093000Z-sprint-12-checkout-and-payments-k7mpq2.html"
	if len(archive.keys) != 1 || archive.keys[0] != want {
		t.Errorf("expected archive key %s, got %v", want, archive.keys)
	}
}

func TestExportArchiveFailureIsNotFatal(t *testing.T) {
	archive := &fakeArchiver{err: errors.New("bucket gone")}
	if _, err := newTestService(archive).Export(context.Background(), exportSession(t), FormatHTML); err != nil {
		t.Fatalf("archive failure should not fail export: %v", err)
	}
}

func TestExportInvalidAnchorPoints(t *testing.T) {
	s := exportSession(t)
	s.AnchorPoints = 4
	_, err := newTestService(nil).Export(context.Background(), s, FormatHTML)
	if !errors.Is(err, estimate.ErrInvalidPoints) {
		t.Fatalf("expected ErrInvalidPoints, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatHTML, "html": FormatHTML, "pdf": FormatPDF}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Q3 Roadmap", "q3-roadmap-abc234"},
		{"!!!", "session-abc234"},
		{strings.Repeat("long name ", 10), "long-name-long-name-long-name-long-name-long-name-abc234"},
	}
	for _, tt := range tests {
		got := Filename(planning.Session{Name: tt.name, Code: "ABC234"})
		if got != tt.want {
			t.Errorf("Filename(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestHTMLDataURLRoundTrip(t *testing.T) {
	html := "<p>a b</p>é"
	url := htmlDataURL(html)

	const prefix = "data:text/html;charset=utf-8;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("unexpected data url %q", url)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != html {
		t.Errorf("round trip = %q, want %q", decoded, html)
	}
}

func TestLetterLandscapeLayout(t *testing.T) {
	params := letterLandscape.print()
	if !params.Landscape || !params.PrintBackground {
		t.Errorf("expected landscape with backgrounds, got %+v", params)
	}
	if params.PaperWidth != 8.5 || params.PaperHeight != 11 {
		t.Errorf("unexpected paper size %vx%v", params.PaperWidth, params.PaperHeight)
	}
}
