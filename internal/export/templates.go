package export

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"time"

	"storyscape/api/internal/planning"
)

//go:embed templates/*.html
var templateFS embed.FS

var sessionTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/session.html")
	if err != nil {
		sessionTemplate = template.Must(template.New("session").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	sessionTemplate = template.Must(template.New("session").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for session report rendering
type TemplateData struct {
	Name         string
	Code         string
	AnchorPoints string
	GeneratedAt  time.Time
	Stories      []TemplateStory
}

// TemplateStory is one row of the report. Left and Top place the story on
// the canvas as CSS percentages.
type TemplateStory struct {
	Title       string
	Description string
	IsAnchor    bool
	X, Y        string
	Score       string
	Points      string
	Left, Top   template.CSS
}

func newTemplateData(session planning.Session, estimates []planning.StoryEstimate, now time.Time) TemplateData {
	data := TemplateData{
		Name:         session.Name,
		Code:         session.Code,
		AnchorPoints: pointsLabel(session.AnchorPoints.IsSet(), int(session.AnchorPoints)),
		GeneratedAt:  now,
		Stories:      make([]TemplateStory, 0, len(estimates)),
	}
	for _, e := range estimates {
		points := "-"
		if e.Points != nil {
			points = strconv.Itoa(*e.Points)
		}
		data.Stories = append(data.Stories, TemplateStory{
			Title:       e.Title,
			Description: e.Description,
			IsAnchor:    e.IsAnchor,
			X:           strconv.FormatFloat(e.Position.X, 'f', -1, 64),
			Y:           strconv.FormatFloat(e.Position.Y, 'f', -1, 64),
			Score:       strconv.FormatFloat(e.Score, 'f', 2, 64),
			Points:      points,
			Left:        template.CSS(e.Placement.Left),
			Top:         template.CSS(e.Placement.Top),
		})
	}
	return data
}

func pointsLabel(set bool, n int) string {
	if !set {
		return "unset"
	}
	return strconv.Itoa(n)
}

// RenderSessionHTML renders the session report template.
func RenderSessionHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := sessionTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Name}} ({{.Code}})</title></head>
<body>
  <h1>{{.Name}}</h1>
  <p>Join code {{.Code}} | anchor points {{.AnchorPoints}}</p>
  <ul>{{range .Stories}}<li>{{.Title}}: {{.Points}}</li>{{end}}</ul>
</body>
</html>`
