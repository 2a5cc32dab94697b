package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"penwise/internal/analysis"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"join": strings.Join,
}).Parse(reviewTemplate))

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title       string
	Author      string
	UpdatedAt   time.Time
	ContentHTML template.HTML
	Stats       analysis.Stats
	Counts      []TemplateCount
	Suggestions []TemplateSuggestion
}

// TemplateCount is the number of open suggestions in one category.
type TemplateCount struct {
	Category string
	Count    int
}

// TemplateSuggestion is one row of the suggestion appendix.
type TemplateSuggestion struct {
	Category     string
	Excerpt      string
	Message      string
	Replacements []string
}

// RenderDocumentHTML renders the review template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reviewTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 760px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    mark { background: none; padding: 0 1px; }
    mark.pw-spelling { border-bottom: 2px solid #d93025; }
    mark.pw-grammar { border-bottom: 2px solid #1a73e8; }
    mark.pw-style { border-bottom: 2px dotted #188038; }
    table { border-collapse: collapse; width: 100%; font-size: 0.9em; }
    td, th { border-bottom: 1px solid #ddd; padding: 0.4rem; text-align: left; vertical-align: top; }
    .cat { text-transform: capitalize; font-weight: bold; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{if .Author}}{{.Author}} | {{end}}{{if not .UpdatedAt.IsZero}}{{formatDate .UpdatedAt "Jan 2, 2006"}} | {{end}}{{.Stats.Words}} words, {{.Stats.ReadingTimeSeconds}}s read, grade {{.Stats.GradeLevel}}</div>
  <div class="content">{{.ContentHTML}}</div>
  {{if .Suggestions}}
  <h2>Suggestions</h2>
  <p>{{range $i, $c := .Counts}}{{if $i}}, {{end}}<span class="cat">{{$c.Category}}</span> {{$c.Count}}{{end}}</p>
  <table>
    <tr><th>Category</th><th>Text</th><th>Note</th><th>Replace with</th></tr>
    {{range .Suggestions}}<tr><td class="cat">{{lower .Category}}</td><td>{{.Excerpt}}</td><td>{{.Message}}</td><td>{{join .Replacements ", "}}</td></tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>`
