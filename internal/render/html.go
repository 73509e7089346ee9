// Package render compiles an assembled proposal into a single exportable
// document.
package render

import (
	"bytes"
	"html/template"
	"strings"

	"propdraft/internal/assembly"
)

// UndraftedPlaceholder stands in for sections with no draft yet.
const UndraftedPlaceholder = "<p><em>Section not yet drafted</em></p>"

const sectionFallbackTitle = "Section"

type htmlSection struct {
	Anchor string
	Title  string
	Body   template.HTML
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8" />
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.4; }
h1, h2, h3 { margin: 0.6em 0 0.3em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 6px; }
ul, ol { padding-left: 1.2em; }
.toc ul { list-style: disc; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="toc">
  <h2>Table of Contents</h2>
  <ul>
{{- range .Sections}}
    <li><a href="#{{.Anchor}}">{{.Title}}</a></li>
{{- end}}
  </ul>
</div>
{{range .Sections}}
<section id="{{.Anchor}}">
<h2>{{.Title}}</h2>
{{.Body}}
</section>
{{end}}
</body>
</html>
`))

// HTML renders the snapshot as a standalone page: a linked table of contents
// followed by every section in outline order. Section HTML is trusted as
// authored.
func HTML(snap assembly.DocumentSnapshot) (string, error) {
	data := struct {
		Title    string
		Sections []htmlSection
	}{Title: documentTitle(snap)}

	for _, sec := range snap.Sections {
		body := strings.TrimSpace(sec.HTML)
		if body == "" {
			body = UndraftedPlaceholder
		}
		data.Sections = append(data.Sections, htmlSection{
			Anchor: anchor(sec),
			Title:  sectionTitle(sec),
			Body:   template.HTML(body),
		})
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func documentTitle(snap assembly.DocumentSnapshot) string {
	if t := strings.TrimSpace(snap.Title); t != "" {
		return t
	}
	return assembly.DefaultTitle
}

func sectionTitle(sec assembly.SnapshotSection) string {
	if t := strings.TrimSpace(sec.Title); t != "" {
		return t
	}
	return sectionFallbackTitle
}

func anchor(sec assembly.SnapshotSection) string {
	if sec.ID != "" {
		return sec.ID
	}
	return assembly.DeriveKey(sec.Title)
}
