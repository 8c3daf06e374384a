// Package report renders a merged answer set as a Markdown document for
// human review.
package report

import (
	"bytes"
	"fmt"
	"text/template"

	"amsf/internal/submission/models"
	"amsf/internal/taxonomy"
	"amsf/internal/xbrl"
)

const formatMarkdown = "markdown"

// Header describes the filing the report covers.
type Header struct {
	OrganizationName string
	Registry         string
	Year             int
	Status           models.Status
	TaxonomyVersion  string
}

type line struct {
	Code   string
	Label  string
	Value  string
	Dims   []dim
	Manual bool
	Empty  bool
}

type dim struct {
	Key   string
	Value string
}

type section struct {
	Order int
	Title string
	Lines []line
}

var tmpl = template.Must(template.New("report").Parse(`# Déclaration AMSF {{.Header.Year}} : {{.Header.OrganizationName}}

- RCI : {{.Header.Registry}}
- Statut : {{.Header.Status}}
- Taxonomie : {{.Header.TaxonomyVersion}}
{{range .Sections}}
## {{.Order}}. {{.Title}}
{{range .Lines}}
{{- if .Dims}}
- **{{.Code}}** {{.Label}}{{if .Manual}} _(saisie manuelle)_{{end}}
{{- range .Dims}}
  - {{.Key}} : {{.Value}}
{{- end}}
{{- else}}
- **{{.Code}}** {{.Label}} : {{if .Empty}}_non renseigné_{{else}}{{.Value}}{{end}}{{if .Manual}} _(saisie manuelle)_{{end}}
{{- end}}
{{- end}}
{{end}}`))

// Render writes one bullet per taxonomy element, grouped by section in
// manifest order. Dimensional values become nested bullets.
func Render(tax *taxonomy.Taxonomy, header Header, values models.Merged) ([]byte, error) {
	var sections []section
	for _, s := range tax.Sections() {
		sec := section{Order: s.Order, Title: s.Title}
		for _, el := range tax.SectionElements(s.Key) {
			mv, ok := values[el.Code]
			l := line{Code: el.Code, Label: el.Label, Manual: ok && (mv.FromAnswer || mv.Source == models.SourceManual)}
			switch {
			case !ok || mv.Value.IsEmpty():
				l.Empty = true
			case mv.Value.IsDimensional():
				dims := mv.Value.Dims()
				for _, k := range mv.Value.Keys() {
					l.Dims = append(l.Dims, dim{Key: k, Value: dims[k]})
				}
			default:
				l.Value = mv.Value.Text()
			}
			sec.Lines = append(sec.Lines, l)
		}
		sections = append(sections, sec)
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Header   Header
		Sections []section
	}{header, sections})
	if err != nil {
		return nil, &xbrl.RenderError{Format: formatMarkdown, Err: err}
	}
	return buf.Bytes(), nil
}

// Filename is the Markdown artifact name matching xbrl.Filename.
func Filename(year int, registry string) string {
	name := xbrl.Filename(year, registry)
	return fmt.Sprintf("%s.md", name[:len(name)-len(".xml")])
}
