// Package xbrl serialises a merged answer set into an XBRL instance document.
package xbrl

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"amsf/internal/submission/models"
	"amsf/internal/taxonomy"
)

const (
	nsXBRLI    = "http://www.xbrl.org/2003/instance"
	nsLink     = "http://www.xbrl.org/2003/linkbase"
	nsXLink    = "http://www.w3.org/1999/xlink"
	nsISO4217  = "http://www.xbrl.org/2003/iso4217"
	nsXBRLDI   = "http://xbrl.org/2006/xbrldi"
	entityCtx  = "ctx_entity"
	unitPure   = "pure"
	unitEUR    = "EUR"
	formatXBRL = "xbrl"
)

// Options configures a Renderer. Strict is always set explicitly by the
// caller from configuration.
type Options struct {
	Strict bool
	Logger *slog.Logger
}

// Entity identifies the filer and the reporting period.
type Entity struct {
	// Identifier is the organization's registry (RCI) number.
	Identifier string
	Year       int
}

type Renderer struct {
	taxonomy *taxonomy.Taxonomy
	opts     Options
	logger   *slog.Logger
}

func New(tax *taxonomy.Taxonomy, opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{taxonomy: tax, opts: opts, logger: logger}
}

func (r *Renderer) Strict() bool { return r.opts.Strict }

// Filename is the artifact name for a year and registry number.
func Filename(year int, registry string) string {
	return fmt.Sprintf("amsf_%d_%s.xml", year, sanitize(registry))
}

type fact struct {
	element  taxonomy.Element
	context  string
	unit     string
	decimals string
	value    string
}

type dimContext struct {
	id        string
	dimension string
	key       string
}

// Render produces the instance document. Facts follow manifest order and
// dimensional contexts are sorted by id, so unchanged input renders
// byte-identical output.
func (r *Renderer) Render(ctx context.Context, entity Entity, values models.Merged) ([]byte, error) {
	if strings.TrimSpace(entity.Identifier) == "" {
		return nil, &RenderError{Format: formatXBRL, Err: fmt.Errorf("entity identifier is required")}
	}
	for _, code := range values.Codes() {
		if !r.taxonomy.Has(code) {
			r.logger.WarnContext(ctx, "skipping element not in taxonomy", "element", code)
		}
	}

	facts, contexts, err := r.collect(ctx, values)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := r.encode(enc, entity, facts, contexts); err != nil {
		return nil, &RenderError{Format: formatXBRL, Err: err}
	}
	if err := enc.Close(); err != nil {
		return nil, &RenderError{Format: formatXBRL, Err: err}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ContextIDs lists the dimensional context ids Render would emit, sorted.
func (r *Renderer) ContextIDs(values models.Merged) []string {
	seen := map[string]bool{}
	for _, el := range r.taxonomy.Elements() {
		v, ok := values.Value(el.Code)
		if !ok || !v.IsDimensional() || !el.IsDimensional() {
			continue
		}
		for _, key := range v.Keys() {
			seen[contextID(el.Dimension, key)] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Renderer) collect(ctx context.Context, values models.Merged) ([]fact, []dimContext, error) {
	var facts []fact
	contexts := map[string]dimContext{}

	for _, el := range r.taxonomy.Elements() {
		v, ok := values.Value(el.Code)
		if !ok || v.IsEmpty() {
			continue
		}
		unit, decimals := unitFor(el.ValueType)

		if !v.IsDimensional() {
			out, err := r.coerce(ctx, el, v.Text())
			if err != nil {
				return nil, nil, err
			}
			facts = append(facts, fact{element: el, context: entityCtx, unit: unit, decimals: decimals, value: out})
			continue
		}

		if !el.IsDimensional() {
			if r.opts.Strict {
				return nil, nil, &DataError{Element: el.Code, Value: v.String(), Reason: "dimensional value on a scalar element"}
			}
			r.logger.WarnContext(ctx, "skipping dimensional value on scalar element", "element", el.Code)
			continue
		}
		used := map[string]string{}
		for _, key := range v.Keys() {
			cid := contextID(el.Dimension, key)
			if first, dup := used[cid]; dup {
				if r.opts.Strict {
					return nil, nil, &DataError{Element: el.Code, Value: key, Reason: "dimension key collides with " + strconv.Quote(first)}
				}
				r.logger.WarnContext(ctx, "skipping colliding dimension key", "element", el.Code, "key", key, "kept", first)
				continue
			}
			used[cid] = key
			out, err := r.coerce(ctx, el, v.Dims()[key])
			if err != nil {
				return nil, nil, err
			}
			contexts[cid] = dimContext{id: cid, dimension: el.Dimension, key: normalizeKey(key)}
			facts = append(facts, fact{element: el, context: cid, unit: unit, decimals: decimals, value: out})
		}
	}

	sorted := make([]dimContext, 0, len(contexts))
	for _, c := range contexts {
		sorted = append(sorted, c)
	}
	slices.SortFunc(sorted, func(a, b dimContext) int { return strings.Compare(a.id, b.id) })
	return facts, sorted, nil
}

func (r *Renderer) encode(enc *xml.Encoder, entity Entity, facts []fact, contexts []dimContext) error {
	prefix := r.taxonomy.Prefix
	root := xml.StartElement{
		Name: xml.Name{Local: "xbrli:xbrl"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:xbrli"}, Value: nsXBRLI},
			{Name: xml.Name{Local: "xmlns:link"}, Value: nsLink},
			{Name: xml.Name{Local: "xmlns:xlink"}, Value: nsXLink},
			{Name: xml.Name{Local: "xmlns:iso4217"}, Value: nsISO4217},
			{Name: xml.Name{Local: "xmlns:xbrldi"}, Value: nsXBRLDI},
			{Name: xml.Name{Local: "xmlns:" + prefix}, Value: r.taxonomy.Namespace},
		},
	}
	w := &writer{enc: enc}
	w.start(root)

	w.empty(xml.StartElement{
		Name: xml.Name{Local: "link:schemaRef"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xlink:type"}, Value: "simple"},
			{Name: xml.Name{Local: "xlink:href"}, Value: r.taxonomy.SchemaRef},
		},
	})

	instant := strconv.Itoa(entity.Year) + "-12-31"
	r.writeContext(w, entityCtx, entity.Identifier, instant, nil)
	for _, c := range contexts {
		r.writeContext(w, c.id, entity.Identifier, instant, &c)
	}

	w.start(elem("xbrli:unit", "id", unitPure))
	w.text("xbrli:measure", "xbrli:pure")
	w.end("xbrli:unit")
	w.start(elem("xbrli:unit", "id", unitEUR))
	w.text("xbrli:measure", "iso4217:EUR")
	w.end("xbrli:unit")

	for _, f := range facts {
		start := elem(prefix+":"+f.element.Code, "contextRef", f.context)
		if f.unit != "" {
			start.Attr = append(start.Attr,
				xml.Attr{Name: xml.Name{Local: "unitRef"}, Value: f.unit},
				xml.Attr{Name: xml.Name{Local: "decimals"}, Value: f.decimals},
			)
		}
		w.start(start)
		w.chars(f.value)
		w.end(start.Name.Local)
	}

	w.end(root.Name.Local)
	return w.err
}

func (r *Renderer) writeContext(w *writer, id, identifier, instant string, dim *dimContext) {
	w.start(elem("xbrli:context", "id", id))
	w.start(elem("xbrli:entity"))
	w.start(elem("xbrli:identifier", "scheme", r.taxonomy.IdentifierScheme))
	w.chars(identifier)
	w.end("xbrli:identifier")
	if dim != nil {
		w.start(elem("xbrli:segment"))
		w.start(elem("xbrldi:explicitMember", "dimension", r.taxonomy.Prefix+":"+axisName(dim.dimension)))
		w.chars(r.taxonomy.Prefix + ":" + dim.key)
		w.end("xbrldi:explicitMember")
		w.end("xbrli:segment")
	}
	w.end("xbrli:entity")
	w.start(elem("xbrli:period"))
	w.text("xbrli:instant", instant)
	w.end("xbrli:period")
	w.end("xbrli:context")
}

func elem(name string, attrs ...string) xml.StartElement {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return start
}

// writer keeps the first encoding error so the document can be written
// without checking every token.
type writer struct {
	enc *xml.Encoder
	err error
}

func (w *writer) token(t xml.Token) {
	if w.err == nil {
		w.err = w.enc.EncodeToken(t)
	}
}

func (w *writer) start(s xml.StartElement) { w.token(s) }
func (w *writer) end(name string)          { w.token(xml.EndElement{Name: xml.Name{Local: name}}) }
func (w *writer) chars(s string)           { w.token(xml.CharData(s)) }

func (w *writer) empty(s xml.StartElement) {
	w.start(s)
	w.end(s.Name.Local)
}

func (w *writer) text(name, value string) {
	w.start(elem(name))
	w.chars(value)
	w.end(name)
}

func contextID(dimension, key string) string {
	return "ctx_" + dimension + "_" + normalizeKey(key)
}

func axisName(dimension string) string {
	if dimension == "" {
		return ""
	}
	return strings.ToUpper(dimension[:1]) + dimension[1:] + "Axis"
}

// normalizeKey upper-cases a dimension key and keeps only characters valid
// in an XML id.
func normalizeKey(key string) string {
	return sanitize(strings.ToUpper(strings.TrimSpace(key)))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
