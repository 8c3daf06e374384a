// Package taxonomy loads the read-only element manifest that defines which
// regulatory data points exist, how they are typed, and where they appear.
//
// Nothing outside the manifest may be rendered or calculated.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed manifest/amsf_2025.yaml
var defaultManifest []byte

type ValueType string

const (
	ValueInteger    ValueType = "integer"
	ValueMonetary   ValueType = "monetary"
	ValuePercentage ValueType = "percentage"
	ValueBoolean    ValueType = "boolean"
	ValueText       ValueType = "text"
)

func (v ValueType) IsValid() bool {
	switch v {
	case ValueInteger, ValueMonetary, ValuePercentage, ValueBoolean, ValueText:
		return true
	}
	return false
}

// IsNumeric is true for value types rendered with a unit.
func (v ValueType) IsNumeric() bool {
	return v == ValueInteger || v == ValueMonetary || v == ValuePercentage
}

type Source string

const (
	SourceCalculated   Source = "calculated"
	SourceFromSettings Source = "from_settings"
	SourceManual       Source = "manual"
)

func (s Source) IsValid() bool {
	return s == SourceCalculated || s == SourceFromSettings || s == SourceManual
}

// DimensionCountry keys facts by ISO-3166 alpha-2 code.
const DimensionCountry = "country"

type Section struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Order int    `yaml:"order"`
}

type Element struct {
	Code       string    `yaml:"code"`
	Label      string    `yaml:"label"`
	Section    string    `yaml:"section"`
	Order      int       `yaml:"order"`
	ValueType  ValueType `yaml:"value_type"`
	Required   bool      `yaml:"required"`
	Source     Source    `yaml:"source"`
	Dimension  string    `yaml:"dimension,omitempty"`
	SumOf      []string  `yaml:"sum_of,omitempty"`
	SettingKey string    `yaml:"setting_key,omitempty"`
}

// IsDimensional reports whether the element carries one value per dimension key.
func (e Element) IsDimensional() bool {
	return e.Dimension != ""
}

// IsComputed is true for elements the engine produces.
func (e Element) IsComputed() bool {
	return e.Source == SourceCalculated || e.Source == SourceFromSettings
}

type manifest struct {
	Version          string    `yaml:"version"`
	Namespace        string    `yaml:"namespace"`
	Prefix           string    `yaml:"prefix"`
	SchemaRef        string    `yaml:"schema_ref"`
	IdentifierScheme string    `yaml:"identifier_scheme"`
	Sections         []Section `yaml:"sections"`
	Elements         []Element `yaml:"elements"`
}

// Taxonomy is an immutable, validated view of a manifest.
type Taxonomy struct {
	Version          string
	Namespace        string
	Prefix           string
	SchemaRef        string
	IdentifierScheme string

	sections []Section
	elements []Element
	byCode   map[string]int
}

// Default returns the manifest shipped with the binary.
func Default() (*Taxonomy, error) {
	return Parse(defaultManifest)
}

// MustDefault panics when the embedded manifest is invalid. Intended for tests.
func MustDefault() *Taxonomy {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads a manifest from disk. An empty path selects the embedded manifest.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy manifest: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Taxonomy, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode taxonomy manifest: %w", err)
	}
	return build(m)
}

func build(m manifest) (*Taxonomy, error) {
	if m.Version == "" {
		return nil, fmt.Errorf("taxonomy manifest: version is required")
	}
	if m.Namespace == "" || m.Prefix == "" {
		return nil, fmt.Errorf("taxonomy manifest: namespace and prefix are required")
	}

	sectionOrder := make(map[string]int, len(m.Sections))
	for _, s := range m.Sections {
		if s.Key == "" {
			return nil, fmt.Errorf("taxonomy manifest: section without key")
		}
		if _, dup := sectionOrder[s.Key]; dup {
			return nil, fmt.Errorf("taxonomy manifest: duplicate section %q", s.Key)
		}
		sectionOrder[s.Key] = s.Order
	}

	byCode := make(map[string]Element, len(m.Elements))
	for _, e := range m.Elements {
		if e.Code == "" {
			return nil, fmt.Errorf("taxonomy manifest: element without code")
		}
		if _, dup := byCode[e.Code]; dup {
			return nil, fmt.Errorf("taxonomy manifest: duplicate element %q", e.Code)
		}
		if strings.TrimSpace(e.Label) == "" {
			return nil, fmt.Errorf("taxonomy manifest: element %q has no label", e.Code)
		}
		if !e.ValueType.IsValid() {
			return nil, fmt.Errorf("taxonomy manifest: element %q has unknown value_type %q", e.Code, e.ValueType)
		}
		if !e.Source.IsValid() {
			return nil, fmt.Errorf("taxonomy manifest: element %q has unknown source %q", e.Code, e.Source)
		}
		if _, ok := sectionOrder[e.Section]; !ok {
			return nil, fmt.Errorf("taxonomy manifest: element %q references unknown section %q", e.Code, e.Section)
		}
		if e.Dimension != "" {
			if e.Dimension != DimensionCountry {
				return nil, fmt.Errorf("taxonomy manifest: element %q has unknown dimension %q", e.Code, e.Dimension)
			}
			if e.ValueType != ValueInteger && e.ValueType != ValueMonetary {
				return nil, fmt.Errorf("taxonomy manifest: dimensional element %q must be integer or monetary", e.Code)
			}
		}
		if e.Source == SourceFromSettings && e.SettingKey == "" {
			return nil, fmt.Errorf("taxonomy manifest: element %q needs a setting_key", e.Code)
		}
		byCode[e.Code] = e
	}

	for _, e := range byCode {
		for _, child := range e.SumOf {
			c, ok := byCode[child]
			if !ok {
				return nil, fmt.Errorf("taxonomy manifest: element %q sums unknown element %q", e.Code, child)
			}
			if !e.ValueType.IsNumeric() || c.ValueType != e.ValueType {
				return nil, fmt.Errorf("taxonomy manifest: element %q and child %q must share a numeric value_type", e.Code, child)
			}
		}
	}

	elements := make([]Element, 0, len(byCode))
	for _, e := range m.Elements {
		elements = append(elements, e)
	}
	sort.SliceStable(elements, func(i, j int) bool {
		si, sj := sectionOrder[elements[i].Section], sectionOrder[elements[j].Section]
		if si != sj {
			return si < sj
		}
		return elements[i].Order < elements[j].Order
	})

	sections := slices.Clone(m.Sections)
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })

	index := make(map[string]int, len(elements))
	for i, e := range elements {
		index[e.Code] = i
	}

	return &Taxonomy{
		Version:          m.Version,
		Namespace:        m.Namespace,
		Prefix:           m.Prefix,
		SchemaRef:        m.SchemaRef,
		IdentifierScheme: m.IdentifierScheme,
		sections:         sections,
		elements:         elements,
		byCode:           index,
	}, nil
}

// Elements returns all elements in display order.
func (t *Taxonomy) Elements() []Element {
	return slices.Clone(t.elements)
}

func (t *Taxonomy) Sections() []Section {
	return slices.Clone(t.sections)
}

// SectionElements returns the elements of one section in display order.
func (t *Taxonomy) SectionElements(key string) []Element {
	var out []Element
	for _, e := range t.elements {
		if e.Section == key {
			out = append(out, e)
		}
	}
	return out
}

func (t *Taxonomy) Element(code string) (Element, bool) {
	i, ok := t.byCode[code]
	if !ok {
		return Element{}, false
	}
	return t.elements[i], true
}

func (t *Taxonomy) Has(code string) bool {
	_, ok := t.byCode[code]
	return ok
}

// Position is the display index of code, or -1.
func (t *Taxonomy) Position(code string) int {
	if i, ok := t.byCode[code]; ok {
		return i
	}
	return -1
}

func (t *Taxonomy) Required() []Element {
	var out []Element
	for _, e := range t.elements {
		if e.Required {
			out = append(out, e)
		}
	}
	return out
}

// Computed returns the calculated and settings-sourced elements.
func (t *Taxonomy) Computed() []Element {
	var out []Element
	for _, e := range t.elements {
		if e.IsComputed() {
			out = append(out, e)
		}
	}
	return out
}

// Implementations is satisfied by a calculator registry.
type Implementations interface {
	Codes() []string
}

type Completeness struct {
	// Missing lists computed elements without an implementation.
	Missing []string
	// Stray lists implementations for codes the manifest does not declare
	// or declares as manual.
	Stray []string
}

func (c Completeness) OK() bool {
	return len(c.Missing) == 0 && len(c.Stray) == 0
}

func (c Completeness) Error() string {
	return fmt.Sprintf("taxonomy incomplete: missing=%v stray=%v", c.Missing, c.Stray)
}

// CheckCompleteness compares the manifest with the registered implementations.
func (t *Taxonomy) CheckCompleteness(impl Implementations) Completeness {
	registered := make(map[string]bool)
	for _, code := range impl.Codes() {
		registered[code] = true
	}

	var c Completeness
	for _, e := range t.elements {
		if e.IsComputed() && !registered[e.Code] {
			c.Missing = append(c.Missing, e.Code)
		}
	}
	for code := range registered {
		e, ok := t.Element(code)
		if !ok || !e.IsComputed() {
			c.Stray = append(c.Stray, code)
		}
	}
	sort.Strings(c.Missing)
	sort.Strings(c.Stray)
	return c
}
