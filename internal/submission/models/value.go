package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "amsf/pkg/domain"
)

// ValueKind discriminates the Value union.
type ValueKind string

const (
	KindScalar      ValueKind = "scalar"
	KindDimensional ValueKind = "dimensional"
)

// Value is either a scalar string or a dimension key to value mapping.
// The zero Value is an empty scalar.
type Value struct {
	dims   map[string]string
	scalar string
	kind   ValueKind
}

func Scalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// Dimensional copies m so later writes to it do not leak into the value.
func Dimensional(m map[string]string) Value {
	return Value{kind: KindDimensional, dims: maps.Clone(m)}
}

func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return KindScalar
	}
	return v.kind
}

func (v Value) IsDimensional() bool { return v.Kind() == KindDimensional }

// Text returns the scalar content. Dimensional values return "".
func (v Value) Text() string { return v.scalar }

// Dims returns a copy of the dimensional mapping, nil for scalars.
func (v Value) Dims() map[string]string {
	if !v.IsDimensional() {
		return nil
	}
	return maps.Clone(v.dims)
}

// Keys returns the sorted dimension keys.
func (v Value) Keys() []string {
	return slices.Sorted(maps.Keys(v.dims))
}

// IsEmpty is true for a blank scalar or a mapping with no keys.
func (v Value) IsEmpty() bool {
	if v.IsDimensional() {
		return len(v.dims) == 0
	}
	return strings.TrimSpace(v.scalar) == ""
}

func (v Value) Equal(o Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}
	if v.IsDimensional() {
		return maps.Equal(v.dims, o.dims)
	}
	return v.scalar == o.scalar
}

// Total returns the numeric value of a scalar, or the sum of a mapping's
// values. ok is false when any part is not a number.
func (v Value) Total() (decimal.Decimal, bool) {
	if !v.IsDimensional() {
		d, err := decimal.NewFromString(strings.TrimSpace(v.scalar))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	sum := decimal.Zero
	for _, raw := range v.dims {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return decimal.Zero, false
		}
		sum = sum.Add(d)
	}
	return sum, true
}

func (v Value) String() string {
	if !v.IsDimensional() {
		return v.scalar
	}
	parts := make([]string, 0, len(v.dims))
	for _, k := range v.Keys() {
		parts = append(parts, k+"="+v.dims[k])
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON encodes scalars as JSON strings and mappings as objects.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsDimensional() {
		if v.dims == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.dims)
	}
	return json.Marshal(v.scalar)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = Scalar("")
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Scalar(s)
	case '{':
		m := map[string]string{}
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		*v = Value{kind: KindDimensional, dims: m}
	default:
		// bare numbers and booleans are accepted as scalars
		*v = Scalar(string(b))
	}
	return nil
}

// Source records where a value came from.
type Source string

const (
	SourceCalculated   Source = "calculated"
	SourceFromSettings Source = "from_settings"
	SourceManual       Source = "manual"
)

func (s Source) IsValid() bool {
	return s == SourceCalculated || s == SourceFromSettings || s == SourceManual
}

func ParseSource(raw string) (Source, error) {
	s := Source(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown value source %q", raw)
	}
	return s, nil
}

// SubmissionValue is one element's stored value on a submission.
//
// Invariants:
//   - ElementName is unique per submission
//   - an overridden or manual value is never replaced by recomputation
type SubmissionValue struct {
	SubmissionID id.SubmissionID `json:"submission_id"`
	ElementName  string          `json:"element_name"`
	Value        Value           `json:"value"`
	Source       Source          `json:"source"`

	Overridden    bool       `json:"overridden"`
	OverriddenBy  *id.UserID `json:"overridden_by,omitempty"`
	OverriddenAt  *time.Time `json:"overridden_at,omitempty"`
	PreviousValue *Value     `json:"previous_value,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ReviewNote  string     `json:"review_note,omitempty"`
	ReviewedBy  *id.UserID `json:"reviewed_by,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Recomputable is true when the engine may refresh the value.
func (v *SubmissionValue) Recomputable() bool {
	return !v.Overridden && v.Source != SourceManual
}

// ApplyOverride replaces the value with a manual edit and keeps the value it
// replaced for review. A second override keeps the original previous value.
func (v *SubmissionValue) ApplyOverride(next Value, by id.UserID, now time.Time) {
	if !v.Overridden {
		prev := v.Value
		v.PreviousValue = &prev
	}
	v.Value = next
	v.Overridden = true
	v.OverriddenBy = &by
	v.OverriddenAt = &now
	v.ConfirmedAt = nil
	v.UpdatedAt = now
}

// ApplyConfirm marks the value as checked by a reviewer.
func (v *SubmissionValue) ApplyConfirm(by id.UserID, now time.Time) {
	v.ConfirmedAt = &now
	v.ReviewedBy = &by
	v.UpdatedAt = now
}

// ApplyReview attaches a reviewer note without confirming.
func (v *SubmissionValue) ApplyReview(note string, by id.UserID, now time.Time) {
	v.ReviewNote = strings.TrimSpace(note)
	v.ReviewedBy = &by
	v.UpdatedAt = now
}

// Answer is a manual free-text value keyed by element code.
type Answer struct {
	SubmissionID id.SubmissionID `json:"submission_id"`
	XbrlID       string          `json:"xbrl_id"`
	Value        string          `json:"value"`
	UpdatedBy    id.UserID       `json:"updated_by"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
