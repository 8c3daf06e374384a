package models

import (
	"maps"
	"slices"
)

// MergedValue is one entry of the final answer set.
type MergedValue struct {
	Value  Value  `json:"value"`
	Source Source `json:"source"`
	// FromAnswer is true when a manual Answer replaced the stored value.
	FromAnswer bool `json:"from_answer"`
}

// Merged is the final element code to value set handed to renderers and validators.
type Merged map[string]MergedValue

// Merge combines stored values with manual answers. An answer always wins over
// a stored value with the same code.
func Merge(values []SubmissionValue, answers []Answer) Merged {
	out := make(Merged, len(values)+len(answers))
	for _, v := range values {
		out[v.ElementName] = MergedValue{Value: v.Value, Source: v.Source}
	}
	for _, a := range answers {
		out[a.XbrlID] = MergedValue{Value: Scalar(a.Value), Source: SourceManual, FromAnswer: true}
	}
	return out
}

func (m Merged) Codes() []string {
	return slices.Sorted(maps.Keys(m))
}

func (m Merged) Value(code string) (Value, bool) {
	mv, ok := m[code]
	return mv.Value, ok
}

// Values drops provenance.
func (m Merged) Values() map[string]Value {
	out := make(map[string]Value, len(m))
	for code, mv := range m {
		out[code] = mv.Value
	}
	return out
}
