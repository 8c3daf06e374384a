package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	submodels "amsf/internal/submission/models"
	"amsf/internal/taxonomy"
	"amsf/internal/validation/models"
)

// completeValues returns a merged set that passes every check.
func completeValues(tax *taxonomy.Taxonomy) submodels.Merged {
	sample := map[taxonomy.ValueType]string{
		taxonomy.ValueInteger:    "0",
		taxonomy.ValueMonetary:   "0.00",
		taxonomy.ValuePercentage: "0.00",
		taxonomy.ValueBoolean:    "Non",
		taxonomy.ValueText:       "n/a",
	}
	out := submodels.Merged{}
	for _, el := range tax.Elements() {
		v := submodels.Scalar(sample[el.ValueType])
		if el.IsDimensional() {
			v = submodels.Dimensional(map[string]string{"MC": sample[el.ValueType]})
		}
		out[el.Code] = submodels.MergedValue{Value: v, Source: submodels.SourceCalculated}
	}
	return out
}

func set(values submodels.Merged, code string, v submodels.Value) {
	values[code] = submodels.MergedValue{Value: v, Source: submodels.SourceManual}
}

func signed() *submodels.Submission {
	return &submodels.Submission{SignatoryName: "Jeanne Rossi", SignatoryTitle: "Gérante"}
}

func TestValidate_CompleteSetIsValid(t *testing.T) {
	tax := taxonomy.MustDefault()
	res := New(tax).Validate(signed(), completeValues(tax))

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidate_Issues(t *testing.T) {
	tax := taxonomy.MustDefault()

	tests := []struct {
		name    string
		mutate  func(submodels.Merged)
		code    string
		element string
		warning bool
	}{
		{
			name:    "required element missing",
			mutate:  func(v submodels.Merged) { delete(v, "a1105") },
			code:    models.CodeMissingRequired,
			element: "a1105",
		},
		{
			name:    "required element blank",
			mutate:  func(v submodels.Merged) { set(v, "ac1603", submodels.Scalar("  ")) },
			code:    models.CodeMissingRequired,
			element: "ac1603",
		},
		{
			name:    "unknown code",
			mutate:  func(v submodels.Merged) { set(v, "zz9999", submodels.Scalar("1")) },
			code:    models.CodeUnknownElement,
			element: "zz9999",
		},
		{
			name:    "fractional count",
			mutate:  func(v submodels.Merged) { set(v, "a1105", submodels.Scalar("2.5")) },
			code:    models.CodeInvalidType,
			element: "a1105",
		},
		{
			name:    "negative count",
			mutate:  func(v submodels.Merged) { set(v, "a1106", submodels.Scalar("-1")) },
			code:    models.CodeInvalidType,
			element: "a1106",
		},
		{
			name:    "malformed amount",
			mutate:  func(v submodels.Merged) { set(v, "a1207", submodels.Scalar("not-a-number")) },
			code:    models.CodeInvalidType,
			element: "a1207",
		},
		{
			name:    "percentage above 100",
			mutate:  func(v submodels.Merged) { set(v, "a1111", submodels.Scalar("100.01")) },
			code:    models.CodeInvalidType,
			element: "a1111",
		},
		{
			name:    "boolean not Oui/Non",
			mutate:  func(v submodels.Merged) { set(v, "a1115", submodels.Scalar("yes")) },
			code:    models.CodeInvalidType,
			element: "a1115",
		},
		{
			name:    "dimensional value on scalar element",
			mutate:  func(v submodels.Merged) { set(v, "a1102", submodels.Dimensional(map[string]string{"FR": "1"})) },
			code:    models.CodeInvalidType,
			element: "a1102",
		},
		{
			name:    "dimensional entry of the wrong type",
			mutate:  func(v submodels.Merged) { set(v, "a1216", submodels.Dimensional(map[string]string{"FR": "abc"})) },
			code:    models.CodeInvalidType,
			element: "a1216",
		},
		{
			name: "parent differs from children",
			mutate: func(v submodels.Merged) {
				set(v, "a1101", submodels.Scalar("4"))
				set(v, "a1102", submodels.Scalar("1"))
				set(v, "a1103", submodels.Scalar("1"))
				set(v, "a1104", submodels.Scalar("1"))
			},
			code:    models.CodeInconsistentTotal,
			element: "a1101",
		},
		{
			name:    "non ISO2 dimension key",
			mutate:  func(v submodels.Merged) { set(v, "a1110", submodels.Dimensional(map[string]string{"XXX": "1"})) },
			code:    models.CodeInvalidDimensionKey,
			element: "a1110",
			warning: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := completeValues(tax)
			tt.mutate(values)

			res := New(tax).Validate(signed(), values)

			if tt.warning {
				assert.True(t, res.Valid)
				assert.True(t, res.HasWarning(tt.code, tt.element), "warnings: %+v", res.Warnings)
				return
			}
			assert.False(t, res.Valid)
			assert.True(t, res.HasError(tt.code, tt.element), "errors: %+v", res.Errors)
		})
	}
}

func TestValidate_ConsistentTotalsPass(t *testing.T) {
	tax := taxonomy.MustDefault()
	values := completeValues(tax)
	set(values, "a1101", submodels.Scalar("3"))
	set(values, "a1102", submodels.Scalar("2"))
	set(values, "a1103", submodels.Scalar("1"))
	set(values, "a1104", submodels.Scalar("0"))

	res := New(tax).Validate(signed(), values)
	assert.False(t, res.HasError(models.CodeInconsistentTotal, "a1101"))
}

func TestValidate_MissingChildSkipsTotal(t *testing.T) {
	tax := taxonomy.MustDefault()
	values := completeValues(tax)
	set(values, "a1101", submodels.Scalar("9"))
	delete(values, "a1104")

	res := New(tax).Validate(signed(), values)
	assert.False(t, res.HasError(models.CodeInconsistentTotal, "a1101"))
	assert.True(t, res.HasError(models.CodeMissingRequired, "a1104"))
}

func TestValidate_Signatory(t *testing.T) {
	tax := taxonomy.MustDefault()

	res := New(tax).Validate(&submodels.Submission{}, completeValues(tax))
	require.True(t, res.Valid)
	assert.True(t, res.HasWarning(models.CodeMissingSignatory, ""))

	res = New(tax).Validate(nil, completeValues(tax))
	assert.Empty(t, res.Warnings)
}
