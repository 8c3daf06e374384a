// Package local implements the in-process validation layer. It always
// produces a result and never calls out.
package local

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	submodels "amsf/internal/submission/models"
	"amsf/internal/taxonomy"
	"amsf/internal/validation/models"
	id "amsf/pkg/domain"
)

const (
	oui = "Oui"
	non = "Non"
)

var hundred = decimal.NewFromInt(100)

type Validator struct {
	tax *taxonomy.Taxonomy
}

func New(tax *taxonomy.Taxonomy) *Validator {
	return &Validator{tax: tax}
}

// Validate checks the merged values of sub against the taxonomy. sub may be
// nil when only the values are of interest, in which case the signatory is
// not checked.
func (v *Validator) Validate(sub *submodels.Submission, values submodels.Merged) models.Result {
	res := models.NewResult()

	for _, el := range v.tax.Elements() {
		mv, ok := values[el.Code]
		if !ok || mv.Value.IsEmpty() {
			if el.Required {
				res.AddError(models.CodeMissingRequired, el.Code, fmt.Sprintf("%s is required", el.Label))
			}
			continue
		}
		v.checkShape(&res, el, mv.Value)
	}

	var unknown []string
	for code := range values {
		if !v.tax.Has(code) {
			unknown = append(unknown, code)
		}
	}
	slices.Sort(unknown)
	for _, code := range unknown {
		res.AddError(models.CodeUnknownElement, code, "element is not part of taxonomy "+v.tax.Version)
	}

	v.checkTotals(&res, values)

	if sub != nil && !sub.IsSigned() {
		res.AddWarning(models.CodeMissingSignatory, "", "signatory name and title are not set")
	}
	return res
}

func (v *Validator) checkShape(res *models.Result, el taxonomy.Element, val submodels.Value) {
	if el.IsDimensional() != val.IsDimensional() {
		want := "a single value"
		if el.IsDimensional() {
			want = "a value per " + el.Dimension
		}
		res.AddError(models.CodeInvalidType, el.Code, "expected "+want)
		return
	}
	if !val.IsDimensional() {
		if msg := checkType(el.ValueType, val.Text()); msg != "" {
			res.AddError(models.CodeInvalidType, el.Code, msg)
		}
		return
	}

	dims := val.Dims()
	for _, key := range val.Keys() {
		if !id.CountryCode(key).IsValid() {
			res.AddWarning(models.CodeInvalidDimensionKey, el.Code, fmt.Sprintf("%q is not an ISO 3166 alpha-2 code", key))
		}
		if msg := checkType(el.ValueType, dims[key]); msg != "" {
			res.AddError(models.CodeInvalidType, el.Code, fmt.Sprintf("%s: %s", key, msg))
		}
	}
}

// checkType returns an empty string when raw is acceptable for vt.
func checkType(vt taxonomy.ValueType, raw string) string {
	raw = strings.TrimSpace(raw)
	switch vt {
	case taxonomy.ValueInteger:
		d, err := decimal.NewFromString(raw)
		if err != nil || !d.IsInteger() || d.IsNegative() {
			return fmt.Sprintf("%q is not a whole number", raw)
		}
	case taxonomy.ValueMonetary:
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Sprintf("%q is not an amount", raw)
		}
	case taxonomy.ValuePercentage:
		d, err := decimal.NewFromString(strings.TrimSuffix(raw, "%"))
		if err != nil {
			return fmt.Sprintf("%q is not a percentage", raw)
		}
		if d.IsNegative() || d.GreaterThan(hundred) {
			return fmt.Sprintf("%q is outside 0..100", raw)
		}
	case taxonomy.ValueBoolean:
		if raw != oui && raw != non {
			return fmt.Sprintf("%q must be %s or %s", raw, oui, non)
		}
	}
	return ""
}

// checkTotals flags parents whose value differs from the sum of their
// children. Parents with a missing or malformed child are skipped since the
// type check already reports them.
func (v *Validator) checkTotals(res *models.Result, values submodels.Merged) {
	for _, el := range v.tax.Elements() {
		if len(el.SumOf) == 0 {
			continue
		}
		parent, ok := scalarDecimal(values, el.Code)
		if !ok {
			continue
		}
		sum := decimal.Zero
		complete := true
		for _, child := range el.SumOf {
			d, ok := scalarDecimal(values, child)
			if !ok {
				complete = false
				break
			}
			sum = sum.Add(d)
		}
		if complete && !sum.Equal(parent) {
			res.AddError(models.CodeInconsistentTotal, el.Code,
				fmt.Sprintf("%s is %s but %s sum to %s", el.Code, parent, strings.Join(el.SumOf, " + "), sum))
		}
	}
}

func scalarDecimal(values submodels.Merged, code string) (decimal.Decimal, bool) {
	mv, ok := values[code]
	if !ok || mv.Value.IsDimensional() || mv.Value.IsEmpty() {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(mv.Value.Text()))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
