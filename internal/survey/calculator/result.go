package calculator

import (
	"maps"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	Oui = "Oui"
	Non = "Non"
)

type Kind int

const (
	KindCount Kind = iota
	KindAmount
	KindPercentage
	KindFlag
	KindText
	KindCountByKey
	KindAmountByKey
)

// Result is the typed output of one calculator.
type Result struct {
	Kind   Kind
	Count  int64
	Amount decimal.Decimal
	Flag   bool
	Text   string
	ByKey  map[string]decimal.Decimal
}

func Count(n int64) Result                { return Result{Kind: KindCount, Count: n} }
func Amount(d decimal.Decimal) Result     { return Result{Kind: KindAmount, Amount: d} }
func Percentage(d decimal.Decimal) Result { return Result{Kind: KindPercentage, Amount: d} }
func Flag(b bool) Result                  { return Result{Kind: KindFlag, Flag: b} }
func Text(s string) Result                { return Result{Kind: KindText, Text: s} }

func CountByKey(m map[string]int64) Result {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = decimal.NewFromInt(v)
	}
	return Result{Kind: KindCountByKey, ByKey: out}
}

func AmountByKey(m map[string]decimal.Decimal) Result {
	return Result{Kind: KindAmountByKey, ByKey: maps.Clone(m)}
}

// IsDimensional reports whether the result carries one value per key.
func (r Result) IsDimensional() bool {
	return r.Kind == KindCountByKey || r.Kind == KindAmountByKey
}

// String renders a scalar result in its wire form: "12", "500000.00",
// "33.33", "Oui"/"Non" or raw text.
func (r Result) String() string {
	switch r.Kind {
	case KindCount:
		return strconv.FormatInt(r.Count, 10)
	case KindAmount, KindPercentage:
		return r.Amount.StringFixed(2)
	case KindFlag:
		if r.Flag {
			return Oui
		}
		return Non
	case KindText:
		return r.Text
	}
	return ""
}

// Dimensions renders a dimensional result. Nil for scalar results.
func (r Result) Dimensions() map[string]string {
	if !r.IsDimensional() {
		return nil
	}
	out := make(map[string]string, len(r.ByKey))
	for k, v := range r.ByKey {
		if r.Kind == KindCountByKey {
			out[k] = v.StringFixed(0)
		} else {
			out[k] = v.StringFixed(2)
		}
	}
	return out
}
