package xbrl

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"amsf/internal/taxonomy"
)

const (
	oui = "Oui"
	non = "Non"
)

// fallback is what lenient mode emits for a malformed value.
var fallback = map[taxonomy.ValueType]string{
	taxonomy.ValueInteger:    "0",
	taxonomy.ValueMonetary:   "0.00",
	taxonomy.ValuePercentage: "0.00",
	taxonomy.ValueBoolean:    non,
}

// coerce formats raw for its value type. Malformed input is a *DataError in
// strict mode and the type's fallback, with a warning, otherwise.
func (r *Renderer) coerce(ctx context.Context, el taxonomy.Element, raw string) (string, error) {
	out, reason := format(el.ValueType, raw)
	if reason == "" {
		return out, nil
	}
	if r.opts.Strict {
		return "", &DataError{Element: el.Code, Value: raw, Reason: reason}
	}
	r.logger.WarnContext(ctx, "malformed value replaced",
		"element", el.Code,
		"value", raw,
		"reason", reason,
		"replacement", fallback[el.ValueType],
	)
	return fallback[el.ValueType], nil
}

// format returns the wire form of raw, or a non-empty reason when raw does
// not fit the type.
func format(vt taxonomy.ValueType, raw string) (string, string) {
	s := strings.TrimSpace(raw)
	switch vt {
	case taxonomy.ValueInteger:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return "", "not a number"
		}
		if !d.Equal(d.Truncate(0)) {
			return "", "not an integer"
		}
		return d.Truncate(0).String(), ""
	case taxonomy.ValueMonetary:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return "", "not a monetary amount"
		}
		return d.StringFixed(2), ""
	case taxonomy.ValuePercentage:
		d, err := decimal.NewFromString(strings.TrimSuffix(s, "%"))
		if err != nil {
			return "", "not a percentage"
		}
		return d.StringFixed(2), ""
	case taxonomy.ValueBoolean:
		switch strings.ToLower(s) {
		case "oui", "true", "yes", "1":
			return oui, ""
		case "non", "false", "no", "0":
			return non, ""
		}
		return "", "not a boolean"
	}
	return raw, ""
}

// unitFor returns the unit id and decimals attribute for a value type.
// Booleans and text carry neither.
func unitFor(vt taxonomy.ValueType) (unit, decimals string) {
	switch vt {
	case taxonomy.ValueInteger:
		return unitPure, "0"
	case taxonomy.ValuePercentage:
		return unitPure, "2"
	case taxonomy.ValueMonetary:
		return unitEUR, "2"
	}
	return "", ""
}
