package calculator

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"amsf/internal/taxonomy"
)

// Settings-sourced elements read the organization's current settings. A
// missing or unparseable setting yields the zero value of the type.

func settingFunc(vt taxonomy.ValueType, key string) Func {
	switch vt {
	case taxonomy.ValueBoolean:
		return settingFlag(key)
	case taxonomy.ValueInteger:
		return settingCount(key)
	case taxonomy.ValueMonetary:
		return settingAmount(key)
	case taxonomy.ValuePercentage:
		return settingPercentage(key)
	default:
		return settingText(key)
	}
}

func settingFlag(key string) Func {
	return func(in *Input) Result {
		v, _ := in.Data.Setting(key)
		return Flag(ParseFlag(v))
	}
}

func settingCount(key string) Func {
	return func(in *Input) Result {
		v, _ := in.Data.Setting(key)
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return Count(0)
		}
		return Count(n)
	}
}

func settingAmount(key string) Func {
	return func(in *Input) Result {
		v, _ := in.Data.Setting(key)
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return Amount(decimal.Zero)
		}
		return Amount(d)
	}
}

func settingPercentage(key string) Func {
	return func(in *Input) Result {
		v, _ := in.Data.Setting(key)
		d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(v), "%"))
		if err != nil {
			return Percentage(decimal.Zero)
		}
		return Percentage(d)
	}
}

func settingText(key string) Func {
	return func(in *Input) Result {
		v, _ := in.Data.Setting(key)
		return Text(strings.TrimSpace(v))
	}
}

// ParseFlag normalises the boolean spellings found in settings.
func ParseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "oui", "true", "yes", "1", "y", "o", "t":
		return true
	}
	return false
}
