package domain

import "strings"

// CountryCode is an ISO-3166 alpha-2 code, always upper case.
type CountryCode string

// NormalizeCountry trims and upper-cases a raw code. It returns "" for anything
// that is not two ASCII letters so callers can skip unknown jurisdictions.
func NormalizeCountry(raw string) CountryCode {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) != 2 {
		return ""
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return CountryCode(s)
}

// IsValid reports whether c is a well-formed alpha-2 code.
func (c CountryCode) IsValid() bool {
	return c != "" && NormalizeCountry(string(c)) == c
}

func (c CountryCode) String() string {
	return string(c)
}

// Monaco is the filer's home jurisdiction.
const Monaco CountryCode = "MC"
