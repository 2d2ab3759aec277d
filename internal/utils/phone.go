package utils

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

const (
	countryCode = "44"
	// canonical numbers are a trunk zero followed by ten national digits
	canonicalLength = 11
)

// NormalizePhone maps the accepted spellings of a UK number onto the canonical
// local form 0XXXXXXXXXX:
//
//	07123456789, 07123 456 789, 07123-456-789, (07123) 456789
//	+447123456789, +44 (0)7123 456789, 00447123456789, 447123456789
//	7123456789
func NormalizePhone(raw string) (string, error) {
	s := stripSeparators(strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(s, "+"+countryCode):
		s = national(s[len(countryCode)+1:])
	case strings.HasPrefix(s, "00"+countryCode):
		s = national(s[len(countryCode)+2:])
	case strings.HasPrefix(s, countryCode) && len(s) == len(countryCode)+canonicalLength-1:
		s = national(s[len(countryCode):])
	case len(s) == canonicalLength-1 && !strings.HasPrefix(s, "0"):
		s = "0" + s
	}

	if len(s) != canonicalLength || s[0] != '0' || s[1] == '0' || !allDigits(s) {
		return "", ErrInvalidPhone
	}
	return s, nil
}

// IsMobilePhone reports whether a canonical number is a UK mobile.
func IsMobilePhone(canonical string) bool {
	return strings.HasPrefix(canonical, "07")
}

// PhoneToE164 converts a canonical number to +44 form for SMS gateways.
func PhoneToE164(canonical string) string {
	return "+" + countryCode + strings.TrimPrefix(canonical, "0")
}

// MaskPhone hides all but the first and last three digits.
func MaskPhone(canonical string) string {
	if len(canonical) <= 6 {
		return strings.Repeat("*", len(canonical))
	}
	return canonical[:3] + strings.Repeat("*", len(canonical)-6) + canonical[len(canonical)-3:]
}

// national drops an optional trunk zero after the country code and restores the
// canonical leading zero.
func national(rest string) string {
	return "0" + strings.TrimPrefix(rest, "0")
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '/', '\t':
			return -1
		}
		return r
	}, s)
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
