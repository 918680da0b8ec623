package domain

import "strings"

// NormalizePhone reduces a phone number to digits and strips the country
// prefix, producing the lookup key used for accounts and login attempts.
func NormalizePhone(raw, countryPrefix string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if countryPrefix != "" && strings.HasPrefix(digits, countryPrefix) {
		digits = digits[len(countryPrefix):]
	}
	return digits
}

// InternationalPhone prefixes a normalized number for SMS delivery.
func InternationalPhone(normalized, countryPrefix string) string {
	return "+" + countryPrefix + normalized
}
