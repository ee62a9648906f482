package utils

import "strings"

// DefaultCountryCode is used by ToWa.
const DefaultCountryCode = "62"

// ToWa normalizes a phone number to the international digits-only form the relay expects.
func ToWa(phone string) string {
	return ToWaWithCountry(phone, DefaultCountryCode)
}

// ToWaWithCountry is ToWa with an explicit country code.
func ToWaWithCountry(phone, countryCode string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	s := digits.String()
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "0"):
		return countryCode + s[1:]
	case strings.HasPrefix(s, "8"):
		return countryCode + s
	default:
		return s
	}
}
