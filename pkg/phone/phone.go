// Package phone normalizes user-supplied phone numbers into direct-chat addresses.
package phone

import (
	"strings"
	"unicode"

	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/client"
)

// DefaultCountryCode replaces a leading trunk prefix "0".
const DefaultCountryCode = "62"

// Format strips everything but digits, replaces a leading 0 with the
// country code and appends the direct-chat suffix.
//
//	Format("0812-3456 789") == "628123456789@c.us"
func Format(number string) string {
	return FormatWithCountry(number, DefaultCountryCode)
}

// FormatWithCountry is Format with an explicit country code.
func FormatWithCountry(number, countryCode string) string {
	suffix := "@" + client.UserServer
	var b strings.Builder
	for _, r := range strings.TrimSuffix(number, suffix) {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	formatted := b.String()
	if strings.HasPrefix(formatted, "0") {
		formatted = countryCode + formatted[1:]
	}
	return formatted + suffix
}

// Normalize is Format that rejects input without any digit.
func Normalize(number string) (string, error) {
	address := Format(number)
	if address == "@"+client.UserServer {
		return "", errors.InvalidInput("recipient must contain a phone number").WithDetail("recipient", number)
	}
	return address, nil
}
