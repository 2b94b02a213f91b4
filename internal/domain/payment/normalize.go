package payment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidPhone    = errors.New("payment: invalid wallet phone number")
	ErrInvalidCurrency = errors.New("payment: invalid currency code")
)

// DefaultDialPrefix is the international prefix assumed for locally-formatted
// numbers (a single leading zero followed by ten digits).
const DefaultDialPrefix = "+20"

var (
	e164Pattern     = regexp.MustCompile(`^\+[1-9]\d{9,14}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	localPattern    = regexp.MustCompile(`^0\d{10}$`)
)

// NormalizePhone converts a raw user-entered phone number into canonical
// E.164 form for the default market. It is pure and deterministic.
func NormalizePhone(raw string) (string, error) {
	return NormalizePhoneForMarket(raw, DefaultDialPrefix)
}

// NormalizePhoneForMarket applies, in order: strip whitespace and hyphens;
// accept numbers already in international form; rewrite a single leading zero
// plus ten digits to the market dial prefix; prefix bare country-code numbers
// with "+". Anything else is rejected before any network call is made.
func NormalizePhoneForMarket(raw, dialPrefix string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(raw)
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidPhone)
	}
	if dialPrefix == "" || !strings.HasPrefix(dialPrefix, "+") {
		dialPrefix = DefaultDialPrefix
	}
	countryCode := dialPrefix[1:]

	if strings.HasPrefix(cleaned, "+") {
		if !e164Pattern.MatchString(cleaned) {
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
		}
		return cleaned, nil
	}

	if localPattern.MatchString(cleaned) {
		return dialPrefix + cleaned[1:], nil
	}

	if strings.HasPrefix(cleaned, countryCode) && len(cleaned) == len(countryCode)+10 && digitsOnly(cleaned) {
		candidate := "+" + cleaned
		if !e164Pattern.MatchString(candidate) {
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
		}
		return candidate, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
}

// NormalizeCurrency uppercases the raw code and requires exactly three letters.
func NormalizeCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !currencyPattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, raw)
	}
	return code, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
