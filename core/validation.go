package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	CardNetworkVisa       = "visa"
	CardNetworkMastercard = "mastercard"
	CardNetworkAmex       = "amex"
	CardNetworkRuPay      = "rupay"
	CardNetworkUnknown    = "unknown"
)

var vpaPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9]+$`)

func ValidVPA(vpa string) bool {
	return vpaPattern.MatchString(strings.TrimSpace(vpa))
}

// LuhnValid accepts 13 to 19 digit numbers. Spaces and dashes are ignored.
func LuhnValid(number string) bool {
	digits := cardDigits(number)
	if len(digits) != len(stripCardSeparators(number)) {
		return false
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	for i := 0; i < len(digits); i++ {
		n := int(digits[len(digits)-1-i] - '0')
		if i%2 == 1 {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
	}
	return sum%10 == 0
}

func DetectCardNetwork(number string) string {
	digits := cardDigits(number)
	if digits == "" {
		return CardNetworkUnknown
	}
	if strings.HasPrefix(digits, "4") {
		return CardNetworkVisa
	}
	if len(digits) < 2 {
		return CardNetworkUnknown
	}
	prefix, err := strconv.Atoi(digits[:2])
	if err != nil {
		return CardNetworkUnknown
	}
	switch {
	case prefix >= 51 && prefix <= 55:
		return CardNetworkMastercard
	case prefix == 34 || prefix == 37:
		return CardNetworkAmex
	case prefix == 60 || prefix == 65 || (prefix >= 81 && prefix <= 89):
		return CardNetworkRuPay
	}
	return CardNetworkUnknown
}

// ExpiryValid reports whether (month, year) is the current month or later.
// Two digit years are read as 20yy.
func ExpiryValid(month string, year string, now time.Time) bool {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return false
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y < 0 {
		return false
	}
	if y < 100 {
		y += 2000
	}
	if y != now.Year() {
		return y > now.Year()
	}
	return m >= int(now.Month())
}

func CardLast4(number string) string {
	digits := cardDigits(number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func stripCardSeparators(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
}

func cardDigits(number string) string {
	var b strings.Builder
	for _, r := range stripCardSeparators(number) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
