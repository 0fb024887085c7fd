package engine

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultPrecision is used when a currency has no minor-unit entry.
const DefaultPrecision = 2

// Precision returns the number of minor-unit digits of an ISO 4217 code.
// ok is false when the code is unknown and DefaultPrecision was used.
func Precision(code string) (digits int32, ok bool) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return DefaultPrecision, false
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), true
}

// FormatAmount renders an amount with en-US grouping and exactly precision
// fraction digits, e.g. 1234.5 -> "1,234.50". Amounts of any size print exactly.
func FormatAmount(amount decimal.Decimal, precision int32) string {
	if precision < 0 {
		precision = 0
	}
	digits := amount.StringFixed(precision)

	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	whole, frac := digits, ""
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		whole, frac = digits[:i], digits[i:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// FormatMoney prefixes FormatAmount with the currency code.
func FormatMoney(amount decimal.Decimal, code string) string {
	p, _ := Precision(code)
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return FormatAmount(amount, p)
	}
	return code + " " + FormatAmount(amount, p)
}
