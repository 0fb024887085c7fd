package engine

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Language identifies a supported number-to-words locale.
type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
)

var languageAliases = map[string]Language{
	"en":      LangEnglish,
	"english": LangEnglish,
	"en-us":   LangEnglish,
	"en-gb":   LangEnglish,
	"ar":      LangArabic,
	"arabic":  LangArabic,
	"العربية": LangArabic,
}

// ParseLanguage maps an invoice language setting to a supported locale.
// Empty input means English and counts as supported.
func ParseLanguage(s string) (Language, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return LangEnglish, true
	}
	lang, ok := languageAliases[key]
	if !ok {
		return LangEnglish, false
	}
	return lang, true
}

// maxSpelled is the largest whole amount with a word form (2^64-1).
var maxSpelled = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// AmountInWords spells out a non-negative amount. Minor units, if any, are
// written as a fraction over 10^precision ("and 50/100").
func AmountInWords(amount decimal.Decimal, precision int32, lang Language) string {
	amount = amount.Abs().Round(precision)
	whole := amount.Truncate(0)
	minor := amount.Sub(whole).Shift(precision).IntPart()

	var words string
	switch {
	case whole.GreaterThan(maxSpelled):
		// beyond the named scales; print the digits
		words = whole.String()
	case lang == LangArabic:
		words = arabicWords(whole.BigInt().Uint64())
	default:
		words = englishWords(whole.BigInt().Uint64())
	}

	if precision <= 0 || minor == 0 {
		return words
	}

	fraction := fmt.Sprintf("%0*d/%s", int(precision), minor, decimal.New(1, precision).String())
	if lang == LangArabic {
		return words + " و " + fraction
	}
	return words + " and " + fraction
}

var (
	enOnes = []string{"Zero", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	enTens   = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
	enScales = []string{"", "Thousand", "Million", "Billion", "Trillion", "Quadrillion", "Quintillion"}
)

func englishWords(n uint64) string {
	if n == 0 {
		return enOnes[0]
	}

	var groups []string
	for scale := 0; n > 0; scale++ {
		chunk := n % 1000
		n /= 1000
		if chunk == 0 {
			continue
		}
		part := englishHundreds(chunk)
		if enScales[scale] != "" {
			part += " " + enScales[scale]
		}
		groups = append([]string{part}, groups...)
	}
	return strings.Join(groups, " ")
}

func englishHundreds(n uint64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, enOnes[n/100], "Hundred")
		n %= 100
	}
	switch {
	case n == 0:
	case n < 20:
		parts = append(parts, enOnes[n])
	default:
		t := enTens[n/10]
		if n%10 != 0 {
			t += " " + enOnes[n%10]
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

var (
	arOnes = []string{"صفر", "واحد", "اثنان", "ثلاثة", "أربعة", "خمسة", "ستة", "سبعة", "ثمانية", "تسعة",
		"عشرة", "أحد عشر", "اثنا عشر", "ثلاثة عشر", "أربعة عشر", "خمسة عشر", "ستة عشر", "سبعة عشر", "ثمانية عشر", "تسعة عشر"}
	arTens     = []string{"", "", "عشرون", "ثلاثون", "أربعون", "خمسون", "ستون", "سبعون", "ثمانون", "تسعون"}
	arHundreds = []string{"", "مائة", "مائتان", "ثلاثمائة", "أربعمائة", "خمسمائة", "ستمائة", "سبعمائة", "ثمانمائة", "تسعمائة"}
)

// arScale holds the singular, dual and plural (3-10) forms of a power of 1000.
type arScale struct{ one, two, plural string }

var arScales = []arScale{
	{},
	{"ألف", "ألفان", "آلاف"},
	{"مليون", "مليونان", "ملايين"},
	{"مليار", "ملياران", "مليارات"},
	{"تريليون", "تريليونان", "تريليونات"},
	{"كوادريليون", "كوادريليونان", "كوادريليونات"},
	{"كوينتليون", "كوينتليونان", "كوينتليونات"},
}

func arabicWords(n uint64) string {
	if n == 0 {
		return arOnes[0]
	}

	var groups []string
	for scale := 0; n > 0; scale++ {
		chunk := n % 1000
		n /= 1000
		if chunk == 0 {
			continue
		}
		groups = append([]string{arabicScaled(chunk, scale)}, groups...)
	}
	return strings.Join(groups, " و ")
}

func arabicScaled(chunk uint64, scale int) string {
	if scale == 0 {
		return arabicHundreds(chunk)
	}
	s := arScales[scale]
	switch {
	case chunk == 1:
		return s.one
	case chunk == 2:
		return s.two
	case chunk <= 10:
		return arabicHundreds(chunk) + " " + s.plural
	default:
		return arabicHundreds(chunk) + " " + s.one
	}
}

func arabicHundreds(n uint64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, arHundreds[n/100])
		n %= 100
	}
	switch {
	case n == 0:
	case n < 20:
		parts = append(parts, arOnes[n])
	default:
		// units come before tens: واحد وعشرون
		if n%10 != 0 {
			parts = append(parts, arOnes[n%10]+" و"+arTens[n/10])
		} else {
			parts = append(parts, arTens[n/10])
		}
	}
	return strings.Join(parts, " و")
}
