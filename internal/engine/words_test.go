package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountInWordsEnglish(t *testing.T) {
	cases := []struct {
		amount    string
		precision int32
		want      string
	}{
		{"0", 2, "Zero"},
		{"7", 2, "Seven"},
		{"19", 2, "Nineteen"},
		{"21", 2, "Twenty One"},
		{"850", 2, "Eight Hundred Fifty"},
		{"1000", 2, "One Thousand"},
		{"1001.05", 2, "One Thousand One and 05/100"},
		{"2500000", 2, "Two Million Five Hundred Thousand"},
		{"12.345", 3, "Twelve and 345/1000"},
		{"12.5", 0, "Thirteen"},
	}
	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			assert.Equal(t, tc.want, AmountInWords(dec(tc.amount), tc.precision, LangEnglish))
		})
	}
}

func TestAmountInWordsArabic(t *testing.T) {
	cases := map[string]string{
		"0":       "صفر",
		"1":       "واحد",
		"21":      "واحد وعشرون",
		"150":     "مائة وخمسون",
		"2000":    "ألفان",
		"3000":    "ثلاثة آلاف",
		"11000":   "أحد عشر ألف",
		"1000000": "مليون",
		"2001":    "ألفان و واحد",
	}
	for amount, want := range cases {
		t.Run(amount, func(t *testing.T) {
			assert.Equal(t, want, AmountInWords(dec(amount), 2, LangArabic))
		})
	}

	assert.Equal(t, "عشرة و 25/100", AmountInWords(dec("10.25"), 2, LangArabic))
}

func TestAmountInWordsBeyondUint64(t *testing.T) {
	assert.Equal(t, "Ten Quintillion", AmountInWords(dec("10000000000000000000"), 2, LangEnglish))
	assert.Equal(t, "Eighteen Quintillion Four Hundred Forty Six Quadrillion Seven Hundred Forty Four Trillion "+
		"Seventy Three Billion Seven Hundred Nine Million Five Hundred Fifty One Thousand Six Hundred Fifteen",
		AmountInWords(dec("18446744073709551615"), 2, LangEnglish))
	assert.Equal(t, "20000000000000000000", AmountInWords(dec("20000000000000000000"), 2, LangEnglish))
	assert.Equal(t, "20000000000000000000 and 50/100", AmountInWords(dec("20000000000000000000.5"), 2, LangEnglish))
	assert.Equal(t, "20000000000000000000", AmountInWords(dec("20000000000000000000"), 2, LangArabic))
}

func TestParseLanguage(t *testing.T) {
	for in, want := range map[string]Language{
		"English": LangEnglish,
		" en ":    LangEnglish,
		"":        LangEnglish,
		"Arabic":  LangArabic,
		"AR":      LangArabic,
	} {
		got, ok := ParseLanguage(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := ParseLanguage("Deutsch")
	assert.False(t, ok)
	assert.Equal(t, LangEnglish, got)
}
