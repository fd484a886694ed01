package answer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`(\()?(-|−)?\$?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?|\.\d+)(\))?(\s?%)?`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
)

// number is one numeric mention in text.
type number struct {
	Value   float64
	Percent bool
	Year    bool
}

// ExtractNumbers returns every number in text in order of appearance.
// It understands currency signs, thousands separators, decimals, leading minus
// signs, accounting negatives like (1,234), and percent signs.
func ExtractNumbers(text string) []float64 {
	mentions := extractNumbers(text)
	out := make([]float64, len(mentions))
	for i, m := range mentions {
		out[i] = m.Value
	}
	return out
}

func extractNumbers(text string) []number {
	var out []number
	for _, loc := range numberRe.FindAllStringSubmatchIndex(text, -1) {
		start := loc[0]
		openParen := loc[2] >= 0
		hasSign := loc[4] >= 0
		closeParen := loc[8] >= 0
		percent := loc[10] >= 0
		digits := text[loc[6]:loc[7]]

		if start > 0 && isWordByte(text[start-1]) {
			// a sign glued to a word is a range dash, as in 2022-2023
			if !hasSign || openParen {
				continue
			}
			hasSign = false
		}

		v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
		if err != nil {
			continue
		}

		year := isYearDigits(digits, v)
		if hasSign {
			v = -v
		}
		if openParen && closeParen && !year && v > 0 {
			v = -v
		}
		out = append(out, number{Value: v, Percent: percent, Year: year && !hasSign})
	}
	return out
}

func isWordByte(b byte) bool {
	return b == '.' || b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isYearDigits(digits string, v float64) bool {
	return len(digits) == 4 && !strings.ContainsAny(digits, ",.") && v >= 1900 && v <= 2100
}

// stripTags replaces HTML tags with spaces so table cells read as plain text.
func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

// formatNumber renders v without trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
