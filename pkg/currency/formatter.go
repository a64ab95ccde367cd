package currency

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
)

// Format renders amount as "CODE 1,234.50" using the ISO 4217 number of
// decimals for code. Unknown codes are shown as given with two decimals.
func Format(amount float64, code string) string {
	label := strings.ToUpper(strings.TrimSpace(code))
	scale := 2
	if unit, err := currency.ParseISO(label); err == nil {
		label = unit.String()
		scale, _ = currency.Standard.Rounding(unit)
	}

	pow := math.Pow10(scale)
	rounded := math.Round(amount*pow) / pow

	negative := rounded < 0
	if negative {
		rounded = -rounded
	}

	digits := fmt.Sprintf("%.*f", scale, rounded)
	intPart, fracPart, _ := strings.Cut(digits, ".")

	formatted := addThousandsSeparator(intPart, ",")
	if fracPart != "" {
		formatted += "." + fracPart
	}

	result := formatted
	if label != "" {
		result = label + " " + formatted
	}
	if negative {
		result = "-" + result
	}

	return result
}

// FormatRange renders a min-max price span, collapsing equal bounds.
func FormatRange(low, high float64, code string) string {
	lo, hi := Format(low, code), Format(high, code)
	if lo == hi {
		return lo
	}
	return lo + " - " + hi
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
