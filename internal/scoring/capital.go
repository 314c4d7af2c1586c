package scoring

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseCapital parses a currency-formatted amount such as "R$ 500.000,00",
// "500000,00" or "1,234,567.89". Everything but digits and the separators
// '.' and ',' is stripped. When both separators appear, the last one is the
// decimal separator. A lone separator kind is decimal when it occurs once
// and a thousands separator when it repeats.
func ParseCapital(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if strings.IndexFunc(clean, func(r rune) bool { return r >= '0' && r <= '9' }) < 0 {
		return decimal.Zero, false
	}

	dots, commas := strings.Count(clean, "."), strings.Count(clean, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case commas == 1:
		clean = strings.Replace(clean, ",", ".", 1)
	case commas > 1:
		clean = strings.ReplaceAll(clean, ",", "")
	case dots > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
