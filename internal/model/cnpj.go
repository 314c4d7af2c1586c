package model

import "strings"

// NormalizeCNPJ strips everything but digits from a CNPJ.
func NormalizeCNPJ(s string) string {
	var b strings.Builder
	b.Grow(14)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCNPJ reports whether digits is a 14-digit CNPJ with valid check digits.
func ValidCNPJ(digits string) bool {
	if len(digits) != 14 {
		return false
	}
	same := true
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
		if digits[i] != digits[0] {
			same = false
		}
	}
	if same {
		return false
	}
	return checkDigit(digits[:12]) == digits[12] && checkDigit(digits[:13]) == digits[13]
}

func checkDigit(base string) byte {
	weight := len(base) - 7
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * weight
		weight--
		if weight < 2 {
			weight = 9
		}
	}
	rem := sum % 11
	if rem < 2 {
		return '0'
	}
	return byte('0' + 11 - rem)
}

// FormatCNPJ renders a 14-digit CNPJ as 00.000.000/0000-00.
func FormatCNPJ(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	return digits[0:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:14]
}
