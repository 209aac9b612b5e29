package shared

import "strings"

// NormalizeRUT canonicalizes a Chilean RUT: thousand-separator dots are
// stripped, the verifier digit is uppercased, and a missing dash before the
// verifier is inserted. "12.345.678-k" and "12345678K" both normalize to
// "12345678-K".
func NormalizeRUT(rut string) string {
	rut = strings.ToUpper(strings.TrimSpace(rut))
	rut = strings.ReplaceAll(rut, ".", "")
	rut = strings.ReplaceAll(rut, "-", "")
	if len(rut) < 2 {
		return rut
	}
	return rut[:len(rut)-1] + "-" + rut[len(rut)-1:]
}

// ValidRUT reports whether rut carries a correct mod-11 verifier digit.
// The input is normalized first, so any common formatting is accepted.
func ValidRUT(rut string) bool {
	rut = NormalizeRUT(rut)
	dash := strings.IndexByte(rut, '-')
	if dash < 1 || dash != len(rut)-2 {
		return false
	}
	body, verifier := rut[:dash], rut[dash+1]

	sum := 0
	factor := 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}

	var want byte
	switch rest := 11 - sum%11; rest {
	case 11:
		want = '0'
	case 10:
		want = 'K'
	default:
		want = byte('0' + rest)
	}
	return verifier == want
}
