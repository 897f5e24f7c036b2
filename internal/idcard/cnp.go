package idcard

// CodeLength is the number of digits in a CNP.
const CodeLength = 13

// codeWeights multiply the first twelve digits of a CNP.
var codeWeights = [CodeLength - 1]int{2, 7, 9, 1, 4, 6, 3, 5, 8, 2, 7, 9}

// ControlDigit computes the check digit for a 12-digit prefix.
// ok is false when prefix is not exactly twelve ASCII digits.
func ControlDigit(prefix string) (digit int, ok bool) {
	if len(prefix) != CodeLength-1 {
		return 0, false
	}
	sum := 0
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		sum += int(c-'0') * codeWeights[i]
	}
	r := sum % 11
	if r == 10 {
		return 1, true
	}
	return r, true
}

// IsValidCode reports whether code is a 13-digit CNP with a matching check digit.
// Malformed input is simply invalid.
func IsValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	last := code[CodeLength-1]
	if last < '0' || last > '9' {
		return false
	}
	want, ok := ControlDigit(code[:CodeLength-1])
	return ok && int(last-'0') == want
}
