package idcard

import (
	"regexp"
	"strings"
)

// reDisallowed matches anything outside the value allow-list: ASCII letters,
// digits, the Romanian diacritics, whitespace and . - / ( ) ,
var reDisallowed = regexp.MustCompile(`[^A-Za-z0-9ĂÂÎȘȚăâîșț\s./()\-,]`)

// Clean strips characters outside the allow-list and trims the result.
// Clean(Clean(s)) == Clean(s) for every s.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = reDisallowed.ReplaceAllString(foldDiacritics(s), "")
	return strings.TrimSpace(s)
}
