package idcard

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Go's \s is ASCII-only; OCR output also carries NBSP and other separators.
var reWhitespace = regexp.MustCompile(`[\s\v\p{Z}]+`)

// Scanners and older fonts emit the cedilla forms; the card itself uses comma-below.
var cedillaFolder = strings.NewReplacer(
	"ş", "ș", "Ş", "Ș",
	"ţ", "ț", "Ţ", "Ț",
)

// foldDiacritics composes combining sequences (a + U+0306 -> ă) and maps
// cedilla s/t to their comma-below forms.
func foldDiacritics(s string) string {
	return cedillaFolder.Replace(norm.NFC.String(s))
}

// Normalize folds diacritics, collapses line breaks and whitespace runs into
// single spaces and trims the result. Every extraction rule runs on this form.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := foldDiacritics(raw)
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
