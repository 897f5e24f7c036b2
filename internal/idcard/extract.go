// Package idcard extracts identity fields from OCR text of a Romanian identity
// card and validates the personal numeric code (CNP).
//
// Extraction is best-effort: rules run in a fixed order over whitespace-normalized
// text, each one independent of the others, and a field that no rule finds is
// left nil. Nothing here performs I/O or keeps state between calls, so every
// function is safe for concurrent use.
package idcard

// Extract populates a Record from raw OCR text. It never fails; unreadable
// input yields a Record with every field absent.
func Extract(raw string) Record {
	var rec Record
	text := Normalize(raw)
	if text == "" {
		return rec
	}
	for _, r := range extractionRules {
		r.apply(text, &rec)
	}
	return rec
}
