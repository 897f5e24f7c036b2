package idcard

import (
	"regexp"
	"strings"
)

// charset bounds what a labeled value may contain: the first rune and the rest.
type charset struct {
	first string
	rest  string
}

var (
	nameChars = charset{
		first: `[A-ZĂÂÎȘȚ]`,
		rest:  `[A-ZĂÂÎȘȚ\s\-]`,
	}
	citizenshipChars = charset{
		first: `[A-Za-zăâîșțĂÂÎȘȚ]`,
		rest:  `[A-Za-zăâîșțĂÂÎȘȚ\s/]`,
	}
	placeChars = charset{
		first: `[A-Za-zăâîșțĂÂÎȘȚ]`,
		rest:  `[A-Za-zăâîșțĂÂÎȘȚ.\s\-]`,
	}
	addressChars = charset{
		first: `[A-Za-zăâîșțĂÂÎȘȚ0-9]`,
		rest:  `[A-Za-zăâîșțĂÂÎȘȚ0-9.\s(),/\-]`,
	}
	authorityChars = charset{
		first: `[A-Za-zăâîșțĂÂÎȘȚ]`,
		rest:  `[A-Za-zăâîșțĂÂÎȘȚ0-9.\s\-]`,
	}
)

// rule captures one or more fields with a single pattern. Capture group i+1
// feeds fields[i]. A rule whose pattern does not match hands over to fallback.
type rule struct {
	name     string
	re       *regexp.Regexp
	fields   []Field
	skip     func(Record) bool
	fallback *rule
}

// apply runs the rule against normalized text and reports whether any field was set.
func (r *rule) apply(text string, rec *Record) bool {
	if r.skip != nil && r.skip(*rec) {
		return false
	}
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		if r.fallback != nil {
			return r.fallback.apply(text, rec)
		}
		return false
	}
	set := false
	for i, f := range r.fields {
		if rec.Set(f, m[i+1]) {
			set = true
		}
	}
	return set
}

// labelTerm terminates a value at the caption of the next field.
func labelTerm(f Field) string {
	return `\s+` + labelAlternation(Labels[f])
}

func sexTerm() string {
	return `\s+` + labelAlternation(sexTokens) + `\b`
}

const dateTerm = `\d{2}\.\d{2}`

// labeled builds the rule for a value printed after its caption. Captions may be
// chained with slashes ("Nume/Nom/Last name"); the value runs non-greedily up to
// the first terminator. A caption must not continue a word, so "Nom" inside
// "Prénom" does not count.
func labeled(f Field, cs charset, terms ...string) *rule {
	label := labelAlternation(Labels[f])
	sep := `[\s/|:]`
	pattern := `(?i)(?:^|[^\p{L}\p{N}])` + label +
		`(?:` + sep + `*` + label + sep + `)*` +
		sep + `*` +
		`(` + cs.first + cs.rest + `*?)` +
		`(?:` + strings.Join(terms, "|") + `)`
	return &rule{
		name:   string(f),
		re:     regexp.MustCompile(pattern),
		fields: []Field{f},
	}
}

func mrzNames() *rule {
	prefix := `(?:` + strings.Join(mrzDocumentPrefixes, "|") + `)?`
	return &rule{
		name:   "mrz-names",
		re:     regexp.MustCompile(prefix + `([A-Z]+)<<([A-Z]+)<<`),
		fields: []Field{FieldSurname, FieldGivenName},
	}
}

func buildRules() []*rule {
	surname := labeled(FieldSurname, nameChars, labelTerm(FieldGivenName))
	surname.fallback = mrzNames()

	givenName := labeled(FieldGivenName, nameChars, labelTerm(FieldCitizenship))
	givenName.skip = func(r Record) bool { return r.Has(FieldGivenName) }

	return []*rule{
		{
			name:   "cnp",
			re:     regexp.MustCompile(`\b(\d{13})\b`),
			fields: []Field{FieldCNP},
		},
		{
			name:   "series-number",
			re:     regexp.MustCompile(`\b([A-Z]{2})\s*(\d{6})\b`),
			fields: []Field{FieldSeries, FieldNumber},
		},
		surname,
		givenName,
		labeled(FieldCitizenship, citizenshipChars, labelTerm(FieldBirthplace), sexTerm()),
		labeled(FieldBirthplace, placeChars, labelTerm(FieldResidence)),
		labeled(FieldResidence, addressChars, labelTerm(FieldIssuedBy)),
		labeled(FieldIssuedBy, authorityChars, labelTerm(FieldValidity), dateTerm),
		{
			name:   "validity",
			re:     regexp.MustCompile(`(\d{2}\.\d{2}\.\d{2}(?:\d{2})?-\d{2}\.\d{2}\.\d{4})`),
			fields: []Field{FieldValidity},
		},
	}
}

// extractionRules run in order; earlier rules may gate later ones through skip.
var extractionRules = buildRules()
