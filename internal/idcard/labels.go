package idcard

import (
	"regexp"
	"sort"
	"strings"
)

// Labels maps a labeled field to the captions printed next to it on the card:
// Romanian (with and without diacritics, as OCR returns both), French, English.
var Labels = map[Field][]string{
	FieldSurname:     {"Nume", "Nom", "Last name"},
	FieldGivenName:   {"Prenume", "Prenom", "Prénom", "First name"},
	FieldCitizenship: {"Cetatenie", "Cetățenie", "Nationalite", "Nationalité", "Nationality"},
	FieldBirthplace:  {"Loc nastere", "Loc naștere", "Lieu de naissance", "Place of birth"},
	FieldResidence:   {"Domiciliu", "Adresse", "Address"},
	FieldIssuedBy:    {"Emisa de", "Emisă de", "Delivree par", "Délivrée par", "Issued by"},
	FieldValidity:    {"Valabilitate", "Validite", "Validité", "Validity"},
}

// sexTokens end the citizenship value on cards that print the sex box right after it.
var sexTokens = []string{"Sex", "Sexe", "M", "F"}

// mrzDocumentPrefixes are stripped from the front of the MRZ name line
// (document code + issuing state).
var mrzDocumentPrefixes = []string{"IDROU"}

// labelAlternation renders a set of captions as a regexp alternation.
// Spaces inside a caption match any whitespace run, longer captions are tried first.
func labelAlternation(labels []string) string {
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	parts := make([]string, 0, len(sorted))
	for _, l := range sorted {
		words := strings.Fields(l)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s+`))
	}
	return "(?:" + strings.Join(parts, "|") + ")"
}
