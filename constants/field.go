package constants

import (
	"strings"

	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
)

// fieldSynonyms maps keys that language models tend to emit to the record's JSON keys.
var fieldSynonyms = map[string]idcard.Field{
	"cnp":               idcard.FieldCNP,
	"cod_numeric":       idcard.FieldCNP,
	"personal_code":     idcard.FieldCNP,
	"personal_number":   idcard.FieldCNP,
	"nume":              idcard.FieldSurname,
	"surname":           idcard.FieldSurname,
	"last_name":         idcard.FieldSurname,
	"lastname":          idcard.FieldSurname,
	"nom":               idcard.FieldSurname,
	"prenume":           idcard.FieldGivenName,
	"given_name":        idcard.FieldGivenName,
	"first_name":        idcard.FieldGivenName,
	"firstname":         idcard.FieldGivenName,
	"prenom":            idcard.FieldGivenName,
	"serie":             idcard.FieldSeries,
	"seria":             idcard.FieldSeries,
	"series":            idcard.FieldSeries,
	"numar":             idcard.FieldNumber,
	"nr":                idcard.FieldNumber,
	"number":            idcard.FieldNumber,
	"document_number":   idcard.FieldNumber,
	"cetatenie":         idcard.FieldCitizenship,
	"citizenship":       idcard.FieldCitizenship,
	"nationality":       idcard.FieldCitizenship,
	"nationalite":       idcard.FieldCitizenship,
	"locnastere":        idcard.FieldBirthplace,
	"loc_nastere":       idcard.FieldBirthplace,
	"birthplace":        idcard.FieldBirthplace,
	"place_of_birth":    idcard.FieldBirthplace,
	"domiciliu":         idcard.FieldResidence,
	"address":           idcard.FieldResidence,
	"adresse":           idcard.FieldResidence,
	"residence":         idcard.FieldResidence,
	"emisade":           idcard.FieldIssuedBy,
	"emisa_de":          idcard.FieldIssuedBy,
	"issued_by":         idcard.FieldIssuedBy,
	"issuing_authority": idcard.FieldIssuedBy,
	"valabilitate":      idcard.FieldValidity,
	"validity":          idcard.FieldValidity,
	"valid_until":       idcard.FieldValidity,
	"validite":          idcard.FieldValidity,
}

// CanonicalField resolves a loosely spelled key ("Loc Nastere", "emisa-de", "nr")
// to a record field.
func CanonicalField(input string) (idcard.Field, bool) {
	if input == "" {
		return "", false
	}
	k := strings.ToLower(strings.TrimSpace(input))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	if f, ok := fieldSynonyms[k]; ok {
		return f, true
	}
	if f, ok := fieldSynonyms[strings.ReplaceAll(k, "_", "")]; ok {
		return f, true
	}
	return "", false
}
