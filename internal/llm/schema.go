package llm

import "github.com/joseph-ayodele/idcard-reader/internal/idcard"

// fieldPatterns constrain the fields whose shape is fixed on the card.
var fieldPatterns = map[idcard.Field]string{
	idcard.FieldCNP:      `^[0-9]{13}$`,
	idcard.FieldSeries:   `^[A-Z]{2}$`,
	idcard.FieldNumber:   `^[0-9]{6}$`,
	idcard.FieldValidity: `^[0-9]{2}\.[0-9]{2}\.[0-9]{2}([0-9]{2})?-[0-9]{2}\.[0-9]{2}[0-9.]*$`,
}

// BuildRecordJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as an output constraint and also use it locally to validate.
// Every field is optional; a field the model cannot read must be omitted.
func BuildRecordJSONSchema() map[string]any {
	props := make(map[string]any, len(idcard.AllFields))
	for _, f := range idcard.AllFields {
		p := map[string]any{"type": "string", "minLength": 1}
		if pat, ok := fieldPatterns[f]; ok {
			p["pattern"] = pat
		}
		props[string(f)] = p
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}
