package llm

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
)

// maxPromptText caps the OCR text sent to the model.
const maxPromptText = 3000

var fieldHints = map[idcard.Field]string{
	idcard.FieldCNP:         "13-digit personal numeric code (CNP)",
	idcard.FieldSurname:     "family name (Nume / Nom / Last name)",
	idcard.FieldGivenName:   "given names (Prenume / Prénom / First name)",
	idcard.FieldSeries:      "document series, 2 uppercase letters",
	idcard.FieldNumber:      "document number, 6 digits",
	idcard.FieldCitizenship: "citizenship (Cetățenie / Nationalité / Nationality)",
	idcard.FieldBirthplace:  "place of birth (Loc naștere / Lieu de naissance / Place of birth)",
	idcard.FieldResidence:   "residence address (Domiciliu / Adresse / Address)",
	idcard.FieldIssuedBy:    "issuing authority (Emisă de / Délivrée par / Issued by)",
	idcard.FieldValidity:    "validity period, DD.MM.YY-DD.MM.YYYY as printed",
}

// BuildSystemPrompt lists the record keys and the formatting rules.
func BuildSystemPrompt() string {
	keys := make([]string, 0, len(idcard.AllFields))
	for _, f := range idcard.AllFields {
		keys = append(keys, "'"+string(f)+"': "+fieldHints[f])
	}
	parts := []string{
		"You read OCR text of a Romanian identity card. The text may contain recognition errors; identify the fields as accurately as possible.",
		"Return ONLY a JSON object that matches the provided JSON Schema, using exactly these keys:",
		strings.Join(keys, "; ") + ".",
		"Copy values as printed, keeping Romanian diacritics (ă â î ș ț).",
		"Never output null. If a field is not present or unreadable, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint and the OCR text.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if filename := strings.TrimSpace(req.FilenameHint); filename != "" {
		b.WriteString("Filename: ")
		b.WriteString(filename)
		b.WriteString("\n")
	}
	ocr := strings.TrimSpace(req.OCRText)
	b.WriteString("\nOCR text:\n")
	if len(ocr) > maxPromptText {
		b.WriteString(truncateUTF8(ocr, maxPromptText))
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(ocr)
	}
	return b.String()
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
