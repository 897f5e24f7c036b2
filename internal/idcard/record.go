package idcard

// Field names a slot of Record. The string value is the JSON key.
type Field string

const (
	FieldCNP         Field = "cnp"
	FieldSurname     Field = "nume"
	FieldGivenName   Field = "prenume"
	FieldSeries      Field = "serie"
	FieldNumber      Field = "numar"
	FieldCitizenship Field = "cetatenie"
	FieldBirthplace  Field = "locNastere"
	FieldResidence   Field = "domiciliu"
	FieldIssuedBy    Field = "emisaDe"
	FieldValidity    Field = "valabilitate"
)

// AllFields lists every Record field in serialization order.
var AllFields = []Field{
	FieldCNP,
	FieldSurname,
	FieldGivenName,
	FieldSeries,
	FieldNumber,
	FieldCitizenship,
	FieldBirthplace,
	FieldResidence,
	FieldIssuedBy,
	FieldValidity,
}

// Record holds the fields extracted from one identity card scan.
// A nil pointer means the field was not found.
type Record struct {
	CNP         *string `json:"cnp"`
	Surname     *string `json:"nume"`
	GivenName   *string `json:"prenume"`
	Series      *string `json:"serie"`
	Number      *string `json:"numar"`
	Citizenship *string `json:"cetatenie"`
	Birthplace  *string `json:"locNastere"`
	Residence   *string `json:"domiciliu"`
	IssuedBy    *string `json:"emisaDe"`
	Validity    *string `json:"valabilitate"`
}

func (r *Record) slot(f Field) **string {
	switch f {
	case FieldCNP:
		return &r.CNP
	case FieldSurname:
		return &r.Surname
	case FieldGivenName:
		return &r.GivenName
	case FieldSeries:
		return &r.Series
	case FieldNumber:
		return &r.Number
	case FieldCitizenship:
		return &r.Citizenship
	case FieldBirthplace:
		return &r.Birthplace
	case FieldResidence:
		return &r.Residence
	case FieldIssuedBy:
		return &r.IssuedBy
	case FieldValidity:
		return &r.Validity
	}
	return nil
}

// Get returns the value of f and whether it is present.
func (r Record) Get(f Field) (string, bool) {
	p := r.slot(f)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Set cleans v and stores it under f. Values that clean to "" leave the field absent.
// It reports whether the field was populated.
func (r *Record) Set(f Field, v string) bool {
	p := r.slot(f)
	if p == nil {
		return false
	}
	c := Clean(v)
	if c == "" {
		*p = nil
		return false
	}
	*p = &c
	return true
}

// Has reports whether f is populated.
func (r Record) Has(f Field) bool {
	_, ok := r.Get(f)
	return ok
}

// Populated returns the populated fields in serialization order.
func (r Record) Populated() []Field {
	out := make([]Field, 0, len(AllFields))
	for _, f := range AllFields {
		if r.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Map returns all ten keys; absent fields map to nil.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(AllFields))
	for _, f := range AllFields {
		if v, ok := r.Get(f); ok {
			m[string(f)] = v
		} else {
			m[string(f)] = nil
		}
	}
	return m
}

// FillMissing copies fields from other that r does not have yet.
// It returns the fields that were filled.
func (r *Record) FillMissing(other Record) []Field {
	var filled []Field
	for _, f := range AllFields {
		if r.Has(f) {
			continue
		}
		if v, ok := other.Get(f); ok && r.Set(f, v) {
			filled = append(filled, f)
		}
	}
	return filled
}
