package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/idcard-reader/constants"
	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
)

var reSeriesWithNumber = regexp.MustCompile(`^([A-Za-z]{2})\s*([0-9]{6})$`)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (nr -> numar, loc_nastere -> locNastere, ...)
// - Drops null/empty values
// - Coerces numbers to strings (models like to emit the CNP as a number)
// - Splits a combined "MZ 513627" series into serie + numar
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var in map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	out := make(map[string]any, len(idcard.AllFields))

	// 1) keep canonical keys, then rename synonyms without overwriting
	for _, f := range idcard.AllFields {
		if v, ok := in[string(f)]; ok {
			out[string(f)] = v
		}
	}
	for _, k := range slices.Sorted(maps.Keys(in)) {
		f, ok := constants.CanonicalField(k)
		switch {
		case !ok:
			dropped = append(dropped, k+"(unknown)")
		case k == string(f):
		case out[string(f)] != nil:
			dropped = append(dropped, k+"(duplicate)")
		default:
			out[string(f)] = in[k]
			dropped = append(dropped, k+"->"+string(f))
		}
	}

	// 2) drop null / "" and coerce scalars to strings
	for k, v := range maps.Clone(out) {
		switch t := v.(type) {
		case nil:
			delete(out, k)
			dropped = append(dropped, k+"(null)")
		case json.Number:
			out[k] = t.String()
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			delete(out, k)
			dropped = append(dropped, k+"(type)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") || s == "-" {
				delete(out, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				out[k] = s
			}
		default:
			delete(out, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	// 3) split "MZ 513627" when the model put both parts under serie
	if s, ok := out[string(idcard.FieldSeries)].(string); ok {
		if m := reSeriesWithNumber.FindStringSubmatch(s); m != nil {
			out[string(idcard.FieldSeries)] = strings.ToUpper(m[1])
			if _, has := out[string(idcard.FieldNumber)]; !has {
				out[string(idcard.FieldNumber)] = m[2]
			}
		} else {
			out[string(idcard.FieldSeries)] = strings.ToUpper(s)
		}
	}

	// 4) strip spaces inside digit-only fields
	for _, f := range []idcard.Field{idcard.FieldCNP, idcard.FieldNumber} {
		if s, ok := out[string(f)].(string); ok {
			out[string(f)] = strings.Join(strings.Fields(s), "")
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return b, dropped, nil
}

// DecodeRecord turns sanitized JSON into a Record. Values go through idcard.Clean
// like every rule capture; values that clean to "" stay absent.
func DecodeRecord(raw []byte) (idcard.Record, error) {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return idcard.Record{}, fmt.Errorf("decode record: %w", err)
	}
	var rec idcard.Record
	for _, f := range idcard.AllFields {
		if v, ok := m[string(f)]; ok {
			rec.Set(f, v)
		}
	}
	return rec, nil
}
