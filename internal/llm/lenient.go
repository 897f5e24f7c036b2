package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/idcard-reader/internal/idcard"
)

var compiledFieldPatterns = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(fieldPatterns))
	for f, p := range fieldPatterns {
		out[string(f)] = regexp.MustCompile(p)
	}
	return out
}()

// ExtractJSONObject returns the outermost {...} span of a model reply, which
// often wraps the object in prose or a code fence.
func ExtractJSONObject(content string) ([]byte, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := content[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, false
	}
	return []byte(candidate), true
}

// DropNonConforming removes fields whose value does not match the shape the
// schema expects, so the rest of the document can still validate. Every field
// is optional, so dropping never makes the document invalid.
func DropNonConforming(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string
	for _, f := range idcard.AllFields {
		k := string(f)
		v, ok := m[k]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if !isStr || strings.TrimSpace(s) == "" {
			delete(m, k)
			dropped = append(dropped, k)
			continue
		}
		if re, ok := compiledFieldPatterns[k]; ok && !re.MatchString(s) {
			delete(m, k)
			dropped = append(dropped, k)
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}
