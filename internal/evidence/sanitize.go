package evidence

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// SanitizeJSON strips the wrapping artifacts remote models add around JSON
// (code fences, BOM, stray escape sequences) and, when the result still does
// not parse, attempts a jsonrepair pass before giving up.
func SanitizeJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "\uFEFF")

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Some models escape newlines outside string context.
	s = strings.ReplaceAll(s, "\\n{", "{")
	s = strings.ReplaceAll(s, "}\\n", "}")

	if json.Valid([]byte(s)) {
		return s, nil
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return "", err
	}
	return repaired, nil
}
