package profile

import "strings"

// maxMissingBraces bounds the truncation repair. A payload missing more
// closing braces than this is not a token-limit truncation worth saving.
const maxMissingBraces = 8

// repairJSON applies a narrow, best-effort repair for model output that
// was truncated mid-object: strip markdown fences, then append the
// closing braces/brackets the brace count says are missing. Returns the
// repaired payload and whether it is worth attempting to parse; the
// caller still falls back to defaults if parsing fails.
func repairJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if !strings.HasPrefix(s, "{") {
		return "", false
	}

	braces, brackets, inString := 0, 0, false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braces++
			}
		case '}':
			if !inString {
				braces--
			}
		case '[':
			if !inString {
				brackets++
			}
		case ']':
			if !inString {
				brackets--
			}
		}
	}

	if braces < 0 || brackets < 0 {
		return "", false
	}
	if braces+brackets > maxMissingBraces {
		return "", false
	}

	// A truncation can end inside a string literal; close it first.
	if inString {
		s += `"`
	}
	s += strings.Repeat("]", brackets)
	s += strings.Repeat("}", braces)

	if !strings.HasSuffix(s, "}") {
		return "", false
	}
	return s, true
}
