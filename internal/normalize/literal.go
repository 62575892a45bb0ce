package normalize

import "strings"

// The source encodes list-valued columns as literal text, e.g. "['W', 'U']".
// parseStringList is a restricted parser for exactly that shape: a bracketed
// sequence of single- or double-quoted strings. It is deliberately not a
// general expression evaluator; anything outside the recognized shape is
// rejected and the caller falls back to the original string.
func parseStringList(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return "", false
	}

	inner := trimmed[1 : len(trimmed)-1]
	var elems []string
	i := 0
	for i < len(inner) {
		// Skip whitespace between elements.
		for i < len(inner) && (inner[i] == ' ' || inner[i] == '\t') {
			i++
		}
		if i >= len(inner) {
			break
		}

		quote := inner[i]
		if quote != '\'' && quote != '"' {
			return "", false
		}
		i++
		start := i
		for i < len(inner) && inner[i] != quote {
			i++
		}
		if i >= len(inner) {
			// Unterminated quote.
			return "", false
		}
		elems = append(elems, inner[start:i])
		i++

		// Skip whitespace, then require a comma or end of input.
		for i < len(inner) && (inner[i] == ' ' || inner[i] == '\t') {
			i++
		}
		if i < len(inner) {
			if inner[i] != ',' {
				return "", false
			}
			i++
		}
	}

	return strings.Join(elems, ", "), true
}

// concatList normalizes a list-valued field to a comma-joined string. Native
// JSON lists are joined directly; literal-encoded strings go through the
// restricted parser. The returned bool reports whether a string input failed
// to parse and was passed through unchanged.
func concatList(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case []any:
		parts := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), false
	case []string:
		return strings.Join(v, ", "), false
	case string:
		if v == "" {
			return "", false
		}
		if joined, ok := parseStringList(v); ok {
			return joined, false
		}
		// Fallback: return the original string unchanged.
		return v, true
	default:
		return "", false
	}
}
