package schema

import (
	"encoding/json"
	"strings"
)

// DecodeObject unmarshals raw model text into a generic JSON object.
func DecodeObject(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// CoerceObject is the single structural repair pass applied to model output
// that failed to decode directly: strip markdown code fences, then reduce
// the text to its first balanced top-level JSON object.
func CoerceObject(raw string) (map[string]any, bool) {
	cleaned := stripFences(raw)
	if obj, ok := DecodeObject(cleaned); ok {
		return obj, true
	}
	blob, ok := firstObject(cleaned)
	if !ok {
		return nil, false
	}
	return DecodeObject(blob)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// firstObject returns the first balanced {...} span, ignoring braces inside
// JSON string literals.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
