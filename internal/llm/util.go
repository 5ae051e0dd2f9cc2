package llm

import (
	"encoding/json"
	"strings"
)

// CleanJSONBlock strips markdown fences and conversational text around a JSON
// value in a model response. Text with no JSON value is returned trimmed.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "\n"); idx >= 0 {
			first := strings.TrimSpace(text[:idx])
			if len(first) < 20 && !strings.ContainsAny(first, " {[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	if text[start] == '{' {
		if obj := extractJSONObject(text[start:]); obj != "" {
			return obj
		}
	} else if arr := extractJSONArray(text[start:]); arr != "" {
		return arr
	}
	return text
}

// JSONObject returns the JSON object in a model response, or "" when the
// response holds no valid object.
func JSONObject(text string) string {
	cleaned := CleanJSONBlock(text)
	if !strings.HasPrefix(cleaned, "{") || !json.Valid([]byte(cleaned)) {
		return ""
	}
	return cleaned
}

func extractJSONObject(text string) string {
	return extractBalanced(text, '{', '}')
}

func extractJSONArray(text string) string {
	return extractBalanced(text, '[', ']')
}

// extractBalanced returns the prefix of text from its opening delimiter to the
// matching close, skipping delimiters inside strings.
func extractBalanced(text string, open, close byte) string {
	if text == "" || text[0] != open {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}
