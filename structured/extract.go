package structured

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\n?(.*?)\\n?```")

// ExtractJSON pulls the JSON document out of a model reply that may carry
// markdown fences or surrounding prose. It returns false when no valid JSON
// object or array can be found.
func ExtractJSON(response string) (string, bool) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", false
	}
	if json.Valid([]byte(response)) {
		return response, true
	}

	// 优先尝试 markdown 代码块
	for _, m := range fenceRe.FindAllStringSubmatch(response, -1) {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
		if inner, ok := scanBalanced(candidate); ok {
			return inner, true
		}
	}

	return scanBalanced(response)
}

// scanBalanced returns the first balanced, valid JSON object or array in s.
func scanBalanced(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' && s[start] != '[' {
			continue
		}
		if end, ok := matchClose(s, start); ok {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

// matchClose finds the index of the bracket closing s[start], skipping string literals.
func matchClose(s string, start int) (int, bool) {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
