package codegen

import (
	"strconv"
	"strings"
	"unicode"
)

// commonInitialisms 常见缩写保持全大写
var commonInitialisms = map[string]bool{
	"API": true, "ASCII": true, "CPU": true, "CSS": true, "DNS": true,
	"EOF": true, "HTML": true, "HTTP": true, "HTTPS": true, "ID": true,
	"IP": true, "JSON": true, "SQL": true, "SSH": true, "TCP": true,
	"TLS": true, "TTL": true, "UI": true, "UID": true, "URI": true,
	"URL": true, "UUID": true, "XML": true,
}

// ExportedName 将 JSON 属性名转换为导出的 Go 标识符
//
//	user_id    → UserID
//	firstName  → FirstName
//	2fa-code   → F2faCode
func ExportedName(name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return "Field"
	}
	var sb strings.Builder
	for _, w := range words {
		upper := strings.ToUpper(w)
		if commonInitialisms[upper] {
			sb.WriteString(upper)
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}
	out := sb.String()
	if r := []rune(out)[0]; !unicode.IsLetter(r) {
		out = "F" + out
	}
	return out
}

// splitWords 按分隔符与驼峰边界切分
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// uniqueName 同一结构体内字段名去重
func uniqueName(base string, used map[string]bool) string {
	name := base
	for i := 2; used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	used[name] = true
	return name
}

