package extract

import (
	"sort"
	"strings"
	"unicode"
)

const bom = "\uFEFF"

// Clean снимает BOM, управляющие символы (кроме \n \r \t) и markdown-ограждения ```json ... ```.
// Проза вокруг JSON тут не трогается: её отсекает поиск кандидатов.
func Clean(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), bom)
	s = stripControl(s)
	s = stripFences(s)
	return strings.TrimSpace(s)
}

func stripControl(s string) string {
	if strings.IndexFunc(s, isJunk) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isJunk(r) {
			return -1
		}
		return r
	}, s)
}

func isJunk(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return false
	}
	return r == '\uFEFF' || unicode.IsControl(r)
}

func stripFences(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	body := s[open+3:]
	// язык после ограждения: ```json, ```JSON, ```javascript
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(body[:nl]); tag == "" || isFenceTag(tag) {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

type span struct{ start, end int } // end включительно

// candidates возвращает сбалансированные {...} и [...] подстроки, от самой длинной к самой короткой.
// Кавычки учитываются только внутри скобок: в прозе вокруг JSON они ничего не значат.
func candidates(s string, limit int) []string {
	var (
		spans    []span
		stack    []int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if len(stack) > 0 && inString {
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
			if len(stack) > 0 {
				inString = true
			}
		case '{', '[':
			stack = append(stack, i)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			if (c == '}' && s[open] != '{') || (c == ']' && s[open] != '[') {
				stack = stack[:0]
				continue
			}
			stack = stack[:len(stack)-1]
			spans = append(spans, span{open, i})
		}
	}

	// грубый кандидат: от первой { до последней } (обрезанный или кривой вывод)
	if first, last := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); first >= 0 && last > first {
		spans = append(spans, span{first, last})
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})

	seen := make(map[span]bool, len(spans))
	out := make([]string, 0, limit)
	for _, sp := range spans {
		if seen[sp] {
			continue
		}
		seen[sp] = true
		out = append(out, s[sp.start:sp.end+1])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
