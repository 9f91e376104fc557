// Package chunk режет длинную расшифровку на куски ограниченного размера,
// чтобы ни один вызов модели не получал неограниченный вход.
package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultBound - предел куска для вызовов по всему документу (в символах).
	DefaultBound = 6000
	// CardBound - бюджет содержимого для концепт-карточек: там же едет контекст прошлого шага.
	CardBound = 3000
)

var paragraphSep = regexp.MustCompile(`\n[ \t]*\n+`)

// Split возвращает куски текста по порядку, каждый не длиннее bound символов.
// Абзацы, затем предложения, в крайнем случае резка по символам.
func Split(text string, bound int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if bound <= 0 {
		bound = DefaultBound
	}
	size := Len(text)
	if size <= bound {
		return []string{text}
	}

	want := (size + bound - 1) / bound
	units, sep := paragraphs(text), "\n\n"
	if len(units) < want {
		// стена текста без абзацев
		units, sep = Sentences(text), " "
	}

	var pieces []string
	for _, u := range units {
		if Len(u) <= bound {
			pieces = append(pieces, u)
			continue
		}
		for _, s := range Sentences(u) {
			if Len(s) <= bound {
				pieces = append(pieces, s)
				continue
			}
			pieces = append(pieces, slice(s, bound)...)
		}
	}
	return pack(pieces, bound, sep)
}

// Budget склеивает куски по порядку, пока влезает budget символов; последний кусок обрезается.
func Budget(chunks []string, budget int) string {
	var (
		b    strings.Builder
		used int
	)
	for _, c := range chunks {
		if used >= budget {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
			used += 2
		}
		if n := Len(c); used+n > budget {
			c = truncate(c, budget-used)
		}
		b.WriteString(c)
		used += Len(c)
	}
	return strings.TrimSpace(b.String())
}

func Len(s string) int { return utf8.RuneCountInString(s) }

func paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphSep.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sentences делит по . ! ? (с закрывающими кавычками/скобками) и по переводам строк.
func Sentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush(i + 1)
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && strings.ContainsRune(`"'”’)]»`, runes[j]) {
			j++
		}
		if j == len(runes) || unicode.IsSpace(runes[j]) {
			flush(j)
			i = j - 1
		}
	}
	flush(len(runes))
	return out
}

func pack(pieces []string, bound int, sep string) []string {
	var (
		out     []string
		cur     strings.Builder
		curSize int
	)
	sepSize := Len(sep)
	for _, p := range pieces {
		n := Len(p)
		if curSize > 0 && curSize+sepSize+n > bound {
			out = append(out, cur.String())
			cur.Reset()
			curSize = 0
		}
		if curSize > 0 {
			cur.WriteString(sep)
			curSize += sepSize
		}
		cur.WriteString(p)
		curSize += n
	}
	if curSize > 0 {
		out = append(out, cur.String())
	}
	return out
}

func slice(s string, bound int) []string {
	runes := []rune(s)
	out := make([]string, 0, len(runes)/bound+1)
	for len(runes) > 0 {
		n := bound
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
