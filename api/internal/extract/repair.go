package extract

import "strings"

// Repair чинит типичные поломки JSON от модели, ничего не выдумывая:
//   - одиночный обратный слэш внутри строки (\( \d \s из формул) экранируется;
//   - «сырые» переводы строк и табы внутри строк превращаются в \n и \t;
//   - висячая запятая перед } или ] удаляется.
func Repair(s string) string {
	var (
		b        strings.Builder
		inString bool
	)
	b.Grow(len(s) + 16)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				if i+1 < len(s) && validEscape(s, i+1) {
					b.WriteByte(c)
					b.WriteByte(s[i+1])
					i++
					continue
				}
				b.WriteString(`\\`)
			case '"':
				inString = false
				b.WriteByte(c)
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			b.WriteByte(c)
		case ',':
			if j := nextNonSpace(s, i+1); j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func validEscape(s string, i int) bool {
	switch s[i] {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		return true
	case 'u':
		if i+4 >= len(s) {
			return false
		}
		for _, h := range s[i+1 : i+5] {
			if !isHex(h) {
				return false
			}
		}
		return true
	}
	return false
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func nextNonSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\n', '\r', '\t':
			i++
		default:
			return i
		}
	}
	return i
}
