// Package extract достаёт структурированный ответ из «почти JSON», который возвращают модели.
//
// Порядок попыток: очищенный текст целиком, самые длинные {...}/[...] подстроки,
// разбор с каждой открывающей скобки, то же после Repair,
// затем (для Field) вырезание значения конкретного ключа.
// Если ничего не вышло, возвращается fallback с Outcome == Fallback. Паники наружу не уходят.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxCandidates ограничивает перебор подстрок на длинных ответах.
const maxCandidates = 16

type Outcome int

const (
	Parsed   Outcome = iota // очищенный текст разобрался сразу
	Embedded                // разобралась подстрока внутри прозы
	Repaired                // помог Repair
	Salvaged                // вытащили значение одного ключа
	Fallback                // ничего не вышло, вернули значение по умолчанию
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Embedded:
		return "embedded"
	case Repaired:
		return "repaired"
	case Salvaged:
		return "salvaged"
	default:
		return "fallback"
	}
}

type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error // последняя ошибка разбора; заполнена только при Fallback
}

func (r Result[T]) Degraded() bool { return r.Outcome == Fallback }

var errEmpty = errors.New("extract: empty input")

// JSON разбирает raw целиком в T.
func JSON[T any](raw string, fallback T) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			res = Result[T]{Value: fallback, Outcome: Fallback, Err: fmt.Errorf("extract: panic: %v", p)}
		}
	}()

	v, outcome, err := document[T](raw)
	if err != nil {
		return Result[T]{Value: fallback, Outcome: Fallback, Err: err}
	}
	return Result[T]{Value: v, Outcome: outcome}
}

// Field достаёт значение первого найденного ключа из keys (например "concept_cards", "conceptCards").
// Сначала пробует разобрать документ целиком; если не вышло, вырезает значение ключа прямо из текста,
// в том числе из обрезанного по лимиту токенов массива.
func Field[T any](raw string, fallback T, keys ...string) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			res = Result[T]{Value: fallback, Outcome: Fallback, Err: fmt.Errorf("extract: panic: %v", p)}
		}
	}()

	doc, outcome, err := document[map[string]json.RawMessage](raw)
	if err == nil {
		for _, k := range keys {
			if msg, ok := doc[k]; ok {
				var v T
				if err = decode(msg, &v); err == nil {
					return Result[T]{Value: v, Outcome: outcome}
				}
			}
		}
		if err == nil {
			err = fmt.Errorf("extract: keys %v not found", keys)
		}
	}

	text := stripControl(raw)
	for _, k := range keys {
		v, serr := salvage[T](text, k)
		if serr == nil {
			return Result[T]{Value: v, Outcome: Salvaged}
		}
		err = serr
	}

	// модель иногда отдаёт голый массив без обёртки
	if v, _, derr := document[T](raw); derr == nil {
		return Result[T]{Value: v, Outcome: Salvaged}
	}
	return Result[T]{Value: fallback, Outcome: Fallback, Err: err}
}

func document[T any](raw string) (T, Outcome, error) {
	var zero T
	cleaned := Clean(raw)
	if cleaned == "" {
		return zero, Fallback, errEmpty
	}

	var v T
	err := decode([]byte(cleaned), &v)
	if err == nil {
		return v, Parsed, nil
	}
	lastErr := err

	cands := candidates(cleaned, maxCandidates)
	if whole := strings.TrimSpace(stripControl(raw)); whole != cleaned {
		// JSON мог оказаться вне ограждения, которое сняли
		cands = append(cands, candidates(whole, maxCandidates)...)
	}
	for _, c := range cands {
		var cv T
		err := decode([]byte(c), &cv)
		if err == nil {
			return cv, Embedded, nil
		}
		lastErr = err
	}

	// скобки и кавычки в прозе сбивают поиск пар: декодируем с каждой { и [ подряд
	for _, text := range []string{cleaned, strings.TrimSpace(stripControl(raw))} {
		if v, ok := decodeAt[T](text); ok {
			return v, Embedded, nil
		}
	}

	for _, c := range append([]string{cleaned}, cands...) {
		var rv T
		if err := decode([]byte(Repair(c)), &rv); err == nil {
			return rv, Repaired, nil
		}
	}
	return zero, Fallback, lastErr
}

// decodeAt пробует json.Decoder с каждой открывающей скобки и берёт самый длинный удачный разбор.
// Число попыток не ограничено maxCandidates.
func decodeAt[T any](s string) (T, bool) {
	var (
		best    T
		bestLen int
	)
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var v T
		if err := dec.Decode(&v); err != nil {
			continue
		}
		if n := int(dec.InputOffset()); n > bestLen {
			best, bestLen = v, n
		}
	}
	return best, bestLen > 0
}

func decode(data []byte, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errEmpty
	}
	return json.Unmarshal(data, v)
}

// salvage ищет `"key":` и разбирает следующее за ним значение.
func salvage[T any](text, key string) (T, error) {
	var zero T
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*`)
	loc := re.FindStringIndex(text)
	if loc == nil {
		return zero, fmt.Errorf("extract: key %q not found", key)
	}
	rest := text[loc[1]:]

	var v T
	dec := json.NewDecoder(strings.NewReader(rest))
	if err := dec.Decode(&v); err == nil {
		return v, nil
	}

	value := cutValue(rest)
	if value == "" {
		return zero, fmt.Errorf("extract: no value for key %q", key)
	}
	var rv T
	if err := decode([]byte(Repair(value)), &rv); err != nil {
		return zero, fmt.Errorf("extract: salvage %q: %w", key, err)
	}
	return rv, nil
}

// cutValue вырезает сбалансированный объект/массив с начала s.
// Если массив оборван (модель упёрлась в лимит), оставляет только целые элементы.
func cutValue(s string) string {
	if s == "" || (s[0] != '[' && s[0] != '{') {
		return ""
	}
	var (
		depth    int
		inString bool
		escaped  bool
		lastElem = -1 // конец последнего целого элемента верхнего уровня массива
	)
	for i := 0; i < len(s); i++ {
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
			if depth == 1 && s[0] == '[' {
				lastElem = i
			}
		}
	}
	if s[0] == '[' && lastElem > 0 {
		return s[:lastElem+1] + "]"
	}
	return ""
}
