package pipeline

import (
	"encoding/json"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"lexie-server/api/internal/chunk"
	"lexie-server/api/internal/types"
)

const (
	quizOptions = 4
	// QuizFloor - меньше вопросов в не-языковом наборе не отдаём, добиваем шаблонами.
	QuizFloor = 5
)

type wireQuestion struct {
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	Correct       json.RawMessage `json:"correct"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Answer        json.RawMessage `json:"answer"`
	Explanation   string          `json:"explanation"`
}

var (
	optionPrefix = regexp.MustCompile(`^[A-Da-d][\).:]\s+`)
	answerLetter = regexp.MustCompile(`^[A-Da-d][\).:]?$`)

	translationQuestion = regexp.MustCompile(`(?i)\b(translate|translation|in english|in finnish|mean in)\b|käännä|käännös|tarkoittaa|englanniksi|suomeksi|what does ["'“][^"'”]+["'”] mean`)
)

// NormalizeQuestion приводит вопрос к виду "ровно 4 варианта, correct совпадает с одним из них".
// Вопрос, который так не привести, отбрасывается.
func NormalizeQuestion(w wireQuestion) (types.QuizQuestion, bool) {
	question := strings.TrimSpace(w.Question)
	if question == "" {
		return types.QuizQuestion{}, false
	}

	var options []string
	seen := make(map[string]bool)
	for _, o := range w.Options {
		o = strings.TrimSpace(optionPrefix.ReplaceAllString(strings.TrimSpace(o), ""))
		key := strings.ToLower(o)
		if o == "" || seen[key] {
			continue
		}
		seen[key] = true
		options = append(options, o)
	}
	if len(options) < quizOptions {
		return types.QuizQuestion{}, false
	}

	correct := -1
	for _, raw := range []json.RawMessage{w.Correct, w.CorrectAnswer, w.Answer} {
		if i, ok := resolveCorrect(raw, options); ok {
			correct = i
			break
		}
	}
	if correct < 0 {
		return types.QuizQuestion{}, false
	}

	if len(options) > quizOptions {
		// правильный вариант остаётся примерно на своём месте
		answer := options[correct]
		others := make([]string, 0, len(options)-1)
		for i, o := range options {
			if i != correct {
				others = append(others, o)
			}
		}
		correct = min(correct, quizOptions-1)
		options = slices.Insert(others[:quizOptions-1], correct, answer)
	}

	return types.QuizQuestion{
		Question:    question,
		Options:     options,
		Correct:     options[correct],
		Explanation: strings.TrimSpace(w.Explanation),
	}, true
}

// resolveCorrect понимает значение варианта, букву A-D и индекс с нуля.
// Число, совпавшее с вариантом, считается значением, а не индексом.
func resolveCorrect(raw json.RawMessage, options []string) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		// число сначала ищем среди вариантов по значению: в математике варианты сами числа
		if i, ok := indexOf(options, strconv.FormatFloat(n, 'f', -1, 64)); ok {
			return i, true
		}
		i := int(n)
		if float64(i) == n && i >= 0 && i < len(options) {
			return i, true
		}
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i, ok := indexOf(options, s); ok {
		return i, true
	}
	if answerLetter.MatchString(s) {
		i := int(strings.ToLower(s)[0] - 'a')
		if i < len(options) {
			return i, true
		}
	}
	if stripped := strings.TrimSpace(optionPrefix.ReplaceAllString(s, "")); stripped != s {
		return indexOf(options, stripped)
	}
	return 0, false
}

func indexOf(options []string, s string) (int, bool) {
	for i, o := range options {
		if o == s {
			return i, true
		}
	}
	for i, o := range options {
		if strings.EqualFold(o, s) {
			return i, true
		}
	}
	return 0, false
}

// translationShaped: короткий ответ без знаков конца предложения похож на перевод слова.
func translationShaped(back string) bool {
	if strings.ContainsAny(back, ".!?") {
		return false
	}
	return len(strings.Fields(back)) <= 3
}

// RepairFlashcards: если большинство карточек выглядят как переводы, а предмет
// не языковой, обратная сторона всех карточек заменяется заглушкой по предмету.
// Грубо, но формат набора остаётся единым.
func RepairFlashcards(cards []types.Flashcard, subject types.SubjectArea) ([]types.Flashcard, bool) {
	if len(cards) == 0 {
		return cards, false
	}
	shaped := 0
	for _, c := range cards {
		if translationShaped(c.Back) {
			shaped++
		}
	}
	if shaped*2 <= len(cards) {
		return cards, false
	}
	back := placeholderBack(subject)
	out := make([]types.Flashcard, len(cards))
	for i, c := range cards {
		out[i] = types.Flashcard{Front: c.Front, Back: back}
	}
	return out, true
}

// RepairQuiz выкидывает вопросы-переводы и добивает до QuizFloor шаблонами предмета.
func RepairQuiz(quiz []types.QuizQuestion, subject types.SubjectArea) []types.QuizQuestion {
	out := make([]types.QuizQuestion, 0, len(quiz))
	asked := make(map[string]bool)
	for _, q := range quiz {
		if translationQuestion.MatchString(q.Question) {
			continue
		}
		out = append(out, q)
		asked[strings.ToLower(q.Question)] = true
	}
	for _, t := range templatesFor(subject) {
		if len(out) >= QuizFloor {
			break
		}
		if asked[strings.ToLower(t.Question)] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// FallbackFlashcard - одна карточка, когда генерация не дала ни одной.
func FallbackFlashcard(title, summary, raw string) types.Flashcard {
	front := strings.TrimSpace(title)
	if front == "" {
		front = "What is this material about?"
	}
	back := firstSentence(summary)
	if back == "" {
		back = firstSentence(raw)
	}
	if back == "" {
		back = "Review the material and explain its main idea in your own words."
	}
	return types.Flashcard{Front: front, Back: back}
}

// FallbackQuestion - один вопрос по заголовку, когда после ремонта тест пуст.
func FallbackQuestion(title string) types.QuizQuestion {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Content"
	}
	options := []string{title}
	for _, d := range []string{"Weather forecasts", "Cooking recipes", "Sports results", "Travel plans"} {
		if len(options) == quizOptions {
			break
		}
		if !strings.EqualFold(d, title) {
			options = append(options, d)
		}
	}
	return types.QuizQuestion{
		Question:    "What is the main topic of this material?",
		Options:     options,
		Correct:     title,
		Explanation: "The material is about " + title + ".",
	}
}

func firstSentence(s string) string {
	for _, sent := range chunk.Sentences(s) {
		if sent = strings.TrimSpace(sent); sent != "" {
			if chunk.Len(sent) > 200 {
				sent = string([]rune(sent)[:200])
			}
			return sent
		}
	}
	return ""
}
