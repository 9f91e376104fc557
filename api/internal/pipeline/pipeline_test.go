package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"lexie-server/api/internal/imaging"
	"lexie-server/api/internal/ledger"
	"lexie-server/api/internal/llm"
	"lexie-server/api/internal/llm/llmtest"
	"lexie-server/api/internal/prompt"
	"lexie-server/api/internal/transcribe"
	"lexie-server/api/internal/types"
)

// Маркеры из заголовков инструкций в prompts.yaml.
const (
	onTranscribe = "PAGE TRANSCRIPTION"
	onClassify   = "CLASSIFICATION TASK"
	onAnalysis   = "PROBLEM ANALYSIS"
	onCards      = "CONCEPT CARDS"
	onBasic      = "TASK: OVERVIEW"
	onFlashcards = "TASK: FLASHCARDS"
	onQuiz       = "TASK: QUIZ"
	onHint       = "EXTRA HINT"
)

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func pageJSON(text string) string {
	return mustJSON(map[string]any{
		"title":        "Page",
		"text_content": map[string]any{"raw_text": text},
	})
}

// pages отвечает на расшифровку по байтам картинки; нет ответа - ошибка вызова.
func pages(texts map[string]string) llmtest.Rule {
	return llmtest.Rule{
		Match: func(in llm.Request) bool { return strings.Contains(in.Instructions, onTranscribe) },
		Reply: func(in llm.Request) (string, error) {
			text, ok := texts[string(in.Images[0].Data)]
			if !ok {
				return "", fmt.Errorf("%w: vision call failed", llm.ErrUpstream)
			}
			return pageJSON(text), nil
		},
	}
}

func images(tags ...string) []imaging.Image {
	out := make([]imaging.Image, len(tags))
	for i, t := range tags {
		out[i] = imaging.Image{Data: []byte(t), MIME: "image/jpeg"}
	}
	return out
}

func classification(category, subject, language string) string {
	return mustJSON(map[string]string{
		"classification": category,
		"confidence":     "HIGH",
		"subject_area":   subject,
		"language":       language,
	})
}

func flashcardsJSON(n int, back string) string {
	cards := make([]map[string]string, n)
	for i := range cards {
		cards[i] = map[string]string{"front": fmt.Sprintf("Question %d?", i+1), "back": back}
	}
	return mustJSON(map[string]any{"flashcards": cards})
}

func quizJSON(n int) string {
	qs := make([]map[string]any, n)
	for i := range qs {
		qs[i] = map[string]any{
			"question":    fmt.Sprintf("Which statement %d is true?", i+1),
			"options":     []string{"Alpha", "Beta", "Gamma", "Delta"},
			"correct":     "Beta",
			"explanation": "Because.",
		}
	}
	return mustJSON(map[string]any{"quiz": qs})
}

func cardsJSON(n int) string {
	cs := make([]map[string]any, n)
	for i := range cs {
		cs[i] = map[string]any{
			"card_number": i + 1,
			"title":       fmt.Sprintf("Step %d", i+1),
			"explanation": "Look at the numbers.",
			"hint":        fmt.Sprintf("hint %d", i+1),
		}
	}
	return mustJSON(map[string]any{"concept_cards": cs})
}

func newTestPipeline(rules ...llmtest.Rule) (*Pipeline, *llmtest.Fake) {
	fake := llmtest.New(rules...)
	p := New(Options{Engine: fake, Prompts: prompt.MustLoad(""), Ledger: ledger.New(0)})
	return p, fake
}

func proseOf(n int) string {
	const sentence = "Plants use sunlight, water and air to make their own food in the leaves. "
	s := strings.Repeat(sentence, n/len(sentence)+1)
	return strings.TrimSpace(s[:n])
}

func TestHomeworkScenario(t *testing.T) {
	const problem = "Ratkaise: 2x + 3 = 11"
	p, _ := newTestPipeline(
		pages(map[string]string{"img": problem}),
		llmtest.When(onClassify, classification("PROBLEM_ASSIGNMENT", "Math", "Finnish")),
		llmtest.When(onAnalysis, `{"title":"Yhtälö","problem_summary":"2x+3","problem_type":"calculation","approach_guidance":"Vähennä ensin 3."}`),
		llmtest.When(onCards, cardsJSON(5)),
	)

	res, err := p.Run(context.Background(), images("img"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != types.ContentHomeworkHelp || res.HomeworkHelp == nil || res.StudySet != nil {
		t.Fatalf("wrong branch: %+v", res)
	}
	if n := len(res.ConceptCards); n < 3 || n > 6 {
		t.Fatalf("cards=%d", n)
	}
	if len(res.ConceptCards) != ConceptCardCount(BucketLow) {
		t.Fatalf("low bucket should cap to %d, got %d", ConceptCardCount(BucketLow), len(res.ConceptCards))
	}
	for i, c := range res.ConceptCards {
		if c.Number != i+1 {
			t.Fatalf("card %d numbered %d", i, c.Number)
		}
	}
	if !strings.Contains(res.ProblemSummary, problem) {
		t.Fatalf("summary lost the problem: %q", res.ProblemSummary)
	}
	if res.Language != "Finnish" || res.Introduction != homeworkIntroFI {
		t.Fatalf("language=%q intro=%q", res.Language, res.Introduction)
	}
	if res.ProcessingID == "" || res.CreatedAt == 0 || res.UpdatedAt < res.CreatedAt {
		t.Fatalf("stamps: %+v", res)
	}
	rec, ok := p.Ledger.Get(res.ProcessingID)
	if !ok || rec.Stage != ledger.StageCompleted || rec.Result != res {
		t.Fatalf("ledger: %+v", rec)
	}
}

func TestStudySetScenario(t *testing.T) {
	text := proseOf(3000)
	p, fake := newTestPipeline(
		pages(map[string]string{"img": text}),
		llmtest.When(onClassify, classification("TEXTBOOK_MATERIAL", "Science", "English")),
		llmtest.When(onBasic, `{"title":"Plants","introduction":"Hi","summary":"**Plants**\n- make food","subject_area":"Science"}`),
		llmtest.When(onFlashcards, flashcardsJSON(14, "They turn light into sugar in the leaves.")),
		llmtest.When(onQuiz, quizJSON(9)),
	)

	res, err := p.Run(context.Background(), images("img"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ContentType != types.ContentStudySet || res.StudySet == nil || res.HomeworkHelp != nil {
		t.Fatalf("wrong branch: %+v", res)
	}
	if BucketFor(text) != BucketLow {
		t.Fatalf("bucket=%s", BucketFor(text))
	}
	if len(res.Flashcards) != 12 || len(res.Quiz) != 8 {
		t.Fatalf("flashcards=%d quiz=%d", len(res.Flashcards), len(res.Quiz))
	}
	if res.SubjectArea != types.SubjectScience || res.Introduction != studyIntroEN {
		t.Fatalf("subject=%s intro=%q", res.SubjectArea, res.Introduction)
	}

	for _, c := range fake.Calls() {
		if strings.Contains(c.Instructions, onFlashcards) && !strings.Contains(c.Instructions, "exactly 12 flashcards") {
			t.Fatalf("flashcard count not requested:\n%s", c.Instructions)
		}
	}
}

func TestOneFailedPageDoesNotFailRequest(t *testing.T) {
	p, _ := newTestPipeline(
		pages(map[string]string{"1": "First page text.", "3": "Third page text."}),
		llmtest.When(onClassify, classification("TEXTBOOK", "Other", "English")),
		llmtest.When(onBasic, `{"title":"Notes","summary":"s"}`),
		llmtest.When(onFlashcards, flashcardsJSON(3, "A full sentence answer here.")),
		llmtest.When(onQuiz, quizJSON(6)),
	)

	res, err := p.Run(context.Background(), images("1", "2", "3"))
	if err != nil {
		t.Fatal(err)
	}
	want := "First page text.\n\n" + transcribe.FailedText + "\n\nThird page text."
	if res.RawTextContent != want {
		t.Fatalf("raw=%q", res.RawTextContent)
	}
	if res.ContentType == "" {
		t.Fatal("content type missing")
	}
}

func TestProseClassifierFallsBackToStudySet(t *testing.T) {
	p, _ := newTestPipeline(
		pages(map[string]string{"img": "Some page"}),
		llmtest.When(onClassify, "I think this is probably a textbook."),
		llmtest.When(onBasic, "Here is a summary in prose."),
		llmtest.When(onFlashcards, "no cards today"),
		llmtest.When(onQuiz, "no quiz either"),
	)

	res, err := p.Run(context.Background(), images("img"))
	if err != nil {
		t.Fatal(err)
	}
	if *res.Classification != types.DefaultClassification() {
		t.Fatalf("classification=%+v", *res.Classification)
	}
	if res.ContentType != types.ContentStudySet {
		t.Fatalf("contentType=%s", res.ContentType)
	}
	if len(res.Flashcards) < 1 || len(res.Quiz) < 1 {
		t.Fatalf("empty collections: %d %d", len(res.Flashcards), len(res.Quiz))
	}
	if res.Title != "Page" {
		t.Fatalf("title=%q", res.Title)
	}
}

func TestLanguageLearningProseBacksKept(t *testing.T) {
	back := strings.TrimSpace(strings.Repeat("This word is used when you greet a friend in the morning ", 2))
	p, _ := newTestPipeline(
		pages(map[string]string{"img": "talo - house\nkoira - dog"}),
		llmtest.When(onClassify, classification("TEXTBOOK", "Language", "Finnish")),
		llmtest.When(onBasic, `{"title":"Sanasto","subject_area":"Language"}`),
		llmtest.When(onFlashcards, flashcardsJSON(4, back)),
		llmtest.When(onQuiz, quizJSON(2)),
	)

	res, err := p.Run(context.Background(), images("img"))
	if err != nil {
		t.Fatal(err)
	}
	if res.SubjectArea != types.SubjectLanguageLearning {
		t.Fatalf("subject=%s", res.SubjectArea)
	}
	for _, c := range res.Flashcards {
		if c.Back != back {
			t.Fatalf("back changed: %q", c.Back)
		}
	}
	// для языкового набора пол не применяется
	if len(res.Quiz) != 2 {
		t.Fatalf("quiz=%d", len(res.Quiz))
	}
}

func TestShortScienceQuizIsFilled(t *testing.T) {
	p, _ := newTestPipeline(
		pages(map[string]string{"img": "Water boils at 100 degrees."}),
		llmtest.When(onClassify, classification("TEXTBOOK", "Science", "English")),
		llmtest.When(onBasic, `{"title":"Water","subject_area":"Science"}`),
		llmtest.When(onFlashcards, flashcardsJSON(3, "Water turns into steam when heated.")),
		llmtest.When(onQuiz, quizJSON(2)),
	)

	res, err := p.Run(context.Background(), images("img"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Quiz) < QuizFloor {
		t.Fatalf("quiz=%d", len(res.Quiz))
	}
	if res.Quiz[0].Question != "Which statement 1 is true?" || res.Quiz[1].Question != "Which statement 2 is true?" {
		t.Fatal("generated questions should come first")
	}
	if res.Quiz[2].Question != quizTemplates[types.SubjectScience][0].Question {
		t.Fatalf("filler=%q", res.Quiz[2].Question)
	}
	for _, q := range res.Quiz {
		if len(q.Options) != 4 {
			t.Fatalf("options=%v", q.Options)
		}
	}
}

func TestSubjectNeverDriftsIntoLanguageLearning(t *testing.T) {
	p, _ := newTestPipeline(
		pages(map[string]string{"img": "Cells are the building blocks of life."}),
		llmtest.When(onClassify, classification("TEXTBOOK", "Science", "English")),
		llmtest.When(onBasic, `{"title":"Cells","subject_area":"Language"}`),
		llmtest.When(onFlashcards, flashcardsJSON(3, "Cells make up every living thing.")),
		llmtest.When(onQuiz, quizJSON(5)),
	)
	res, err := p.Run(context.Background(), images("img"))
	if err != nil {
		t.Fatal(err)
	}
	if res.SubjectArea != types.SubjectScience {
		t.Fatalf("subject=%s", res.SubjectArea)
	}
}

func TestUpstreamFailureMarksLedger(t *testing.T) {
	p, _ := newTestPipeline(
		pages(map[string]string{"img": "2 + 2 = ?"}),
		llmtest.When(onClassify, classification("PROBLEM", "Math", "English")),
		llmtest.Fail(onAnalysis, fmt.Errorf("%w: gpt: 500", llm.ErrUpstream)),
	)
	p.newID = func() string { return "fixed-id" }

	_, err := p.Run(context.Background(), images("img"))
	if !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("err=%v", err)
	}
	rec, ok := p.Ledger.Get("fixed-id")
	if !ok || rec.Stage != ledger.StageError || rec.Error == "" {
		t.Fatalf("ledger=%+v", rec)
	}
}

func TestBranchCallsAreExclusive(t *testing.T) {
	p, fake := newTestPipeline(
		pages(map[string]string{"img": "Solve 5 x 5"}),
		llmtest.When(onClassify, classification("PROBLEM", "Math", "English")),
		llmtest.When(onAnalysis, `{"problem_summary":"Solve 5 x 5"}`),
		llmtest.When(onCards, cardsJSON(3)),
	)
	if _, err := p.Run(context.Background(), images("img")); err != nil {
		t.Fatal(err)
	}
	for _, c := range fake.Calls() {
		for _, m := range []string{onBasic, onFlashcards, onQuiz} {
			if strings.Contains(c.Instructions, m) {
				t.Fatalf("study-set call %q made on homework branch", m)
			}
		}
	}
}

func TestLongStudySetUsesWholeDocument(t *testing.T) {
	var b strings.Builder
	for i := 1; b.Len() < 14000; i++ {
		fmt.Fprintf(&b, "Fact %d: leaves catch light and roots bring water up to the stem.\n\n", i)
	}
	text := strings.TrimSpace(b.String())
	lastFact := text[strings.LastIndex(text, "Fact "):]

	var batch atomic.Int32
	p, fake := newTestPipeline(
		pages(map[string]string{"img": text}),
		llmtest.When(onClassify, classification("TEXTBOOK_MATERIAL", "Science", "English")),
		llmtest.When(onBasic, `{"title":"Plants","summary":"Plants","subject_area":"Science"}`),
		llmtest.Rule{
			Match: func(in llm.Request) bool { return strings.Contains(in.Instructions, onFlashcards) },
			Reply: func(llm.Request) (string, error) {
				n := batch.Add(1)
				cards := make([]map[string]string, 20)
				for i := range cards {
					cards[i] = map[string]string{
						"front": fmt.Sprintf("Batch %d question %d?", n, i+1),
						"back":  "Leaves turn light into sugar for the plant.",
					}
				}
				return mustJSON(map[string]any{"flashcards": cards}), nil
			},
		},
		llmtest.When(onQuiz, quizJSON(15)),
	)

	res, err := p.Run(context.Background(), images("img"))
	if err != nil {
		t.Fatal(err)
	}
	if BucketFor(text) != BucketHigh {
		t.Fatalf("bucket=%s", BucketFor(text))
	}
	if len(res.Flashcards) != FlashcardCount(BucketHigh, false) {
		t.Fatalf("flashcards=%d", len(res.Flashcards))
	}

	requested := regexp.MustCompile(`exactly (\d+) flashcards`)
	var calls, sum int
	var sawTail bool
	for _, c := range fake.Calls() {
		if !strings.Contains(c.Instructions, onFlashcards) {
			continue
		}
		calls++
		m := requested.FindStringSubmatch(c.Instructions)
		if m == nil {
			t.Fatalf("no count in instructions:\n%s", c.Instructions)
		}
		n, _ := strconv.Atoi(m[1])
		sum += n
		if strings.Contains(c.Input, lastFact) {
			sawTail = true
		}
	}
	if calls < 2 {
		t.Fatalf("flashcard calls=%d, long document should be split", calls)
	}
	if sum != FlashcardCount(BucketHigh, false) {
		t.Fatalf("requested %d flashcards in total", sum)
	}
	if !sawTail {
		t.Fatal("end of the document never reached flashcard generation")
	}
}

func TestSplitParts(t *testing.T) {
	long := strings.Repeat("a", 6000)
	short := strings.Repeat("b", 2000)

	one := splitParts([]string{short}, 12)
	if len(one) != 1 || one[0].Count != 12 || one[0].Input != short {
		t.Fatalf("single chunk: %+v", one)
	}

	tests := []struct {
		name   string
		chunks []string
		count  int
		parts  int
	}{
		{"three chunks", []string{long, long, short}, 20, 3},
		{"capped at max parts", []string{long, long, long, long, long}, 15, maxParts},
		{"fewer items than chunks", []string{long, long, long}, 2, 2},
		{"single item", []string{long, long}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitParts(tt.chunks, tt.count)
			if len(got) != tt.parts {
				t.Fatalf("parts=%d want %d", len(got), tt.parts)
			}
			sum := 0
			for _, pt := range got {
				if pt.Count < 1 || pt.Input == "" {
					t.Fatalf("empty part: %+v", pt)
				}
				sum += pt.Count
			}
			if sum != tt.count {
				t.Fatalf("sum=%d want %d", sum, tt.count)
			}
		})
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		n    int
		want Bucket
	}{
		{0, BucketLow},
		{3000, BucketLow},
		{3001, BucketMedium},
		{8000, BucketMedium},
		{8001, BucketHigh},
	}
	for _, tt := range tests {
		if got := BucketFor(strings.Repeat("ä", tt.n)); got != tt.want {
			t.Errorf("%d chars: got %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestCounts(t *testing.T) {
	if ConceptCardCount(BucketLow) != 3 || ConceptCardCount(BucketMedium) != 4 || ConceptCardCount(BucketHigh) != 6 {
		t.Fatal("concept cards")
	}
	if FlashcardCount(BucketLow, true) != 15 || FlashcardCount(BucketMedium, true) != 20 || FlashcardCount(BucketHigh, true) != 25 {
		t.Fatal("vocabulary flashcards")
	}
	if FlashcardCount(BucketLow, false) != 12 || FlashcardCount(BucketMedium, false) != 15 || FlashcardCount(BucketHigh, false) != 20 {
		t.Fatal("concept flashcards")
	}
	if QuizCount(BucketLow) != 8 || QuizCount(BucketMedium) != 10 || QuizCount(BucketHigh) != 15 {
		t.Fatal("quiz")
	}
}

func TestCompleteSummary(t *testing.T) {
	orig := "Count how many apples Liisa has if she had 5 and got 3 more from her friend."
	tests := []struct {
		name, summary, original, title, want string
	}{
		{"short replaced", "Omenat", orig, "t", orig},
		{"long kept", orig + " Extra.", orig, "t", orig + " Extra."},
		{"half is enough", orig[:len(orig)/2+2], orig, "t", orig[:len(orig)/2+2]},
		{"empty original uses title", "", "", "Title", "Title"},
		{"nothing at all", "", "", "", "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompleteSummary(tt.summary, tt.original, tt.title); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestResolveSubject(t *testing.T) {
	tests := []struct {
		orig     types.SubjectArea
		proposed string
		want     types.SubjectArea
	}{
		{types.SubjectScience, "Language", types.SubjectScience},
		{types.SubjectOther, "language-learning", types.SubjectOther},
		{types.SubjectOther, "Math", types.SubjectMathematics},
		{types.SubjectLanguageLearning, "History", types.SubjectHumanities},
		{types.SubjectScience, "", types.SubjectScience},
		{types.SubjectScience, "Cooking", types.SubjectScience},
	}
	for _, tt := range tests {
		if got := ResolveSubject(tt.orig, tt.proposed); got != tt.want {
			t.Errorf("%s + %q: got %s want %s", tt.orig, tt.proposed, got, tt.want)
		}
	}
}
