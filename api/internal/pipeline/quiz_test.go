package pipeline

import (
	"encoding/json"
	"slices"
	"testing"

	"lexie-server/api/internal/types"
)

func wq(t *testing.T, raw string) wireQuestion {
	t.Helper()
	var w wireQuestion
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		ok      bool
		correct string
		options []string
	}{
		{
			name:    "exact",
			raw:     `{"question":"2+2?","options":["3","4","5","6"],"correct":"4"}`,
			ok:      true,
			correct: "4",
			options: []string{"3", "4", "5", "6"},
		},
		{
			name:    "letter answer",
			raw:     `{"question":"Capital of Finland?","options":["Turku","Helsinki","Oulu","Tampere"],"correct":"B"}`,
			ok:      true,
			correct: "Helsinki",
		},
		{
			name:    "index answer",
			raw:     `{"question":"q?","options":["a1","b1","c1","d1"],"correct":2}`,
			ok:      true,
			correct: "c1",
		},
		{
			name:    "numeric answer matches option value",
			raw:     `{"question":"1+2?","options":["1","2","3","4"],"correct":3}`,
			ok:      true,
			correct: "3",
			options: []string{"1", "2", "3", "4"},
		},
		{
			name:    "fractional numeric answer",
			raw:     `{"question":"1/2?","options":["0.25","0.5","0.75","1"],"correct":0.5}`,
			ok:      true,
			correct: "0.5",
		},
		{
			name:    "numeric index when no option matches",
			raw:     `{"question":"q?","options":["10","20","30","40"],"correct":1}`,
			ok:      true,
			correct: "20",
		},
		{
			name:    "case insensitive answer",
			raw:     `{"question":"q?","options":["Sun","Moon","Mars","Venus"],"correct":"moon"}`,
			ok:      true,
			correct: "Moon",
		},
		{
			name:    "lettered options",
			raw:     `{"question":"q?","options":["A) Sun","B) Moon","C) Mars","D) Venus"],"correct":"C) Mars"}`,
			ok:      true,
			correct: "Mars",
			options: []string{"Sun", "Moon", "Mars", "Venus"},
		},
		{
			name:    "alternate answer key",
			raw:     `{"question":"q?","options":["w","x","y","z"],"correct_answer":"z"}`,
			ok:      true,
			correct: "z",
		},
		{
			name:    "six options keep the correct one",
			raw:     `{"question":"q?","options":["o1","o2","o3","o4","o5","o6"],"correct":"o6"}`,
			ok:      true,
			correct: "o6",
			options: []string{"o1", "o2", "o3", "o6"},
		},
		{
			name: "three options dropped",
			raw:  `{"question":"q?","options":["a","b","c"],"correct":"a"}`,
		},
		{
			name: "duplicates leave too few",
			raw:  `{"question":"q?","options":["a","A","b","c"],"correct":"a"}`,
		},
		{
			name: "answer not an option",
			raw:  `{"question":"q?","options":["a","b","c","d"],"correct":"e"}`,
		},
		{
			name: "index out of range",
			raw:  `{"question":"q?","options":["a","b","c","d"],"correct":7}`,
		},
		{
			name: "no question",
			raw:  `{"question":" ","options":["a","b","c","d"],"correct":"a"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := NormalizeQuestion(wq(t, tt.raw))
			if ok != tt.ok {
				t.Fatalf("ok=%v want %v (%+v)", ok, tt.ok, q)
			}
			if !ok {
				return
			}
			if len(q.Options) != 4 || !slices.Contains(q.Options, q.Correct) {
				t.Fatalf("bad shape: %+v", q)
			}
			if q.Correct != tt.correct {
				t.Fatalf("correct=%q want %q", q.Correct, tt.correct)
			}
			if tt.options != nil && !slices.Equal(q.Options, tt.options) {
				t.Fatalf("options=%v want %v", q.Options, tt.options)
			}
		})
	}
}

func TestRepairFlashcards(t *testing.T) {
	translations := []types.Flashcard{
		{Front: "talo", Back: "house"},
		{Front: "koira", Back: "dog"},
		{Front: "Mikä on solu?", Back: "Solu on elämän perusyksikkö."},
	}
	out, replaced := RepairFlashcards(translations, types.SubjectScience)
	if !replaced {
		t.Fatal("majority of translations should trigger repair")
	}
	for _, c := range out {
		if c.Back != placeholderBack(types.SubjectScience) {
			t.Fatalf("back=%q", c.Back)
		}
	}
	if translations[0].Back != "house" {
		t.Fatal("input mutated")
	}

	concepts := []types.Flashcard{
		{Front: "What is a cell?", Back: "The basic unit of life."},
		{Front: "What is DNA?", Back: "The molecule that stores genetic information."},
		{Front: "Organelle?", Back: "nucleus"},
	}
	if _, replaced := RepairFlashcards(concepts, types.SubjectScience); replaced {
		t.Fatal("minority should not trigger repair")
	}
}

func TestRepairQuiz(t *testing.T) {
	quiz := []types.QuizQuestion{
		{Question: "Translate 'talo' into English", Options: []string{"house", "dog", "car", "tree"}, Correct: "house"},
		{Question: "Mitä 'koira' tarkoittaa?", Options: []string{"dog", "cat", "cow", "pig"}, Correct: "dog"},
		{Question: "What does 'kissa' mean?", Options: []string{"cat", "dog", "cow", "pig"}, Correct: "cat"},
		{Question: "What does photosynthesis produce?", Options: []string{"Oxygen", "Salt", "Iron", "Gold"}, Correct: "Oxygen"},
	}
	out := RepairQuiz(quiz, types.SubjectScience)
	if len(out) != QuizFloor {
		t.Fatalf("len=%d", len(out))
	}
	if out[0].Question != "What does photosynthesis produce?" {
		t.Fatalf("first=%q", out[0].Question)
	}
	for _, q := range out {
		if translationQuestion.MatchString(q.Question) {
			t.Fatalf("translation question kept: %q", q.Question)
		}
	}
}

func TestRepairQuizUnknownSubjectUsesGeneric(t *testing.T) {
	out := RepairQuiz(nil, types.SubjectArea("cooking"))
	if len(out) != QuizFloor || out[0].Question != quizTemplates[types.SubjectOther][0].Question {
		t.Fatalf("%+v", out)
	}
}

func TestTemplatesAreWellFormed(t *testing.T) {
	for subject, qs := range quizTemplates {
		if len(qs) < QuizFloor {
			t.Errorf("%s: only %d templates", subject, len(qs))
		}
		for _, q := range qs {
			if len(q.Options) != 4 || !slices.Contains(q.Options, q.Correct) {
				t.Errorf("%s: %q malformed", subject, q.Question)
			}
		}
	}
}

func TestFallbacks(t *testing.T) {
	q := FallbackQuestion("Photosynthesis")
	if len(q.Options) != 4 || q.Correct != "Photosynthesis" || !slices.Contains(q.Options, q.Correct) {
		t.Fatalf("%+v", q)
	}
	if q := FallbackQuestion(""); q.Correct != "Untitled Content" {
		t.Fatalf("%+v", q)
	}

	c := FallbackFlashcard("Plants", "", "Plants make food. They need light.")
	if c.Front != "Plants" || c.Back != "Plants make food." {
		t.Fatalf("%+v", c)
	}
	if c := FallbackFlashcard("", "", ""); c.Front == "" || c.Back == "" {
		t.Fatalf("%+v", c)
	}
}
